package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"provcore/pkg/domain"
)

// MemoryAuditLog retains audit entries in memory for inspection. Suitable
// for tests and embedded deployments.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditLog constructs an empty in-memory audit log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Record implements AuditRecorder.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of all recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func newAuditEntry(operation string, actor domain.Identity, err error) AuditEntry {
	entry := AuditEntry{
		ID:         uuid.NewString(),
		Operation:  operation,
		Actor:      actor,
		Status:     AuditOK,
		OccurredAt: time.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditError
		entry.Error = err.Error()
	}
	return entry
}
