package core

import (
	"context"
	"time"

	"provcore/pkg/domain"
)

// Logger is the minimal structured logging surface used by the service.
// Arguments are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan finishes a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer opens spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// AuditStatus reports a call outcome in the audit trail.
type AuditStatus string

// Audit outcomes.
const (
	AuditOK    AuditStatus = "ok"
	AuditError AuditStatus = "error"
)

// AuditEntry captures audit trail metadata for a single ledger call.
type AuditEntry struct {
	ID         string          `json:"id"`
	Operation  string          `json:"operation"`
	Actor      domain.Identity `json:"actor"`
	Status     AuditStatus     `json:"status"`
	Error      string          `json:"error,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// EventSink receives committed ledger events after each successful
// transaction, in journal order.
type EventSink interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, events ...domain.Event)

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, events ...domain.Event) { f(ctx, events...) }
