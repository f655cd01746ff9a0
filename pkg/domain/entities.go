// Package domain defines the core persistent entities, value types, error
// taxonomy, and rule evaluation primitives used by provcore.
package domain

import "time"

// Identity is the opaque caller token used as the authorization subject for
// every state-changing call. The execution substrate guarantees it is
// unforgeable; the ledger only ever compares and stores it.
type Identity string

// UID is the hex-encoded 32-byte identifier minted for a product before its
// creation. UIDs are unique across the ledger for its lifetime.
type UID string

// Hash is the hex-encoded SHA-256 digest of an off-ledger information
// document. The ledger stores digests only; payloads live in the blob store.
type Hash string

// EntityType identifies the type of record stored in the ledger.
type EntityType string

// Supported entity type identifiers used in Change records, audit entries,
// and persistence buckets.
const (
	// EntityManagerRequest identifies an admission request record.
	EntityManagerRequest EntityType = "manager_request"
	// EntityRole identifies a Role Store membership record.
	EntityRole EntityType = "role"
	// EntityProduct identifies a product record.
	EntityProduct EntityType = "product"
	// EntityOperation identifies a product history entry.
	EntityOperation EntityType = "operation"
)

// RequestStatus represents the admission state machine for a manager request.
// Pending transitions to Approved or Denied; both are terminal.
type RequestStatus string

// Canonical admission request states.
const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// ManagerRequest records an identity's application to join the Role Store.
// One request per identity for the ledger's lifetime, created by the
// requester and decided only by the administrator.
type ManagerRequest struct {
	Requester       Identity      `json:"requester"`
	InformationHash Hash          `json:"information_hash"`
	Status          RequestStatus `json:"status"`
	SubmittedAt     time.Time     `json:"submitted_at"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
}

// Product is a ledger entry tracked through the supply chain. Parents must
// exist at creation time, which makes the provenance graph acyclic by
// construction. Products are never deleted.
type Product struct {
	UID             UID        `json:"uid"`
	InformationHash Hash       `json:"information_hash"`
	Managers        []Identity `json:"managers"`
	ParentUIDs      []UID      `json:"parent_uids"`
	CreatedBy       Identity   `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasManager reports whether id is currently in the product's manager set.
func (p Product) HasManager(id Identity) bool {
	for _, m := range p.Managers {
		if m == id {
			return true
		}
	}
	return false
}

// Operation is an immutable product history entry. Ordering is insertion
// order and is the only meaningful order.
type Operation struct {
	InformationHash Hash      `json:"information_hash"`
	Timestamp       time.Time `json:"timestamp"`
	RecordedBy      Identity  `json:"recorded_by"`
}

// EventType identifies an observable ledger notification.
type EventType string

// Events emitted on successful state transitions.
const (
	EventManagerRequestSubmitted EventType = "manager_request_submitted"
	EventManagerRequestApproved  EventType = "manager_request_approved"
	EventManagerRequestDenied    EventType = "manager_request_denied"
	EventProductCreated          EventType = "product_created"
	EventOperationAdded          EventType = "operation_added"
	EventManagerAdded            EventType = "manager_added"
	EventManagerRemoved          EventType = "manager_removed"
)

// Event is an append-only journal entry describing a committed transition.
// Seq is assigned by the store and increases monotonically.
type Event struct {
	Seq             uint64    `json:"seq"`
	Type            EventType `json:"type"`
	Identity        Identity  `json:"identity,omitempty"`
	UID             UID       `json:"uid,omitempty"`
	InformationHash Hash      `json:"information_hash,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured in the audit trail. The ledger is append-only, so
// there is no delete action.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionAppend indicates an entry was appended to an ordered log.
	ActionAppend Action = "append"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
