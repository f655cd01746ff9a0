package domain

import (
	"context"
	"time"
)

// Transaction exposes the ledger mutations that a persistence implementation
// must support within an atomic scope. Mutations either all commit or none
// do; invariant failures surface as typed errors and roll the whole call
// back.
type Transaction interface {
	Snapshot() TransactionView
	Admin() Identity
	Now() time.Time

	CreateManagerRequest(ManagerRequest) (ManagerRequest, error)
	UpdateManagerRequest(id Identity, mutator func(*ManagerRequest) error) (ManagerRequest, error)
	GrantRole(id Identity) error
	HasRole(id Identity) bool

	NextUID(caller Identity) UID

	CreateProduct(Product) (Product, error)
	AddProductManager(uid UID, id Identity) error
	RemoveProductManager(uid UID, id Identity) error
	SetProductManagers(uid UID, managers []Identity) error
	AppendOperation(uid UID, op Operation) (Operation, error)

	AppendEvent(Event) Event

	FindManagerRequest(id Identity) (ManagerRequest, bool)
	FindProduct(uid UID) (Product, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries.
type TransactionView interface {
	ListProducts() []Product
	FindProduct(uid UID) (Product, bool)
	ListManagerRequests() []ManagerRequest
	RoleMembers() []Identity
	Operations(uid UID) []Operation
}

// PersistentStore is a minimal abstraction over durable backends. The four
// logical tables (requests, roles, products, operations) plus the event
// journal and uid counters survive for the lifetime of the ledger.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	Admin() Identity
	GetManagerRequest(id Identity) (ManagerRequest, bool)
	PendingRequestIdentities() []Identity
	ApprovedRequestIdentities() []Identity
	IsManager(id Identity) bool
	GetProduct(uid UID) (Product, bool)
	ListOperations(uid UID) []Operation
	ListProductsManagedBy(id Identity) []UID
	ListEvents() []Event
}
