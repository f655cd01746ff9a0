package core

import (
	"context"
	"fmt"
	"time"

	memory "provcore/internal/infra/persistence/memory"
	"provcore/pkg/domain"
)

// Service operation names used for metrics, tracing, and audit.
const (
	opSubmitManagerRequest = "submit_manager_request"
	opApproveRequest       = "approve_manager_request"
	opDenyRequest          = "deny_manager_request"
	opGenerateUID          = "generate_product_uid"
	opCreateProduct        = "create_product"
	opAddOperation         = "add_operation"
	opUpdateProduct        = "update_product"
	opAddProductManager    = "add_product_manager"
	opRenounceProductRole  = "renounce_product_role"
	opTransferProduct      = "transfer_product"
)

// Service exposes the permissioned provenance ledger: the manager admission
// state machine, the product ledger with its authorization rules, and the
// per-product append-only history.
type Service struct {
	store       domain.PersistentStore
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	audit       AuditRecorder
	sink        EventSink
	singleOwner bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) { s.audit = a }
}

// WithEventSink installs a sink that receives committed events.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithSingleOwner enables the legacy barcode-era ownership model: products
// carry one owning manager and ownership moves via TransferProduct instead
// of growing the manager set.
func WithSingleOwner() Option {
	return func(s *Service) { s.singleOwner = true }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// administrator identity and rules engine.
func NewInMemoryService(admin domain.Identity, engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(admin, engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Admin returns the administrator identity fixed at ledger creation.
func (s *Service) Admin() domain.Identity {
	return s.store.Admin()
}

// eventBuffer collects the events appended during one transaction so they
// can be delivered to the sink only after the commit succeeds.
type eventBuffer struct {
	events []domain.Event
}

func (b *eventBuffer) emit(tx domain.Transaction, evt domain.Event) {
	b.events = append(b.events, tx.AppendEvent(evt))
}

// transact wraps a mutating operation with tracing, metrics, audit, and
// post-commit event delivery.
func (s *Service) transact(ctx context.Context, operation string, actor domain.Identity, fn func(tx domain.Transaction, ev *eventBuffer) error) (domain.Result, error) {
	start := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}

	buf := &eventBuffer{}
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return fn(tx, buf)
	})

	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
	if s.audit != nil {
		s.audit.Record(ctx, newAuditEntry(operation, actor, err))
	}
	if err != nil {
		s.logger.Debug("ledger call rejected", "operation", operation, "actor", actor, "error", err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "rule", v.Rule, "severity", v.Severity, "message", v.Message)
	}
	if s.sink != nil && len(buf.events) > 0 {
		s.sink.Publish(ctx, buf.events...)
	}
	s.logger.Debug("ledger call committed", "operation", operation, "actor", actor, "events", len(buf.events))
	return res, nil
}

// SubmitManagerRequest records caller's application to become a manager. A
// prior request for the same identity, whatever its status, blocks
// resubmission.
func (s *Service) SubmitManagerRequest(ctx context.Context, caller domain.Identity, informationHash domain.Hash) (domain.ManagerRequest, domain.Result, error) {
	var created domain.ManagerRequest
	res, err := s.transact(ctx, opSubmitManagerRequest, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		var err error
		created, err = tx.CreateManagerRequest(domain.ManagerRequest{
			Requester:       caller,
			InformationHash: informationHash,
		})
		if err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventManagerRequestSubmitted, Identity: caller, InformationHash: informationHash})
		return nil
	})
	return created, res, err
}

// ApproveManagerRequest transitions requester's pending request to Approved
// and adds the identity to the Role Store. Administrator only.
func (s *Service) ApproveManagerRequest(ctx context.Context, caller, requester domain.Identity) (domain.ManagerRequest, domain.Result, error) {
	var updated domain.ManagerRequest
	res, err := s.transact(ctx, opApproveRequest, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		if err := requireAdmin(tx.Admin(), caller); err != nil {
			return err
		}
		if _, ok := tx.FindManagerRequest(requester); !ok {
			return domain.ErrRequestNotFound
		}
		// Membership check precedes the status check so a divergence between
		// the two surfaces as AlreadyManager, matching the reference behavior.
		if tx.HasRole(requester) {
			return domain.ErrAlreadyManager
		}
		var err error
		updated, err = tx.UpdateManagerRequest(requester, func(r *domain.ManagerRequest) error {
			if r.Status == domain.RequestApproved {
				return domain.ErrAlreadyApproved
			}
			r.Status = domain.RequestApproved
			decided := tx.Now()
			r.DecidedAt = &decided
			return nil
		})
		if err != nil {
			return err
		}
		if err := tx.GrantRole(requester); err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventManagerRequestApproved, Identity: requester})
		return nil
	})
	return updated, res, err
}

// DenyManagerRequest transitions requester's pending request to Denied.
// Approval is terminal and cannot be reversed by denial; denial never
// touches an existing Role Store membership. Administrator only.
func (s *Service) DenyManagerRequest(ctx context.Context, caller, requester domain.Identity) (domain.ManagerRequest, domain.Result, error) {
	var updated domain.ManagerRequest
	res, err := s.transact(ctx, opDenyRequest, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		if err := requireAdmin(tx.Admin(), caller); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateManagerRequest(requester, func(r *domain.ManagerRequest) error {
			switch r.Status {
			case domain.RequestApproved:
				return domain.ErrAlreadyApproved
			case domain.RequestDenied:
				return domain.ErrAlreadyDenied
			}
			r.Status = domain.RequestDenied
			decided := tx.Now()
			r.DecidedAt = &decided
			return nil
		})
		if err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventManagerRequestDenied, Identity: requester})
		return nil
	})
	return updated, res, err
}

// GetManagerRequest returns requester's admission request. Administrator only.
func (s *Service) GetManagerRequest(ctx context.Context, caller, requester domain.Identity) (domain.ManagerRequest, error) {
	if err := requireAdmin(s.store.Admin(), caller); err != nil {
		return domain.ManagerRequest{}, err
	}
	req, ok := s.store.GetManagerRequest(requester)
	if !ok {
		return domain.ManagerRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

// PendingManagerRequests returns the identities whose request is still
// pending, in submission order. Administrator only.
func (s *Service) PendingManagerRequests(ctx context.Context, caller domain.Identity) ([]domain.Identity, error) {
	if err := requireAdmin(s.store.Admin(), caller); err != nil {
		return nil, err
	}
	return s.store.PendingRequestIdentities(), nil
}

// ApprovedManagerRequests returns the identities whose request was approved,
// in submission order. Administrator only.
func (s *Service) ApprovedManagerRequests(ctx context.Context, caller domain.Identity) ([]domain.Identity, error) {
	if err := requireAdmin(s.store.Admin(), caller); err != nil {
		return nil, err
	}
	return s.store.ApprovedRequestIdentities(), nil
}

// IsManager reports whether id currently holds the global manager role.
func (s *Service) IsManager(ctx context.Context, id domain.Identity) bool {
	return s.store.IsManager(id)
}

// GenerateProductUID mints a fresh product identifier scoped to caller. Pure
// generation: the ledger is untouched apart from the per-caller counter, and
// the uid must be presented to CreateProduct separately.
func (s *Service) GenerateProductUID(ctx context.Context, caller domain.Identity) (domain.UID, domain.Result, error) {
	var uid domain.UID
	res, err := s.transact(ctx, opGenerateUID, caller, func(tx domain.Transaction, _ *eventBuffer) error {
		if err := requireManager(tx, caller); err != nil {
			return err
		}
		uid = tx.NextUID(caller)
		return nil
	})
	return uid, res, err
}

// CreateProduct registers a product under uid with the caller as its sole
// manager. Every cited parent must already exist, which keeps the provenance
// graph acyclic by construction.
func (s *Service) CreateProduct(ctx context.Context, caller domain.Identity, uid domain.UID, informationHash domain.Hash, parentUIDs []domain.UID) (domain.Product, domain.Result, error) {
	var created domain.Product
	res, err := s.transact(ctx, opCreateProduct, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		if err := requireManager(tx, caller); err != nil {
			return err
		}
		if uid == "" {
			return domain.ErrUIDRequired
		}
		for _, parent := range parentUIDs {
			if _, ok := tx.FindProduct(parent); !ok {
				return domain.ErrParentNotFound
			}
		}
		var err error
		created, err = tx.CreateProduct(domain.Product{
			UID:             uid,
			InformationHash: informationHash,
			Managers:        []domain.Identity{caller},
			ParentUIDs:      append([]domain.UID(nil), parentUIDs...),
			CreatedBy:       caller,
		})
		if err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventProductCreated, Identity: caller, UID: uid, InformationHash: informationHash})
		return nil
	})
	return created, res, err
}

// AddOperation appends a history entry to uid's log, stamped with the ledger
// clock. The caller must manage this specific product; holding the global
// role is not sufficient.
func (s *Service) AddOperation(ctx context.Context, caller domain.Identity, uid domain.UID, informationHash domain.Hash) (domain.Operation, domain.Result, error) {
	return s.appendOperation(ctx, opAddOperation, caller, uid, informationHash, nil)
}

// UpdateProduct is the caller-clocked history append retained from the
// barcode-era interface: identical to AddOperation except the operation
// carries the supplied timestamp.
func (s *Service) UpdateProduct(ctx context.Context, caller domain.Identity, uid domain.UID, informationHash domain.Hash, timestamp time.Time) (domain.Operation, domain.Result, error) {
	return s.appendOperation(ctx, opUpdateProduct, caller, uid, informationHash, &timestamp)
}

func (s *Service) appendOperation(ctx context.Context, operation string, caller domain.Identity, uid domain.UID, informationHash domain.Hash, at *time.Time) (domain.Operation, domain.Result, error) {
	var appended domain.Operation
	res, err := s.transact(ctx, operation, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		product, ok := tx.FindProduct(uid)
		if !ok {
			return domain.ErrProductNotFound
		}
		if err := requireProductManager(product, caller); err != nil {
			return err
		}
		ts := tx.Now()
		if at != nil {
			ts = *at
		}
		var err error
		appended, err = tx.AppendOperation(uid, domain.Operation{
			InformationHash: informationHash,
			Timestamp:       ts,
			RecordedBy:      caller,
		})
		if err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventOperationAdded, Identity: caller, UID: uid, InformationHash: informationHash, Timestamp: ts})
		return nil
	})
	return appended, res, err
}

// AddManagerForProduct adds target to uid's manager set. The target must
// already hold the global manager role.
func (s *Service) AddManagerForProduct(ctx context.Context, caller domain.Identity, uid domain.UID, target domain.Identity) (domain.Result, error) {
	return s.transact(ctx, opAddProductManager, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		product, ok := tx.FindProduct(uid)
		if !ok {
			return domain.ErrProductNotFound
		}
		if err := requireProductManager(product, caller); err != nil {
			return err
		}
		if !tx.HasRole(target) {
			return domain.ErrTargetNotManager
		}
		if err := tx.AddProductManager(uid, target); err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventManagerAdded, Identity: target, UID: uid})
		return nil
	})
}

// RenounceRoleForProduct removes the caller from uid's manager set. Removing
// the last manager is permitted and freezes the product; the unmanaged
// product rule raises a warning on that commit. Re-addition later via
// AddManagerForProduct is allowed.
func (s *Service) RenounceRoleForProduct(ctx context.Context, caller domain.Identity, uid domain.UID) (domain.Result, error) {
	return s.transact(ctx, opRenounceProductRole, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		product, ok := tx.FindProduct(uid)
		if !ok {
			return domain.ErrProductNotFound
		}
		if err := requireProductManager(product, caller); err != nil {
			return err
		}
		if err := tx.RemoveProductManager(uid, caller); err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventManagerRemoved, Identity: caller, UID: uid})
		return nil
	})
}

// TransferProduct replaces uid's owning manager outright with newOwner.
// Available only in single-owner mode.
func (s *Service) TransferProduct(ctx context.Context, caller domain.Identity, uid domain.UID, newOwner domain.Identity) (domain.Result, error) {
	if !s.singleOwner {
		return domain.Result{}, fmt.Errorf("ownership transfer requires single-owner mode")
	}
	return s.transact(ctx, opTransferProduct, caller, func(tx domain.Transaction, ev *eventBuffer) error {
		product, ok := tx.FindProduct(uid)
		if !ok {
			return domain.ErrProductNotFound
		}
		if err := requireProductManager(product, caller); err != nil {
			return err
		}
		if !tx.HasRole(newOwner) {
			return domain.ErrTargetNotManager
		}
		if err := tx.SetProductManagers(uid, []domain.Identity{newOwner}); err != nil {
			return err
		}
		ev.emit(tx, domain.Event{Type: domain.EventManagerRemoved, Identity: caller, UID: uid})
		ev.emit(tx, domain.Event{Type: domain.EventManagerAdded, Identity: newOwner, UID: uid})
		return nil
	})
}

// GetProduct returns the product and its ordered operation log. Public read;
// both come from one committed snapshot.
func (s *Service) GetProduct(ctx context.Context, uid domain.UID) (domain.Product, []domain.Operation, error) {
	var product domain.Product
	var ops []domain.Operation
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		found, ok := v.FindProduct(uid)
		if !ok {
			return domain.ErrProductNotFound
		}
		product = found
		ops = v.Operations(uid)
		return nil
	})
	if err != nil {
		return domain.Product{}, nil, err
	}
	return product, ops, nil
}

// GetOperations returns uid's ordered operation log. Public read.
func (s *Service) GetOperations(ctx context.Context, uid domain.UID) ([]domain.Operation, error) {
	var ops []domain.Operation
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindProduct(uid); !ok {
			return domain.ErrProductNotFound
		}
		ops = v.Operations(uid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// ManagerProducts returns the uids the caller currently manages, in the
// order management was acquired. Role Store members only.
func (s *Service) ManagerProducts(ctx context.Context, caller domain.Identity) ([]domain.UID, error) {
	if !s.store.IsManager(caller) {
		return nil, domain.ErrNotManager
	}
	return s.store.ListProductsManagedBy(caller), nil
}

// Events returns the committed event journal.
func (s *Service) Events(ctx context.Context) []domain.Event {
	return s.store.ListEvents()
}
