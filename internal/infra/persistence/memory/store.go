// Package memory provides the canonical in-memory transactional ledger
// store. Every call runs against a cloned snapshot and commits atomically or
// not at all, which keeps the all-or-nothing transition invariant trivially
// satisfied.
package memory

import (
	"context"
	"sync"
	"time"

	"provcore/pkg/domain"
)

type state struct {
	admin             domain.Identity
	requests          map[domain.Identity]domain.ManagerRequest
	requestOrder      []domain.Identity
	roles             map[domain.Identity]struct{}
	roleOrder         []domain.Identity
	products          map[domain.UID]domain.Product
	productOrder      []domain.UID
	operations        map[domain.UID][]domain.Operation
	productsByManager map[domain.Identity][]domain.UID
	uidCounters       map[domain.Identity]uint64
	events            []domain.Event
}

func newState(admin domain.Identity) state {
	return state{
		admin:             admin,
		requests:          make(map[domain.Identity]domain.ManagerRequest),
		roles:             make(map[domain.Identity]struct{}),
		products:          make(map[domain.UID]domain.Product),
		operations:        make(map[domain.UID][]domain.Operation),
		productsByManager: make(map[domain.Identity][]domain.UID),
		uidCounters:       make(map[domain.Identity]uint64),
	}
}

func (s state) clone() state {
	cloned := newState(s.admin)
	for k, v := range s.requests {
		cloned.requests[k] = cloneRequest(v)
	}
	cloned.requestOrder = append([]domain.Identity(nil), s.requestOrder...)
	for k := range s.roles {
		cloned.roles[k] = struct{}{}
	}
	cloned.roleOrder = append([]domain.Identity(nil), s.roleOrder...)
	for k, v := range s.products {
		cloned.products[k] = cloneProduct(v)
	}
	cloned.productOrder = append([]domain.UID(nil), s.productOrder...)
	for k, v := range s.operations {
		cloned.operations[k] = append([]domain.Operation(nil), v...)
	}
	for k, v := range s.productsByManager {
		cloned.productsByManager[k] = append([]domain.UID(nil), v...)
	}
	for k, v := range s.uidCounters {
		cloned.uidCounters[k] = v
	}
	cloned.events = append([]domain.Event(nil), s.events...)
	return cloned
}

func cloneRequest(r domain.ManagerRequest) domain.ManagerRequest {
	cp := r
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		cp.DecidedAt = &t
	}
	return cp
}

func cloneProduct(p domain.Product) domain.Product {
	cp := p
	cp.Managers = append([]domain.Identity(nil), p.Managers...)
	cp.ParentUIDs = append([]domain.UID(nil), p.ParentUIDs...)
	return cp
}

// Store is the in-memory ledger store.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs a store whose administrator identity is fixed for the
// ledger's lifetime.
func NewStore(admin domain.Identity, engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(admin),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock. Intended for tests.
func (s *Store) SetClock(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// view exposes a read-only snapshot of transactional state.
type view struct {
	state *state
}

var _ domain.TransactionView = view{}

// RunInTransaction executes fn within a transactional copy of the store
// state, evaluates the rules engine against the post-state, and commits only
// when fn and every blocking rule pass.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.Snapshot(), tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view of the transactional state.
func (tx *Transaction) Snapshot() domain.TransactionView { return view{state: &tx.state} }

// Admin returns the fixed administrator identity.
func (tx *Transaction) Admin() domain.Identity { return tx.state.admin }

// Now returns the transaction timestamp. All mutations within one call share it.
func (tx *Transaction) Now() time.Time { return tx.now }

// CreateManagerRequest stores a new admission request. A request for the
// identity, whatever its status, blocks resubmission.
func (tx *Transaction) CreateManagerRequest(r domain.ManagerRequest) (domain.ManagerRequest, error) {
	if _, exists := tx.state.requests[r.Requester]; exists {
		return domain.ManagerRequest{}, domain.ErrAlreadyRequested
	}
	r.Status = domain.RequestPending
	r.SubmittedAt = tx.now
	r.DecidedAt = nil
	tx.state.requests[r.Requester] = cloneRequest(r)
	tx.state.requestOrder = append(tx.state.requestOrder, r.Requester)
	tx.recordChange(domain.Change{Entity: domain.EntityManagerRequest, Action: domain.ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateManagerRequest mutates an existing admission request.
func (tx *Transaction) UpdateManagerRequest(id domain.Identity, mutator func(*domain.ManagerRequest) error) (domain.ManagerRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok {
		return domain.ManagerRequest{}, domain.ErrRequestNotFound
	}
	before := cloneRequest(current)
	if err := mutator(&current); err != nil {
		return domain.ManagerRequest{}, err
	}
	current.Requester = id
	tx.state.requests[id] = cloneRequest(current)
	tx.recordChange(domain.Change{Entity: domain.EntityManagerRequest, Action: domain.ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// GrantRole adds id to the Role Store. Membership only ever grows.
func (tx *Transaction) GrantRole(id domain.Identity) error {
	if _, exists := tx.state.roles[id]; exists {
		return domain.ErrAlreadyManager
	}
	tx.state.roles[id] = struct{}{}
	tx.state.roleOrder = append(tx.state.roleOrder, id)
	tx.recordChange(domain.Change{Entity: domain.EntityRole, Action: domain.ActionCreate, After: id})
	return nil
}

// HasRole reports Role Store membership within the transaction snapshot.
func (tx *Transaction) HasRole(id domain.Identity) bool {
	_, ok := tx.state.roles[id]
	return ok
}

// NextUID mints a fresh identifier scoped to caller. The per-caller counter
// advances on every call, so repeated mints by one identity never collide;
// the existence check guards against the astronomically unlikely digest
// collision with a registered product.
func (tx *Transaction) NextUID(caller domain.Identity) domain.UID {
	for {
		tx.state.uidCounters[caller]++
		uid := domain.NewUID(caller, tx.state.uidCounters[caller], tx.now)
		if _, taken := tx.state.products[uid]; !taken {
			return uid
		}
	}
}

// CreateProduct stores a new product and indexes it for each listed manager.
func (tx *Transaction) CreateProduct(p domain.Product) (domain.Product, error) {
	if _, exists := tx.state.products[p.UID]; exists {
		return domain.Product{}, domain.ErrProductExists
	}
	p.CreatedAt = tx.now
	tx.state.products[p.UID] = cloneProduct(p)
	tx.state.productOrder = append(tx.state.productOrder, p.UID)
	tx.state.operations[p.UID] = nil
	for _, m := range p.Managers {
		tx.state.productsByManager[m] = append(tx.state.productsByManager[m], p.UID)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: cloneProduct(p)})
	return cloneProduct(p), nil
}

// AddProductManager adds id to the product's manager set.
func (tx *Transaction) AddProductManager(uid domain.UID, id domain.Identity) error {
	current, ok := tx.state.products[uid]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.HasManager(id) {
		return domain.ErrAlreadyManager
	}
	before := cloneProduct(current)
	current.Managers = append(current.Managers, id)
	tx.state.products[uid] = cloneProduct(current)
	tx.state.productsByManager[id] = append(tx.state.productsByManager[id], uid)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return nil
}

// RemoveProductManager removes id from the product's manager set. Removing
// the final manager is permitted and freezes the product.
func (tx *Transaction) RemoveProductManager(uid domain.UID, id domain.Identity) error {
	current, ok := tx.state.products[uid]
	if !ok {
		return domain.ErrProductNotFound
	}
	if !current.HasManager(id) {
		return domain.ErrNotProductManager
	}
	before := cloneProduct(current)
	current.Managers = removeIdentity(current.Managers, id)
	tx.state.products[uid] = cloneProduct(current)
	tx.state.productsByManager[id] = removeUID(tx.state.productsByManager[id], uid)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return nil
}

// SetProductManagers replaces the product's manager set outright. Used by the
// legacy single-owner transfer path.
func (tx *Transaction) SetProductManagers(uid domain.UID, managers []domain.Identity) error {
	current, ok := tx.state.products[uid]
	if !ok {
		return domain.ErrProductNotFound
	}
	before := cloneProduct(current)
	for _, m := range current.Managers {
		tx.state.productsByManager[m] = removeUID(tx.state.productsByManager[m], uid)
	}
	current.Managers = append([]domain.Identity(nil), managers...)
	for _, m := range current.Managers {
		tx.state.productsByManager[m] = append(tx.state.productsByManager[m], uid)
	}
	tx.state.products[uid] = cloneProduct(current)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return nil
}

// AppendOperation appends an immutable history entry to the product's log.
func (tx *Transaction) AppendOperation(uid domain.UID, op domain.Operation) (domain.Operation, error) {
	if _, ok := tx.state.products[uid]; !ok {
		return domain.Operation{}, domain.ErrProductNotFound
	}
	tx.state.operations[uid] = append(tx.state.operations[uid], op)
	tx.recordChange(domain.Change{Entity: domain.EntityOperation, Action: domain.ActionAppend, After: op})
	return op, nil
}

// AppendEvent appends evt to the durable journal, assigning the next
// sequence number.
func (tx *Transaction) AppendEvent(evt domain.Event) domain.Event {
	evt.Seq = uint64(len(tx.state.events)) + 1
	if evt.Timestamp.IsZero() {
		evt.Timestamp = tx.now
	}
	tx.state.events = append(tx.state.events, evt)
	return evt
}

// FindManagerRequest retrieves a request from the transaction snapshot.
func (tx *Transaction) FindManagerRequest(id domain.Identity) (domain.ManagerRequest, bool) {
	r, ok := tx.state.requests[id]
	if !ok {
		return domain.ManagerRequest{}, false
	}
	return cloneRequest(r), true
}

// FindProduct retrieves a product from the transaction snapshot.
func (tx *Transaction) FindProduct(uid domain.UID) (domain.Product, bool) {
	p, ok := tx.state.products[uid]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

func removeIdentity(list []domain.Identity, id domain.Identity) []domain.Identity {
	out := make([]domain.Identity, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeUID(list []domain.UID, uid domain.UID) []domain.UID {
	out := make([]domain.UID, 0, len(list))
	for _, v := range list {
		if v != uid {
			out = append(out, v)
		}
	}
	return out
}

// view methods -------------------------------------------------------------

func (v view) ListProducts() []domain.Product {
	out := make([]domain.Product, 0, len(v.state.productOrder))
	for _, uid := range v.state.productOrder {
		out = append(out, cloneProduct(v.state.products[uid]))
	}
	return out
}

func (v view) FindProduct(uid domain.UID) (domain.Product, bool) {
	p, ok := v.state.products[uid]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

func (v view) ListManagerRequests() []domain.ManagerRequest {
	out := make([]domain.ManagerRequest, 0, len(v.state.requestOrder))
	for _, id := range v.state.requestOrder {
		out = append(out, cloneRequest(v.state.requests[id]))
	}
	return out
}

func (v view) RoleMembers() []domain.Identity {
	return append([]domain.Identity(nil), v.state.roleOrder...)
}

func (v view) Operations(uid domain.UID) []domain.Operation {
	return append([]domain.Operation(nil), v.state.operations[uid]...)
}

// Committed-state read helpers ----------------------------------------------

// Admin returns the fixed administrator identity.
func (s *Store) Admin() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.admin
}

// GetManagerRequest retrieves a request from committed state.
func (s *Store) GetManagerRequest(id domain.Identity) (domain.ManagerRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.requests[id]
	if !ok {
		return domain.ManagerRequest{}, false
	}
	return cloneRequest(r), true
}

// PendingRequestIdentities returns requesters whose request is still pending,
// in submission order.
func (s *Store) PendingRequestIdentities() []domain.Identity {
	return s.requestIdentities(domain.RequestPending)
}

// ApprovedRequestIdentities returns requesters whose request was approved, in
// submission order.
func (s *Store) ApprovedRequestIdentities() []domain.Identity {
	return s.requestIdentities(domain.RequestApproved)
}

func (s *Store) requestIdentities(status domain.RequestStatus) []domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Identity, 0, len(s.state.requestOrder))
	for _, id := range s.state.requestOrder {
		if s.state.requests[id].Status == status {
			out = append(out, id)
		}
	}
	return out
}

// IsManager reports committed Role Store membership.
func (s *Store) IsManager(id domain.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.roles[id]
	return ok
}

// GetProduct retrieves a product from committed state.
func (s *Store) GetProduct(uid domain.UID) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[uid]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

// ListOperations returns the ordered operation log for uid.
func (s *Store) ListOperations(uid domain.UID) []domain.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Operation(nil), s.state.operations[uid]...)
}

// ListProductsManagedBy returns the uids currently managed by id, in the
// order management was acquired.
func (s *Store) ListProductsManagedBy(id domain.Identity) []domain.UID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.UID(nil), s.state.productsByManager[id]...)
}

// ListEvents returns the full committed event journal.
func (s *Store) ListEvents() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Event(nil), s.state.events...)
}
