package memory

import "provcore/pkg/domain"

// Snapshot is the serializable form of the full ledger state. Durable
// backends persist it bucket-per-table after each committed transaction and
// hydrate from it on open.
type Snapshot struct {
	Admin       domain.Identity                   `json:"admin"`
	Requests    []domain.ManagerRequest           `json:"requests"`
	Roles       []domain.Identity                 `json:"roles"`
	Products    []domain.Product                  `json:"products"`
	Operations  map[domain.UID][]domain.Operation `json:"operations"`
	UIDCounters map[domain.Identity]uint64        `json:"uid_counters"`
	Events      []domain.Event                    `json:"events"`
}

// ExportState clones the current store state for external persistence.
// Requests and products retain their insertion order.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Admin:       s.state.admin,
		Requests:    make([]domain.ManagerRequest, 0, len(s.state.requestOrder)),
		Roles:       append([]domain.Identity(nil), s.state.roleOrder...),
		Products:    make([]domain.Product, 0, len(s.state.productOrder)),
		Operations:  make(map[domain.UID][]domain.Operation, len(s.state.operations)),
		UIDCounters: make(map[domain.Identity]uint64, len(s.state.uidCounters)),
		Events:      append([]domain.Event(nil), s.state.events...),
	}
	for _, id := range s.state.requestOrder {
		snap.Requests = append(snap.Requests, cloneRequest(s.state.requests[id]))
	}
	for _, uid := range s.state.productOrder {
		snap.Products = append(snap.Products, cloneProduct(s.state.products[uid]))
	}
	for uid, ops := range s.state.operations {
		snap.Operations[uid] = append([]domain.Operation(nil), ops...)
	}
	for id, n := range s.state.uidCounters {
		snap.UIDCounters[id] = n
	}
	return snap
}

// ImportState replaces the store state with the provided snapshot. The
// per-manager product index is rebuilt from product creation order.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin := snap.Admin
	if admin == "" {
		admin = s.state.admin
	}
	st := newState(admin)
	for _, r := range snap.Requests {
		st.requests[r.Requester] = cloneRequest(r)
		st.requestOrder = append(st.requestOrder, r.Requester)
	}
	for _, id := range snap.Roles {
		st.roles[id] = struct{}{}
		st.roleOrder = append(st.roleOrder, id)
	}
	for _, p := range snap.Products {
		st.products[p.UID] = cloneProduct(p)
		st.productOrder = append(st.productOrder, p.UID)
		for _, m := range p.Managers {
			st.productsByManager[m] = append(st.productsByManager[m], p.UID)
		}
	}
	for uid, ops := range snap.Operations {
		st.operations[uid] = append([]domain.Operation(nil), ops...)
	}
	for id, n := range snap.UIDCounters {
		st.uidCounters[id] = n
	}
	st.events = append([]domain.Event(nil), snap.Events...)
	s.state = st
}
