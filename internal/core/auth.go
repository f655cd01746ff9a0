package core

import "provcore/pkg/domain"

// Authorization guards run at the top of every mutating operation, before
// any state change, which keeps the all-or-nothing transition invariant
// trivially satisfied.

// requireAdmin gates administrator-only calls.
func requireAdmin(admin, caller domain.Identity) error {
	if caller != admin {
		return domain.ErrNotAdmin
	}
	return nil
}

// requireManager gates calls restricted to Role Store members.
func requireManager(tx domain.Transaction, caller domain.Identity) error {
	if !tx.HasRole(caller) {
		return domain.ErrNotManager
	}
	return nil
}

// requireProductManager gates per-product calls. Holding the global manager
// role is necessary but not sufficient; the caller must manage this product.
func requireProductManager(p domain.Product, caller domain.Identity) error {
	if !p.HasManager(caller) {
		return domain.ErrNotProductManager
	}
	return nil
}
