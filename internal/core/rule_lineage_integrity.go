package core

import (
	"context"
	"fmt"

	"provcore/pkg/domain"
)

// LineageIntegrityRule enforces the provenance-graph construction invariant:
// every cited parent denotes an existing product and no product cites
// itself. Parent links are fixed at creation, so only the products touched
// by the current transaction need checking; a clean evaluation of each
// creation implies the whole graph stays acyclic.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	checked := make(map[domain.UID]struct{}, len(changes))
	for _, change := range changes {
		if change.Entity != domain.EntityProduct {
			continue
		}
		p, ok := change.After.(domain.Product)
		if !ok {
			continue
		}
		if _, done := checked[p.UID]; done {
			continue
		}
		checked[p.UID] = struct{}{}
		seen := make(map[domain.UID]struct{}, len(p.ParentUIDs))
		for _, parent := range p.ParentUIDs {
			if parent == p.UID {
				res.Violations = append(res.Violations, lineageViolation(p.UID, fmt.Sprintf("product %s cites itself as a parent", p.UID)))
				continue
			}
			if _, dup := seen[parent]; dup {
				res.Violations = append(res.Violations, lineageViolation(p.UID, fmt.Sprintf("product %s cites parent %s more than once", p.UID, parent)))
				continue
			}
			seen[parent] = struct{}{}
			if _, ok := view.FindProduct(parent); !ok {
				res.Violations = append(res.Violations, lineageViolation(p.UID, fmt.Sprintf("product %s cites missing parent %s", p.UID, parent)))
			}
		}
	}
	return res, nil
}

func lineageViolation(uid domain.UID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityProduct,
		EntityID: string(uid),
	}
}
