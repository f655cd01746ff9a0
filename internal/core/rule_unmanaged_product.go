package core

import (
	"context"
	"fmt"

	"provcore/pkg/domain"
)

// UnmanagedProductRule surfaces products whose manager set has emptied out.
// Renouncing the last manager is permitted and freezes the product; the rule
// warns so the freeze is observable without blocking the commit.
func UnmanagedProductRule() domain.Rule {
	return unmanagedProductRule{}
}

type unmanagedProductRule struct{}

func (unmanagedProductRule) Name() string { return "unmanaged_product" }

func (unmanagedProductRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityProduct {
			continue
		}
		after, ok := change.After.(domain.Product)
		if !ok || len(after.Managers) > 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "unmanaged_product",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("product %s no longer has any manager and is frozen", after.UID),
			Entity:   domain.EntityProduct,
			EntityID: string(after.UID),
		})
	}
	return res, nil
}
