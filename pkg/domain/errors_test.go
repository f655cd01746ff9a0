package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanonicalErrorsAreComparable(t *testing.T) {
	wrapped := fmt.Errorf("approve: %w", ErrAlreadyManager)
	if !errors.Is(wrapped, ErrAlreadyManager) {
		t.Fatalf("expected errors.Is to match wrapped canonical error")
	}
	if errors.Is(wrapped, ErrAlreadyApproved) {
		t.Fatalf("unexpected match against a different canonical error")
	}
}

func TestIsKind(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
		want bool
	}{
		{ErrNotAdmin, KindUnauthorized, true},
		{ErrNotManager, KindUnauthorized, true},
		{ErrNotProductManager, KindForbidden, true},
		{ErrProductNotFound, KindNotFound, true},
		{ErrParentNotFound, KindParentNotFound, true},
		{ErrParentNotFound, KindNotFound, false},
		{ErrUIDRequired, KindInvalidArgument, true},
		{fmt.Errorf("wrapped: %w", ErrAlreadyRequested), KindAlreadyRequested, true},
		{errors.New("plain"), KindNotFound, false},
		{nil, KindNotFound, false},
	}
	for _, tc := range cases {
		if got := IsKind(tc.err, tc.kind); got != tc.want {
			t.Fatalf("IsKind(%v, %s) = %v, want %v", tc.err, tc.kind, got, tc.want)
		}
	}
}

func TestErrorMessagesMatchReferenceText(t *testing.T) {
	cases := map[error]string{
		ErrNotAdmin:          "Caller is not the administrator",
		ErrNotManager:        "User is not a manager",
		ErrNotProductManager: "User is not manager of this product",
		ErrRequestNotFound:   "Manager request does not exist",
		ErrProductNotFound:   "Product with this uid does not exist",
		ErrProductExists:     "Product with this uid already exists",
		ErrAlreadyRequested:  "Manager request already submitted",
		ErrAlreadyManager:    "Account is already a manager",
		ErrAlreadyApproved:   "Manager request already approved",
		ErrParentNotFound:    "Parent product with this uid does not exist",
		ErrTargetNotManager:  "Account is not a manager",
	}
	for err, want := range cases {
		if err.Error() != want {
			t.Fatalf("message %q, want %q", err.Error(), want)
		}
	}
}

func TestResultHasBlocking(t *testing.T) {
	var r Result
	if r.HasBlocking() {
		t.Fatalf("empty result should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}})
	if r.HasBlocking() {
		t.Fatalf("warn severity should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}})
	if !r.HasBlocking() {
		t.Fatalf("block severity should block")
	}
	if len(r.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(r.Violations))
	}
}
