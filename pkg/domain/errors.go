package domain

import "errors"

// ErrorKind classifies a ledger failure. Every failure is an expected
// business-rule violation surfaced synchronously to the caller; there is no
// internal fatal class. Callers branch on the kind, not the message.
type ErrorKind string

// Canonical error kinds.
const (
	// KindUnauthorized - caller lacks the required global role.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindForbidden - caller holds a role but not the one this resource requires.
	KindForbidden ErrorKind = "forbidden"
	// KindNotFound - referenced request or product does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindAlreadyExists - the record being created already exists, or the
	// requested transition has already happened.
	KindAlreadyExists ErrorKind = "already_exists"
	// KindAlreadyRequested - a request for this identity already exists.
	KindAlreadyRequested ErrorKind = "already_requested"
	// KindAlreadyManager - identity already holds the membership being granted.
	KindAlreadyManager ErrorKind = "already_manager"
	// KindAlreadyApproved - approval is terminal and cannot be repeated or reversed.
	KindAlreadyApproved ErrorKind = "already_approved"
	// KindParentNotFound - a cited parent uid does not denote a product.
	KindParentNotFound ErrorKind = "parent_not_found"
	// KindNotAManager - target identity is not in the Role Store.
	KindNotAManager ErrorKind = "not_a_manager"
	// KindInvalidArgument - a supplied argument fails structural validation
	// before any ledger state is consulted.
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// Error is the ledger's failure value. Message text is preserved verbatim
// from the reference implementation for compatibility; comparisons should go
// through Kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e Error) Error() string { return e.Message }

// Canonical errors returned by the ledger. Comparable values, so errors.Is
// works directly.
var (
	ErrNotAdmin          = Error{KindUnauthorized, "Caller is not the administrator"}
	ErrNotManager        = Error{KindUnauthorized, "User is not a manager"}
	ErrNotProductManager = Error{KindForbidden, "User is not manager of this product"}
	ErrRequestNotFound   = Error{KindNotFound, "Manager request does not exist"}
	ErrProductNotFound   = Error{KindNotFound, "Product with this uid does not exist"}
	ErrProductExists     = Error{KindAlreadyExists, "Product with this uid already exists"}
	ErrAlreadyRequested  = Error{KindAlreadyRequested, "Manager request already submitted"}
	ErrAlreadyManager    = Error{KindAlreadyManager, "Account is already a manager"}
	ErrAlreadyApproved   = Error{KindAlreadyApproved, "Manager request already approved"}
	ErrAlreadyDenied     = Error{KindAlreadyExists, "Manager request already denied"}
	ErrParentNotFound    = Error{KindParentNotFound, "Parent product with this uid does not exist"}
	ErrTargetNotManager  = Error{KindNotAManager, "Account is not a manager"}
	ErrUIDRequired       = Error{KindInvalidArgument, "Product uid is required"}
)

// IsKind reports whether err is a ledger Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
