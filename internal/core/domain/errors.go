package domain

import "errors"

// Error kinds. Every error raised by the core unwraps to exactly one of these,
// which is what the transport layer maps to a status code.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBusinessRule = errors.New("business rule violated")
	// ErrTransient marks infrastructure failures that are safe to retry
	// (serialization failures, deadlocks, aborted transactions).
	ErrTransient = errors.New("temporarily unavailable")
)

// kindError is a sentinel with a stable message that unwraps to its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrOrderNotFound    = newError(ErrNotFound, "order not found")
	ErrMedicineNotFound = newError(ErrNotFound, "medicine not found")
	ErrUserNotFound     = newError(ErrNotFound, "user not found")
	ErrReviewNotFound   = newError(ErrNotFound, "review not found")

	ErrUserExists         = newError(ErrConflict, "user already exists")
	ErrInsufficientStock  = newError(ErrConflict, "insufficient stock")
	ErrConcurrentUpdate   = newError(ErrConflict, "order was modified concurrently")
	ErrStockChanged       = newError(ErrConflict, "stock changed concurrently, reload and retry")
	ErrCheckoutInProgress = newError(ErrConflict, "checkout with this idempotency key is already in progress")
	ErrDuplicateReview    = newError(ErrConflict, "you already reviewed this medicine")

	ErrInvalidTransition     = newError(ErrBusinessRule, "invalid status transition")
	ErrMedicineUnavailable   = newError(ErrBusinessRule, "medicine not available")
	ErrOrderNotEditable      = newError(ErrBusinessRule, "order items can only be changed while the order is placed")
	ErrOrderNotCancellable   = newError(ErrBusinessRule, "cannot cancel shipped/delivered order")
	ErrOrderClosed           = newError(ErrBusinessRule, "cannot update delivered/cancelled order")
	ErrOrderAlreadyCancelled = newError(ErrBusinessRule, "order is already cancelled")
	ErrInvalidCredentials    = newError(ErrUnauthorized, "invalid credentials")
	ErrMissingIdentity       = newError(ErrUnauthorized, "missing authentication claims")
	ErrAdminRegistration     = newError(ErrForbidden, "admin cannot be created from public registration")
	ErrInvalidMedicineRef    = newError(ErrValidation, "invalid medicine id found")
	ErrInvalidStatus         = newError(ErrValidation, "invalid status")
	ErrInvalidQuantity       = newError(ErrValidation, "quantity must be a positive integer")
	ErrEmptyCart             = newError(ErrValidation, "no items provided")
	ErrAddressRequired       = newError(ErrValidation, "address is required")
	ErrPhoneRequired         = newError(ErrValidation, "phone is required")
	ErrMedicineIDRequired    = newError(ErrValidation, "medicine id is required")
	ErrInvalidMedicinePrice  = newError(ErrValidation, "price must be zero or greater")
	ErrInvalidMedicineStock  = newError(ErrValidation, "stock must be zero or greater")
	ErrInvalidMedicineStatus = newError(ErrValidation, "invalid medicine status")
	ErrPurchaseRequired      = newError(ErrForbidden, "you can review only after delivery")
	ErrInvalidRating         = newError(ErrValidation, "rating must be between 1 and 5")
	ErrCommentTooLong        = newError(ErrValidation, "comment must be at most 500 characters")
	ErrEmptyReviewUpdate     = newError(ErrValidation, "nothing to update")
)
