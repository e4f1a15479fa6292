package domain

import "errors"

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPaymentNotFound  = errors.New("payment record not found")

	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidAddress  = errors.New("incomplete shipping address")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidID       = errors.New("invalid id")
	ErrNoLineItems     = errors.New("at least one line item required")
	ErrMixedActivities = errors.New("line items span multiple activities")

	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrClaimLimitExceeded = errors.New("claim limit exceeded")

	ErrPermissionDenied    = errors.New("permission denied")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrOrderNotPaid        = errors.New("order is not paid")
	ErrOrderAlreadyShipped = errors.New("order already shipped")
	ErrAlreadyRefunded     = errors.New("order already refunded")
	ErrPaymentNotReviewing = errors.New("payment is not under review")

	ErrItemHasOrders = errors.New("item has non-cancelled orders")

	ErrWrongPassword = errors.New("incorrect password")
	ErrAccessLocked  = errors.New("too many failed password attempts")

	ErrTransactionIDRequired = errors.New("transaction id required")
)
