package domain

import "errors"

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidQuantity = errors.New("invalid quantity")

	ErrGateway = errors.New("payment gateway error") // request time

	ErrIntentExpiredOrConsumed   = errors.New("payment intent expired or already consumed")
	ErrPaymentNotCompleted       = errors.New("payment not completed")
	ErrVerificationFailed        = errors.New("payment verification failed")
	ErrVerificationIndeterminate = errors.New("payment verification indeterminate")
)

// IsValidation reports whether err is caused by caller input and may be
// shown to the caller as is.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidQuantity):
		return true
	}
	return false
}
