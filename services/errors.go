package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the credit system. Controllers translate these into
// HTTP responses; nothing in this package knows about transports.
var (
	// ErrUserNotFound is returned when the target user or their balance
	// record does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrVoucherNotFound is returned for unknown voucher codes.
	ErrVoucherNotFound = errors.New("voucher code not found")

	// ErrPurchaseNotFound is returned for receipt tokens with no recorded
	// purchase.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrInsufficientBalance is returned when a deduction would take the
	// balance below zero. No mutation is attempted in that case.
	ErrInsufficientBalance = errors.New("insufficient credit balance")

	// ErrConcurrencyConflict is returned after the optimistic-lock retry
	// budget is exhausted.
	ErrConcurrencyConflict = errors.New("balance update conflicted with concurrent modifications")

	// ErrThrottleExceeded is returned when the user hit the daily voucher
	// redemption cap.
	ErrThrottleExceeded = errors.New("daily redeem limit exceeded")

	// ErrVerificationFailed is returned when the payment provider rejected
	// the receipt or could not be reached. It never follows a local write.
	ErrVerificationFailed = errors.New("purchase verification failed")

	// ErrProviderUnavailable is returned when the payment provider client
	// is not configured.
	ErrProviderUnavailable = errors.New("payment provider not available")
)

// InvalidCodeStateError reports a voucher that exists but is not
// redeemable: already used, expired, or disabled.
type InvalidCodeStateError struct {
	State string
}

func (e *InvalidCodeStateError) Error() string {
	return fmt.Sprintf("voucher code is %s", e.State)
}

// AsInvalidCodeState returns the InvalidCodeStateError wrapped in err, if any.
func AsInvalidCodeState(err error) (*InvalidCodeStateError, bool) {
	var stateErr *InvalidCodeStateError
	if errors.As(err, &stateErr) {
		return stateErr, true
	}
	return nil, false
}
