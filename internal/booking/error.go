package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrIdempotencyKey = errors.New("idempotency key not found")

	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used by another order")
	ErrNextID         = errors.New("get next id from generator")
	ErrLogic          = errors.New("logic error")
	ErrRecordNotFound = errors.New("record not found")
	ErrOwnerMissing   = errors.New("current user is not set")
	ErrForbidden      = errors.New("booking belongs to another user")
)

type ValidationError struct {
	fields map[string][]string
}

func newValidationError() *ValidationError {
	return &ValidationError{
		fields: make(map[string][]string),
	}
}

func IsValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var validationError *ValidationError

	if errors.As(err, &validationError) {
		return validationError
	}

	return nil
}

func (ve *ValidationError) fieldsCount() int {
	return len(ve.fields)
}

func (ve *ValidationError) addError(field, msg string) {
	ve.fields[field] = append(ve.fields[field], msg)
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %+v", ve.fields)
}

func (ve *ValidationError) Fields() map[string][]string {
	return ve.fields
}

type AvailabilityConflictError struct {
	ListingID string
	Range     DateRange
	Conflicts []*Booking
}

func IsAvailabilityConflictError(err error) *AvailabilityConflictError {
	if err == nil {
		return nil
	}

	var conflictError *AvailabilityConflictError

	if errors.As(err, &conflictError) {
		return conflictError
	}

	return nil
}

func (e *AvailabilityConflictError) Error() string {
	return fmt.Sprintf(
		"listing '%v' is unavailable from %v to %v: %d conflicting booking(s)",
		e.ListingID,
		e.Range.Start.Format(time.DateOnly),
		e.Range.End.Format(time.DateOnly),
		len(e.Conflicts),
	)
}

type AmountMismatchError struct {
	Expected int64
	Got      int64
}

func IsAmountMismatchError(err error) *AmountMismatchError {
	if err == nil {
		return nil
	}

	var mismatchError *AmountMismatchError

	if errors.As(err, &mismatchError) {
		return mismatchError
	}

	return nil
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %d, got %d, request a new quote", e.Expected, e.Got)
}

type PaymentVerificationError struct {
	OrderID string
	Reason  string
}

func IsPaymentVerificationError(err error) *PaymentVerificationError {
	if err == nil {
		return nil
	}

	var verificationError *PaymentVerificationError

	if errors.As(err, &verificationError) {
		return verificationError
	}

	return nil
}

func (e *PaymentVerificationError) Error() string {
	return fmt.Sprintf("payment for order '%v' could not be verified: %v", e.OrderID, e.Reason)
}

type IllegalCancellationError struct {
	BookingID string
	Reason    string
}

func IsIllegalCancellationError(err error) *IllegalCancellationError {
	if err == nil {
		return nil
	}

	var cancellationError *IllegalCancellationError

	if errors.As(err, &cancellationError) {
		return cancellationError
	}

	return nil
}

func (e *IllegalCancellationError) Error() string {
	return fmt.Sprintf("booking '%v' cannot be cancelled: %v", e.BookingID, e.Reason)
}

type IllegalTransitionError struct {
	From Status
	To   Status
}

func IsIllegalTransitionError(err error) *IllegalTransitionError {
	if err == nil {
		return nil
	}

	var transitionError *IllegalTransitionError

	if errors.As(err, &transitionError) {
		return transitionError
	}

	return nil
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal booking transition %v -> %v", e.From, e.To)
}
