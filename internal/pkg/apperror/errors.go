package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrRejectedByGateway   = errors.New("payment rejected by gateway")
	ErrPrepaidCardRejected = fmt.Errorf("prepaid cards are not accepted: %w", ErrRejectedByGateway)
	ErrSignatureInvalid    = errors.New("invalid webhook signature")
	ErrPlanNotConfigured   = errors.New("plan has no payable target")
	ErrInvalidInput        = errors.New("invalid input")
)

// QuotaExceededError is returned when an account has used up a plan feature.
type QuotaExceededError struct {
	Feature string
	Limit   int
	Used    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d/%d). Please upgrade your plan", e.Feature, e.Used, e.Limit)
}

// Rejection carries the gateway's reason while still matching ErrRejectedByGateway
// (or ErrPrepaidCardRejected) through errors.Is.
type Rejection struct {
	Reason string
	Cause  error
}

func (e *Rejection) Error() string {
	if e.Reason == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Cause.Error(), e.Reason)
}

func (e *Rejection) Unwrap() error {
	return e.Cause
}

func NewRejection(cause error, reason string) error {
	return &Rejection{Reason: reason, Cause: cause}
}
