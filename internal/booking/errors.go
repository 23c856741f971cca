package booking

import (
	"errors"
	"fmt"
)

// Sentinel reasons surfaced through errors.Is. Transition refusals are
// wrapped in PreconditionError so callers also learn which transition and
// which check failed.
var (
	ErrNotFound      = errors.New("not found")
	ErrBadRequest    = errors.New("bad request")
	ErrWrongState    = errors.New("wrong booking state")
	ErrNotAuthorized = errors.New("caller not authorized")
	ErrAlreadyRated  = errors.New("booking already rated")
	ErrSlotTaken     = errors.New("time slot already booked")
	ErrNoOffering    = errors.New("provider does not offer this category")
)

// PreconditionError reports a refused transition and the check that failed.
type PreconditionError struct {
	Transition string
	Reason     error
	Detail     string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Transition, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Transition, e.Reason, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return e.Reason }

func refused(transition string, reason error, detail string) error {
	return &PreconditionError{Transition: transition, Reason: reason, Detail: detail}
}

func badRequest(detail string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, detail)
}
