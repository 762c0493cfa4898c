package workflow

import (
	"errors"
	"fmt"
)

// Error kinds. A PhaseError matches its kind and its cause through errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrFunding    = errors.New("funding error")
	ErrTrust      = errors.New("trust error")
	ErrIssuance   = errors.New("issuance error")
	ErrConversion = errors.New("conversion error")
	// ErrOracle is recovered inside the rate lookup and never aborts a run.
	ErrOracle     = errors.New("oracle error")
	ErrSubmission = errors.New("submission error")

	// ErrNotSettled is returned when remote state is not observed within the
	// settlement budget.
	ErrNotSettled = errors.New("not settled")
)

// PhaseError reports the phase that failed, its error kind and the cause.
type PhaseError struct {
	Phase Phase
	Kind  error
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PhaseError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind carried by err, or nil.
func KindOf(err error) error {
	// phase kinds come first; their causes often wrap ErrSubmission too
	for _, kind := range []error{ErrValidation, ErrFunding, ErrTrust, ErrIssuance, ErrConversion, ErrOracle, ErrSubmission} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsTerminal reports whether err aborts a run. Only oracle failures are recovered.
func IsTerminal(err error) bool {
	return err != nil && !errors.Is(err, ErrOracle)
}
