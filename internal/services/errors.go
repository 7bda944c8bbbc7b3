package services

import (
	"errors"
	"fmt"

	domain "github.com/pureclean/api/internal/domain"
)

var (
	// ErrSessionNotFound is returned when the session id does not resolve.
	ErrSessionNotFound = errors.New("wizard: session not found")
	// ErrWizardInvalidInput signals bad request data such as an empty step key.
	ErrWizardInvalidInput = errors.New("wizard: invalid input")
	// ErrCalcInvalidBasePrice is returned when the base price is missing or non-positive.
	ErrCalcInvalidBasePrice = errors.New("pricing: invalid base price")
	// ErrCalcDiscountOutOfRange is returned when a custom discount falls outside [1, 50].
	ErrCalcDiscountOutOfRange = errors.New("pricing: custom discount percentage out of range")
	// ErrCalcNotExpeditable is returned when an expedite tier is requested for a
	// category that requires extended processing.
	ErrCalcNotExpeditable = errors.New("pricing: category cannot be expedited")
	// ErrCatalogItemNotFound is returned when a category/name pair has no
	// price-list entry.
	ErrCatalogItemNotFound = errors.New("catalog: item not found")
	// ErrOrderNotFound is returned when an order id does not resolve.
	ErrOrderNotFound = errors.New("orders: order not found")
)

// ValidationError reports a failed guard or field check. The session is left
// unchanged when one is raised.
type ValidationError struct {
	Step    domain.WizardStep
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s/%s: %s", e.Step, e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Step, e.Message)
}

// StateError reports a transition that is not permitted from the current step.
type StateError struct {
	From  domain.WizardStep
	Event string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s not permitted from %s", e.Event, e.From)
}

// InfrastructureError wraps an external collaborator failure. It is the only
// error class allowed to propagate as a hard failure across the wizard
// boundary; callers may retry.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is an infrastructure failure the
// caller may retry.
func IsRetryable(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra)
}
