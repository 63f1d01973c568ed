// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError rejects a request before any state object is created.
// It is caller-visible and synchronous.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CapacityExceededError signals a full coordinator or replay engine. It is
// retryable: the caller may defer and try again, nothing was lost.
type CapacityExceededError struct {
	Active int
	Limit  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d active of %d allowed", e.Active, e.Limit)
}

func NewCapacityExceeded(active, limit int) error {
	return &CapacityExceededError{Active: active, Limit: limit}
}

// StepExecutionError is isolated to a single execution step. Under the
// current lenient policy it never fails the overall campaign execution.
type StepExecutionError struct {
	StepID  string
	AgentID string
	Err     error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (agent %s) failed: %v", e.StepID, e.AgentID, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

func NewStepExecution(stepID, agentID string, err error) error {
	return &StepExecutionError{StepID: stepID, AgentID: agentID, Err: err}
}

// TimeoutError forces a terminal failure once a replay or execution runs
// past its hard ceiling.
type TimeoutError struct {
	ID      string
	Ceiling time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded hard ceiling of %s", e.ID, e.Ceiling)
}

func NewTimeout(id string, ceiling time.Duration) error {
	return &TimeoutError{ID: id, Ceiling: ceiling}
}

// CollaboratorError wraps a failed call to an external collaborator
// (content, brand, pattern store). The surrounding cycle continues with the
// modification skipped.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func NewCollaborator(name string, err error) error {
	return &CollaboratorError{Collaborator: name, Err: err}
}

// NotFoundError reports an unknown pattern/schedule/execution id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsRetryable reports whether the caller may simply try again later.
// Only capacity rejections qualify.
func IsRetryable(err error) bool {
	var capErr *CapacityExceededError
	return errors.As(err, &capErr)
}

// IsNotFound is a convenience check for the NotFoundError shape.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation is a convenience check for the ValidationError shape.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
