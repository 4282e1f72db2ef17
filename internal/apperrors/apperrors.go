package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrInvalidRequest  = errors.New("invalid request body")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("operation not allowed for caller")

	// ErrStateConflict means a state-machine transition is not allowed from
	// the entity's current state.
	ErrStateConflict = errors.New("transition not allowed from current state")

	// ErrInvariantConflict means the transition would violate a data
	// invariant, e.g. membership over capacity.
	ErrInvariantConflict = errors.New("operation would violate an invariant")

	ErrAlreadyApplied    = errors.New("student already applied to this project")
	ErrApiLevelProtected = errors.New("api_level can only be changed by its service or an admin override")
	ErrStudentSuspended  = errors.New("student is suspended")
	ErrProjectFull       = errors.New("project has no free places")
	ErrForbiddenApiLevel = errors.New("student api level below project requirement")
	ErrForbiddenTRL      = errors.New("project trl outside student's allowed range")

	// ErrTransientStore marks store errors that are safe to retry once
	// within the same request (serialization failures, deadlocks).
	ErrTransientStore = errors.New("transient store error")

	// ErrTransitionTimeout is returned when a transition exceeds its
	// per-transition deadline.
	ErrTransitionTimeout = errors.New("transition timed out")
)

type AlreadyAppliedError struct {
	StudentID string
	ProjectID string
}

func (e *AlreadyAppliedError) Error() string {
	return fmt.Sprintf("student '%s' already has an open application for project '%s'", e.StudentID, e.ProjectID)
}
func (e *AlreadyAppliedError) Is(target error) bool { return target == ErrAlreadyApplied }

type ProjectFullError struct{ ProjectID string }

func (e *ProjectFullError) Error() string {
	return fmt.Sprintf("project '%s' is at maximum capacity", e.ProjectID)
}
func (e *ProjectFullError) Is(target error) bool { return target == ErrProjectFull }

type StateConflictError struct {
	Entity string
	ID     string
	From   string
	Event  string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s '%s': event '%s' not allowed in state '%s'", e.Entity, e.ID, e.Event, e.From)
}
func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }
