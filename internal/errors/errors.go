// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a referenced entity (campaign, segment, user, customer) that does not exist
// or is not visible to the caller.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// ErrValidation reports a malformed payload. Queue adapters never requeue these.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// ErrConflict reports an operation rejected because of the entity's current state.
type ErrConflict struct {
	Reason string
}

func (e *ErrConflict) Error() string {
	return "conflict: " + e.Reason
}

func NewNotFound(resource, id string) error {
	return &ErrNotFound{Resource: resource, ID: id}
}

func NewCampaignNotFound(id string) error {
	return NewNotFound("campaign", id)
}

func NewValidation(field, reason string) error {
	return &ErrValidation{Field: field, Reason: reason}
}

func NewConflict(format string, args ...any) error {
	return &ErrConflict{Reason: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ErrValidation
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ErrConflict
	return errors.As(err, &target)
}
