package permkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for PermKit operations. The resolver itself never
// returns an error; these cover the mutation boundary and persistence.
var (
	// ErrUnknownRole is returned when a role id does not exist.
	ErrUnknownRole = errors.New("permkit: unknown role")

	// ErrUnknownUser is returned when a user id does not exist.
	ErrUnknownUser = errors.New("permkit: unknown user")

	// ErrUnknownGroup is returned when a group id does not exist.
	ErrUnknownGroup = errors.New("permkit: unknown group")

	// ErrUnknownEntity is returned when an entity id does not exist.
	ErrUnknownEntity = errors.New("permkit: unknown entity")

	// ErrUnknownOverride is returned when an override id does not exist.
	ErrUnknownOverride = errors.New("permkit: unknown override")

	// ErrInvalidEntityType is returned when an entity type is outside the
	// closed enumeration.
	ErrInvalidEntityType = errors.New("permkit: invalid entity type")

	// ErrInvalidOverride is returned when an override violates its scope
	// invariant (specific scope with no targets, or an empty permission set).
	ErrInvalidOverride = errors.New("permkit: invalid override")

	// ErrInvalidInput is returned when a record fails field validation.
	ErrInvalidInput = errors.New("permkit: invalid input")

	// ErrInvalidID is returned when an identifier is malformed.
	ErrInvalidID = errors.New("permkit: invalid id")

	// ErrDuplicateRoleName is returned when a role name collides
	// case-insensitively with an existing role.
	ErrDuplicateRoleName = errors.New("permkit: duplicate role name")

	// ErrSystemRole is returned when attempting to delete or rename a
	// system role.
	ErrSystemRole = errors.New("permkit: system role is protected")

	// ErrRoleInUse is returned when deleting a role that users still
	// reference without supplying a reassignment role.
	ErrRoleInUse = errors.New("permkit: role still referenced by users")

	// ErrNoActorID is returned when actor ID is not found in context for audit.
	ErrNoActorID = errors.New("permkit: no actor ID in context")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("permkit: database error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err        error      // Underlying sentinel error
	Message    string     // Additional context
	RoleID     string     // Role involved (if applicable)
	UserID     string     // User involved (if applicable)
	GroupID    string     // Group involved (if applicable)
	EntityType EntityType // Entity type involved (if applicable)
	ActorID    string     // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithRole adds role information to the error.
func (e *Error) WithRole(roleID string) *Error {
	e.RoleID = roleID
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithGroup adds group information to the error.
func (e *Error) WithGroup(groupID string) *Error {
	e.GroupID = groupID
	return e
}

// WithEntityType adds entity type information to the error.
func (e *Error) WithEntityType(t EntityType) *Error {
	e.EntityType = t
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsNotFound checks if an error is any of the unknown-reference errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrUnknownGroup) ||
		errors.Is(err, ErrUnknownEntity) ||
		errors.Is(err, ErrUnknownOverride)
}

// IsDuplicateRoleName checks if an error is a role name collision.
func IsDuplicateRoleName(err error) bool {
	return errors.Is(err, ErrDuplicateRoleName)
}

// IsSystemRole checks if an error is a system role protection violation.
func IsSystemRole(err error) bool {
	return errors.Is(err, ErrSystemRole)
}

// IsRoleInUse checks if an error is a blocked role deletion.
func IsRoleInUse(err error) bool {
	return errors.Is(err, ErrRoleInUse)
}
