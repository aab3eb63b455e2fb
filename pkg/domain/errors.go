package domain

import "fmt"

// NotFoundError is returned when a referenced record is absent from world state.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// AlreadyExistsError is returned when a create targets an occupied key.
type AlreadyExistsError struct {
	Entity EntityType
	ID     string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// UnauthorizedError is returned when a capability check fails, including
// private-data visibility violations. The check never silently downgrades.
type UnauthorizedError struct {
	Org        string
	Capability Capability
	Reason     string
}

func (e UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("org %s not authorized for %s: %s", e.Org, e.Capability, e.Reason)
	}
	return fmt.Sprintf("org %s not authorized for %s", e.Org, e.Capability)
}

// InvalidStateError is returned when an operation is not legal in the asset's
// current lifecycle state.
type InvalidStateError struct {
	ID        string
	Status    AssetStatus
	Operation string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("asset %s: %s not allowed in state %s", e.ID, e.Operation, e.Status)
}

// DuplicateApprovalError is returned when an approver role that already cast
// its vote approves again. The repeat is rejected, not silently ignored.
type DuplicateApprovalError struct {
	ID   string
	Role Role
}

func (e DuplicateApprovalError) Error() string {
	return fmt.Sprintf("asset %s: role %s already approved", e.ID, e.Role)
}

// IntegrityError is returned when a stored private record no longer matches
// the fingerprint anchored on the public record.
type IntegrityError struct {
	Entity EntityType
	ID     string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("%s %s failed fingerprint verification", e.Entity, e.ID)
}

// ValidationError is returned for malformed input, such as an empty asset id.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
