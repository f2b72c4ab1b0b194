package domain

import "fmt"

// NotFoundError is returned when reconstitution requests an identity absent
// from storage.
type NotFoundError struct {
	Type string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in storage", e.Type, e.Key)
}

// MissingIdentifierError is returned when an instance scheduled for insertion
// has no resolvable identifier value.
type MissingIdentifierError struct {
	Type string
}

func (e MissingIdentifierError) Error() string {
	return fmt.Sprintf("%s instance has no identifier assigned", e.Type)
}

// DuplicateIdentifierError is returned when insertion scheduling targets an
// identity already present in the identity map.
type DuplicateIdentifierError struct {
	Type string
	Key  string
}

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Type, e.Key)
}

// NotManagedError is returned when deletion is requested for an instance that
// was never loaded or inserted through the unit of work.
type NotManagedError struct {
	Type string
}

func (e NotManagedError) Error() string {
	return fmt.Sprintf("%s instance is not managed by this unit of work", e.Type)
}

// InvalidIdentifierError is returned when a required identifier field is
// absent from a raw key or record.
type InvalidIdentifierError struct {
	Type  string
	Field string
}

func (e InvalidIdentifierError) Error() string {
	return fmt.Sprintf("identifier field %q of %s is missing", e.Field, e.Type)
}
