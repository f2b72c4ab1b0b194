package core

import "github.com/methodin/KeyValueStore/pkg/domain"

type (
	Entity    = domain.Entity
	Record    = domain.Record
	Metadata  = domain.Metadata
	Field     = domain.Field
	FieldKind = domain.FieldKind
	Registry  = domain.Registry
	Driver    = domain.Driver

	NotFoundError            = domain.NotFoundError
	MissingIdentifierError   = domain.MissingIdentifierError
	DuplicateIdentifierError = domain.DuplicateIdentifierError
	NotManagedError          = domain.NotManagedError
	InvalidIdentifierError   = domain.InvalidIdentifierError
)

const (
	FieldPlain     = domain.FieldPlain
	FieldEmbedded  = domain.FieldEmbedded
	FieldTransient = domain.FieldTransient
)
