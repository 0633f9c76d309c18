package contract

import "errors"

var (
	// ErrValidation marks a rejected request input; reported to the user, the
	// session continues.
	ErrValidation = errors.New("validation failed")
	// ErrDataNotFound marks a missing backing store; fatal configuration error.
	ErrDataNotFound = errors.New("backing data not found")

	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
)
