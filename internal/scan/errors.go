package scan

import "errors"

var (
	ErrTraitNotFound    = errors.New("trait not found")
	ErrInvalidRange     = errors.New("invalid nonce range")
	ErrInvalidTarget    = errors.New("invalid target operation")
	ErrInvalidPredicate = errors.New("invalid predicate")
	ErrTimeout          = errors.New("scan timed out")
)
