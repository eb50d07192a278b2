package layer

import "github.com/pkg/errors"

// Errors returned by layers. They are wrapped with the layer name and the
// offending sizes; test for them with errors.Is.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrUnsupported   = errors.New("unsupported operation")
	ErrOutOfBounds   = errors.New("index out of bounds")
	ErrNoTarget      = errors.New("loss target not set")
	ErrInvalidTarget = errors.New("target has no hot entry")
	ErrUnknownType   = errors.New("unknown layer type")
	ErrDuplicateType = errors.New("layer type already registered")
	ErrMalformedDump = errors.New("malformed layer dump")
)
