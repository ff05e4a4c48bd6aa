package index

import "errors"

var (
	ErrUnreachable       = errors.New("vector index unreachable")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
