package embed

import "errors"

var (
	// ErrVectorParity indicates the embedding ledger row count diverged
	// from the vector array row count. Row order in the array must match
	// ledger append order one-to-one; a mismatch silently corrupts
	// retrieval, so this is fatal and never auto-repaired.
	ErrVectorParity = errors.New("embedding ledger and vector array row counts diverge")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
