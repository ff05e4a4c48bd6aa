package ledger

import "errors"

var (
	// ErrCorrupt indicates the backing file could not be read as a valid
	// ledger (wrong header, short row). Fatal for the run: proceeding with
	// partial dedup state risks re-embedding or skipping real new content.
	ErrCorrupt = errors.New("ledger file corrupt")

	ErrFieldCount = errors.New("wrong number of fields for ledger row")
)
