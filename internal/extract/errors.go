package extract

import "errors"

// ErrUnsupportedFormat is returned for file extensions without a decoder.
// The item is skipped; the batch continues.
var ErrUnsupportedFormat = errors.New("unsupported file format")
