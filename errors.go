package efilz

import "errors"

// Decompression errors. Returned errors wrap one of these; test with errors.Is.
var (
	ErrInvalidSrcSize   = errors.New("efilz: invalid source size")
	ErrInvalidDstSize   = errors.New("efilz: invalid destination size")
	ErrMalformedSrcData = errors.New("efilz: malformed source data")
	ErrUnknownVariant   = errors.New("efilz: unknown variant")
)
