package bag

import "errors"

var (
	// ErrContainerOpen wraps every failure to open a bag.
	ErrContainerOpen          = errors.New("cannot open bag")
	ErrMalformed              = errors.New("malformed bag")
	ErrUnsupportedCompression = errors.New("unsupported chunk compression")
	ErrNotIndexed             = errors.New("bag is not indexed")
)
