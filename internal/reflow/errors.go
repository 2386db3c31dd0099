package reflow

import "errors"

// ErrInvalidDimension marks a page whose width or height is not positive.
// The page is skipped; the batch continues.
var ErrInvalidDimension = errors.New("invalid page dimensions")
