package repositories

import "errors"

// ErrNotFound is wrapped by every repository when the requested record
// does not exist, so services can distinguish a missing record from a
// store failure with errors.Is.
var ErrNotFound = errors.New("record not found")
