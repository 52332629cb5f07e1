package store

import "errors"

// ErrNotFound is returned when a requested row does not exist. Callers must
// distinguish it from infrastructure failures: a missing row is a normal
// domain outcome, a failed lookup is not.
var ErrNotFound = errors.New("not found")
