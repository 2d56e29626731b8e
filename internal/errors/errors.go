// internal/errors/errors.go
package errors

import "fmt"

// ErrUnknownBackend is returned when CHECKPOINT_BACKEND names a store this
// build does not support.
type ErrUnknownBackend struct {
	Backend string
}

func (e *ErrUnknownBackend) Error() string {
	return fmt.Sprintf("unknown checkpoint backend: %q, expected 'postgres' or 'redis'", e.Backend)
}
