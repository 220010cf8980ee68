package files

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no ready record exists for the looked-up PIN.
	ErrNotFound = errors.New("files: pin not found")
	// ErrRegistryExhausted indicates no unique PIN could be reserved within
	// the bounded attempt budget. Operationally this means the registry is
	// close to capacity and deserves attention.
	ErrRegistryExhausted = errors.New("files: pin registry exhausted")
	// ErrStoreUnavailable indicates the persisted record store is not configured
	// or not reachable.
	ErrStoreUnavailable = errors.New("files: record store unavailable")
)

// OversizedError reports a file larger than MaxTransferBytes.
type OversizedError struct {
	SizeBytes int64
}

func (e *OversizedError) Error() string {
	return fmt.Sprintf("files: size %d exceeds limit %d", e.SizeBytes, int64(MaxTransferBytes))
}

// IsOversized reports whether err wraps an OversizedError and returns the measured size.
func IsOversized(err error) (int64, bool) {
	var oe *OversizedError
	if errors.As(err, &oe) {
		return oe.SizeBytes, true
	}
	return 0, false
}
