package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("item not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidItem      = errors.New("invalid item")
	ErrInvalidFilter    = errors.New("invalid filter")
)

// Unavailable wraps err so that it matches ErrStoreUnavailable while
// keeping the original cause reachable through errors.Is/As.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// classify turns context expiry into ErrStoreUnavailable. Backends are
// responsible for recognising their own connectivity failures.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(err)
	}
	return err
}
