// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested node or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable classifies transient store failures. Callers retry
// with backoff; the cascade boundary turns exhausted retries into a
// deferred-update result instead of dropping the write.
var ErrStoreUnavailable = errors.New("store unavailable")

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// storeErr classifies a gorm error: missing records map to ErrNotFound,
// everything else is treated as transient and tagged ErrStoreUnavailable so
// callers know the operation is safe to retry.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
