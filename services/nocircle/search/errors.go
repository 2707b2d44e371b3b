// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams is returned when search parameters fail validation.
	ErrInvalidParams = errors.New("invalid search parameters")

	// ErrCancelled is returned when a scan stops before finishing. Partial
	// progress is never reported as a result.
	ErrCancelled = errors.New("search cancelled")
)

// SearchError wraps a failure with the operation and subset size.
type SearchError struct {
	Operation string
	N         int
	Err       error
}

func (e *SearchError) Error() string {
	if e.N > 0 {
		return fmt.Sprintf("search.%s (n=%d): %v", e.Operation, e.N, e.Err)
	}
	return "search." + e.Operation + ": " + e.Err.Error()
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func cancelled(op string, n int, cause error) error {
	return &SearchError{
		Operation: op,
		N:         n,
		Err:       fmt.Errorf("%w: %w", ErrCancelled, cause),
	}
}
