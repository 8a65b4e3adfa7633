// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attrail

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrNotInitialized is returned by every dispatch operation other than
// Init when no API token has been set. The check happens before any
// network traffic.
var ErrNotInitialized = errors.New("attrail client not initialized: call Init first")

// ValidationError reports a request that was rejected locally, before
// dispatch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// asValidationError converts the first field failure reported by the
// validator into a ValidationError. Non-field errors pass through
// unchanged.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return newValidationError(fe.Field(), "failed "+fe.Tag()+" check")
	}
	return err
}
