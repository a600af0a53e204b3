// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package atom

import (
	"errors"
	"fmt"
)

const (
	// PoisonedErr indicates a registry whose table can no longer be trusted
	// because an earlier critical section did not run to completion.
	PoisonedErr = "atom_registry_poisoned_error"

	// InvalidUTF8Err indicates an input that is not valid UTF-8.
	InvalidUTF8Err = "atom_invalid_utf8_error"
)

// Error is the error type raised by the registry.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (err *Error) Error() string {
	if err.Message != "" {
		return fmt.Sprintf("%v: %v", err.Code, err.Message)
	}
	return err.Code
}

// IsPoisoned returns true if err (or an error it wraps) is a PoisonedErr.
func IsPoisoned(err error) bool {
	return hasCode(err, PoisonedErr)
}

// IsInvalidUTF8 returns true if err (or an error it wraps) is an InvalidUTF8Err.
func IsInvalidUTF8(err error) bool {
	return hasCode(err, InvalidUTF8Err)
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func poisonedError() *Error {
	return &Error{
		Code:    PoisonedErr,
		Message: "registry lock was released by a critical section that did not complete",
	}
}

func invalidUTF8Error(text string) *Error {
	const maxQuoted = 32
	if len(text) > maxQuoted {
		text = text[:maxQuoted]
	}
	return &Error{
		Code:    InvalidUTF8Err,
		Message: fmt.Sprintf("cannot intern %q", text),
	}
}
