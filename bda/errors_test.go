// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package bda

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapperErrorClassification(t *testing.T) {
	err := &MapperError{Type: ErrorTypeDuplicateSample, Message: "collision"}

	if !IsDuplicateSample(err) {
		t.Error("IsDuplicateSample missed its own type")
	}

	if IsInvalidParameter(err) || IsDegenerateGeometry(err) || IsNoConvergence(err) {
		t.Error("classification matched a foreign type")
	}

	if IsDuplicateSample(errors.New("plain")) {
		t.Error("classification matched a non-mapper error")
	}
}

func TestMapperErrorWrapping(t *testing.T) {
	cause := errors.New("root cause")
	err := &MapperError{Type: ErrorTypeInvalidParameter, Message: "bad input", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}

	if got := err.Error(); got != "bad input: root cause" {
		t.Errorf("Error() = %q", got)
	}

	// Classification must survive further wrapping.
	wrapped := fmt.Errorf("mapping baselines: %w", err)
	if !IsInvalidParameter(wrapped) {
		t.Error("classification lost through fmt.Errorf wrapping")
	}
}

func TestMapperErrorWithoutCause(t *testing.T) {
	err := &MapperError{Type: ErrorTypeNoConvergence, Message: "no root"}

	if got := err.Error(); got != "no root" {
		t.Errorf("Error() = %q", got)
	}

	if err.Unwrap() != nil {
		t.Error("Unwrap() of a causeless error is not nil")
	}
}
