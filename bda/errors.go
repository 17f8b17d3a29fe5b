// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package bda

import (
	"errors"
	"fmt"
)

// MapperError represents a fatal fault detected while building the
// averaging map. The whole call aborts; partial results are never returned.
type MapperError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies mapper faults.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified fault.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeDuplicateSample two rows collide on the same (baseline, time) cell.
	ErrorTypeDuplicateSample
	// ErrorTypeInvalidParameter a precondition on the inputs does not hold.
	ErrorTypeInvalidParameter
	// ErrorTypeDegenerateGeometry baseline motion within a bin is too small to derive a bandwidth.
	ErrorTypeDegenerateGeometry
	// ErrorTypeNoConvergence the root solve hit its iteration cap.
	ErrorTypeNoConvergence
)

func (e *MapperError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *MapperError) Unwrap() error {
	return e.Err
}

func isType(err error, t ErrorType) bool {
	var mapErr *MapperError
	if errors.As(err, &mapErr) {
		return mapErr.Type == t
	}

	return false
}

// IsDuplicateSample reports whether err is a duplicate (time, baseline) fault.
func IsDuplicateSample(err error) bool {
	return isType(err, ErrorTypeDuplicateSample)
}

// IsInvalidParameter reports whether err is a precondition violation.
func IsInvalidParameter(err error) bool {
	return isType(err, ErrorTypeInvalidParameter)
}

// IsDegenerateGeometry reports whether err is a degenerate bin-geometry fault.
func IsDegenerateGeometry(err error) bool {
	return isType(err, ErrorTypeDegenerateGeometry)
}

// IsNoConvergence reports whether err is a root-solve convergence failure.
func IsNoConvergence(err error) bool {
	return isType(err, ErrorTypeNoConvergence)
}
