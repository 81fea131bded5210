// Copyright 2015 ISRG.  All rights reserved
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package errors

import "fmt"

// ErrorType provides a coarse category for internal errors raised below the
// verification pipeline. These never reach the wire directly — the pipeline
// (see verifypipeline) maps them onto the closed outcome-code taxonomy.
type ErrorType int

const (
	InternalServer ErrorType = iota
	Malformed
	UnsupportedCurve
	KeyResolution
	SignatureInvalid
)

// VerifierError represents an internal error tagged with a coarse category,
// carried through the resolver/codec/signature layers before being
// translated to a wire outcome.
type VerifierError struct {
	Type   ErrorType
	Detail string
}

func (ve *VerifierError) Error() string {
	return ve.Detail
}

// New is a convenience function for creating a new VerifierError.
func New(errType ErrorType, msg string, args ...interface{}) error {
	return &VerifierError{
		Type:   errType,
		Detail: fmt.Sprintf(msg, args...),
	}
}

// Is reports whether err is a VerifierError of the given type.
func Is(err error, errType ErrorType) bool {
	vErr, ok := err.(*VerifierError)
	if !ok {
		return false
	}
	return vErr.Type == errType
}

func InternalServerError(msg string, args ...interface{}) error {
	return New(InternalServer, msg, args...)
}

func MalformedError(msg string, args ...interface{}) error {
	return New(Malformed, msg, args...)
}

func UnsupportedCurveError(msg string, args ...interface{}) error {
	return New(UnsupportedCurve, msg, args...)
}

func KeyResolutionError(msg string, args ...interface{}) error {
	return New(KeyResolution, msg, args...)
}

func SignatureInvalidError(msg string, args ...interface{}) error {
	return New(SignatureInvalid, msg, args...)
}
