/*
 * Copyright 2022 Google LLC.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package status defines the error kinds reported while loading and scoring
// PMML documents.
//
// Usage example:
//
//	if errors.Is(err, status.ErrSchema) {
//		// The document is well formed but not consistent.
//	}
package status

import (
	"errors"
	"fmt"
)

// Kind of error.
type Kind int

// Known kinds of errors.
const (
	KindUnknown Kind = iota
	// The document is not well formed XML, or is not a PMML document.
	KindParse
	// The document is well formed but inconsistent or unsupported.
	KindSchema
	// A record could not be scored.
	KindEvaluation
	// A record has an unusable shape.
	KindInputFormat
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindSchema:
		return "SchemaError"
	case KindEvaluation:
		return "EvaluationError"
	case KindInputFormat:
		return "InputFormatError"
	}
	return "UnknownError"
}

// Error is an error with a kind. The optional cause is available through
// errors.Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if len(e.Message) == 0 {
		return e.Kind.String()
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any error of the same kind when the target is one of the
// sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && len(t.Message) == 0
}

// Sentinels for errors.Is.
var (
	ErrParse       = &Error{Kind: KindParse}
	ErrSchema      = &Error{Kind: KindSchema}
	ErrEvaluation  = &Error{Kind: KindEvaluation}
	ErrInputFormat = &Error{Kind: KindInputFormat}
)

// New creates an error of the given kind. The format supports "%w".
func New(kind Kind, format string, args ...interface{}) error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// Parsef creates a ParseError.
func Parsef(format string, args ...interface{}) error {
	return New(KindParse, format, args...)
}

// Schemaf creates a SchemaError.
func Schemaf(format string, args ...interface{}) error {
	return New(KindSchema, format, args...)
}

// Evaluationf creates an EvaluationError.
func Evaluationf(format string, args ...interface{}) error {
	return New(KindEvaluation, format, args...)
}

// InputFormatf creates an InputFormatError.
func InputFormatf(format string, args ...interface{}) error {
	return New(KindInputFormat, format, args...)
}

// Annotate prefixes the message of an error, keeping its kind.
func Annotate(err error, format string, args ...interface{}) error {
	prefix := fmt.Sprintf(format, args...)
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Message: prefix + ": " + e.Message, Err: e.Err}
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

// KindOf returns the kind of the first *Error in the chain of "err".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
