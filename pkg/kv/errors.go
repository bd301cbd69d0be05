/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kv

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a member of the KV error taxonomy.
type Code int

const (
	// CodeInvalidArgument means a bucket/key name violation, contradictory
	// watcher options, or an invalid bucket configuration was rejected
	// before any network call was made.
	CodeInvalidArgument Code = iota
	// CodeNotFound means a bucket, key revision, or message by sequence
	// was not present.
	CodeNotFound
	// CodeAlreadyExists means bucket creation was attempted against an
	// existing backing stream.
	CodeAlreadyExists
	// CodeWrongLastSequence means an optimistic-concurrency precondition
	// on Create/Update failed.
	CodeWrongLastSequence
	// CodeBadRequest means the server rejected a malformed or disallowed
	// request.
	CodeBadRequest
	// CodeTimeout means the request deadline elapsed before a reply
	// arrived.
	CodeTimeout
	// CodeTransport means the underlying connection is not usable.
	CodeTransport
	// CodeAPIError is the catch-all preserving server diagnostics that
	// don't map to a more specific code.
	CodeAPIError
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeWrongLastSequence:
		return "WrongLastSequence"
	case CodeBadRequest:
		return "BadRequest"
	case CodeTimeout:
		return "Timeout"
	case CodeTransport:
		return "TransportError"
	case CodeAPIError:
		return "ApiError"
	default:
		return "Unknown"
	}
}

// Error is the single type returned for every failure surfaced across
// the pkg/kv public API. Server diagnostics (APICode, Description) are
// preserved verbatim when known; APICode is advisory (spec.md §9) and
// Description should always be consulted when APICode is zero or
// unrecognized.
type Error struct {
	Code        Code
	APICode     int // server err_code, when known (e.g. 10071)
	Status      int // HTTP-like status, when known (e.g. 404)
	Description string
	Cause       error
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("kv: %s: %s", e.Code, e.Description)
	}

	if e.Cause != nil {
		return fmt.Sprintf("kv: %s: %v", e.Code, e.Cause)
	}

	return fmt.Sprintf("kv: %s", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrNotFound) work by comparing codes, so a
// wrapped *Error carrying server diagnostics still matches the bare
// sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == t.Code
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

func newValidationError(format string, args ...interface{}) *Error {
	return newError(CodeInvalidArgument, format, args...)
}

func wrapError(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// Sentinel values for errors.Is comparisons; only Code is significant.
var (
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists}
	ErrWrongLastSequence = &Error{Code: CodeWrongLastSequence}
	ErrBadRequest        = &Error{Code: CodeBadRequest}
	ErrTimeout           = &Error{Code: CodeTimeout}
	ErrTransportError    = &Error{Code: CodeTransport}
)

// apiErrorEnvelope is the shape of a JetStream API error reply's "error"
// field: {code, err_code, description}. Production adapters (jsadapter.go)
// populate this from whatever error type the transport library returns.
type apiErrorEnvelope struct {
	Status      int
	APICode     int
	Description string
}

// mapAPIError lifts a server error envelope into the taxonomy per
// spec.md §4.7. err_code is checked first but is advisory; Status and
// Description are always consulted as a fallback since server-assigned
// codes are version-sensitive.
func mapAPIError(env apiErrorEnvelope) *Error {
	desc := strings.ToLower(env.Description)

	switch {
	case env.APICode == 10071, strings.Contains(desc, "wrong last sequence"):
		return &Error{Code: CodeWrongLastSequence, APICode: env.APICode, Status: env.Status, Description: env.Description}
	case env.APICode == 10058, strings.Contains(desc, "already in use"):
		return &Error{Code: CodeAlreadyExists, APICode: env.APICode, Status: env.Status, Description: env.Description}
	}

	switch env.Status {
	case 404:
		return &Error{Code: CodeNotFound, APICode: env.APICode, Status: env.Status, Description: env.Description}
	case 408:
		return &Error{Code: CodeBadRequest, APICode: env.APICode, Status: env.Status, Description: env.Description}
	}

	return &Error{Code: CodeAPIError, APICode: env.APICode, Status: env.Status, Description: env.Description}
}

// mapTransportError funnels any error returned by the injected
// JetStreamContext/StreamHandle/MessageIterator through mapAPIError (or
// a transport/timeout mapping) before it crosses the pkg/kv API
// boundary. Errors already in the taxonomy pass through unchanged.
func mapTransportError(err error) error {
	if err == nil {
		return nil
	}

	var kvErr *Error
	if errors.As(err, &kvErr) {
		return kvErr
	}

	return wrapError(CodeTransport, err)
}
