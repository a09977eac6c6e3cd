/*
 * Copyright 2025 tomoncle.
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

package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the error categories surfaced by ormkit. A Kind is itself an
// error so it can be used as an errors.Is target.
type Kind int

const (
	Unknown Kind = iota
	InvalidValue
	Configuration
	BadRequest
	TaskExecutor
	InterServiceRequest
	HTTPRequest
	RequestTimeout
	JSONDecode
	Forbidden
)

var kindNames = map[Kind]string{
	Unknown:             "unknown",
	InvalidValue:        "invalid_value",
	Configuration:       "configuration",
	BadRequest:          "bad_request",
	TaskExecutor:        "task_executor",
	InterServiceRequest: "inter_service_request",
	HTTPRequest:         "http_request",
	RequestTimeout:      "request_timeout",
	JSONDecode:          "json_decode",
	Forbidden:           "forbidden",
}

var kindStatus = map[Kind]int{
	Unknown:             http.StatusInternalServerError,
	InvalidValue:        http.StatusBadRequest,
	Configuration:       http.StatusInternalServerError,
	BadRequest:          http.StatusBadRequest,
	TaskExecutor:        http.StatusBadRequest,
	InterServiceRequest: http.StatusBadRequest,
	HTTPRequest:         http.StatusInternalServerError,
	RequestTimeout:      http.StatusRequestTimeout,
	JSONDecode:          http.StatusInternalServerError,
	Forbidden:           http.StatusForbidden,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Status returns the default HTTP status code of the kind.
func (k Kind) Status() int {
	if code, ok := kindStatus[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func (k Kind) Error() string { return k.String() }

// Error is the single concrete error type of the package. Its fields mirror a
// typical API error payload: message, status code, optional metadata, an error
// id and an application code.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Meta    map[string]interface{}
	Quiet   bool
	ID      string
	Code    string
	cause   error
}

// New returns a quiet error of the given kind using the kind's default status.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Status: kind.Status(), Quiet: true}
}

// Errorf formats msg like fmt.Errorf; a %w verb becomes the wrapped cause.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	wrapped := fmt.Errorf(format, args...)
	e := New(kind, wrapped.Error())
	e.cause = errors.Unwrap(wrapped)
	return e
}

// Wrap returns an error of the given kind caused by err.
func Wrap(kind Kind, err error, msg string) *Error {
	e := New(kind, msg)
	e.cause = err
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) WithStatus(code int) *Error {
	e.Status = code
	return e
}

func (e *Error) WithMeta(meta map[string]interface{}) *Error {
	e.Meta = meta
	return e
}

func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Loud marks the error as one that should be logged by the caller.
func (e *Error) Loud() *Error {
	e.Quiet = false
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// StatusOf returns the status code carried by err; errors that are not
// ormkit errors map to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
