// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gwerr gives the request orchestrator a small typed-kind error so
// a plugin or subsystem failure can be mapped to an HTTP status without
// string-sniffing, matching the taxonomy of kinds (not types) in the
// gateway's error-handling design.
package gwerr

import "fmt"

// Kind classifies a gateway error into one of the taxonomy buckets.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindValidation
	KindRouting
	KindAuth
	KindRateLimited
	KindUpstreamSelection
	KindUpstreamNetwork
	KindCache
)

// Error is a typed gateway error carrying the HTTP status the orchestrator
// should write if nothing downstream already wrote a response.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error with an explicit status.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: err}
}

// Retriable reports whether errors of this kind are eligible for the
// upstream retry budget (spec.md §4.3 "Retry").
func (k Kind) Retriable() bool {
	return k == KindUpstreamSelection || k == KindUpstreamNetwork
}
