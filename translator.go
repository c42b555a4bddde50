// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package xbee

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// Params holds named command parameters as raw bytes
type Params map[string][]byte

// Response is an inbound frame translated into named fields
type Response struct {
	Fields map[string][]byte
	ID     string // Symbolic frame name, e.g. "at_response"
	Raw    []byte // Payload as received, frame type byte first
	Frame  byte   // Frame type byte
}

// Get returns the named field, or nil when the response does not carry it
func (r *Response) Get(name string) []byte {
	if r == nil {
		return nil
	}
	return r.Fields[name]
}

// Translator maps symbolic commands to payloads and payloads back to
// responses. Device families supply one; the codec never looks inside a
// payload itself.
type Translator interface {
	// BuildCommand returns the payload for the named command. Unknown
	// commands and missing or malformed parameters fail with ErrNotSupported.
	BuildCommand(name string, params Params) ([]byte, error)

	// SplitResponse parses an inbound payload. Unknown frame types and
	// payloads of the wrong shape fail with ErrMalformedResponse.
	SplitResponse(payload []byte) (*Response, error)
}

// BaseTranslator is the translator of a Device with no command table.
// Every operation fails with ErrNotImplemented.
type BaseTranslator struct{}

// BuildCommand implements Translator
func (BaseTranslator) BuildCommand(name string, _ Params) ([]byte, error) {
	return nil, newCommandError(name, "", ErrNotImplemented)
}

// SplitResponse implements Translator
func (BaseTranslator) SplitResponse(_ []byte) (*Response, error) {
	return nil, ErrNotImplemented
}

// Field length markers
const (
	// VariableLength marks a field that takes the rest of the payload. It
	// must be the last field.
	VariableLength = 0
	// NullTerminated marks a response field that ends at a 0x00 byte. The
	// terminator is consumed but not included in the field.
	NullTerminated = -1
)

// Field describes one named field of a command or response
type Field struct {
	Name    string
	Default []byte // Used by BuildCommand when the parameter is absent
	Len     int    // Fixed length, VariableLength or NullTerminated
}

// CommandSpec describes an outbound frame type
type CommandSpec struct {
	Fields []Field
	ID     byte // Frame type byte, first byte of the payload
}

// ResponseSpec describes an inbound frame type
type ResponseSpec struct {
	Name   string
	Fields []Field
}

// CommandTable is a data-driven Translator. Device families describe their
// frame types once and plug the table into a Device.
type CommandTable struct {
	Commands  map[string]CommandSpec
	Responses map[byte]ResponseSpec
}

var errBadTable = errors.New("invalid command table")

// Validate checks that the table can be used: variable length fields only
// in last position, no null-terminated command fields, no duplicate names.
func (t *CommandTable) Validate() error {
	for name, spec := range t.Commands {
		if err := validateFields(spec.Fields, false); err != nil {
			return fmt.Errorf("%w: command %q: %w", errBadTable, name, err)
		}
	}
	for id, spec := range t.Responses {
		if spec.Name == "" {
			return fmt.Errorf("%w: response 0x%02X has no name", errBadTable, id)
		}
		if err := validateFields(spec.Fields, true); err != nil {
			return fmt.Errorf("%w: response %q: %w", errBadTable, spec.Name, err)
		}
	}
	return nil
}

func validateFields(fields []Field, inbound bool) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = true

		switch {
		case f.Len == VariableLength && i != len(fields)-1:
			return fmt.Errorf("variable length field %q is not last", f.Name)
		case f.Len == NullTerminated && !inbound:
			return fmt.Errorf("null-terminated field %q in a command", f.Name)
		case f.Len < NullTerminated:
			return fmt.Errorf("field %q has length %d", f.Name, f.Len)
		case f.Len > 0 && f.Default != nil && len(f.Default) != f.Len:
			return fmt.Errorf("field %q default is %d bytes, want %d", f.Name, len(f.Default), f.Len)
		}
	}
	return nil
}

// BuildCommand implements Translator. The payload is the command's frame
// type byte followed by each field in declaration order.
func (t *CommandTable) BuildCommand(name string, params Params) ([]byte, error) {
	spec, ok := t.Commands[name]
	if !ok {
		return nil, newCommandError(name, "", ErrNotSupported)
	}

	if unknown := unknownParams(spec.Fields, params); len(unknown) > 0 {
		return nil, newCommandError(name, unknown[0], fmt.Errorf("%w: unexpected parameter", ErrNotSupported))
	}

	payload := []byte{spec.ID}
	for _, f := range spec.Fields {
		data, ok := params[f.Name]
		if !ok {
			data = f.Default
		}
		if data == nil && f.Len != VariableLength {
			return nil, newCommandError(name, f.Name,
				fmt.Errorf("%w: required parameter of %d bytes missing", ErrNotSupported, f.Len))
		}
		if f.Len > 0 && len(data) != f.Len {
			return nil, newCommandError(name, f.Name,
				fmt.Errorf("%w: got %d bytes, want %d", ErrNotSupported, len(data), f.Len))
		}
		payload = append(payload, data...)
	}
	return payload, nil
}

func unknownParams(fields []Field, params Params) []string {
	var unknown []string
	for key := range params {
		found := false
		for _, f := range fields {
			if f.Name == key {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// SplitResponse implements Translator
func (t *CommandTable) SplitResponse(payload []byte) (*Response, error) {
	if len(payload) == 0 {
		return nil, newResponseError(payload, "empty payload")
	}

	spec, ok := t.Responses[payload[0]]
	if !ok {
		return nil, newResponseError(payload, "unrecognized frame type")
	}

	resp := &Response{
		ID:     spec.Name,
		Frame:  payload[0],
		Raw:    payload,
		Fields: make(map[string][]byte, len(spec.Fields)),
	}

	rest := payload[1:]
	for _, f := range spec.Fields {
		switch {
		case f.Len > 0:
			if len(rest) < f.Len {
				return nil, newResponseError(payload, "field %q needs %d bytes, %d left", f.Name, f.Len, len(rest))
			}
			resp.Fields[f.Name] = rest[:f.Len]
			rest = rest[f.Len:]
		case f.Len == NullTerminated:
			end := bytes.IndexByte(rest, 0x00)
			if end < 0 {
				return nil, newResponseError(payload, "field %q is not null-terminated", f.Name)
			}
			resp.Fields[f.Name] = rest[:end]
			rest = rest[end+1:]
		default:
			// Variable length: absent when nothing is left
			if len(rest) > 0 {
				resp.Fields[f.Name] = rest
			}
			rest = nil
		}
	}

	if len(rest) > 0 {
		return nil, newResponseError(payload, "%d unexpected trailing bytes", len(rest))
	}
	return resp, nil
}

var (
	_ Translator = BaseTranslator{}
	_ Translator = (*CommandTable)(nil)
)
