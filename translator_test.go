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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTable describes a small slice of the XBee API used across the
// package tests.
func testTable() *CommandTable {
	return &CommandTable{
		Commands: map[string]CommandSpec{
			"at": {ID: 0x08, Fields: []Field{
				{Name: "frame_id", Len: 1, Default: []byte{0x01}},
				{Name: "command", Len: 2},
				{Name: "parameter", Len: VariableLength},
			}},
			"tx": {ID: 0x10, Fields: []Field{
				{Name: "frame_id", Len: 1, Default: []byte{0x01}},
				{Name: "dest_addr_long", Len: 8},
				{Name: "dest_addr", Len: 2, Default: []byte{0xFF, 0xFE}},
				{Name: "broadcast_radius", Len: 1, Default: []byte{0x00}},
				{Name: "options", Len: 1, Default: []byte{0x00}},
				{Name: "data", Len: VariableLength},
			}},
		},
		Responses: map[byte]ResponseSpec{
			0x88: {Name: "at_response", Fields: []Field{
				{Name: "frame_id", Len: 1},
				{Name: "command", Len: 2},
				{Name: "status", Len: 1},
				{Name: "parameter", Len: VariableLength},
			}},
			0x8A: {Name: "status", Fields: []Field{
				{Name: "status", Len: 1},
			}},
			0x95: {Name: "node_id", Fields: []Field{
				{Name: "source_addr", Len: 2},
				{Name: "node_id", Len: NullTerminated},
				{Name: "device_type", Len: 1},
			}},
		},
	}
}

func TestCommandTable_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testTable().Validate())

	tests := []struct {
		table *CommandTable
		name  string
	}{
		{
			name: "variable field not last",
			table: &CommandTable{Commands: map[string]CommandSpec{
				"bad": {ID: 0x01, Fields: []Field{{Name: "a", Len: VariableLength}, {Name: "b", Len: 1}}},
			}},
		},
		{
			name: "null-terminated command field",
			table: &CommandTable{Commands: map[string]CommandSpec{
				"bad": {ID: 0x01, Fields: []Field{{Name: "a", Len: NullTerminated}}},
			}},
		},
		{
			name: "duplicate field",
			table: &CommandTable{Commands: map[string]CommandSpec{
				"bad": {ID: 0x01, Fields: []Field{{Name: "a", Len: 1}, {Name: "a", Len: 1}}},
			}},
		},
		{
			name: "default of wrong length",
			table: &CommandTable{Commands: map[string]CommandSpec{
				"bad": {ID: 0x01, Fields: []Field{{Name: "a", Len: 2, Default: []byte{0x00}}}},
			}},
		},
		{
			name: "unnamed response",
			table: &CommandTable{Responses: map[byte]ResponseSpec{
				0x80: {Fields: []Field{{Name: "a", Len: 1}}},
			}},
		},
		{
			name: "negative length",
			table: &CommandTable{Responses: map[byte]ResponseSpec{
				0x80: {Name: "r", Fields: []Field{{Name: "a", Len: -2}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.table.Validate(), errBadTable)
		})
	}
}

func TestCommandTable_BuildCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		params Params
		name   string
		cmd    string
		want   []byte
	}{
		{
			name:   "AT query with default frame id",
			cmd:    "at",
			params: Params{"command": []byte("ID")},
			want:   []byte{0x08, 0x01, 'I', 'D'},
		},
		{
			name:   "AT set with parameter",
			cmd:    "at",
			params: Params{"frame_id": {0x52}, "command": []byte("ID"), "parameter": {0x33, 0x32}},
			want:   []byte{0x08, 0x52, 'I', 'D', 0x33, 0x32},
		},
		{
			name: "transmit request",
			cmd:  "tx",
			params: Params{
				"dest_addr_long": {0x00, 0x13, 0xA2, 0x00, 0x40, 0x0A, 0x01, 0x27},
				"data":           []byte("hi"),
			},
			want: []byte{
				0x10, 0x01,
				0x00, 0x13, 0xA2, 0x00, 0x40, 0x0A, 0x01, 0x27,
				0xFF, 0xFE, 0x00, 0x00,
				'h', 'i',
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := testTable().BuildCommand(tt.cmd, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandTable_BuildCommandErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		params Params
		name   string
		cmd    string
		field  string
	}{
		{name: "unknown command", cmd: "reboot"},
		{name: "missing required field", cmd: "at", params: Params{}, field: "command"},
		{name: "wrong fixed length", cmd: "at", params: Params{"command": []byte("IDX")}, field: "command"},
		{name: "unexpected parameter", cmd: "at", params: Params{"command": []byte("ID"), "zzz": {0x00}}, field: "zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := testTable().BuildCommand(tt.cmd, tt.params)
			require.ErrorIs(t, err, ErrNotSupported)

			var ce *CommandError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.cmd, ce.Command)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCommandTable_SplitResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want    map[string][]byte
		name    string
		id      string
		payload []byte
	}{
		{
			name:    "AT response with value",
			payload: []byte{0x88, 0x01, 'I', 'D', 0x00, 0x33, 0x32},
			id:      "at_response",
			want: map[string][]byte{
				"frame_id":  {0x01},
				"command":   []byte("ID"),
				"status":    {0x00},
				"parameter": {0x33, 0x32},
			},
		},
		{
			name:    "AT response without value omits parameter",
			payload: []byte{0x88, 0x01, 'I', 'D', 0x00},
			id:      "at_response",
			want: map[string][]byte{
				"frame_id": {0x01},
				"command":  []byte("ID"),
				"status":   {0x00},
			},
		},
		{
			name:    "modem status",
			payload: []byte{0x8A, 0x06},
			id:      "status",
			want:    map[string][]byte{"status": {0x06}},
		},
		{
			name:    "null-terminated field",
			payload: []byte{0x95, 0x12, 0x34, 'N', 'O', 'D', 'E', 0x00, 0x01},
			id:      "node_id",
			want: map[string][]byte{
				"source_addr": {0x12, 0x34},
				"node_id":     []byte("NODE"),
				"device_type": {0x01},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := testTable().SplitResponse(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.id, resp.ID)
			assert.Equal(t, tt.payload[0], resp.Frame)
			assert.Equal(t, tt.payload, resp.Raw)
			assert.Equal(t, tt.want, resp.Fields)
		})
	}
}

func TestCommandTable_SplitResponseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty payload", payload: nil},
		{name: "unknown frame type", payload: []byte{0x42, 0x00}},
		{name: "truncated fixed field", payload: []byte{0x88, 0x01, 'I'}},
		{name: "missing terminator", payload: []byte{0x95, 0x12, 0x34, 'N', 'O'}},
		{name: "trailing bytes", payload: []byte{0x8A, 0x06, 0x07}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := testTable().SplitResponse(tt.payload)
			require.ErrorIs(t, err, ErrMalformedResponse)

			var re *ResponseError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.payload, re.Payload)
		})
	}
}

func TestBaseTranslator(t *testing.T) {
	t.Parallel()

	var tr BaseTranslator

	_, err := tr.BuildCommand("at", nil)
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = tr.SplitResponse([]byte{0x00})
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestResponse_Get(t *testing.T) {
	t.Parallel()

	resp := &Response{Fields: map[string][]byte{"status": {0x00}}}
	assert.Equal(t, []byte{0x00}, resp.Get("status"))
	assert.Nil(t, resp.Get("parameter"))

	var nilResp *Response
	assert.Nil(t, nilResp.Get("status"))
}
