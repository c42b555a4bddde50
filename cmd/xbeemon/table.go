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

package main

import "github.com/ZaparooProject/go-xbee"

// Common field layouts
var (
	frameIDField  = xbee.Field{Name: "frame_id", Len: 1, Default: []byte{0x01}}
	destLongField = xbee.Field{Name: "dest_addr_long", Len: 8}
	// 0xFFFE means the 16-bit address is unknown
	destShortField = xbee.Field{Name: "dest_addr", Len: 2, Default: []byte{0xFF, 0xFE}}
)

// xbeeTable describes the API frames shared by the 802.15.4 and Zigbee
// firmwares. The 0x00/0x01 and 0x80/0x81 frames only exist on 802.15.4;
// 0x10, 0x90 and 0x95 are Zigbee and DigiMesh.
func xbeeTable() *xbee.CommandTable {
	return &xbee.CommandTable{
		Commands: map[string]xbee.CommandSpec{
			"at": {ID: 0x08, Fields: []xbee.Field{
				frameIDField,
				{Name: "command", Len: 2},
				{Name: "parameter", Len: xbee.VariableLength},
			}},
			"queued_at": {ID: 0x09, Fields: []xbee.Field{
				frameIDField,
				{Name: "command", Len: 2},
				{Name: "parameter", Len: xbee.VariableLength},
			}},
			"remote_at": {ID: 0x17, Fields: []xbee.Field{
				frameIDField,
				destLongField,
				destShortField,
				{Name: "options", Len: 1, Default: []byte{0x02}}, // apply changes
				{Name: "command", Len: 2},
				{Name: "parameter", Len: xbee.VariableLength},
			}},
			"tx": {ID: 0x10, Fields: []xbee.Field{
				frameIDField,
				destLongField,
				destShortField,
				{Name: "broadcast_radius", Len: 1, Default: []byte{0x00}},
				{Name: "options", Len: 1, Default: []byte{0x00}},
				{Name: "data", Len: xbee.VariableLength},
			}},
			"tx_long_addr": {ID: 0x00, Fields: []xbee.Field{
				frameIDField,
				{Name: "dest_addr", Len: 8},
				{Name: "options", Len: 1, Default: []byte{0x00}},
				{Name: "data", Len: xbee.VariableLength},
			}},
			"tx_short_addr": {ID: 0x01, Fields: []xbee.Field{
				frameIDField,
				{Name: "dest_addr", Len: 2},
				{Name: "options", Len: 1, Default: []byte{0x00}},
				{Name: "data", Len: xbee.VariableLength},
			}},
		},
		Responses: map[byte]xbee.ResponseSpec{
			0x80: {Name: "rx_long_addr", Fields: []xbee.Field{
				{Name: "source_addr", Len: 8},
				{Name: "rssi", Len: 1},
				{Name: "options", Len: 1},
				{Name: "rf_data", Len: xbee.VariableLength},
			}},
			0x81: {Name: "rx_short_addr", Fields: []xbee.Field{
				{Name: "source_addr", Len: 2},
				{Name: "rssi", Len: 1},
				{Name: "options", Len: 1},
				{Name: "rf_data", Len: xbee.VariableLength},
			}},
			0x88: {Name: "at_response", Fields: []xbee.Field{
				{Name: "frame_id", Len: 1},
				{Name: "command", Len: 2},
				{Name: "status", Len: 1},
				{Name: "parameter", Len: xbee.VariableLength},
			}},
			0x89: {Name: "tx_status_802", Fields: []xbee.Field{
				{Name: "frame_id", Len: 1},
				{Name: "status", Len: 1},
			}},
			0x8A: {Name: "status", Fields: []xbee.Field{
				{Name: "status", Len: 1},
			}},
			0x8B: {Name: "tx_status", Fields: []xbee.Field{
				{Name: "frame_id", Len: 1},
				{Name: "dest_addr", Len: 2},
				{Name: "retries", Len: 1},
				{Name: "deliver_status", Len: 1},
				{Name: "discover_status", Len: 1},
			}},
			0x90: {Name: "rx", Fields: []xbee.Field{
				{Name: "source_addr_long", Len: 8},
				{Name: "source_addr", Len: 2},
				{Name: "options", Len: 1},
				{Name: "rf_data", Len: xbee.VariableLength},
			}},
			0x95: {Name: "node_id_indicator", Fields: []xbee.Field{
				{Name: "sender_addr_long", Len: 8},
				{Name: "sender_addr", Len: 2},
				{Name: "options", Len: 1},
				{Name: "source_addr", Len: 2},
				{Name: "source_addr_long", Len: 8},
				{Name: "node_id", Len: xbee.NullTerminated},
				{Name: "parent_source_addr", Len: 2},
				{Name: "device_type", Len: 1},
				{Name: "source_event", Len: 1},
				{Name: "digi_profile_id", Len: 2},
				{Name: "manufacturer_id", Len: 2},
			}},
			0x97: {Name: "remote_at_response", Fields: []xbee.Field{
				{Name: "frame_id", Len: 1},
				{Name: "source_addr_long", Len: 8},
				{Name: "source_addr", Len: 2},
				{Name: "command", Len: 2},
				{Name: "status", Len: 1},
				{Name: "parameter", Len: xbee.VariableLength},
			}},
		},
	}
}
