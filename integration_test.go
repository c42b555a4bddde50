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
	"time"

	testutil "github.com/ZaparooProject/go-xbee/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVirtualRadioRoundTrip drives a Device against the virtual radio
// through a connection that fragments and delays every read.
func TestVirtualRadioRoundTrip(t *testing.T) {
	t.Parallel()

	for _, escaped := range []bool{false, true} {
		t.Run(map[bool]string{false: "api1", true: "api2"}[escaped], func(t *testing.T) {
			t.Parallel()

			radio := testutil.NewVirtualRadio(escaped)
			radio.SetRegister("NI", []byte{'R', 0x7E, 0x7D, 0x11, 0x13})
			conn := testutil.NewJitteryConnection(radio, testutil.JitterConfig{
				MaxLatencyMs:     1,
				FragmentReads:    true,
				FragmentMinBytes: 1,
				Seed:             2026,
			})

			device, err := New(conn, WithTranslator(testTable()), WithEscaped(escaped))
			require.NoError(t, err)

			require.NoError(t, device.Send("at", Params{"frame_id": {0x11}, "command": []byte("NI")}))
			resp, err := device.WaitReadFrame()
			require.NoError(t, err)

			assert.Equal(t, "at_response", resp.ID)
			assert.Equal(t, []byte{0x11}, resp.Get("frame_id"))
			assert.Equal(t, []byte{0x00}, resp.Get("status"))
			assert.Equal(t, []byte{'R', 0x7E, 0x7D, 0x11, 0x13}, resp.Get("parameter"))
			assert.Equal(t, [][]byte{{0x08, 0x11, 'N', 'I'}}, radio.Received())
		})
	}
}

func TestVirtualRadioAsync(t *testing.T) {
	t.Parallel()

	radio := testutil.NewVirtualRadio(true)
	conn := testutil.NewJitteryConnection(radio, testutil.DefaultJitterConfig())

	responses := make(chan *Response, 8)
	errs := make(chan error, 8)
	device, err := New(conn,
		WithEscaped(true),
		WithTranslator(testTable()),
		WithCallback(func(r *Response) { responses <- r }),
		WithErrorCallback(func(err error) { errs <- err }),
	)
	require.NoError(t, err)

	require.NoError(t, device.Send("at", Params{"frame_id": {0x01}, "command": []byte("ID"), "parameter": {0x7E, 0x13}}))
	require.NoError(t, device.Send("at", Params{"frame_id": {0x02}, "command": []byte("ID")}))
	radio.InjectRaw([]byte{0x7E, 0x00, 0x02, 0x8A, 0x06, 0x00}) // bad checksum
	radio.Inject([]byte{0x8A, 0x02})

	var got []*Response
	for len(got) < 3 {
		select {
		case r := <-responses:
			got = append(got, r)
		case <-time.After(readerTimeout):
			t.Fatalf("timed out after %d responses", len(got))
		}
	}

	assert.Equal(t, []byte{0x01}, got[0].Get("frame_id"))
	assert.Nil(t, got[0].Get("parameter"))
	assert.Equal(t, []byte{0x02}, got[1].Get("frame_id"))
	assert.Equal(t, []byte{0x7E, 0x13}, got[1].Get("parameter"))
	assert.Equal(t, "status", got[2].ID)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	default:
		t.Fatal("bad frame was not reported")
	}

	require.NoError(t, radio.Close())
	device.Halt()
	assert.Equal(t, ReaderStopped, device.State())
}
