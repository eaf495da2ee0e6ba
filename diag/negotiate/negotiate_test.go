/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package negotiate

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diagcat/diagcat/diag/frame"
)

// fakeDevice echoes back a canned response for whatever was last
// written, wrapped as a valid HDLC frame.
type fakeDevice struct {
	response  []byte
	pending   []byte
	failFirst int
	calls     int
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.calls++
	if f.calls <= f.failFirst {
		return 0, fmt.Errorf("simulated write failure")
	}
	f.pending = frame.Wrap(f.response)
	return len(p), nil
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	if f.pending == nil {
		return 0, fmt.Errorf("no response queued")
	}
	n := copy(p, f.pending)
	f.pending = nil
	return n, nil
}

func TestStopSendsDisableForEachEquipID(t *testing.T) {
	dev := &fakeDevice{response: []byte{0x73}}
	n := New(dev, Config{EquipIDs: []uint8{11, 12}, MaxRetries: 1, RetryDelay: time.Millisecond})

	require.NoError(t, n.Stop(context.Background()))
	require.Equal(t, 3, dev.calls) // 2 equip IDs + event mask off
}

func TestRoundTripRetriesOnTransientFailure(t *testing.T) {
	dev := &fakeDevice{response: []byte{0x00, 1, 2}, failFirst: 1}
	n := New(dev, Config{MaxRetries: 2, RetryDelay: time.Millisecond})

	resp, err := n.roundTrip(context.Background(), []byte{0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 1, 2}, resp)
	require.Equal(t, 2, dev.calls)
}

func TestRoundTripGivesUpAfterMaxRetries(t *testing.T) {
	dev := &fakeDevice{response: []byte{0x00}, failFirst: 100}
	n := New(dev, Config{MaxRetries: 2, RetryDelay: time.Millisecond})

	_, err := n.roundTrip(context.Background(), []byte{0x00})
	require.Error(t, err)
	require.Equal(t, 3, dev.calls)
}

func TestParseIDRanges(t *testing.T) {
	resp := make([]byte, 10)
	resp[0] = 11
	binary.LittleEndian.PutUint32(resp[1:5], 400)
	resp[5] = 12
	binary.LittleEndian.PutUint32(resp[6:10], 800)

	ranges := parseIDRanges(resp)
	require.Equal(t, uint32(400), ranges[11])
	require.Equal(t, uint32(800), ranges[12])
}

func TestAllOnesMaskSize(t *testing.T) {
	mask := allOnes(16)
	require.Len(t, mask, 2)
	require.Equal(t, byte(0xff), mask[0])
}
