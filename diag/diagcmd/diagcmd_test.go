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

package diagcmd

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRetrieveIDRanges(t *testing.T) {
	b := BuildRetrieveIDRanges()
	require.Equal(t, byte(LogConfigF), b[0])
	require.Equal(t, uint32(LogConfigRetrieveIDRangesOp), binary.LittleEndian.Uint32(b[1:5]))
}

func TestBuildEmptyLogMask(t *testing.T) {
	b := BuildEmptyLogMask(11, 200)
	require.Equal(t, byte(LogConfigF), b[0])
	require.Equal(t, uint32(LogConfigSetMaskOp), binary.LittleEndian.Uint32(b[1:5]))
	require.Equal(t, uint32(11), binary.LittleEndian.Uint32(b[5:9]))
	require.Equal(t, uint32(200), binary.LittleEndian.Uint32(b[9:13]))
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[13:17]))
}

func TestBuildLogMaskCarriesPayload(t *testing.T) {
	mask := []byte{0xff, 0x00, 0x0f}
	b := BuildLogMask(11, 200, mask)
	require.Equal(t, uint32(len(mask)), binary.LittleEndian.Uint32(b[13:17]))
	require.Equal(t, mask, b[17:])
}

func TestBuildEventMaskToggle(t *testing.T) {
	on := BuildEventMask(true)
	off := BuildEventMask(false)
	require.Equal(t, byte(1), on[1])
	require.Equal(t, byte(0), off[1])
}

func TestBuildExtendedMessageConfigSetMask(t *testing.T) {
	b := BuildExtendedMessageConfigSetMask(5, 10, 20, 3)
	require.Equal(t, byte(ExtMsgConfigF), b[0])
	require.Equal(t, uint16(5), binary.LittleEndian.Uint16(b[2:4]))
	require.Equal(t, uint32(10), binary.LittleEndian.Uint32(b[4:8]))
	require.Equal(t, uint32(20), binary.LittleEndian.Uint32(b[8:12]))
	require.Equal(t, byte(3), b[12])
}
