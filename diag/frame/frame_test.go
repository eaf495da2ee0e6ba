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

package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0x10, 0x6a, 0x00, 0x00},
		{0x7e, 0x7d, 0x01, 0x02, 0x7e},
		{0xff, 0xfe, 0xfd, 0x7d, 0x7d, 0x7e},
	}
	for _, p := range payloads {
		wrapped := Wrap(p)
		require.Equal(t, byte(Delimiter), wrapped[len(wrapped)-1])

		unescaped, err := Unwrap(wrapped)
		require.NoError(t, err)

		payload, ok, _, _ := VerifyAndStrip(unescaped)
		require.True(t, ok)
		require.Equal(t, p, payload)
	}
}

func TestUnwrapBadEscape(t *testing.T) {
	_, err := Unwrap([]byte{0x01, 0x7d})
	require.ErrorIs(t, err, ErrBadEscape)
}

func TestUnwrapStripsTrailingDelimiter(t *testing.T) {
	out, err := Unwrap([]byte{0x01, 0x02, Delimiter})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, out)
}

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" -> 0x906e for CRC-16/X-25.
	got := CRC16([]byte("123456789"))
	require.Equal(t, uint16(0x906e), got)
}

func TestVerifyAndStripDetectsCorruption(t *testing.T) {
	wrapped := Wrap([]byte{0x10, 0x20, 0x30})
	unescaped, err := Unwrap(wrapped)
	require.NoError(t, err)
	unescaped[0] ^= 0xff

	_, ok, expected, got := VerifyAndStrip(unescaped)
	require.False(t, ok)
	require.NotEqual(t, expected, got)
}

func TestVerifyAndStripShortInput(t *testing.T) {
	_, ok, _, _ := VerifyAndStrip([]byte{0x01})
	require.False(t, ok)
}
