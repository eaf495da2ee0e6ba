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

package multiradio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildEnvelope(rawRadio uint8, inner []byte) []byte {
	b := make([]byte, EnvelopeLen+len(inner))
	b[0] = rawRadio
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(inner)))
	copy(b[EnvelopeLen:], inner)
	return b
}

func TestParseSanitizesRadioID(t *testing.T) {
	env, err := Parse(buildEnvelope(2, []byte{0xaa, 0xbb}))
	require.NoError(t, err)
	require.Equal(t, uint8(1), env.Radio)
	require.Equal(t, []byte{0xaa, 0xbb}, env.Payload)
}

func TestParseRadioZeroAndOneCollapseToZero(t *testing.T) {
	env, err := Parse(buildEnvelope(0, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(0), env.Radio)

	env, err = Parse(buildEnvelope(1, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(0), env.Radio)
}

func TestParseShort(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrShort)
}

func TestParseTruncatedPayload(t *testing.T) {
	b := buildEnvelope(0, []byte{0x01, 0x02})
	_, err := Parse(b[:len(b)-1])
	require.ErrorIs(t, err, ErrShort)
}
