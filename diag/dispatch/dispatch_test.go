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

package dispatch

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diagcat/diagcat/diag/diagcmd"
	"github.com/diagcat/diagcat/diag/hashstore"
	"github.com/diagcat/diagcat/diag/multiradio"
)

func TestDecodeVerNo(t *testing.T) {
	d := New(nil)
	pkt := []byte{byte(diagcmd.VernoF), 3, 7}
	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.Contains(t, r.Lines[0], "compile_type=3")
}

func TestDecodeExtBuildID(t *testing.T) {
	d := New(nil)
	pkt := append([]byte{byte(diagcmd.ExtBuildIDF)}, []byte("MPSS.DI.1.2\x00garbage")...)
	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.Equal(t, "Build ID: MPSS.DI.1.2", r.Lines[0])
}

func TestDecodeExtMsgResolvesHash(t *testing.T) {
	hs := hashstore.New()
	hs.Content[0x11223344] = hashstore.Row{File: "qualcommparser.c", Format: "value=%d"}
	d := New(hs)

	body := make([]byte, extMsgHeaderLen+4)
	binary.LittleEndian.PutUint32(body[12:16], 0x11223344)
	binary.LittleEndian.PutUint32(body[16:20], 7)

	pkt := append([]byte{byte(diagcmd.ExtMsgF)}, body...)
	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.Equal(t, "qualcommparser.c: value=7", r.Lines[0])
}

func TestDecodeExtMsgUnresolvedHash(t *testing.T) {
	d := New(nil)
	body := make([]byte, extMsgHeaderLen)
	binary.LittleEndian.PutUint32(body[12:16], 0xdeadbeef)
	pkt := append([]byte{byte(diagcmd.ExtMsgF)}, body...)

	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.True(t, strings.Contains(r.Lines[0], "unresolved"))
}

func TestDecodeQSR4TerseMissStillProducesLine(t *testing.T) {
	d := New(nil)
	body := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(body[0:4], 0xcafef00d)
	binary.LittleEndian.PutUint32(body[4:8], 1)
	binary.LittleEndian.PutUint32(body[8:12], 2)
	pkt := append([]byte{byte(diagcmd.QSR4ExtMsgTerseF)}, body...)

	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.Len(t, r.Lines, 1)
	require.Contains(t, r.Lines[0], "unresolved QSR4")
	require.Contains(t, r.Lines[0], "cafef00d")
	require.Contains(t, r.Lines[0], "1, 2")
}

func TestDecodeTerseMissWithoutQSR4DropsSilently(t *testing.T) {
	d := New(nil)
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, 0xcafef00d)
	pkt := append([]byte{byte(diagcmd.ExtMsgTerseF)}, body...)

	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.Empty(t, r.Lines)
}

func TestDecodeMultiRadioReentersDispatchAndTagsRadio(t *testing.T) {
	d := New(nil)
	inner := []byte{byte(diagcmd.VernoF), 1, 2}

	env := make([]byte, multiradio.EnvelopeLen+len(inner))
	env[0] = 2 // raw radio id -> sanitizes to 1
	binary.LittleEndian.PutUint32(env[4:8], uint32(len(inner)))
	copy(env[multiradio.EnvelopeLen:], inner)

	pkt := append([]byte{byte(diagcmd.MultiRadioCmdF)}, env...)
	r, err := d.Decode(pkt)
	require.NoError(t, err)
	require.Equal(t, uint8(1), r.Radio)
	require.Contains(t, r.Lines[0], "compile_type=1")
}

func TestDecodeSecureLogProducesPlaceholder(t *testing.T) {
	d := New(nil)
	r, err := d.Decode([]byte{byte(diagcmd.SecureLogF), 0x01, 0x02})
	require.NoError(t, err)
	require.Contains(t, r.Lines[0], "SECURE LOG")
}

func TestDecodeUnknownOpcodeIsSilent(t *testing.T) {
	d := New(nil)
	r, err := d.Decode([]byte{0xee})
	require.NoError(t, err)
	require.Empty(t, r.Lines)
}

func TestDecodeEmptyPacketErrors(t *testing.T) {
	d := New(nil)
	_, err := d.Decode(nil)
	require.Error(t, err)
}
