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

// Package multiradio unwraps MULTI_RADIO_CMD_F envelopes: a dual-SIM
// baseband multiplexes both radios' diag traffic over a single
// transport by wrapping each radio's already-framed packet in an
// 8-byte envelope naming which radio it came from. The inner packet is
// complete and CRC-checked already, so it is re-entrantly handed back
// to the command dispatcher with framing disabled rather than
// re-parsed as a fresh HDLC frame.
package multiradio

import (
	"encoding/binary"
	"fmt"

	"github.com/diagcat/diagcat/diag/radiostate"
)

// EnvelopeLen is the fixed size of the MULTI_RADIO_CMD_F envelope header.
const EnvelopeLen = 8

// Envelope is one decoded multi-radio wrapper.
type Envelope struct {
	// Radio is the sanitized 0/1 radio index; see radiostate.Sanitize.
	Radio uint8
	// Payload is the inner, already-framed diag packet.
	Payload []byte
}

// ErrShort is returned when the input is too small to hold the envelope
// header plus its declared payload length.
var ErrShort = fmt.Errorf("multiradio: short multi-radio envelope")

// Parse decodes a MULTI_RADIO_CMD_F payload (the command-code byte
// already stripped by the dispatcher) into its Envelope. The header is
// a 1-byte raw radio ID, 3 reserved bytes, and a 4-byte little-endian
// inner payload length.
func Parse(data []byte) (Envelope, error) {
	if len(data) < EnvelopeLen {
		return Envelope{}, ErrShort
	}
	rawRadio := int(data[0])
	innerLen := binary.LittleEndian.Uint32(data[4:8])
	if EnvelopeLen+int(innerLen) > len(data) {
		return Envelope{}, ErrShort
	}
	return Envelope{
		Radio:   radiostate.Sanitize(rawRadio),
		Payload: data[EnvelopeLen : EnvelopeLen+int(innerLen)],
	}, nil
}
