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

// Package logitem parses LOG_F responses and dispatches each log item
// to a registered decoder, following the three-way classification the
// diag protocol itself implies: items this build knows how to decode
// (process), items it recognizes but intentionally ignores (noProcess,
// typically high-volume low-value items), and everything else
// (unknown, logged once per ID and then dropped).
package logitem

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diagcat/diagcat/diag/qxdm"
)

// HeaderLen is the fixed size of a LOG_F log-item header: 1-byte command
// code, 1-byte reserved, 2-byte length1, 2-byte length2, 2-byte log ID,
// and an 8-byte QXDM timestamp.
const HeaderLen = 16

// headerTail is the number of header bytes length2 counts alongside the
// payload: cmd_code, reserved, log_id and timestamp (the header bytes
// other than the two length fields themselves).
const headerTail = 12

// LogHeader is the fixed portion preceding every log item's payload.
type LogHeader struct {
	CmdCode  uint8
	Reserved uint8
	Length1  uint16 // overall item length, as carried by the outer diag packet
	Length2  uint16 // payload length plus headerTail
	LogID    uint16
	Ticks    uint64
}

// Timestamp converts Ticks to wall-clock time.
func (h LogHeader) Timestamp() time.Time { return qxdm.Parse(h.Ticks) }

// ErrShort is returned when the input is too small to hold a full
// header, or the header's declared length exceeds the input.
var ErrShort = fmt.Errorf("logitem: short log item")

// ParseHeader parses the fixed 16-byte header at the front of buf and
// returns it along with the payload slice, sized per the invariant
// payload_len == length2 - headerTail.
func ParseHeader(buf []byte) (LogHeader, []byte, error) {
	if len(buf) < HeaderLen {
		return LogHeader{}, nil, ErrShort
	}
	h := LogHeader{
		CmdCode:  buf[0],
		Reserved: buf[1],
		Length1:  binary.LittleEndian.Uint16(buf[2:4]),
		Length2:  binary.LittleEndian.Uint16(buf[4:6]),
		LogID:    binary.LittleEndian.Uint16(buf[6:8]),
		Ticks:    binary.LittleEndian.Uint64(buf[8:16]),
	}
	if int(h.Length2) < headerTail {
		return h, nil, ErrShort
	}
	payloadLen := int(h.Length2) - headerTail
	if HeaderLen+payloadLen > len(buf) {
		return h, nil, ErrShort
	}
	return h, buf[HeaderLen : HeaderLen+payloadLen], nil
}

// Decoder turns one log item's payload into zero or more KPI text lines
// and, optionally, a GSMTAP-ready binary frame.
type Decoder struct {
	// Render produces the human-readable KPI lines for this item.
	Render func(h LogHeader, payload []byte) []string
	// GSMTAP produces a complete GSMTAP datagram (header included), which
	// the session forwards to the sinks as is, or nil if this item has no
	// binary representation worth forwarding.
	GSMTAP func(h LogHeader, payload []byte) []byte
	// Throughput optionally reports the downlink/uplink byte counts
	// carried by this item, for the post-processor's throughput
	// accumulator. Most decoders leave this nil.
	Throughput func(h LogHeader, payload []byte) (dlBytes, ulBytes uint32)
}

var (
	process    = make(map[uint16]Decoder)
	noProcess  = make(map[uint16]struct{})
	seenUnknown = make(map[uint16]struct{})
)

// Register installs a decoder for logID, making it part of the
// "process" set.
func Register(logID uint16, d Decoder) {
	process[logID] = d
}

// RegisterNoProcess marks logID as recognized-but-ignored: the item is
// silently dropped, never logged (unknown items get one debug log line
// the first time each ID is seen).
func RegisterNoProcess(logID uint16) {
	noProcess[logID] = struct{}{}
}

// Result is the outcome of dispatching one log item.
type Result struct {
	Lines             []string
	Frame             []byte
	DLBytes, ULBytes  uint32
}

// Dispatch classifies and, if registered, decodes one log item. Unknown
// IDs are logged at debug level the first time they are seen and then
// silently skipped thereafter, to avoid flooding the log with repeats
// of the same unhandled ID.
func Dispatch(h LogHeader, payload []byte) Result {
	if d, ok := process[h.LogID]; ok {
		var r Result
		if d.Render != nil {
			r.Lines = d.Render(h, payload)
		}
		if d.GSMTAP != nil {
			r.Frame = d.GSMTAP(h, payload)
		}
		if d.Throughput != nil {
			r.DLBytes, r.ULBytes = d.Throughput(h, payload)
		}
		return r
	}
	if _, ok := noProcess[h.LogID]; ok {
		return Result{}
	}
	if _, ok := seenUnknown[h.LogID]; !ok {
		seenUnknown[h.LogID] = struct{}{}
		logrus.WithField("log_id", fmt.Sprintf("0x%04x", h.LogID)).Debug("logitem: unrecognized log ID")
	}
	return Result{}
}
