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

// Package event decodes an EVENT_REPORT_F payload into its individual
// packed event records and renders each into a KPI text line through a
// per-event-ID decoder registry.
package event

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/diagcat/diagcat/diag/qxdm"
)

// Entry is one decoded event record: its numeric ID, the wall-clock time
// it was logged at, and whatever payload bytes followed it.
type Entry struct {
	ID        uint16
	Timestamp time.Time
	Payload   []byte
}

// payload length codes packed into bits 13-14 of the item header.
const (
	payloadNone = 0
	payload1    = 1
	payload2    = 2
	payloadPascal = 3
)

// ErrTruncated is returned when the event stream ends mid-record.
var ErrTruncated = fmt.Errorf("event: truncated event record")

// Parse splits a raw EVENT_REPORT_F payload into its individual Entry
// records.
//
// Each record starts with a 2-byte little-endian item header: bits 0-11
// are the event ID, bit 12 is reserved, bits 13-14 are a payload-length
// code (0 = no payload, 1/2 = that many raw bytes, 3 = a Pascal-style
// one-byte length prefix followed by that many bytes), and bit 15 is the
// timestamp-truncation flag: clear when a full 8-byte QXDM timestamp
// follows, set when a 2-byte tick delta from the previous absolute
// timestamp follows instead (counted from tick 0 if no absolute
// timestamp has been read yet).
//
// The Pascal-string case historically had an off-by-one: the length
// byte was read but the cursor was advanced past the *payload* before
// slicing it, so the slice start pointed one byte too early and the
// last payload byte was dropped. Parse always advances the cursor past
// the length byte itself before slicing.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	var lastTicks uint64

	pos := 0
	for pos < len(data) {
		if pos+2 > len(data) {
			return entries, ErrTruncated
		}
		header := binary.LittleEndian.Uint16(data[pos : pos+2])
		pos += 2

		id := header & 0x0fff
		lenCode := (header >> 13) & 0x3
		tsTruncated := (header>>15)&0x1 != 0

		var ts time.Time
		if !tsTruncated {
			if pos+8 > len(data) {
				return entries, ErrTruncated
			}
			ticks := binary.LittleEndian.Uint64(data[pos : pos+8])
			pos += 8
			ts = qxdm.Parse(ticks)
			lastTicks = ticks
		} else {
			if pos+2 > len(data) {
				return entries, ErrTruncated
			}
			delta := binary.LittleEndian.Uint16(data[pos : pos+2])
			pos += 2
			ts = qxdm.Parse(lastTicks + uint64(delta))
		}

		var payload []byte
		switch lenCode {
		case payloadNone:
			payload = nil
		case payload1:
			if pos+1 > len(data) {
				return entries, ErrTruncated
			}
			payload = data[pos : pos+1]
			pos++
		case payload2:
			if pos+2 > len(data) {
				return entries, ErrTruncated
			}
			payload = data[pos : pos+2]
			pos += 2
		case payloadPascal:
			if pos+1 > len(data) {
				return entries, ErrTruncated
			}
			n := int(data[pos])
			pos++ // advance past the length byte before slicing the payload
			if pos+n > len(data) {
				return entries, ErrTruncated
			}
			payload = data[pos : pos+n]
			pos += n
		}

		entries = append(entries, Entry{ID: id, Timestamp: ts, Payload: payload})
	}
	return entries, nil
}

// Decoder renders one Entry into a human-readable KPI line.
type Decoder func(e Entry) string

// registry holds the per-event-ID decoders registered by Register.
var registry = make(map[uint16]Decoder)

// Register installs a decoder for a specific event ID. Packages that
// know how to interpret a given event's payload call this from an init
// function.
func Register(id uint16, fn Decoder) {
	registry[id] = fn
}

// Render decodes e using its registered decoder, falling back to a
// generic "FAILURE" line naming the unrecognized event ID and its raw
// payload when none is registered — the event catalogue is large and
// growing, so an unknown ID is expected, not an error.
func Render(e Entry) string {
	if fn, ok := registry[e.ID]; ok {
		return fn(e)
	}
	return fmt.Sprintf("EVENT FAILURE: unknown event id=%d payload=%x", e.ID, e.Payload)
}

// RenderAll renders every entry in order.
func RenderAll(entries []Entry) []string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = Render(e)
	}
	return lines
}
