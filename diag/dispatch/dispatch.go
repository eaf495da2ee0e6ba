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

// Package dispatch is the diag protocol's top-level command dispatcher:
// given one de-framed, CRC-verified packet, it decides which of the
// protocol's many opcodes it is and routes it to the right decoder,
// accumulating the KPI lines and GSMTAP frames the session loop needs
// to emit.
package dispatch

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diagcat/diagcat/diag/diagcmd"
	"github.com/diagcat/diagcat/diag/event"
	"github.com/diagcat/diagcat/diag/fmtstr"
	"github.com/diagcat/diagcat/diag/hashstore"
	"github.com/diagcat/diagcat/diag/logitem"
	"github.com/diagcat/diagcat/diag/multiradio"
)

// Result is the accumulated outcome of decoding one top-level packet.
type Result struct {
	// Radio is the sanitized radio index this result belongs to (0
	// unless it arrived wrapped in a MULTI_RADIO_CMD_F envelope).
	Radio             uint8
	Lines             []string
	Frames            [][]byte
	DLBytes, ULBytes  uint32
}

func (r *Result) merge(o Result) {
	r.Lines = append(r.Lines, o.Lines...)
	r.Frames = append(r.Frames, o.Frames...)
	r.DLBytes += o.DLBytes
	r.ULBytes += o.ULBytes
}

// Dispatcher holds the state needed across packets: the resolved
// format-string hash tables.
type Dispatcher struct {
	Hash *hashstore.Store
}

// New returns a Dispatcher backed by the given hash-template store. A
// nil store is valid; every hash lookup will simply miss.
func New(hs *hashstore.Store) *Dispatcher {
	if hs == nil {
		hs = hashstore.New()
	}
	return &Dispatcher{Hash: hs}
}

// Decode routes one de-framed packet (its first byte is the opcode) to
// the matching sub-decoder.
func (d *Dispatcher) Decode(pkt []byte) (Result, error) {
	if len(pkt) == 0 {
		return Result{}, fmt.Errorf("dispatch: empty packet")
	}
	op := diagcmd.Opcode(pkt[0])
	body := pkt[1:]

	switch op {
	case diagcmd.VernoF:
		return d.decodeVerNo(body)
	case diagcmd.ExtBuildIDF:
		return d.decodeExtBuildID(body)
	case diagcmd.LogF:
		return d.decodeLog(body)
	case diagcmd.EventReportF:
		return d.decodeEventReport(body)
	case diagcmd.ExtMsgF:
		return d.decodeExtMsg(body)
	case diagcmd.ExtMsgTerseF, diagcmd.QSRExtMsgTerseF:
		return d.decodeTerse(body, false)
	case diagcmd.QSR4ExtMsgTerseF:
		return d.decodeTerse(body, true)
	case diagcmd.QSHTracePayloadF:
		return d.decodeQSHTrace(body)
	case diagcmd.SecureLogF:
		return Result{Lines: []string{"SECURE LOG: payload not decodable (encrypted)"}}, nil
	case diagcmd.MultiRadioCmdF:
		return d.decodeMultiRadio(body)
	default:
		logrus.WithField("opcode", fmt.Sprintf("0x%02x", byte(op))).Debug("dispatch: unrecognized opcode")
		return Result{}, nil
	}
}

func (d *Dispatcher) decodeVerNo(body []byte) (Result, error) {
	if len(body) < 2 {
		return Result{}, fmt.Errorf("dispatch: short VERNO_F body")
	}
	return Result{Lines: []string{fmt.Sprintf("VERNO: compile_type=%d release=%d", body[0], body[1])}}, nil
}

func (d *Dispatcher) decodeExtBuildID(body []byte) (Result, error) {
	end := len(body)
	for i, c := range body {
		if c == 0 {
			end = i
			break
		}
	}
	return Result{Lines: []string{fmt.Sprintf("Build ID: %s", string(body[:end]))}}, nil
}

func (d *Dispatcher) decodeLog(body []byte) (Result, error) {
	h, payload, err := logitem.ParseHeader(append([]byte{byte(diagcmd.LogF)}, body...))
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: LOG_F: %w", err)
	}
	r := logitem.Dispatch(h, payload)
	return Result{Lines: r.Lines, Frames: frameOrNil(r.Frame), DLBytes: r.DLBytes, ULBytes: r.ULBytes}, nil
}

func (d *Dispatcher) decodeEventReport(body []byte) (Result, error) {
	entries, err := event.Parse(body)
	if err != nil && len(entries) == 0 {
		return Result{}, fmt.Errorf("dispatch: EVENT_REPORT_F: %w", err)
	}
	return Result{Lines: event.RenderAll(entries)}, nil
}

// extMsgHeaderLen is the fixed header in front of an EXT_MSG_F body: an
// 8-byte QXDM timestamp, 2-byte source line number, 2-byte subsystem ID,
// and a 4-byte format-string hash.
const extMsgHeaderLen = 8 + 2 + 2 + 4

func (d *Dispatcher) decodeExtMsg(body []byte) (Result, error) {
	if len(body) < extMsgHeaderLen {
		return Result{}, fmt.Errorf("dispatch: short EXT_MSG_F body")
	}
	hash := binary.LittleEndian.Uint32(body[12:16])
	args := wordsToArgs(body[extMsgHeaderLen:])

	row, ok := d.Hash.Lookup(hash)
	var line string
	if ok {
		line = fmt.Sprintf("%s: %s", row.File, expand(row.Format, args))
	} else {
		line = fmt.Sprintf("<unresolved format 0x%08x>", hash)
	}
	return Result{Lines: []string{line}}, nil
}

func (d *Dispatcher) decodeTerse(body []byte, qsr4 bool) (Result, error) {
	if len(body) < 4 {
		return Result{}, fmt.Errorf("dispatch: short terse-message body")
	}
	hash := binary.LittleEndian.Uint32(body[0:4])
	args := wordsToArgs(body[4:])

	row, ok := d.Hash.LookupMtrace(hash)
	if !ok {
		if !qsr4 {
			return Result{}, nil
		}
		// QSR4 template misses still produce a line and, if the caller
		// wraps this into a GSMTAP frame, that frame is still emitted:
		// a missing template is a hash-table gap, not a reason to drop
		// a message the baseband actually sent.
		placeholder := fmt.Sprintf("<unresolved QSR4 format 0x%08x, args=[%s]>", hash, formatArgs(args))
		return Result{Lines: []string{placeholder}}, nil
	}
	return Result{Lines: []string{expand(row.Format, args)}}, nil
}

func (d *Dispatcher) decodeQSHTrace(body []byte) (Result, error) {
	if len(body) < 4 {
		return Result{}, fmt.Errorf("dispatch: short QSH trace payload")
	}
	hash := binary.LittleEndian.Uint32(body[0:4])
	args := wordsToArgs(body[4:])
	mt, ok := d.Hash.LookupMtrace(hash)
	if !ok {
		return Result{Lines: []string{fmt.Sprintf("<unresolved mtrace format 0x%08x, args=[%s]>", hash, formatArgs(args))}}, nil
	}
	return Result{Lines: []string{expandMtrace(mt, args)}}, nil
}

// formatArgs renders a packed-argument slice the way the missing-template
// placeholder reports it: plain decimal values, comma-separated, so a
// reader can still see what the baseband sent even without the template
// text to interpret it.
func formatArgs(args []uint64) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.FormatUint(a, 10)
	}
	return strings.Join(parts, ", ")
}

func (d *Dispatcher) decodeMultiRadio(body []byte) (Result, error) {
	env, err := multiradio.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: MULTI_RADIO_CMD_F: %w", err)
	}
	inner, err := d.Decode(env.Payload)
	if err != nil {
		return Result{}, err
	}
	inner.Radio = env.Radio
	return inner, nil
}

// wordsToArgs splits a packed-argument byte slice into 32-bit
// little-endian words, the unit every extended-message argument is
// carried in regardless of its eventual printf width.
func wordsToArgs(b []byte) []uint64 {
	n := len(b) / 4
	args := make([]uint64, n)
	for i := 0; i < n; i++ {
		args[i] = uint64(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return args
}

func frameOrNil(f []byte) [][]byte {
	if f == nil {
		return nil
	}
	return [][]byte{f}
}

// expand renders a plain format-string row against args.
func expand(format string, args []uint64) string {
	return fmtstr.Expand(format, args)
}

// expandMtrace renders a mtrace row. The argument-type string (e.g.
// "int|hex") is metadata the firmware's own mtrace tooling uses to
// choose a human display format per argument; the template's own
// printf conversions already encode the same choice, so expansion only
// needs the template and the packed words.
func expandMtrace(row hashstore.MtraceRow, args []uint64) string {
	return fmtstr.Expand(row.Format, args)
}
