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

// Package gsmtap builds GSMTAP v2 wire headers and a log sub-header used
// to carry free-form KPI text lines inside an Osmocore-log GSMTAP
// datagram. The sub-header is this package's own compact 36-byte layout
// (process name, subsystem name, level); it carries no timestamp, pid,
// source file or line number, so it is not libosmocore's full Osmocore
// log header.
package gsmtap

import "encoding/binary"

// Version is the only GSMTAP version this encoder emits.
const Version = 0x02

// HeaderLen is the fixed, on-wire GSMTAP header length in bytes.
const HeaderLen = 16

// Type identifies the payload carried after the GSMTAP header.
type Type uint8

// Subset of GSMTAP payload types relevant to diag capture. Values match
// libosmocore's GSMTAP_TYPE_* constants.
const (
	TypeUm           Type = 0x01
	TypeUmBurst      Type = 0x02
	TypeSim          Type = 0x03
	TypeAbis         Type = 0x10
	TypeUmtsRrc      Type = 0x0c
	TypeLteRrc       Type = 0x0d
	TypeLteMac       Type = 0x0e
	TypeLteMacFramed Type = 0x0f
	TypeLteNas       Type = 0x12
	TypeLtePdcp      Type = 0x13
	TypeLteRlc       Type = 0x14
	TypeOsmocoreLog  Type = 0x15
	TypeNrRrc        Type = 0x19
	TypeNrMac        Type = 0x1a
	TypeNrRlc        Type = 0x1b
	TypeNrPdcp       Type = 0x1c
	TypeNrNas        Type = 0x1d
)

// Header mirrors libosmocore's struct gsmtap_hdr, 16 bytes on the wire,
// all multi-byte fields network (big-endian) order.
type Header struct {
	Type        Type
	Timeslot    uint8
	ARFCN       uint16
	SignalDBm   int8
	SNRDB       int8
	FrameNumber uint32
	SubType     uint8
	AntennaNr   uint8
	SubSlot     uint8
}

// Marshal encodes h into its 16-byte wire representation.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderLen)
	b[0] = Version
	b[1] = HeaderLen / 4
	b[2] = byte(h.Type)
	b[3] = h.Timeslot
	binary.BigEndian.PutUint16(b[4:6], h.ARFCN)
	b[6] = byte(h.SignalDBm)
	b[7] = byte(h.SNRDB)
	binary.BigEndian.PutUint32(b[8:12], h.FrameNumber)
	b[12] = h.SubType
	b[13] = h.AntennaNr
	b[14] = h.SubSlot
	b[15] = 0 // reserved
	return b
}

// osmocoreLogHdrLen is the fixed size of the Osmocore log sub-header:
// a 16-byte process name, a 16-byte subsystem name, and a 4-byte level.
const osmocoreLogHdrLen = 16 + 16 + 4

// BuildOsmocoreLog wraps a free-form text line (a decoded KPI or log
// line) in a GSMTAP header of type Osmocore-log plus its sub-header, as
// used to carry human-readable diag output over the GSMTAP control
// channel alongside the binary Um/LTE-RRC/NAS frames.
func BuildOsmocoreLog(proc, subsys string, level uint32, line string) []byte {
	hdr := Header{Type: TypeOsmocoreLog}
	out := make([]byte, 0, HeaderLen+osmocoreLogHdrLen+len(line))
	out = append(out, hdr.Marshal()...)

	procField := make([]byte, 16)
	copy(procField, proc)
	subsysField := make([]byte, 16)
	copy(subsysField, subsys)
	levelField := make([]byte, 4)
	binary.BigEndian.PutUint32(levelField, level)

	out = append(out, procField...)
	out = append(out, subsysField...)
	out = append(out, levelField...)
	out = append(out, []byte(line)...)
	return out
}

// BuildFrame wraps an already-decoded binary air-interface frame (Um,
// LTE RRC/MAC/NAS/PDCP/RLC, NR equivalents, ...) in a GSMTAP header of
// the given type.
func BuildFrame(t Type, arfcn uint16, subType, timeslot, subSlot, antenna uint8, frameNumber uint32, payload []byte) []byte {
	hdr := Header{
		Type:        t,
		Timeslot:    timeslot,
		ARFCN:       arfcn,
		FrameNumber: frameNumber,
		SubType:     subType,
		AntennaNr:   antenna,
		SubSlot:     subSlot,
	}
	out := make([]byte, 0, HeaderLen+len(payload))
	out = append(out, hdr.Marshal()...)
	out = append(out, payload...)
	return out
}
