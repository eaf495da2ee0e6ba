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

// Package diagcmd defines the diag protocol's command-code constants and
// the small set of request builders used to negotiate log and event
// masks with the baseband.
package diagcmd

import "encoding/binary"

// Opcode identifies a top-level diag command, the first byte of every
// request and response packet.
type Opcode uint8

// Top-level opcodes dispatched by the command dispatcher (C5).
const (
	VernoF           Opcode = 0x00
	LogF             Opcode = 0x10
	EventReportF     Opcode = 0x60
	LogConfigF       Opcode = 0x73
	ExtMsgF          Opcode = 0x79
	ExtBuildIDF      Opcode = 0x7c
	ExtMsgConfigF    Opcode = 0x7d
	ExtMsgTerseF     Opcode = 0x92
	QSRExtMsgTerseF  Opcode = 0x93
	MultiRadioCmdF   Opcode = 0x98
	QSR4ExtMsgTerseF Opcode = 0xb2
	QSHTracePayloadF Opcode = 0xf3
	SecureLogF       Opcode = 0xf8
)

// LogConfigOp is the sub-operation carried in byte 1-4 of a LOG_CONFIG_F
// request/response.
type LogConfigOp uint32

const (
	LogConfigDisableOp           LogConfigOp = 0
	LogConfigRetrieveIDRangesOp  LogConfigOp = 1
	LogConfigSetMaskOp           LogConfigOp = 3
	LogConfigGetLogMaskOp        LogConfigOp = 4
)

// LogIDRange maps an equipment ID to the highest log-item ID it carries,
// as returned by a LOG_CONFIG_F/RETRIEVE_ID_RANGES_OP response.
type LogIDRange map[uint8]uint32

// BuildRetrieveIDRanges builds a LOG_CONFIG_F request asking the
// baseband which log-item ID ranges exist per equipment ID.
func BuildRetrieveIDRanges() []byte {
	b := make([]byte, 5)
	b[0] = byte(LogConfigF)
	binary.LittleEndian.PutUint32(b[1:], uint32(LogConfigRetrieveIDRangesOp))
	return b
}

// BuildDisableLogMask builds a LOG_CONFIG_F request disabling logging
// entirely for the given equipment ID, used as the first step of mask
// negotiation and again during teardown.
func BuildDisableLogMask(equipID uint8) []byte {
	b := make([]byte, 9)
	b[0] = byte(LogConfigF)
	binary.LittleEndian.PutUint32(b[1:5], uint32(LogConfigDisableOp))
	binary.LittleEndian.PutUint32(b[5:9], uint32(equipID))
	return b
}

// BuildEmptyLogMask builds a LOG_CONFIG_F/SET_MASK_OP request with a
// zero-length mask for the given equipment ID: every log item in that
// subsystem's range is disabled without the baseband needing to be told
// each bit individually.
func BuildEmptyLogMask(equipID uint8, lastItem uint32) []byte {
	b := make([]byte, 17)
	b[0] = byte(LogConfigF)
	binary.LittleEndian.PutUint32(b[1:5], uint32(LogConfigSetMaskOp))
	binary.LittleEndian.PutUint32(b[5:9], uint32(equipID))
	binary.LittleEndian.PutUint32(b[9:13], lastItem)
	binary.LittleEndian.PutUint32(b[13:17], 0) // mask length, bytes to follow
	return b
}

// BuildLogMask builds a LOG_CONFIG_F/SET_MASK_OP request enabling the
// log items whose bit is set in mask, for items 0..lastItem of the given
// equipment ID.
func BuildLogMask(equipID uint8, lastItem uint32, mask []byte) []byte {
	b := make([]byte, 17+len(mask))
	b[0] = byte(LogConfigF)
	binary.LittleEndian.PutUint32(b[1:5], uint32(LogConfigSetMaskOp))
	binary.LittleEndian.PutUint32(b[5:9], uint32(equipID))
	binary.LittleEndian.PutUint32(b[9:13], lastItem)
	binary.LittleEndian.PutUint32(b[13:17], uint32(len(mask)))
	copy(b[17:], mask)
	return b
}

// BuildEventMask builds an EVENT_REPORT_F-class request toggling event
// reporting on (enable=true) or off. The diag event stream is a single
// global on/off switch, unlike the per-equipment-ID log mask.
func BuildEventMask(enable bool) []byte {
	b := make([]byte, 2)
	b[0] = byte(EventReportF)
	if enable {
		b[1] = 1
	}
	return b
}

// BuildExtendedMessageConfigSetMask builds an EXT_MSG_CONFIG_F request
// that enables extended-message reporting for the inclusive [first,
// last] range of a given subsystem/line-range pair at the given runtime
// debug level, following the same query-then-set pattern as the log
// mask: the baseband is first asked for its supported ranges, then told
// which of them to turn on.
func BuildExtendedMessageConfigSetMask(ssid uint16, first, last uint32, level uint8) []byte {
	b := make([]byte, 14)
	b[0] = byte(ExtMsgConfigF)
	b[1] = 1 // sub-op: set mask
	binary.LittleEndian.PutUint16(b[2:4], ssid)
	binary.LittleEndian.PutUint32(b[4:8], first)
	binary.LittleEndian.PutUint32(b[8:12], last)
	b[12] = level
	b[13] = 0
	return b
}

// BuildExtendedMessageConfigQuery builds the EXT_MSG_CONFIG_F query used
// to discover which message ranges/levels a subsystem supports before
// BuildExtendedMessageConfigSetMask re-applies them.
func BuildExtendedMessageConfigQuery(ssid uint16) []byte {
	b := make([]byte, 4)
	b[0] = byte(ExtMsgConfigF)
	b[1] = 0 // sub-op: query
	binary.LittleEndian.PutUint16(b[2:4], ssid)
	return b
}

// BuildVerNo builds the VERNO_F version-query request sent at the start
// of negotiation.
func BuildVerNo() []byte {
	return []byte{byte(VernoF)}
}

// BuildExtBuildID builds the EXT_BUILD_ID_F build-identifier query.
func BuildExtBuildID() []byte {
	return []byte{byte(ExtBuildIDF)}
}
