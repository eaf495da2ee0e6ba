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

// Package lte registers a small, representative set of LTE log-item
// decoders into the logitem dispatch table: serving cell / RRC state,
// MAC downlink and uplink transport blocks, PHY transmit power, MAC
// timing advance, and RRC random access. The full per-release LTE log
// catalogue is out of scope; these exist so the session engine has at
// least one real subsystem to decode end to end.
package lte

import (
	"encoding/binary"
	"fmt"

	"github.com/diagcat/diagcat/diag/logitem"
)

// Log-item IDs for the subset of LTE log packets this package decodes.
const (
	LogIDServingCellInfo  = 0xb0c0
	LogIDMacDLTransport   = 0xb06a
	LogIDMacULTransport   = 0xb176
	LogIDPhyTxPower       = 0xb139
	LogIDMacTimingAdvance = 0xb061
	LogIDRRCRach          = 0xb0e2
)

// rrcState names the handful of RRC connection states the serving-cell
// item can report.
var rrcState = map[uint8]string{
	0: "IDLE",
	1: "CONNECTING",
	2: "CONNECTED",
	3: "RECONFIGURING",
	4: "RELEASING",
}

func init() {
	logitem.Register(LogIDServingCellInfo, logitem.Decoder{Render: renderServingCellInfo})
	logitem.Register(LogIDMacDLTransport, logitem.Decoder{
		Render:     renderMacDLTransport,
		Throughput: throughputMacDLTransport,
	})
	logitem.Register(LogIDMacULTransport, logitem.Decoder{
		Render:     renderMacULTransport,
		Throughput: throughputMacULTransport,
	})
	logitem.Register(LogIDPhyTxPower, logitem.Decoder{Render: renderPhyTxPower})
	logitem.Register(LogIDMacTimingAdvance, logitem.Decoder{Render: renderMacTimingAdvance})
	logitem.Register(LogIDRRCRach, logitem.Decoder{Render: renderRRCRach})
}

// servingCellInfo layout: state(1) + reserved(1) + earfcn(2) + pci(2) +
// rsrp_tenths_dbm(2, signed) + rssi_tenths_dbm(2, signed) +
// rsrq_tenths_db(2, signed).
func renderServingCellInfo(h logitem.LogHeader, payload []byte) []string {
	if len(payload) < 12 {
		return nil
	}
	state := rrcState[payload[0]]
	if state == "" {
		state = fmt.Sprintf("UNKNOWN(%d)", payload[0])
	}
	earfcn := binary.LittleEndian.Uint16(payload[2:4])
	pci := binary.LittleEndian.Uint16(payload[4:6])
	rsrp := int16(binary.LittleEndian.Uint16(payload[6:8]))
	rssi := int16(binary.LittleEndian.Uint16(payload[8:10]))
	rsrq := int16(binary.LittleEndian.Uint16(payload[10:12]))

	return []string{
		fmt.Sprintf("LTE RRC State: %s", state),
		fmt.Sprintf("LTE Primary Cell: EARFCN: %d, PCI: %d, RSRP: %.1f, RSSI: %.1f, RSRQ: %.1f",
			earfcn, pci, float64(rsrp)/10, float64(rssi)/10, float64(rsrq)/10),
	}
}

// macTransport layout: bandwidthMHz(1) + mcs(1) + tbSizeBytes(2).
func renderMacDLTransport(h logitem.LogHeader, payload []byte) []string {
	if len(payload) < 4 {
		return nil
	}
	bw := payload[0]
	mcs := payload[1]
	return []string{fmt.Sprintf("%dMHz BW MCS=%d", bw, mcs)}
}

func throughputMacDLTransport(h logitem.LogHeader, payload []byte) (dl, ul uint32) {
	if len(payload) < 4 {
		return 0, 0
	}
	return uint32(binary.LittleEndian.Uint16(payload[2:4])), 0
}

func renderMacULTransport(h logitem.LogHeader, payload []byte) []string {
	if len(payload) < 4 {
		return nil
	}
	mcs := payload[1]
	return []string{fmt.Sprintf("LTE KPI UL: MCS=%d", mcs)}
}

func throughputMacULTransport(h logitem.LogHeader, payload []byte) (dl, ul uint32) {
	if len(payload) < 4 {
		return 0, 0
	}
	return 0, uint32(binary.LittleEndian.Uint16(payload[2:4]))
}

// phyTxPower layout: txPowerTenthsDBm(2, signed).
func renderPhyTxPower(h logitem.LogHeader, payload []byte) []string {
	if len(payload) < 2 {
		return nil
	}
	tenths := int16(binary.LittleEndian.Uint16(payload[0:2]))
	return []string{fmt.Sprintf("LTE KPI TX: est. TX power=%.1f dBm", float64(tenths)/10)}
}

// macTimingAdvance layout: taValue(1).
func renderMacTimingAdvance(h logitem.LogHeader, payload []byte) []string {
	if len(payload) < 1 {
		return nil
	}
	return []string{fmt.Sprintf("LTE KPI: TA=%d", payload[0])}
}

// rrcRach layout: result(1, 0=success) + attempt(1) + contention(1).
func renderRRCRach(h logitem.LogHeader, payload []byte) []string {
	if len(payload) < 3 {
		return nil
	}
	result := "failure"
	if payload[0] == 0 {
		result = "success"
	}
	return []string{fmt.Sprintf("LTE KPI RACH: result=%s, attempt=%d, contention=%d", result, payload[1], payload[2])}
}
