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

package emit

import (
	"encoding/json"
	"net"
	"regexp"
	"strconv"
	"time"
)

// KPIDatagram is the structured form of a KPI line, sent over UDP as a
// JSON object for machine consumers that don't want to parse text.
type KPIDatagram struct {
	Radio     uint8             `json:"radio"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"`
	Fields    map[string]string `json:"fields"`
}

var kpiLinePatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"rrc_state", regexp.MustCompile(`^LTE RRC State: (\w+)$`)},
	{"serving_cell", regexp.MustCompile(`^LTE Primary Cell: EARFCN: (\d+), PCI: (\d+), RSRP: ([\-\d.]+), RSSI: ([\-\d.]+), RSRQ: ([\-\d.]+)$`)},
	{"dl_mcs", regexp.MustCompile(`^(\d+)MHz BW MCS=(\d+)$`)},
	{"ul_mcs", reULMCS},
	{"tx_power", reTXPower},
	{"timing_advance", reTA},
	{"rach", regexp.MustCompile(`^LTE KPI RACH: result=(\w+), attempt=(\d+), contention=(\d+)$`)},
	{"throughput", regexp.MustCompile(`^LTE Throughput: DL=([\d.]+)Mbps UL=([\d.]+)Mbps$`)},
}

// Classify matches line against the known KPI line patterns and, on a
// match, returns the structured datagram ready to marshal to JSON.
// Lines with no matching pattern (free-form decoded text, unresolved
// format placeholders, ...) are not classifiable and ok is false.
func Classify(radio uint8, now time.Time, line string) (KPIDatagram, bool) {
	for _, p := range kpiLinePatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fields := make(map[string]string, len(m)-1)
		for i, name := range p.re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			fields[name] = m[i]
		}
		if len(fields) == 0 {
			for i := 1; i < len(m); i++ {
				fields[strconv.Itoa(i)] = m[i]
			}
		}
		return KPIDatagram{Radio: radio, Timestamp: now, Kind: p.kind, Fields: fields}, true
	}
	return KPIDatagram{}, false
}

// JSONUDPSender fires classified KPI datagrams at a UDP destination,
// fire-and-forget: a dropped datagram is not worth blocking the
// capture session over.
type JSONUDPSender struct {
	conn *net.UDPConn
}

// DialJSONUDPSender resolves addr and opens the UDP socket the sender
// writes to.
func DialJSONUDPSender(addr string) (*JSONUDPSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &JSONUDPSender{conn: conn}, nil
}

// Send marshals d to JSON and writes it to the destination socket,
// ignoring any write error beyond logging it at the caller's
// discretion (the return value is surfaced so callers can count
// failures in metrics without the send path itself retrying).
func (s *JSONUDPSender) Send(d KPIDatagram) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(b)
	return err
}

// Close releases the underlying socket.
func (s *JSONUDPSender) Close() error {
	return s.conn.Close()
}
