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

// Package udpsink is the live GSMTAP sink: decoded binary frames and
// KPI text lines are wrapped in a GSMTAP datagram and sent straight to
// a Wireshark (or osmocom) listener over UDP, one socket pair per
// radio so a dual-SIM capture keeps both radios' streams distinguishable
// on the wire.
package udpsink

import (
	"fmt"
	"net"

	"github.com/diagcat/diagcat/diag/gsmtap"
)

// DefaultControlPort is the conventional GSMTAP listener port.
const DefaultControlPort = 4729

// DefaultUserPort is used for the text/KPI stream, kept on a separate
// port from the binary GSMTAP control port so either can be watched
// independently.
const DefaultUserPort = 47290

// Sink maintains one UDP socket pair per radio index.
type Sink struct {
	host         string
	controlPort  int
	userPort     int
	radioOffset  int
	conns        map[uint8]*radioConns
}

type radioConns struct {
	control *net.UDPConn
	user    *net.UDPConn
}

// New returns a Sink that lazily dials a socket pair per radio the
// first time it is written to, addressed at
// host:controlPort+radio*radioOffset and host:userPort+radio*radioOffset.
func New(host string, controlPort, userPort, radioOffset int) *Sink {
	return &Sink{
		host:        host,
		controlPort: controlPort,
		userPort:    userPort,
		radioOffset: radioOffset,
		conns:       make(map[uint8]*radioConns),
	}
}

func (s *Sink) connsFor(radio uint8) (*radioConns, error) {
	if c, ok := s.conns[radio]; ok {
		return c, nil
	}
	offset := int(radio) * s.radioOffset
	control, err := dial(s.host, s.controlPort+offset)
	if err != nil {
		return nil, err
	}
	user, err := dial(s.host, s.userPort+offset)
	if err != nil {
		control.Close()
		return nil, err
	}
	c := &radioConns{control: control, user: user}
	s.conns[radio] = c
	return c, nil
}

func dial(host string, port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("udpsink: resolving %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udpsink: dialing %s:%d: %w", host, port, err)
	}
	return conn, nil
}

// WriteLine wraps line as a GSMTAP Osmocore-log datagram and sends it
// on the user-plane socket for radio.
func (s *Sink) WriteLine(radio uint8, line string) error {
	c, err := s.connsFor(radio)
	if err != nil {
		return err
	}
	_, err = c.user.Write(gsmtap.BuildOsmocoreLog("diagcat", "LTE", 3, line))
	return err
}

// WriteFrame sends an already GSMTAP-framed binary datagram on the
// control-plane socket for radio.
func (s *Sink) WriteFrame(radio uint8, gsmtapFrame []byte) error {
	c, err := s.connsFor(radio)
	if err != nil {
		return err
	}
	_, err = c.control.Write(gsmtapFrame)
	return err
}

// Close closes every socket opened so far.
func (s *Sink) Close() error {
	var firstErr error
	for _, c := range s.conns {
		if err := c.control.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.user.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
