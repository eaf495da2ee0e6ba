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

// Package pcapsink writes decoded GSMTAP datagrams to a pcap file for
// later offline analysis in Wireshark, wrapping each one in a synthetic
// Ethernet/IPv4/UDP header the same way a live GSMTAP capture off the
// wire would look.
package pcapsink

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/diagcat/diagcat/diag/gsmtap"
)

// Sink writes pcap records to an underlying file.
type Sink struct {
	f      *os.File
	w      *pcapgo.Writer
	srcMAC net.HardwareAddr
	dstMAC net.HardwareAddr
	srcIP  net.IP
	dstIP  net.IP
}

// Create opens path and writes the pcap global header for
// link-type Ethernet, snaplen 65535.
func Create(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pcapsink: creating %s: %w", path, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapsink: writing pcap header: %w", err)
	}
	return &Sink{
		f:      f,
		w:      w,
		srcMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		dstMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		srcIP:  net.ParseIP("127.0.0.1").To4(),
		dstIP:  net.ParseIP("127.0.0.1").To4(),
	}, nil
}

// userPortOffset separates the KPI text stream from the binary GSMTAP
// stream on the synthetic UDP header, mirroring udpsink's control/user
// socket split.
const userPortOffset = 42561

// WriteLine wraps line as a GSMTAP Osmocore-log datagram and records it.
func (s *Sink) WriteLine(radio uint8, line string) error {
	return s.writeGSMTAP(gsmtap.BuildOsmocoreLog("diagcat", "LTE", 3, line), udpPortFor(radio, userPortOffset))
}

// WriteFrame records an already GSMTAP-framed binary datagram.
func (s *Sink) WriteFrame(radio uint8, gsmtapFrame []byte) error {
	return s.writeGSMTAP(gsmtapFrame, udpPortFor(radio, 0))
}

func udpPortFor(radio uint8, offset int) layers.UDPPort {
	return layers.UDPPort(4729 + offset + int(radio))
}

func (s *Sink) writeGSMTAP(payload []byte, dstPort layers.UDPPort) error {
	eth := &layers.Ethernet{
		SrcMAC:       s.srcMAC,
		DstMAC:       s.dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    s.srcIP,
		DstIP:    s.dstIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(12345),
		DstPort: dstPort,
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("pcapsink: setting checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("pcapsink: serializing layers: %w", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	return s.w.WritePacket(ci, buf.Bytes())
}

// Close closes the underlying pcap file.
func (s *Sink) Close() error {
	return s.f.Close()
}
