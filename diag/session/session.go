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

// Package session runs the main capture loop: read framed packets off a
// transport (live device or a saved dump file), decode each one, run
// the result through the post-processing pipeline, and hand the
// outcome to the configured sinks. The loop is cancelled through a
// context.Context; the signal handler that triggers cancellation does
// no I/O of its own.
package session

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diagcat/diagcat/diag/dispatch"
	"github.com/diagcat/diagcat/diag/emit"
	"github.com/diagcat/diagcat/diag/frame"
	"github.com/diagcat/diagcat/diag/metrics"
	"github.com/diagcat/diagcat/diag/radiostate"
)

// Mode selects the framing used to split the input stream into packets.
type Mode int

const (
	// ModeLive and ModeQMDL share identical HDLC byte-stuffed framing;
	// a QMDL dump is simply a recording of exactly what a live device
	// would have produced.
	ModeLive Mode = iota
	ModeQMDL
	// ModeDLF frames are a 2-byte little-endian length prefix followed
	// by that many raw bytes, with no escaping and no CRC.
	ModeDLF
	// ModeHDF frames are preceded by the 2-byte sync marker 0x10 0x00
	// followed by a 2-byte little-endian length prefix.
	ModeHDF
)

// Sink receives the output of one processed packet.
type Sink interface {
	WriteLine(radio uint8, line string) error
	WriteFrame(radio uint8, gsmtapFrame []byte) error
}

// Loop owns one capture session end to end.
type Loop struct {
	r          io.Reader
	mode       Mode
	dispatcher *dispatch.Dispatcher
	pipeline   *emit.Pipeline
	tracker    *radiostate.Tracker
	sinks      []Sink
	rawWriter  io.Writer
	metrics    *metrics.Metrics
	jsonSender *emit.JSONUDPSender
	log        logrus.FieldLogger
}

// New returns a Loop reading framed packets from r in the given Mode.
func New(r io.Reader, mode Mode, d *dispatch.Dispatcher, sinks []Sink) *Loop {
	return &Loop{
		r:          r,
		mode:       mode,
		dispatcher: d,
		pipeline:   emit.New(),
		tracker:    radiostate.NewTracker(),
		sinks:      sinks,
		log:        logrus.StandardLogger(),
	}
}

// SetRawWriter installs a sink that receives every raw, still-framed
// packet verbatim, independent of decode success — the raw capture
// hook used to save a session for later offline replay.
func (l *Loop) SetRawWriter(w io.Writer) {
	l.rawWriter = w
}

// SetMetrics installs a metrics sink that counts frames, framing
// errors, and decode errors as the loop runs.
func (l *Loop) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// SetJSONUDPSender installs a sender that fires a classified JSON
// datagram for every KPI line the pipeline emits, best-effort.
func (l *Loop) SetJSONUDPSender(s *emit.JSONUDPSender) {
	l.jsonSender = s
}

// Run reads and processes packets until ctx is cancelled or the
// transport returns io.EOF. Any other read error from the transport
// ends Run with that error; framing and CRC errors only drop the frame.
func (l *Loop) Run(ctx context.Context) error {
	br := bufio.NewReaderSize(l.r, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		raw, payload, err := l.readFrame(br)
		if err == io.EOF {
			return nil
		}
		if err != nil && raw == nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("session: reading transport: %w", err)
		}
		if err != nil {
			if l.metrics != nil {
				l.metrics.CRCErrorsTotal.Inc()
			}
			l.log.WithError(err).Warn("session: framing error, resyncing")
			continue
		}
		if l.metrics != nil {
			l.metrics.FramesTotal.Inc()
		}
		if l.rawWriter != nil {
			if _, werr := l.rawWriter.Write(raw); werr != nil {
				l.log.WithError(werr).Warn("session: raw capture write failed")
			}
		}
		l.handlePacket(payload)
	}
}

// readFrame extracts the next raw frame and its decodable payload
// according to l.mode.
func (l *Loop) readFrame(br *bufio.Reader) (raw, payload []byte, err error) {
	switch l.mode {
	case ModeLive, ModeQMDL:
		raw, err = br.ReadBytes(frame.Delimiter)
		if err != nil {
			return nil, nil, err
		}
		unescaped, uerr := frame.Unwrap(raw)
		if uerr != nil {
			return raw, nil, fmt.Errorf("session: %w", uerr)
		}
		body, ok, _, _ := frame.VerifyAndStrip(unescaped)
		if !ok {
			return raw, nil, fmt.Errorf("session: CRC mismatch")
		}
		return raw, body, nil

	case ModeDLF:
		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return nil, nil, err
		}
		n := binary.LittleEndian.Uint16(lenBuf)
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, nil, err
		}
		raw = append(append([]byte{}, lenBuf...), body...)
		return raw, body, nil

	case ModeHDF:
		if err := scanToMarker(br); err != nil {
			return nil, nil, err
		}
		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return nil, nil, err
		}
		n := binary.LittleEndian.Uint16(lenBuf)
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, nil, err
		}
		raw = append([]byte{0x10, 0x00}, append(lenBuf, body...)...)
		return raw, body, nil

	default:
		return nil, nil, fmt.Errorf("session: unknown mode %d", l.mode)
	}
}

// hdfMarker is the 2-byte sync sequence that precedes every HDF frame's
// length-prefixed body.
var hdfMarker = []byte{0x10, 0x00}

// scanToMarker discards bytes from br until it has consumed the 2-byte
// HDF sync marker.
func scanToMarker(br *bufio.Reader) error {
	matched := 0
	for matched < len(hdfMarker) {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b == hdfMarker[matched] {
			matched++
		} else if b == hdfMarker[0] {
			matched = 1
		} else {
			matched = 0
		}
	}
	return nil
}

// handlePacket decodes one de-framed payload and routes the result
// through the post-processing pipeline to every sink.
func (l *Loop) handlePacket(payload []byte) {
	if payload == nil {
		return
	}
	result, err := l.dispatcher.Decode(payload)
	if err != nil {
		if l.metrics != nil {
			l.metrics.DecodeErrorsTotal.Inc()
		}
		l.log.WithError(err).Warn("session: decode error")
		return
	}

	now := time.Now()
	lines := l.pipeline.Process(l.tracker, result.Radio, now, result.Lines, result.DLBytes, result.ULBytes)

	if l.metrics != nil {
		l.metrics.KPIEmittedTotal.Add(float64(len(lines)))
		radio := fmt.Sprintf("%d", result.Radio)
		if l.tracker.RRCConnected(result.Radio) {
			l.metrics.RRCConnected.WithLabelValues(radio).Set(1)
		} else {
			l.metrics.RRCConnected.WithLabelValues(radio).Set(0)
		}
	}

	for _, line := range lines {
		fmt.Printf("Radio %d: %s\n", result.Radio, line)
	}

	for _, sink := range l.sinks {
		for _, line := range lines {
			if err := sink.WriteLine(result.Radio, line); err != nil {
				l.log.WithError(err).Warn("session: sink write line failed")
			}
		}
		for _, f := range result.Frames {
			if err := sink.WriteFrame(result.Radio, f); err != nil {
				l.log.WithError(err).Warn("session: sink write frame failed")
			}
		}
	}

	if l.jsonSender != nil {
		for _, line := range lines {
			if d, ok := emit.Classify(result.Radio, now, line); ok {
				if err := l.jsonSender.Send(d); err != nil {
					l.log.WithError(err).Warn("session: json-udp send failed")
				}
			}
		}
	}
}
