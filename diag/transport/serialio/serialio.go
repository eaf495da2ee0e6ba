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

// Package serialio is the serial-port diag transport: a baseband
// exposed as /dev/ttyUSBn or a COM port, opened in raw passthrough
// mode.
package serialio

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Device wraps an open serial.Port with the reopen-on-error behavior a
// flaky USB-serial adapter needs during a long capture session.
type Device struct {
	path string
	mode *serial.Mode
	port serial.Port
}

// Open opens path at baudRate in 8N1 mode.
func Open(path string, baudRate int) (*Device, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serialio: opening %s: %w", path, err)
	}
	return &Device{path: path, mode: mode, port: port}, nil
}

// Read passes through to the underlying port, reopening once on error
// before giving up — USB-serial adapters routinely drop and re-enumerate
// mid-session.
func (d *Device) Read(p []byte) (int, error) {
	n, err := d.port.Read(p)
	if err != nil {
		if reopenErr := d.reopen(); reopenErr != nil {
			return 0, err
		}
		return d.port.Read(p)
	}
	return n, nil
}

// Write passes through to the underlying port.
func (d *Device) Write(p []byte) (int, error) {
	return d.port.Write(p)
}

// Close closes the underlying port.
func (d *Device) Close() error {
	return d.port.Close()
}

func (d *Device) reopen() error {
	_ = d.port.Close()
	time.Sleep(200 * time.Millisecond)
	port, err := serial.Open(d.path, d.mode)
	if err != nil {
		return fmt.Errorf("serialio: reopening %s: %w", d.path, err)
	}
	d.port = port
	return nil
}
