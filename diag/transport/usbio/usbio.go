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

// Package usbio is the USB bulk-endpoint diag transport, for basebands
// that expose diag directly over a USB composite interface instead of
// a serial-emulation port.
package usbio

import (
	"fmt"

	"github.com/google/gousb"
)

// Device wraps one claimed USB interface's bulk IN/OUT endpoints.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
}

// Open claims the diag bulk interface on the first device matching
// vendorID/productID, using the given configuration/interface/setting
// and endpoint addresses.
func Open(vendorID, productID gousb.ID, cfgNum, ifaceNum, setting int, inEP, outEP int) (*Device, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usbio: opening device %s:%s: %w", vendorID, productID, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usbio: no device matching %s:%s", vendorID, productID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbio: set auto detach: %w", err)
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbio: claiming config %d: %w", cfgNum, err)
	}
	iface, err := cfg.Interface(ifaceNum, setting)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbio: claiming interface %d: %w", ifaceNum, err)
	}
	in, err := iface.InEndpoint(inEP)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbio: opening IN endpoint %d: %w", inEP, err)
	}
	out, err := iface.OutEndpoint(outEP)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbio: opening OUT endpoint %d: %w", outEP, err)
	}

	return &Device{ctx: ctx, dev: dev, cfg: cfg, iface: iface, in: in, out: out}, nil
}

// Read reads one bulk transfer from the diag IN endpoint.
func (d *Device) Read(p []byte) (int, error) {
	return d.in.Read(p)
}

// Write sends p as a bulk transfer to the diag OUT endpoint.
func (d *Device) Write(p []byte) (int, error) {
	return d.out.Write(p)
}

// Close releases the interface, configuration, device handle and USB
// context in reverse acquisition order.
func (d *Device) Close() error {
	d.iface.Close()
	d.cfg.Close()
	d.dev.Close()
	return d.ctx.Close()
}
