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

// Package config holds diagcat's on-disk configuration, optionally
// loaded from a YAML file and then overridden by CLI flags.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Config is the full set of knobs a capture session needs, whether
// supplied on disk or via flags.
type Config struct {
	// Transport selects how the diag stream is obtained: "serial",
	// "usb", or "file".
	Transport string `yaml:"transport"`
	// SerialPath is the device path when Transport is "serial".
	SerialPath string `yaml:"serial_path"`
	// BaudRate is the serial line speed, ignored for other transports.
	BaudRate int `yaml:"baud_rate"`
	// USBVendorID and USBProductID select the device when Transport is "usb".
	USBVendorID  uint16 `yaml:"usb_vendor_id"`
	USBProductID uint16 `yaml:"usb_product_id"`
	// InputFile is the path of a QMDL/DLF/HDF dump when Transport is "file".
	InputFile string `yaml:"input_file"`

	// HashDBPaths are hash-template stores to load, legacy or QDB4,
	// applied in order (later files can override earlier hashes).
	HashDBPaths []string `yaml:"hash_db_paths"`

	// Sink selects where decoded output goes: "udp", "pcap", or "raw".
	Sink string `yaml:"sink"`
	// SinkHost/ControlPort/UserPort/RadioOffset configure the udp sink.
	SinkHost    string `yaml:"sink_host"`
	ControlPort int    `yaml:"control_port"`
	UserPort    int    `yaml:"user_port"`
	RadioOffset int    `yaml:"radio_offset"`
	// OutputPath is the file path for the pcap or raw sinks.
	OutputPath string `yaml:"output_path"`

	// EquipIDs are the equipment IDs to negotiate a log mask for.
	EquipIDs []uint8 `yaml:"equip_ids"`
	// MaxRetries/RetryDelaySeconds configure the negotiation handshake.
	MaxRetries        int `yaml:"max_retries"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`

	// MetricsAddr, if non-empty, serves Prometheus metrics on this
	// address (e.g. ":9464").
	MetricsAddr string `yaml:"metrics_addr"`
	// JSONUDPAddr, if non-empty, fires a classified JSON datagram for
	// every KPI line at this host:port.
	JSONUDPAddr string `yaml:"json_udp_addr"`
	// LogLevel is parsed by logrus.ParseLevel ("debug", "info", ...).
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with every field set to diagcat's
// baseline behavior, meant to be further overridden by an on-disk file
// and then by CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Transport:         "file",
		BaudRate:          115200,
		Sink:              "udp",
		SinkHost:          "127.0.0.1",
		ControlPort:       4729,
		UserPort:          47290,
		RadioOffset:       1,
		EquipIDs:          []uint8{0},
		MaxRetries:        3,
		RetryDelaySeconds: 1,
		LogLevel:          "info",
	}
}

// ReadConfig reads a YAML config file on top of DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, nil
}
