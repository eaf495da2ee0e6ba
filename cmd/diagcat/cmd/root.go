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

// Package cmd implements diagcat's single cobra command: parse flags
// (optionally layered on top of a YAML config file), open the selected
// transport, wire up the negotiation handshake and capture session,
// and run until cancelled.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/gousb"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/diagcat/diagcat/diag/config"
	"github.com/diagcat/diagcat/diag/diagcmd"
	"github.com/diagcat/diagcat/diag/dispatch"
	"github.com/diagcat/diagcat/diag/emit"
	"github.com/diagcat/diagcat/diag/hashstore"
	"github.com/diagcat/diagcat/diag/metrics"
	"github.com/diagcat/diagcat/diag/negotiate"
	"github.com/diagcat/diagcat/diag/session"
	"github.com/diagcat/diagcat/diag/sink/pcapsink"
	"github.com/diagcat/diagcat/diag/sink/rawsink"
	"github.com/diagcat/diagcat/diag/sink/udpsink"
	"github.com/diagcat/diagcat/diag/transport/fileio"
	"github.com/diagcat/diagcat/diag/transport/serialio"
	"github.com/diagcat/diagcat/diag/transport/usbio"
)

var (
	cfgPath        string
	transport      string
	serialPath     string
	baudRate       int
	usbVendorID    uint16
	usbProductID   uint16
	inputFile      string
	hashFiles      []string
	sinkName       string
	sinkHost       string
	controlPort    int
	userPort       int
	radioOffset    int
	outputPath     string
	rawCapturePath string
	noGSMTAP       bool
	metricsPort    int
	jsonUDPAddr    string
	logLevel       string
	idFormat       string
	showIDRanges   bool
)

// RootCmd is diagcat's single command: there is no sub-command tree,
// every knob is a flag on this one command.
var RootCmd = &cobra.Command{
	Use:   "diagcat",
	Short: "capture and translate Qualcomm diag baseband traces to GSMTAP/KPI output",
	RunE:  run,
}

func init() {
	flags := RootCmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "optional YAML config file; flags override its values")
	flags.StringVar(&transport, "transport", "file", "transport to use: serial | usb | file")
	flags.StringVar(&serialPath, "serial-path", "", "serial device path, for --transport=serial")
	flags.IntVar(&baudRate, "baud", 115200, "serial baud rate, for --transport=serial")
	flags.Uint16Var(&usbVendorID, "usb-vendor", 0, "USB vendor ID (decimal, or hex with a 0x prefix), for --transport=usb")
	flags.Uint16Var(&usbProductID, "usb-product", 0, "USB product ID (decimal, or hex with a 0x prefix), for --transport=usb")
	flags.StringVar(&inputFile, "input-file", "", "QMDL/DLF/HDF dump path, for --transport=file (mode auto-detected by extension)")
	flags.StringSliceVar(&hashFiles, "hash-file", nil, "hash-template store to load (legacy or QDB4), repeatable")
	flags.StringVar(&sinkName, "sink", "udp", "output sink: udp | pcap | raw")
	flags.StringVar(&sinkHost, "sink-host", "127.0.0.1", "destination host, for --sink=udp")
	flags.IntVar(&controlPort, "control-port", udpsink.DefaultControlPort, "GSMTAP control-plane UDP port, for --sink=udp")
	flags.IntVar(&userPort, "user-port", udpsink.DefaultUserPort, "KPI text user-plane UDP port, for --sink=udp")
	flags.IntVar(&radioOffset, "radio-offset", 1, "per-radio port offset, for --sink=udp")
	flags.StringVar(&outputPath, "output", "", "output file path, for --sink=pcap or --sink=raw")
	flags.StringVar(&rawCapturePath, "raw-capture", "", "optional path to also save the raw, still-framed byte stream")
	flags.BoolVar(&noGSMTAP, "no-gsmtap", false, "disable all GSMTAP binary frame emission; KPI text lines still flow")
	flags.IntVar(&metricsPort, "metrics-port", 0, "port to serve Prometheus /metrics on, 0 disables")
	flags.StringVar(&jsonUDPAddr, "json-udp-addr", "", "host:port to send classified JSON KPI datagrams to, empty disables")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warning, error")
	flags.StringVar(&idFormat, "id-format", "dec", "display format for negotiated log-id ranges: dec | hex | both")
	flags.BoolVar(&showIDRanges, "show-id-ranges", false, "print the negotiated per-equipment log-id range table to stderr and continue")
}

// Execute is diagcat's entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := prepareConfig()
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("diagcat: %w", err)
	}
	log.SetLevel(level)

	hs := hashstore.New()
	for _, path := range cfg.HashDBPaths {
		if err := loadHashFile(hs, path); err != nil {
			log.WithError(err).Warn("diagcat: hash file failed to load, continuing without it")
		}
	}

	rwc, mode, err := openTransport(cfg)
	if err != nil {
		return fmt.Errorf("diagcat: opening transport: %w", err)
	}
	defer rwc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	neg := negotiate.New(rwc, negotiate.Config{
		EquipIDs:   cfg.EquipIDs,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: retryDelay(cfg),
	})
	if err := neg.Stop(ctx); err != nil {
		log.WithError(err).Warn("diagcat: stop-diag failed, continuing")
	}
	if _, _, err := neg.Identify(ctx); err != nil {
		log.WithError(err).Warn("diagcat: identify failed, continuing")
	}
	ranges, err := neg.RetrieveIDRanges(ctx)
	if err != nil {
		log.WithError(err).Warn("diagcat: retrieving ID ranges failed, continuing with an empty mask")
		ranges = nil
	}
	if showIDRanges {
		printIDRanges(ranges, idFormat)
	}
	if err := neg.Prepare(ctx, ranges); err != nil {
		log.WithError(err).Warn("diagcat: preparing log mask failed, continuing")
	}

	sinks, closeSinks, err := openSinks(cfg)
	if err != nil {
		return fmt.Errorf("diagcat: opening sink: %w", err)
	}
	defer closeSinks()

	loop := session.New(rwc, mode, dispatch.New(hs), sinks)

	if cfg.RawCapturePath != "" {
		raw, err := rawsink.Create(cfg.RawCapturePath)
		if err != nil {
			return fmt.Errorf("diagcat: opening raw capture file: %w", err)
		}
		defer raw.Close()
		loop.SetRawWriter(raw)
	}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		loop.SetMetrics(m)
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.WithError(err).Warn("diagcat: metrics server stopped")
			}
		}()
	}

	if cfg.JSONUDPAddr != "" {
		sender, err := emit.DialJSONUDPSender(cfg.JSONUDPAddr)
		if err != nil {
			return fmt.Errorf("diagcat: dialing json-udp-addr: %w", err)
		}
		defer sender.Close()
		loop.SetJSONUDPSender(sender)
	}

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("diagcat: session error: %w", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), retryDelay(cfg)*time.Duration(cfg.MaxRetries+1))
	defer stopCancel()
	if err := neg.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("diagcat: teardown stop-diag failed")
	}
	return nil
}

// augmentedConfig carries the few fields cobra flags add on top of
// config.Config without polluting the on-disk schema with CLI-only
// concerns like --no-gsmtap.
type augmentedConfig struct {
	*config.Config
	RawCapturePath string
	NoGSMTAP       bool
}

func prepareConfig() (*augmentedConfig, error) {
	base := config.DefaultConfig()
	if cfgPath != "" {
		loaded, err := config.ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
		base = loaded
	}

	flags := RootCmd.Flags()
	overrideString(flags, "transport", &base.Transport)
	overrideString(flags, "serial-path", &base.SerialPath)
	overrideInt(flags, "baud", &base.BaudRate)
	overrideString(flags, "input-file", &base.InputFile)
	overrideString(flags, "sink", &base.Sink)
	overrideString(flags, "sink-host", &base.SinkHost)
	overrideInt(flags, "control-port", &base.ControlPort)
	overrideInt(flags, "user-port", &base.UserPort)
	overrideInt(flags, "radio-offset", &base.RadioOffset)
	overrideString(flags, "output", &base.OutputPath)
	overrideString(flags, "log-level", &base.LogLevel)
	if flags.Changed("usb-vendor") {
		base.USBVendorID = usbVendorID
	}
	if flags.Changed("usb-product") {
		base.USBProductID = usbProductID
	}
	if flags.Changed("hash-file") {
		base.HashDBPaths = hashFiles
	}
	if flags.Changed("metrics-port") && metricsPort > 0 {
		base.MetricsAddr = fmt.Sprintf(":%d", metricsPort)
	}
	overrideString(flags, "json-udp-addr", &base.JSONUDPAddr)

	return &augmentedConfig{Config: base, RawCapturePath: rawCapturePath, NoGSMTAP: noGSMTAP}, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		v, _ := flags.GetString(name)
		*dst = v
	}
}

func overrideInt(flags *pflag.FlagSet, name string, dst *int) {
	if flags.Changed(name) {
		v, _ := flags.GetInt(name)
		*dst = v
	}
}

func retryDelay(cfg *augmentedConfig) time.Duration {
	return time.Duration(cfg.RetryDelaySeconds) * time.Second
}

// printIDRanges renders the negotiated per-equipment log-id range table
// (from LOG_CONFIG_F's RETRIEVE_ID_RANGES_OP) to stderr. format selects
// whether each max log-id is shown in decimal, hex, or both; an
// equipment ID with no range negotiated is highlighted so a reader can
// immediately spot a mask that came back empty.
func printIDRanges(ranges diagcmd.LogIDRange, format string) {
	equipIDs := make([]uint8, 0, len(ranges))
	for id := range ranges {
		equipIDs = append(equipIDs, id)
	}
	sort.Slice(equipIDs, func(i, j int) bool { return equipIDs[i] < equipIDs[j] })

	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"equipment id", "max log id"})
	for _, id := range equipIDs {
		maxID := ranges[id]
		cell := formatLogID(maxID, format)
		if maxID == 0 {
			cell = color.YellowString(cell)
		} else {
			cell = color.GreenString(cell)
		}
		table.Append([]string{fmt.Sprintf("%d", id), cell})
	}
	table.Render()
}

// formatLogID renders a log-id value per the --id-format selection.
func formatLogID(id uint32, format string) string {
	switch format {
	case "hex":
		return fmt.Sprintf("0x%08x", id)
	case "both":
		return fmt.Sprintf("%d (0x%08x)", id, id)
	default:
		return fmt.Sprintf("%d", id)
	}
}

func loadHashFile(hs *hashstore.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isQDB4(f) {
		return hs.LoadQDB4(f)
	}
	return hs.LoadLegacy(f)
}

func isQDB4(f *os.File) bool {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		f.Seek(0, io.SeekStart)
		return false
	}
	f.Seek(0, io.SeekStart)
	return magic[0] == 0x7f && magic[1] == 'Q' && magic[2] == 'D' && magic[3] == 'B'
}

type transportCloser interface {
	io.ReadWriteCloser
}

func openTransport(cfg *augmentedConfig) (transportCloser, session.Mode, error) {
	switch cfg.Transport {
	case "serial":
		dev, err := serialio.Open(cfg.SerialPath, cfg.BaudRate)
		if err != nil {
			return nil, 0, err
		}
		return dev, session.ModeLive, nil
	case "usb":
		dev, err := usbio.Open(gousb.ID(cfg.USBVendorID), gousb.ID(cfg.USBProductID), 1, 0, 0, 0, 0)
		if err != nil {
			return nil, 0, err
		}
		return dev, session.ModeLive, nil
	case "file":
		f, err := fileio.Open(cfg.InputFile)
		if err != nil {
			return nil, 0, err
		}
		return f, fileio.DetectMode(cfg.InputFile), nil
	default:
		return nil, 0, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func openSinks(cfg *augmentedConfig) ([]session.Sink, func(), error) {
	if cfg.NoGSMTAP {
		return nil, func() {}, nil
	}
	switch cfg.Sink {
	case "udp":
		s := udpsink.New(cfg.SinkHost, cfg.ControlPort, cfg.UserPort, cfg.RadioOffset)
		return []session.Sink{s}, func() { s.Close() }, nil
	case "pcap":
		s, err := pcapsink.Create(cfg.OutputPath)
		if err != nil {
			return nil, nil, err
		}
		return []session.Sink{s}, func() { s.Close() }, nil
	case "raw":
		// The "raw" sink writes no GSMTAP datagrams at all; KPI lines
		// still reach stdout from the session loop, and the raw byte
		// stream is captured separately via --raw-capture.
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
