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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diagcat/diagcat/diag/config"
)

func defaultTestConfig() *config.Config {
	return config.DefaultConfig()
}

func TestPrepareConfigDefaultsWithNoFlagsChanged(t *testing.T) {
	cfg, err := prepareConfig()
	require.NoError(t, err)
	require.Equal(t, "file", cfg.Transport)
	require.Equal(t, "udp", cfg.Sink)
}

func TestPrepareConfigAppliesFlagOverrides(t *testing.T) {
	require.NoError(t, RootCmd.Flags().Set("transport", "serial"))
	require.NoError(t, RootCmd.Flags().Set("serial-path", "/dev/ttyUSB1"))
	defer func() {
		require.NoError(t, RootCmd.Flags().Set("transport", "file"))
		require.NoError(t, RootCmd.Flags().Set("serial-path", ""))
	}()

	cfg, err := prepareConfig()
	require.NoError(t, err)
	require.Equal(t, "serial", cfg.Transport)
	require.Equal(t, "/dev/ttyUSB1", cfg.SerialPath)
}

func TestOpenSinksRejectsUnknownSink(t *testing.T) {
	cfg := &augmentedConfig{Config: defaultTestConfig()}
	cfg.Sink = "carrier-pigeon"
	_, _, err := openSinks(cfg)
	require.Error(t, err)
}

func TestOpenSinksSkipsWhenNoGSMTAP(t *testing.T) {
	cfg := &augmentedConfig{Config: defaultTestConfig(), NoGSMTAP: true}
	sinks, closeFn, err := openSinks(cfg)
	require.NoError(t, err)
	require.Nil(t, sinks)
	closeFn()
}

func TestFormatLogID(t *testing.T) {
	require.Equal(t, "4096", formatLogID(4096, "dec"))
	require.Equal(t, "0x00001000", formatLogID(4096, "hex"))
	require.Equal(t, "4096 (0x00001000)", formatLogID(4096, "both"))
	require.Equal(t, "4096", formatLogID(4096, "unknown-format"))
}

func TestPrintIDRangesDoesNotPanicOnEmptyRanges(t *testing.T) {
	require.NotPanics(t, func() { printIDRanges(nil, "dec") })
}
