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

package pcapsink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

func TestWriteLineAndFrameProduceReadablePcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	s, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteLine(0, "LTE KPI RACH: result=success"))
	require.NoError(t, s.WriteFrame(1, []byte{0x02, 0x10, 0x00, 0x01}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	count := 0
	for {
		_, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		count++
	}
	require.Equal(t, 2, count)
}
