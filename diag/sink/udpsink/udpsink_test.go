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

package udpsink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func listenLoopback(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func TestWriteLineDeliversOsmocoreDatagram(t *testing.T) {
	controlLn, controlPort := listenLoopback(t)
	_ = controlLn
	userLn, userPort := listenLoopback(t)

	s := New("127.0.0.1", controlPort, userPort, 1)
	defer s.Close()

	require.NoError(t, s.WriteLine(0, "LTE KPI RACH: result=success"))

	buf := make([]byte, 4096)
	userLn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := userLn.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "LTE KPI RACH")
}

func TestWriteFrameDeliversToControlSocket(t *testing.T) {
	controlLn, controlPort := listenLoopback(t)
	userLn, userPort := listenLoopback(t)
	_ = userLn

	s := New("127.0.0.1", controlPort, userPort, 1)
	defer s.Close()

	require.NoError(t, s.WriteFrame(0, []byte{0x02, 0x04}))

	buf := make([]byte, 16)
	controlLn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := controlLn.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x04}, buf[:n])
}
