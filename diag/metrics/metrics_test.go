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

package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.FramesTotal.Inc()
	m.CRCErrorsTotal.Inc()
	m.DecodeErrorsTotal.Inc()
	m.KPIEmittedTotal.Add(3)
	m.RRCConnected.WithLabelValues("0").Set(1)

	require.Equal(t, float64(1), testutil.ToFloat64(m.FramesTotal))
	require.Equal(t, float64(3), testutil.ToFloat64(m.KPIEmittedTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RRCConnected.WithLabelValues("0")))
}

func TestServeExposesMetricsEndpoint(t *testing.T) {
	m := New()
	m.FramesTotal.Inc()

	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, addr) }()

	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		resp, err = http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cancel()
	require.NoError(t, <-done)
}
