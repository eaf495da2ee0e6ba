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

// Package metrics exposes capture-session health as Prometheus
// counters and gauges on a private registry, served over HTTP.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge a capture session updates.
type Metrics struct {
	registry *prometheus.Registry

	FramesTotal       prometheus.Counter
	CRCErrorsTotal    prometheus.Counter
	DecodeErrorsTotal prometheus.Counter
	KPIEmittedTotal   prometheus.Counter
	RRCConnected      *prometheus.GaugeVec
}

// New registers every metric on a fresh, private registry so this
// process can run multiple independent sessions (or be embedded in a
// larger binary) without colliding with prometheus's global default
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diagcat_frames_total",
			Help: "Total HDLC frames read from the transport.",
		}),
		CRCErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diagcat_crc_errors_total",
			Help: "Total frames dropped for a CRC mismatch.",
		}),
		DecodeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diagcat_decode_errors_total",
			Help: "Total frames that failed to decode past framing.",
		}),
		KPIEmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diagcat_kpi_lines_emitted_total",
			Help: "Total KPI lines written to a sink after post-processing.",
		}),
		RRCConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "diagcat_rrc_connected",
			Help: "1 if the radio's last known RRC state was connected, 0 otherwise.",
		}, []string{"radio"}),
	}
	reg.MustRegister(m.FramesTotal, m.CRCErrorsTotal, m.DecodeErrorsTotal, m.KPIEmittedTotal, m.RRCConnected)
	return m
}

// Serve starts an HTTP server exposing /metrics on addr, returning once
// ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics: server error: %w", err)
		}
		return nil
	}
}
