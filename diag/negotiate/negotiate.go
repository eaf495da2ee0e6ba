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

// Package negotiate drives the diag mask-negotiation handshake: disable
// whatever logging a previous session left enabled, query the
// baseband's identity and supported log-ID ranges, then enable every
// log item the baseband advertises plus event reporting. Extended-message
// masks are not queried or set.
// Every request is a synchronous round trip with its own retry/backoff,
// since a busy diag port can drop a request under load.
package negotiate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diagcat/diagcat/diag/diagcmd"
	"github.com/diagcat/diagcat/diag/frame"
)

// Device is the minimal transport a Negotiator drives requests over.
type Device interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// Config controls which subsystems are enabled and at what retry policy.
type Config struct {
	EquipIDs    []uint8
	MaxRetries  int
	RetryDelay  time.Duration
}

// DefaultConfig returns sane retry defaults; callers still need to set
// EquipIDs.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, RetryDelay: 200 * time.Millisecond}
}

// Negotiator runs the handshake over a Device.
type Negotiator struct {
	dev Device
	cfg Config
	log logrus.FieldLogger
}

// New returns a Negotiator for dev using cfg.
func New(dev Device, cfg Config) *Negotiator {
	return &Negotiator{dev: dev, cfg: cfg, log: logrus.StandardLogger()}
}

// roundTrip wraps req in an HDLC frame, writes it, and reads back one
// frame's worth of response, retrying up to cfg.MaxRetries times with
// cfg.RetryDelay backoff between attempts.
func (n *Negotiator) roundTrip(ctx context.Context, req []byte) ([]byte, error) {
	wrapped := frame.Wrap(req)
	var lastErr error
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(n.cfg.RetryDelay):
			}
		}
		if _, err := n.dev.Write(wrapped); err != nil {
			lastErr = fmt.Errorf("negotiate: write: %w", err)
			continue
		}
		buf := make([]byte, 4096)
		nread, err := n.dev.Read(buf)
		if err != nil {
			lastErr = fmt.Errorf("negotiate: read: %w", err)
			continue
		}
		unescaped, err := frame.Unwrap(buf[:nread])
		if err != nil {
			lastErr = err
			continue
		}
		payload, ok, _, _ := frame.VerifyAndStrip(unescaped)
		if !ok {
			lastErr = fmt.Errorf("negotiate: CRC mismatch on response")
			continue
		}
		return payload, nil
	}
	return nil, fmt.Errorf("negotiate: giving up after %d attempts: %w", n.cfg.MaxRetries+1, lastErr)
}

// Stop disables logging and event reporting for every configured
// equipment ID, the first step of both startup (undoing whatever a
// prior session left enabled) and clean shutdown.
func (n *Negotiator) Stop(ctx context.Context) error {
	for _, eq := range n.cfg.EquipIDs {
		if _, err := n.roundTrip(ctx, diagcmd.BuildDisableLogMask(eq)); err != nil {
			return fmt.Errorf("negotiate: stop: disabling equip %d: %w", eq, err)
		}
	}
	if _, err := n.roundTrip(ctx, diagcmd.BuildEventMask(false)); err != nil {
		return fmt.Errorf("negotiate: stop: disabling events: %w", err)
	}
	return nil
}

// Identify queries the baseband's version and build ID, mostly for
// operator-facing logging.
func (n *Negotiator) Identify(ctx context.Context) (verno, buildID []byte, err error) {
	verno, err = n.roundTrip(ctx, diagcmd.BuildVerNo())
	if err != nil {
		return nil, nil, fmt.Errorf("negotiate: identify: verno: %w", err)
	}
	buildID, err = n.roundTrip(ctx, diagcmd.BuildExtBuildID())
	if err != nil {
		return nil, nil, fmt.Errorf("negotiate: identify: build id: %w", err)
	}
	return verno, buildID, nil
}

// RetrieveIDRanges asks the baseband which log-item IDs exist per
// equipment ID, the information needed to build a correctly sized log
// mask in Prepare.
func (n *Negotiator) RetrieveIDRanges(ctx context.Context) (diagcmd.LogIDRange, error) {
	resp, err := n.roundTrip(ctx, diagcmd.BuildRetrieveIDRanges())
	if err != nil {
		return nil, fmt.Errorf("negotiate: retrieve id ranges: %w", err)
	}
	return parseIDRanges(resp), nil
}

func parseIDRanges(resp []byte) diagcmd.LogIDRange {
	ranges := make(diagcmd.LogIDRange)
	// Response body: repeated (equip_id uint8, last_item uint32) pairs.
	for i := 0; i+5 <= len(resp); i += 5 {
		eq := resp[i]
		last := uint32(resp[i+1]) | uint32(resp[i+2])<<8 | uint32(resp[i+3])<<16 | uint32(resp[i+4])<<24
		ranges[eq] = last
	}
	return ranges
}

// Prepare enables logging for every equipment ID named by ranges, using
// an all-ones mask up to each equipment's last log item (enable
// everything the baseband advertises; the post-processor, not the
// mask, is what filters what actually gets forwarded).
func (n *Negotiator) Prepare(ctx context.Context, ranges diagcmd.LogIDRange) error {
	for eq, last := range ranges {
		mask := allOnes(last)
		if _, err := n.roundTrip(ctx, diagcmd.BuildLogMask(eq, last, mask)); err != nil {
			return fmt.Errorf("negotiate: prepare: equip %d: %w", eq, err)
		}
	}
	if _, err := n.roundTrip(ctx, diagcmd.BuildEventMask(true)); err != nil {
		return fmt.Errorf("negotiate: prepare: enabling events: %w", err)
	}
	return nil
}

func allOnes(lastItem uint32) []byte {
	n := (lastItem + 7) / 8
	mask := make([]byte, n)
	for i := range mask {
		mask[i] = 0xff
	}
	return mask
}
