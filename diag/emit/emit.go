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

// Package emit is the post-processing stage between decoded KPI lines
// and the text/JSON streams an operator actually watches. Raw decoder
// output is noisy: the same serving-cell line repeats every few
// milliseconds, MAC throughput lines arrive faster than anyone can
// read them, and several small per-item KPI lines read better merged
// into one. Pipeline applies the throttling, gating, de-duplication
// and grouping rules that turn decoder output into a readable stream,
// plus a 1-second throughput accumulator and JSON/UDP KPI
// classification for machine consumers.
package emit

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/diagcat/diagcat/diag/radiostate"
)

const (
	catServingCell = "serving_cell"
	catDLMCS       = "dl_mcs"
	catCombinedUL  = "combined_ul"
	catThroughput  = "throughput"
)

const (
	dlMCSThrottle        = 2 * time.Second
	servingCellThrottle  = 1 * time.Second
	servingCellStaleness = 2 * time.Second
	combinedULThrottle   = 1 * time.Second
	throughputWindow     = 1 * time.Second
)

var (
	reServingCell = regexp.MustCompile(`^LTE (RRC State|Primary Cell):`)
	reDLMCS       = regexp.MustCompile(`^\d+MHz BW MCS=`)
	reULMCS       = regexp.MustCompile(`^LTE KPI UL: MCS=(\d+)`)
	reTXPower     = regexp.MustCompile(`^LTE KPI TX: est\. TX power=([\-\d.]+) dBm`)
	reTA          = regexp.MustCompile(`^LTE KPI: TA=(\d+)`)
	reRach        = regexp.MustCompile(`^LTE KPI RACH:`)
)

// throughputAccumulator tracks bytes seen and the last time a window
// was flushed, per radio.
type throughputAccumulator struct {
	dlBytes, ulBytes uint64
	windowStart      time.Time
}

// Pipeline holds the accumulators a Process call needs across calls:
// one throughput window and one combined-UL buffer per radio.
type Pipeline struct {
	throughput map[uint8]*throughputAccumulator
	combinedUL map[uint8]*combinedULState
}

type combinedULState struct {
	mcs, ta string
	txPower string
	start   time.Time
	have    bool
}

// New returns an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{
		throughput: make(map[uint8]*throughputAccumulator),
		combinedUL: make(map[uint8]*combinedULState),
	}
}

// Process applies every post-processing rule to one batch of
// same-timestamp decoder lines and returns the lines that should
// actually be written to the KPI stream.
func (p *Pipeline) Process(tracker *radiostate.Tracker, radio uint8, now time.Time, lines []string, dlBytes, ulBytes uint32) []string {
	state := tracker.Get(radio)
	var out []string

	if dlBytes > 0 || ulBytes > 0 {
		out = append(out, p.accumulateThroughput(state, radio, now, dlBytes, ulBytes)...)
	}

	for _, line := range lines {
		if line == "LTE RRC State: CONNECTED" {
			state.RRCConnected = true
		} else if strings.HasPrefix(line, "LTE RRC State:") {
			state.RRCConnected = false
		}

		switch {
		case reRach.MatchString(line):
			// RACH results are rare and always interesting: never
			// suppressed by de-dup, throttle, or RRC gating.
			out = append(out, line)

		case reServingCell.MatchString(line):
			if l, ok := p.throttleServingCell(state, now, line); ok {
				out = append(out, l)
			}

		case reDLMCS.MatchString(line):
			if !state.RRCConnected {
				continue
			}
			if l, ok := p.throttleDLMCS(state, now, line); ok {
				out = append(out, l)
			}

		case reULMCS.MatchString(line) || reTXPower.MatchString(line) || reTA.MatchString(line):
			if combined, ok := p.accumulateCombinedUL(radio, now, line); ok {
				if stale, ok := p.staleServingCellLine(state, now); ok {
					out = append(out, stale)
				}
				out = append(out, combined)
			}

		default:
			if l, ok := p.dedup(state, "misc", line); ok {
				out = append(out, l)
			}
		}
	}
	return out
}

// dedup suppresses a line identical to the last one emitted under
// category, the default behavior for any KPI line without a more
// specific rule.
func (p *Pipeline) dedup(state *radiostate.State, category, line string) (string, bool) {
	if last, ok := state.LastLine(category); ok && last == line {
		return "", false
	}
	state.SetLastLine(category, line)
	return line, true
}

// throttleServingCell emits the serving-cell summary at most once per
// servingCellThrottle.
func (p *Pipeline) throttleServingCell(state *radiostate.State, now time.Time, line string) (string, bool) {
	last := state.LastEmit(catServingCell)
	if !last.IsZero() && now.Sub(last) < servingCellThrottle {
		return "", false
	}
	state.SetLastEmit(catServingCell, now)
	state.SetLastLine(catServingCell, line)
	return line, true
}

// staleServingCellLine re-emits the last known serving-cell line ahead
// of a combined-UL KPI flush if it is older than servingCellStaleness,
// so a reader never has to scroll far back to find which cell a KPI
// sample belongs to.
func (p *Pipeline) staleServingCellLine(state *radiostate.State, now time.Time) (string, bool) {
	last := state.LastEmit(catServingCell)
	if last.IsZero() || now.Sub(last) < servingCellStaleness {
		return "", false
	}
	line, ok := state.LastLine(catServingCell)
	if !ok {
		return "", false
	}
	state.SetLastEmit(catServingCell, now)
	return line, true
}

func (p *Pipeline) throttleDLMCS(state *radiostate.State, now time.Time, line string) (string, bool) {
	last := state.LastEmit(catDLMCS)
	if !last.IsZero() && now.Sub(last) < dlMCSThrottle {
		return "", false
	}
	state.SetLastEmit(catDLMCS, now)
	return line, true
}

// accumulateCombinedUL buffers UL MCS, TX power, and TA lines and
// flushes them as one combined line no more than once per
// combinedULThrottle, since they are logically one "uplink KPI sample"
// split across three separate log items.
func (p *Pipeline) accumulateCombinedUL(radio uint8, now time.Time, line string) (string, bool) {
	s, ok := p.combinedUL[radio]
	if !ok {
		s = &combinedULState{}
		p.combinedUL[radio] = s
	}
	if !s.have {
		s.start = now
		s.have = true
	}

	switch {
	case reULMCS.MatchString(line):
		s.mcs = reULMCS.FindStringSubmatch(line)[1]
	case reTXPower.MatchString(line):
		s.txPower = reTXPower.FindStringSubmatch(line)[1]
	case reTA.MatchString(line):
		s.ta = reTA.FindStringSubmatch(line)[1]
	}

	if now.Sub(s.start) < combinedULThrottle {
		return "", false
	}
	combined := "LTE KPI UL Combined:"
	if s.mcs != "" {
		combined += " MCS=" + s.mcs
	}
	if s.txPower != "" {
		combined += " TXPower=" + s.txPower
	}
	if s.ta != "" {
		combined += " TA=" + s.ta
	}
	*s = combinedULState{}
	return combined, true
}

// accumulateThroughput adds dlBytes/ulBytes to the running 1-second
// window and, once the window closes, emits a throughput line — but
// only while the radio is RRC connected, since idle-mode transport
// block counts are not meaningful throughput.
func (p *Pipeline) accumulateThroughput(state *radiostate.State, radio uint8, now time.Time, dlBytes, ulBytes uint32) []string {
	acc, ok := p.throughput[radio]
	if !ok {
		acc = &throughputAccumulator{windowStart: now}
		p.throughput[radio] = acc
	}
	acc.dlBytes += uint64(dlBytes)
	acc.ulBytes += uint64(ulBytes)

	if now.Sub(acc.windowStart) < throughputWindow {
		return nil
	}
	defer func() {
		acc.dlBytes, acc.ulBytes = 0, 0
		acc.windowStart = now
	}()
	if !state.RRCConnected {
		return nil
	}
	dlMbps := float64(acc.dlBytes*8) / 1e6
	ulMbps := float64(acc.ulBytes*8) / 1e6
	return []string{formatThroughput(dlMbps, ulMbps)}
}

func formatThroughput(dlMbps, ulMbps float64) string {
	return "LTE Throughput: DL=" + strconv.FormatFloat(dlMbps, 'f', 2, 64) +
		"Mbps UL=" + strconv.FormatFloat(ulMbps, 'f', 2, 64) + "Mbps"
}
