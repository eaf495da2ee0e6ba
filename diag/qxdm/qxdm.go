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

// Package qxdm converts the 64-bit "QXDM tick" timestamps used throughout
// the diag protocol into wall-clock time.
package qxdm

import "time"

// epoch is 1980-01-06 00:00:00 UTC, the QXDM/GPS timestamp origin.
var epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// ticksPerSecond is the QXDM tick frequency: 1/52428800 s per tick.
const ticksPerSecond = 52428800

// Parse converts a raw 64-bit QXDM tick count into a wall-clock time.
func Parse(ticks uint64) time.Time {
	whole := ticks / ticksPerSecond
	frac := ticks % ticksPerSecond
	d := time.Duration(whole)*time.Second + time.Duration(frac)*time.Second/ticksPerSecond
	return epoch.Add(d)
}
