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

package qxdm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEpoch(t *testing.T) {
	got := Parse(0)
	require.True(t, got.Equal(epoch))
}

func TestParseOneSecond(t *testing.T) {
	got := Parse(ticksPerSecond)
	require.Equal(t, epoch.Add(time.Second), got)
}

func TestParseFraction(t *testing.T) {
	got := Parse(ticksPerSecond / 2)
	diff := got.Sub(epoch.Add(500 * time.Millisecond))
	require.Less(t, diff.Abs(), time.Millisecond)
}
