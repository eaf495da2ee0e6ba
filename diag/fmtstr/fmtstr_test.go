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

package fmtstr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandBasicConversions(t *testing.T) {
	got := Expand("state=%d cell=0x%x name=%s", []uint64{5, 0xabc, 42})
	require.Equal(t, "state=5 cell=0xabc name=42", got)
}

func TestExpandSignedReinterpretation(t *testing.T) {
	// 0xFFFFFFFF packed as an unsigned 32-bit word must render as -1
	// when the template asks for %d.
	got := Expand("delta=%d", []uint64{0xFFFFFFFF})
	require.Equal(t, "delta=-1", got)
}

func TestExpandWidthAndZeroPad(t *testing.T) {
	got := Expand("[%04d]", []uint64{7})
	require.Equal(t, "[0007]", got)
}

func TestExpandPercentLiteral(t *testing.T) {
	got := Expand("100%% done", nil)
	require.Equal(t, "100% done", got)
}

func TestExpandMissingArgumentDegradesGracefully(t *testing.T) {
	got := Expand("a=%d b=%d", []uint64{1})
	require.Equal(t, "a=%d b=%d", got)
}

func TestExpandStarWidth(t *testing.T) {
	got := Expand("[%*d]", []uint64{5, 9})
	require.Equal(t, "[    9]", got)
}

func TestExpandHexUpper(t *testing.T) {
	got := Expand("%X", []uint64{0xdead})
	require.Equal(t, "DEAD", got)
}
