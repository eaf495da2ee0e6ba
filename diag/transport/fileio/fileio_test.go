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

package fileio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diagcat/diagcat/diag/session"
)

func TestDetectMode(t *testing.T) {
	require.Equal(t, session.ModeDLF, DetectMode("capture.DLF"))
	require.Equal(t, session.ModeHDF, DetectMode("capture.hdf"))
	require.Equal(t, session.ModeQMDL, DetectMode("capture.qmdl"))
	require.Equal(t, session.ModeQMDL, DetectMode("capture.unknown"))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/path/to/capture.qmdl")
	require.Error(t, err)
}
