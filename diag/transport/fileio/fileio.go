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

// Package fileio opens a saved diag dump file for replay through the
// session loop. QMDL, DLF and HDF are this repository's own framing
// conventions, not a generic container format any ecosystem library
// reads, so this package is intentionally just os/bufio: there is no
// third-party parser to reach for here.
package fileio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diagcat/diagcat/diag/session"
)

// Open opens path for reading.
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileio: opening %s: %w", path, err)
	}
	return f, nil
}

// DetectMode guesses a dump file's session.Mode from its extension,
// falling back to ModeQMDL (the most common capture format) when the
// extension is unrecognized.
func DetectMode(path string) session.Mode {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dlf":
		return session.ModeDLF
	case ".hdf":
		return session.ModeHDF
	default:
		return session.ModeQMDL
	}
}
