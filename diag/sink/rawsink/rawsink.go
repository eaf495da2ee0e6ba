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

// Package rawsink saves every still-framed packet a session sees,
// verbatim, for later offline replay through the same session loop.
package rawsink

import (
	"fmt"
	"os"
)

// Writer appends raw frames to a file, opened once and kept open for
// the life of the session.
type Writer struct {
	f *os.File
}

// Create opens (or truncates) path for raw frame capture.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rawsink: creating %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Write implements io.Writer, appending p verbatim.
func (w *Writer) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}
