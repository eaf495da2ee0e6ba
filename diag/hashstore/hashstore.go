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

// Package hashstore loads the firmware-supplied hash-to-format-string
// tables used to translate a diag extended message's 32-bit format-string
// hash back into a printf-style template. Two on-disk representations are
// supported: a legacy plain-text table, and the newer QDB4 binary
// container used by current Qualcomm firmware images.
package hashstore

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Row is a single resolved hash-table entry: the source file it came
// from and the printf-style format string to expand.
type Row struct {
	File   string
	Format string
}

// MtraceRow additionally carries the QSR4/mtrace argument-type encoding
// string (for example "int|hex|int"). It is informational only: the
// dispatcher renders arguments from the format string's own conversions
// and does not read ArgTypes.
type MtraceRow struct {
	Row
	ArgTypes string
}

// Store indexes hash-table rows by their 32-bit hash, kept as three
// independent tables mirroring QDB4's tagged sections; legacy plain-text
// tables are loaded into Content.
type Store struct {
	Content      map[uint32]Row
	Mtrace       map[uint32]MtraceRow
	QtraceStr    map[uint32]Row
	logger       logrus.FieldLogger
}

// New returns an empty Store. A zero-value Store is also usable; New
// only wires a default logger.
func New() *Store {
	return &Store{
		Content:   make(map[uint32]Row),
		Mtrace:    make(map[uint32]MtraceRow),
		QtraceStr: make(map[uint32]Row),
		logger:    logrus.StandardLogger(),
	}
}

// Lookup resolves a format-string hash, checking Content, then Mtrace,
// then QtraceStr, in that order.
func (s *Store) Lookup(hash uint32) (Row, bool) {
	if r, ok := s.Content[hash]; ok {
		return r, true
	}
	if r, ok := s.Mtrace[hash]; ok {
		return r.Row, true
	}
	if r, ok := s.QtraceStr[hash]; ok {
		return r, true
	}
	return Row{}, false
}

// LookupMtrace resolves a hash specifically against the mtrace table,
// returning its argument-type string alongside the format.
func (s *Store) LookupMtrace(hash uint32) (MtraceRow, bool) {
	r, ok := s.Mtrace[hash]
	return r, ok
}

// LoadLegacy parses the plain-text "hash:file:format" table, one entry
// per line, hash given as hex digits without a leading "0x". Lines
// starting with '#' and blank lines are skipped.
func (s *Store) LoadLegacy(r io.Reader) error {
	if s.Content == nil {
		s.Content = make(map[uint32]Row)
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, ":", 3)
		if len(parts) != 3 {
			s.logf("hashstore: skipping malformed legacy line %d", line)
			continue
		}
		hash, err := strconv.ParseUint(parts[0], 16, 32)
		if err != nil {
			s.logf("hashstore: skipping legacy line %d: bad hash %q", line, parts[0])
			continue
		}
		s.Content[uint32(hash)] = Row{File: parts[1], Format: unescapeLegacy(parts[2])}
	}
	return scanner.Err()
}

// unescapeLegacy reverses the literal "\n"/"\t" escapes used by the
// legacy table to keep multi-line format strings on one line.
func unescapeLegacy(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return s
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
		return
	}
	logrus.Debugf(format, args...)
}

// qdb4Magic is the fixed 4-byte signature at the start of a QDB4 file.
var qdb4Magic = []byte{0x7f, 'Q', 'D', 'B'}

// qdb4HeaderLen is the magic plus the 16-byte container UUID.
const qdb4HeaderLen = 4 + 16

const (
	tagContent      = "<Content>"
	tagContentEnd   = "</Content>"
	tagMtrace       = "<MtraceContent>"
	tagMtraceEnd    = "</MtraceContent>"
	tagQtraceStr    = "<QtraceStrContent>"
	tagQtraceStrEnd = "</QtraceStrContent>"
)

// ErrBadMagic is returned when the input does not begin with the QDB4
// signature.
var ErrBadMagic = fmt.Errorf("hashstore: not a QDB4 container")

// LoadQDB4 parses the binary QDB4 hash-table container: a fixed
// magic+UUID header followed by a zlib-deflated body containing three
// tagged sections (Content, MtraceContent, QtraceStrContent), each a
// sequence of newline-terminated "hash:file:format[:argtypes]" rows.
func (s *Store) LoadQDB4(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("hashstore: reading QDB4 container: %w", err)
	}
	if len(raw) < qdb4HeaderLen || !bytes.Equal(raw[:4], qdb4Magic) {
		return ErrBadMagic
	}
	uuid := raw[4:qdb4HeaderLen]
	s.logf("hashstore: QDB4 container uuid=%x", uuid)

	zr, err := zlib.NewReader(bytes.NewReader(raw[qdb4HeaderLen:]))
	if err != nil {
		return fmt.Errorf("hashstore: opening QDB4 zlib body: %w", err)
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("hashstore: inflating QDB4 body: %w", err)
	}
	return s.parseQDB4Body(body)
}

func (s *Store) parseQDB4Body(body []byte) error {
	if s.Content == nil {
		s.Content = make(map[uint32]Row)
	}
	if s.Mtrace == nil {
		s.Mtrace = make(map[uint32]MtraceRow)
	}
	if s.QtraceStr == nil {
		s.QtraceStr = make(map[uint32]Row)
	}

	section := ""
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch line {
		case tagContent:
			section = tagContent
			continue
		case tagMtrace:
			section = tagMtrace
			continue
		case tagQtraceStr:
			section = tagQtraceStr
			continue
		case tagContentEnd, tagMtraceEnd, tagQtraceStrEnd:
			section = ""
			continue
		}
		if line == "" || section == "" {
			continue
		}
		s.parseQDB4Row(section, line)
	}
	return scanner.Err()
}

func (s *Store) parseQDB4Row(section, line string) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 3 {
		s.logf("hashstore: skipping malformed QDB4 row in %s: %q", section, line)
		return
	}
	hash, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		s.logf("hashstore: skipping QDB4 row with bad hash %q", parts[0])
		return
	}
	row := Row{File: parts[1], Format: unescapeLegacy(parts[2])}
	switch section {
	case tagContent:
		s.Content[uint32(hash)] = row
	case tagMtrace:
		mr := MtraceRow{Row: row}
		if len(parts) == 4 {
			mr.ArgTypes = parts[3]
		}
		s.Mtrace[uint32(hash)] = mr
	case tagQtraceStr:
		s.QtraceStr[uint32(hash)] = row
	}
}
