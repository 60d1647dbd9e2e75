// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package runlog writes the wiskess run log: an append-only text file in
// which every line starts with a timestamp.
//
// Outside of a pipeline group the log is written with Printf, which opens
// the file for each message. While a group runs, all messages are sent to a
// Sink, whose goroutine is the only writer of the file.
package runlog

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// TimeFormat prefixes every line of the log.
const TimeFormat = time.RFC3339

// Log is the run log file.
type Log struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

// New returns the log at path. The file is created on first write.
func New(fs afero.Fs, path string) *Log {
	return &Log{fs: fs, path: path, now: time.Now}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Exists reports whether the log file already exists.
func (l *Log) Exists() bool {
	ok, err := afero.Exists(l.fs, l.path)
	return err == nil && ok
}

// Truncate empties the log file.
func (l *Log) Truncate() error {
	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return errors.Wrap(err, "could not truncate log")
	}
	return f.Close()
}

// Printf appends a message to the log.
func (l *Log) Printf(format string, args ...interface{}) error {
	f, err := l.open()
	if err != nil {
		return err
	}
	w := newLineWriter(f, l.now)
	if err := w.text(sprintf(format, args...)); err != nil {
		f.Close() // nolint:errcheck
		return err
	}
	return f.Close()
}

func (l *Log) open() (afero.File, error) {
	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open log %s", l.path)
	}
	return f, nil
}

// lineWriter prefixes every line with a timestamp and terminates the last
// line with a newline.
type lineWriter struct {
	w   *bufio.Writer
	now func() time.Time
}

func newLineWriter(w io.Writer, now func() time.Time) *lineWriter {
	return &lineWriter{w: bufio.NewWriter(w), now: now}
}

func (lw *lineWriter) text(s string) error {
	if s == "" {
		return nil
	}
	return lw.copy(strings.NewReader(s))
}

func (lw *lineWriter) copy(r io.Reader) error {
	ts := lw.now().Format(TimeFormat)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if _, werr := lw.w.WriteString(ts + " " + line + "\n"); werr != nil {
				return errors.Wrap(werr, "could not write log")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "could not read log message")
		}
	}
	return errors.Wrap(lw.w.Flush(), "could not write log")
}
