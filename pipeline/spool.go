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

package pipeline

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// spool captures process output in memory and rolls over to a temporary
// file once it grows beyond maxSize. Writing must be finished before the
// first Read.
type spool struct {
	fs         afero.Fs
	dir        string
	size       int64
	maxSize    int64
	buffer     *bytes.Buffer
	tempFile   afero.File
	rolledOver bool
	rewound    bool
}

func newSpool(fs afero.Fs, dir string, maxSize int64) *spool {
	return &spool{fs: fs, dir: dir, maxSize: maxSize, buffer: &bytes.Buffer{}}
}

func (s *spool) Write(p []byte) (n int, err error) {
	s.size += int64(len(p))

	if !s.rolledOver && s.size > s.maxSize {
		if err := s.rollover(); err != nil {
			return 0, err
		}
	}
	if s.rolledOver {
		return s.tempFile.Write(p)
	}
	return s.buffer.Write(p)
}

func (s *spool) rollover() (err error) {
	s.tempFile, err = afero.TempFile(s.fs, s.dir, "wiskess-output")
	if err != nil {
		return errors.Wrap(err, "could not create tmp file")
	}
	s.rolledOver = true
	if _, err = io.Copy(s.tempFile, s.buffer); err != nil {
		return errors.Wrap(err, "could not fill tmp file")
	}
	s.buffer.Reset()
	return nil
}

func (s *spool) Read(p []byte) (n int, err error) {
	if !s.rolledOver {
		return s.buffer.Read(p)
	}
	if !s.rewound {
		if _, err := s.tempFile.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		s.rewound = true
	}
	return s.tempFile.Read(p)
}

// Close releases the buffer and removes the temporary file.
func (s *spool) Close() error {
	if !s.rolledOver {
		s.buffer.Reset()
		return nil
	}
	if err := s.tempFile.Close(); err != nil {
		return err
	}
	err := s.fs.Remove(s.tempFile.Name())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Len returns the number of bytes written.
func (s *spool) Len() int64 {
	return s.size
}
