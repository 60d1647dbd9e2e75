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

package artefact

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/forensicanalysis/wiskess/extract"
)

// Binder checks that the input of a task can be read. Inputs that are locked
// on a live system are copied out with the Extractor, once per path, no matter
// how many tasks use them.
type Binder struct {
	fs        afero.Fs
	extractor extract.Extractor
	source    string
	dest      string
	log       Printer

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]string
}

// NewBinder creates a Binder for inputs below the source volume. Copies are
// written to dest. A nil extractor disables copying.
func NewBinder(fs afero.Fs, extractor extract.Extractor, source, dest string, log Printer) *Binder {
	return &Binder{
		fs:        fs,
		extractor: extractor,
		source:    source,
		dest:      dest,
		log:       log,
		cache:     map[string]string{},
	}
}

// Bind returns the path a task should read: the input itself if it is
// readable or does not exist as a plain path, or the extracted copy.
func (b *Binder) Bind(input string) string {
	if input == "" || input == None || b.extractor == nil {
		return input
	}

	b.mu.Lock()
	bound, ok := b.cache[input]
	b.mu.Unlock()
	if ok {
		return bound
	}

	v, _, _ := b.group.Do(input, func() (interface{}, error) {
		b.mu.Lock()
		bound, ok := b.cache[input]
		b.mu.Unlock()
		if ok {
			return bound, nil
		}
		bound = b.bind(input)
		b.mu.Lock()
		b.cache[input] = bound
		b.mu.Unlock()
		return bound, nil
	})
	return v.(string)
}

func (b *Binder) bind(input string) string {
	err := b.access(input)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return input
	}

	rel := b.relative(input)
	b.printf("[ ] Unable to read %s (%s), copying it to %s", input, err, b.dest)
	copied, err := b.extractor.Extract(b.source, rel, b.dest)
	if err != nil {
		b.printf("[!] Unable to copy file: %s. Error: %s", input, err)
		return input
	}
	b.printf("[+] Copy done for file: %s", copied)
	return copied
}

// access opens the input and reads a byte of files.
func (b *Binder) access(input string) error {
	f, err := b.fs.Open(input)
	if err != nil {
		return err
	}
	defer f.Close() // nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		_, err = f.Readdirnames(1)
	} else {
		_, err = f.Read(make([]byte, 1))
	}
	if err == io.EOF {
		return nil
	}
	return err
}

// relative returns the input relative to the source volume.
func (b *Binder) relative(input string) string {
	if rel, err := filepath.Rel(b.source, input); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return strings.TrimLeft(input[len(filepath.VolumeName(input)):], `\/`)
}

func (b *Binder) printf(format string, args ...interface{}) {
	logf(b.log, format, args...)
}
