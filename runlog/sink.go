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

package runlog

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Entry is a message for the Sink.
type Entry struct {
	// Text is written first, one log line per line of text.
	Text string
	// Body is copied after Text and closed afterwards.
	Body io.ReadCloser
	// Hook runs on the sink goroutine once Text and Body are written.
	Hook func() error
}

// Sink is the single writer of the log while a pipeline group runs. Entries
// from any number of goroutines are queued on a channel and written in
// arrival order, so output of concurrent tasks never interleaves within a
// line.
type Sink struct {
	entries chan Entry
	done    chan struct{}
	once    sync.Once
	err     error
	hookErr func(error)
}

// Open starts a Sink that owns the log file until Close is called.
func (l *Log) Open(buffer int) (*Sink, error) {
	f, err := l.open()
	if err != nil {
		return nil, err
	}
	s := &Sink{
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}
	go s.consume(f, newLineWriter(f, l.now))
	return s, nil
}

// OnHookError sets a callback for failing hooks. Hook errors do not stop the
// sink. Must be called before the first Send.
func (s *Sink) OnHookError(fn func(error)) {
	s.hookErr = fn
}

func (s *Sink) consume(f io.Closer, w *lineWriter) {
	defer close(s.done)
	for e := range s.entries {
		if s.err != nil {
			if e.Body != nil {
				e.Body.Close() // nolint:errcheck
			}
			continue
		}
		s.err = s.write(w, e)
	}
	if err := f.Close(); err != nil && s.err == nil {
		s.err = errors.Wrap(err, "could not close log")
	}
}

func (s *Sink) write(w *lineWriter, e Entry) error {
	if err := w.text(e.Text); err != nil {
		if e.Body != nil {
			e.Body.Close() // nolint:errcheck
		}
		return err
	}
	if e.Body != nil {
		err := w.copy(e.Body)
		e.Body.Close() // nolint:errcheck
		if err != nil {
			return err
		}
	}
	if e.Hook != nil {
		if err := e.Hook(); err != nil && s.hookErr != nil {
			s.hookErr(err)
		}
	}
	return nil
}

// Send queues an entry. Send must not be called after Close.
func (s *Sink) Send(e Entry) {
	s.entries <- e
}

// Printf queues a text message.
func (s *Sink) Printf(format string, args ...interface{}) {
	s.Send(Entry{Text: sprintf(format, args...)})
}

// Close waits until every queued entry is written, closes the file and
// returns the first write error.
func (s *Sink) Close() error {
	s.once.Do(func() { close(s.entries) })
	<-s.done
	return s.err
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
