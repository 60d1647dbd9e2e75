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

// Package operator abstracts the human running wiskess. The resolver asks it
// for artefact paths and the pipeline asks it whether existing outputs may be
// overwritten. Silent runs use a non-interactive implementation.
package operator

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Operator answers questions during a run.
type Operator interface {
	// Ask returns the typed answer and false if no answer was given.
	Ask(prompt string) (string, bool)
	// Confirm returns the answer to a yes/no question, or def when the
	// question could not be answered.
	Confirm(prompt string, def bool) bool
	// Interactive reports whether a human is answering.
	Interactive() bool
}

// Silent never asks anything. Ask returns no answer and Confirm returns the
// default.
type Silent struct{}

func (Silent) Ask(string) (string, bool)      { return "", false }
func (Silent) Confirm(_ string, def bool) bool { return def }
func (Silent) Interactive() bool               { return false }

// Console asks on a text terminal. Questions from concurrent workers are
// serialized so prompts and answers never interleave.
type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a Console reading answers from in and writing prompts to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

func (c *Console) Ask(prompt string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "? %s ", prompt)
	answer, err := c.in.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if err != nil && answer == "" {
		return "", false
	}
	if answer == "" {
		return "", false
	}
	return answer, true
}

func (c *Console) Confirm(prompt string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, ok := c.Ask(fmt.Sprintf("%s (%s)", prompt, hint))
	if !ok {
		return def
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}

func (c *Console) Interactive() bool { return true }
