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

package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/forensicanalysis/wiskess/pipeline"
)

// Process implements a STIX 2.1 Process Object for a task run by wiskess.
type Process struct {
	ID          string
	Type        string
	Artifact    string
	Name        string
	Group       string
	CreatedTime string
	EndTime     string
	CommandLine string
	ReturnCode  int
	Errors      []string
}

// NewProcess creates a new STIX 2.1 Process Object.
func NewProcess() *Process {
	return &Process{ID: "process--" + uuid.New().String(), Type: "process"}
}

// AddError adds an error string to a Process and returns this Process.
func (i *Process) AddError(err string) *Process {
	i.Errors = append(i.Errors, err)
	return i
}

// Record stores the outcome of a task as a process element.
func (store *Store) Record(o pipeline.Outcome) error {
	p := NewProcess()
	p.Artifact = o.Input
	p.Name = o.Task
	p.Group = o.Group
	p.CreatedTime = o.Started.UTC().Format(time.RFC3339Nano)
	p.EndTime = o.Ended.UTC().Format(time.RFC3339Nano)
	p.CommandLine = o.CommandLine
	p.ReturnCode = o.ReturnCode
	for _, err := range o.Errors {
		p.AddError(err)
	}
	_, err := store.InsertStruct(p)
	return err
}
