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
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/forensicanalysis/wiskess/artefact"
)

// ErrMissingArtefact is returned by Check for tasks that use an artefact
// which is not declared.
var ErrMissingArtefact = errors.New("artefact is not declared")

// Task is an external tool run on an artefact. Wiskers, enrichers and
// reporters are all tasks.
type Task struct {
	Name       string `yaml:"name"`
	Binary     string `yaml:"binary"`
	Args       string `yaml:"args"`
	Input      string `yaml:"input"`
	InputOther string `yaml:"input_other"`
	Outfolder  string `yaml:"outfolder"`
	Outfile    string `yaml:"outfile"`
	// Parallel tasks share the worker pool, the others run one at a time.
	Parallel bool `yaml:"para"`
	// ChkExists probes the binary before it runs.
	ChkExists bool `yaml:"chk_exists"`
	// Script enables ScriptPosh, a PowerShell snippet run before the binary.
	Script     bool   `yaml:"script"`
	ScriptPosh string `yaml:"script_posh"`
	// ValidPath replaces the input when validating the output.
	ValidPath string `yaml:"valid_path"`
	// Timeout kills the task after the duration, if set.
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML decodes a task with para and chk_exists defaulting to true.
func (t *Task) UnmarshalYAML(value *yaml.Node) error {
	type plain Task
	p := plain{Parallel: true, ChkExists: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Task(p)
	return nil
}

// OutputFolder is the folder the task writes to.
func (t Task) OutputFolder(outPath string) string {
	return filepath.Join(outPath, t.Outfolder)
}

// OutputFile is the file whose existence marks the task as done. It is empty
// for tasks without an outfile.
func (t Task) OutputFile(outPath string) string {
	if t.Outfile == "" {
		return ""
	}
	return filepath.Join(t.OutputFolder(outPath), t.Outfile)
}

// Group is a list of tasks that finish before the next group starts.
type Group struct {
	Label string
	Tasks []Task
}

// Check verifies that every artefact used by the groups is in the map.
func Check(groups []Group, artefacts artefact.Map) error {
	for _, group := range groups {
		for _, task := range group.Tasks {
			if _, ok := artefacts[task.Input]; !ok {
				return errors.Wrapf(ErrMissingArtefact, "input %q of %s %s", task.Input, group.Label, task.Name)
			}
			if task.InputOther == "" {
				continue
			}
			if _, ok := artefacts[task.InputOther]; !ok {
				return errors.Wrapf(ErrMissingArtefact, "input_other %q of %s %s", task.InputOther, group.Label, task.Name)
			}
		}
	}
	return nil
}
