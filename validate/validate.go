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

// Package validate reports tasks that had an input but produced no usable
// output.
package validate

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/wiskess/artefact"
	"github.com/forensicanalysis/wiskess/pipeline"
	"github.com/forensicanalysis/wiskess/placeholder"
)

// Row is a task without usable output.
type Row struct {
	Task   string
	Output string
	Input  string
	Lines  int
}

// Summary lists the rows of a validation.
type Summary struct {
	Rows []Row
}

// OK reports whether every output is present.
func (s Summary) OK() bool {
	return len(s.Rows) == 0
}

// Validate checks the outputs of all tasks whose input was available. Output
// files that are missing or have at most one line, usually just a header, are
// reported. Tasks without an output file are reported when their folder is
// missing or empty.
func Validate(fs afero.Fs, tasks []pipeline.Task, artefacts artefact.Map, root, outPath string) Summary {
	var s Summary
	for _, task := range tasks {
		input := artefacts[task.Input]
		if task.ValidPath != "" {
			input = placeholder.Root(task.ValidPath, root)
		}
		if input == "" || input == artefact.None {
			continue
		}

		output, wanted := task.OutputFile(outPath), 2
		if output == "" {
			output, wanted = task.OutputFolder(outPath), 1
		}
		lines, err := countLines(fs, output)
		if err != nil || lines < wanted {
			s.Rows = append(s.Rows, Row{Task: task.Name, Output: output, Input: input, Lines: lines})
		}
	}
	return s
}

// countLines counts lines of a file up to two, or entries of a folder.
func countLines(fs afero.Fs, name string) (int, error) {
	info, err := fs.Stat(name)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		names, err := afero.ReadDir(fs, name)
		return len(names), err
	}

	f, err := fs.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close() // nolint:errcheck

	r := bufio.NewReader(f)
	lines := 0
	for lines < 2 {
		line, err := r.ReadString('\n')
		if line != "" {
			lines++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
	}
	return lines, nil
}

// Guidance follows the table of failed tasks.
const Guidance = `[ ] The tasks above had an input file but no output, or an output without data rows.
[ ] Check the run log for the errors of these tasks and the config for their arguments.
[ ] Delete the output and run wiskess again to rerun a task.`

// Render writes the summary as a table to the console.
func (s Summary) Render(w io.Writer) {
	if s.OK() {
		color.New(color.FgGreen).Fprintln(w, "[+] All outputs are present") // nolint:errcheck
		return
	}
	color.New(color.FgRed, color.Bold).Fprintf(w, "[!] %d tasks have no output\n", len(s.Rows)) // nolint:errcheck
	s.table(w)
	fmt.Fprintln(w, Guidance)
}

// Log appends the summary to the run log.
func (s Summary) Log(log artefact.Printer) error {
	if s.OK() {
		return log.Printf("[+] All outputs are present")
	}
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "[!] %d tasks have no output\n", len(s.Rows))
	s.table(buf)
	buf.WriteString(Guidance)
	return log.Printf("%s", buf.String())
}

func (s Summary) table(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tOUTPUT\tINPUT\tLINES")
	for _, row := range s.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", row.Task, row.Output, row.Input, row.Lines)
	}
	tw.Flush() // nolint:errcheck
}
