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

package validate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/wiskess/artefact"
	"github.com/forensicanalysis/wiskess/pipeline"
)

type printer struct{ bytes.Buffer }

func (p *printer) Printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(&p.Buffer, format, args...)
	return err
}

func TestValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/case/out/mft.csv":         "header\nrow\n",
		"/case/out/header.csv":      "header\n",
		"/case/out/partial.csv":     "header\nrow",
		"/case/out/empty.csv":       "",
		"/case/out/noeol.csv":       "header",
		"/case/Timeline/hayabusa/x": "y",
		"/case/Timeline/chainsaw/a": "y",
		"/case/Timeline/chainsaw/b": "y",
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0644))
	}
	require.NoError(t, fs.MkdirAll("/case/Empty", 0755))

	artefacts := artefact.Map{"mft": "/eve/$MFT", "registry": artefact.None, "none": "none", "blank": ""}

	tests := []struct {
		name string
		task pipeline.Task
		want *Row
	}{
		{"two lines", pipeline.Task{Name: "a", Input: "mft", Outfolder: "out", Outfile: "mft.csv"}, nil},
		{"partial last line", pipeline.Task{Name: "b", Input: "mft", Outfolder: "out", Outfile: "partial.csv"}, nil},
		{"header only", pipeline.Task{Name: "c", Input: "mft", Outfolder: "out", Outfile: "header.csv"},
			&Row{"c", "/case/out/header.csv", "/eve/$MFT", 1}},
		{"no newline", pipeline.Task{Name: "d", Input: "mft", Outfolder: "out", Outfile: "noeol.csv"},
			&Row{"d", "/case/out/noeol.csv", "/eve/$MFT", 1}},
		{"empty", pipeline.Task{Name: "e", Input: "mft", Outfolder: "out", Outfile: "empty.csv"},
			&Row{"e", "/case/out/empty.csv", "/eve/$MFT", 0}},
		{"missing", pipeline.Task{Name: "f", Input: "mft", Outfolder: "out", Outfile: "missing.csv"},
			&Row{"f", "/case/out/missing.csv", "/eve/$MFT", 0}},
		{"unavailable input", pipeline.Task{Name: "g", Input: "registry", Outfolder: "out", Outfile: "missing.csv"}, nil},
		{"empty input", pipeline.Task{Name: "h", Input: "blank", Outfolder: "out", Outfile: "missing.csv"}, nil},
		{"valid path", pipeline.Task{Name: "i", Input: "none", ValidPath: "{root}/Windows/System32/winevt/Logs", Outfolder: "out", Outfile: "evtx.csv"},
			&Row{"i", "/case/out/evtx.csv", "/eve/Windows/System32/winevt/Logs", 0}},
		{"folder", pipeline.Task{Name: "j", Input: "mft", Outfolder: "Timeline/hayabusa"}, nil},
		{"folder with entries", pipeline.Task{Name: "l", Input: "mft", Outfolder: "Timeline/chainsaw"}, nil},
		{"missing folder", pipeline.Task{Name: "m", Input: "mft", Outfolder: "Missing"},
			&Row{"m", "/case/Missing", "/eve/$MFT", 0}},
		{"empty folder", pipeline.Task{Name: "k", Input: "mft", Outfolder: "Empty"},
			&Row{"k", "/case/Empty", "/eve/$MFT", 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(fs, []pipeline.Task{tt.task}, artefacts, "/eve", "/case")
			if tt.want == nil {
				assert.True(t, got.OK(), "%v", got.Rows)
				return
			}
			want := *tt.want
			want.Output = filepath.FromSlash(want.Output)
			assert.Equal(t, []Row{want}, got.Rows)
		})
	}
}

func TestValidate_Scenario(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/case/out/mft.csv", []byte("EntryNumber,FileName\n0,$MFT\n"), 0644))

	tasks := []pipeline.Task{
		{Name: "mft_parse", Input: "mft", Outfolder: "out", Outfile: "mft.csv"},
		{Name: "reg_parse", Input: "registry", Outfolder: "reg", Outfile: "reg.csv"},
	}
	got := Validate(fs, tasks, artefact.Map{"mft": "/eve/$MFT", "registry": artefact.None}, "/eve", "/case")
	assert.True(t, got.OK())
}

func TestSummary_Render(t *testing.T) {
	color.NoColor = true
	s := Summary{Rows: []Row{
		{Task: "mft_parse", Output: "/case/out/mft.csv", Input: "/eve/$MFT", Lines: 1},
		{Task: "hayabusa", Output: "/case/Timeline/hayabusa.csv", Input: "/eve/Logs", Lines: 0},
	}}

	out := &bytes.Buffer{}
	s.Render(out)
	lines := strings.Split(out.String(), "\n")
	assert.Equal(t, "[!] 2 tasks have no output", lines[0])
	assert.Regexp(t, `^TASK\s+OUTPUT\s+INPUT\s+LINES$`, lines[1])
	assert.Regexp(t, `^mft_parse\s+/case/out/mft.csv\s+/eve/\$MFT\s+1$`, lines[2])
	assert.Regexp(t, `^hayabusa\s+/case/Timeline/hayabusa.csv\s+/eve/Logs\s+0$`, lines[3])
	assert.Contains(t, out.String(), Guidance)

	log := &printer{}
	require.NoError(t, s.Log(log))
	assert.Contains(t, log.String(), "mft_parse")
	assert.Contains(t, log.String(), Guidance)

	out.Reset()
	Summary{}.Render(out)
	assert.Equal(t, "[+] All outputs are present\n", out.String())
}
