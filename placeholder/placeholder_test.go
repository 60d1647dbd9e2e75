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

package placeholder

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	b := Bindings{
		Input:      "/eve/$MFT",
		InputOther: "/eve/Windows/System32/config",
		Outfile:    "mft.csv",
		Outfolder:  "/out/FileSystem",
		StartDate:  "2023-01-01",
		EndDate:    "2023-12-31",
		IOCFile:    "/cfg/iocs.txt",
		OutPath:    "/out",
		ToolPath:   "/tools",
	}
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"input and outputs", "-f {input} --csv {outfolder} --csvf {outfile}", "-f /eve/$MFT --csv /out/FileSystem --csvf mft.csv"},
		{"dates", "--from {start_date} --to {end_date}", "--from 2023-01-01 --to 2023-12-31"},
		{"tools and iocs", "{tool_path}/loki.py --ioc {ioc_file} -o {out_path}", "/tools/loki.py --ioc /cfg/iocs.txt -o /out"},
		{"input other", "{input_other}", "/eve/Windows/System32/config"},
		{"repeated", "{input} {input}", "/eve/$MFT /eve/$MFT"},
		{"unknown token", "--rules {rules_path} {input}", "--rules {rules_path} /eve/$MFT"},
		{"root is not a task token", "{root}/x", "{root}/x"},
		{"no tokens", "--help", "--help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.template, b))
			assert.Equal(t, tt.want, b.Expand(tt.template))
		})
	}
}

func TestExpand_ValuesAreNotReexpanded(t *testing.T) {
	b := Bindings{Input: "/eve/{outfile}", Outfile: "x.csv"}
	assert.Equal(t, "/eve/{outfile} x.csv", Expand("{input} {outfile}", b))
}

func TestRoot(t *testing.T) {
	assert.Equal(t, "/mnt/c/Windows/System32/config/SYSTEM", Root("{root}/Windows/System32/config/SYSTEM", "/mnt/c"))
	assert.Equal(t, "", Root("", "/mnt/c"))
}

func TestCanonical(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))
	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)

	assert.Equal(t, want, Canonical(target))
	assert.Equal(t, "", Canonical(""))

	missing := filepath.Join(dir, "*.evtx")
	assert.Equal(t, missing, Canonical(missing))

	if runtime.GOOS != "windows" {
		link := filepath.Join(dir, "link.txt")
		require.NoError(t, os.Symlink(target, link))
		assert.Equal(t, want, Canonical(link))
	}
}

func TestUnresolved(t *testing.T) {
	assert.Equal(t, []string{"{rules_path}"}, Unresolved("--rules {rules_path} /eve/$MFT"))
	assert.Empty(t, Unresolved("-f /eve/$MFT"))
}
