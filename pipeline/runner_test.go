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
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/wiskess/artefact"
	"github.com/forensicanalysis/wiskess/runlog"
)

func skipWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
}

func TestOSRunner_Run(t *testing.T) {
	skipWindows(t)

	tests := []struct {
		name       string
		line       string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"success", "echo out; echo err >&2", 0, "out\n", "err\n"},
		{"exit code", "echo partial; exit 3", 3, "partial\n", ""},
		{"not found", "/nonexistent/tool -h", 127, "", "/nonexistent/tool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
			code, err := NewOSRunner().Run(context.Background(), tt.line, stdout, stderr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStdout, stdout.String())
			assert.Contains(t, stderr.String(), tt.wantStderr)
		})
	}
}

func TestOSRunner_KillsProcessGroup(t *testing.T) {
	skipWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	code, err := NewOSRunner().Run(ctx, "sleep 10 | cat; sleep 10", &bytes.Buffer{}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestOSRunner_Probe(t *testing.T) {
	skipWindows(t)

	r := NewOSRunner()
	assert.True(t, r.Probe(context.Background(), "sh", "-c", "exit 0"))
	assert.False(t, r.Probe(context.Background(), "sh", "-c", "exit 1"))
	assert.False(t, r.Probe(context.Background(), "/nonexistent/tool", "-h"))

	pm := newProbeMap(r)
	assert.True(t, pm.check(context.Background(), "sh"))
	assert.False(t, pm.check(context.Background(), "/nonexistent/tool"))
}

func TestExecutor_LogIntegrity(t *testing.T) {
	skipWindows(t)

	const tasks, lines = 8, 400
	dir := t.TempDir()
	fs := afero.NewOsFs()
	log := runlog.New(fs, dir+"/wiskess.log")
	e := NewExecutor(fs, NewOSRunner(), log, Options{OutPath: dir, SpoolSize: 1024, SpoolDir: dir})

	var group []Task
	for i := 0; i < tasks; i++ {
		group = append(group, Task{
			Name:     fmt.Sprintf("t%d", i),
			Binary:   "i=1; while [ $i -le",
			Args:     fmt.Sprintf("%d ]; do echo task-%d-line-$i; i=$((i+1)); done", lines, i),
			Input:    "none",
			Parallel: true,
		})
	}
	require.NoError(t, e.Run(context.Background(), "wiskers", group, artefact.Map{"none": "none"}))

	b, err := afero.ReadFile(fs, log.Path())
	require.NoError(t, err)

	output := regexp.MustCompile(`^\S+ task-(\d+)-line-(\d+)$`)
	counts := map[string]int{}
	for _, line := range strings.Split(strings.TrimSuffix(string(b), "\n"), "\n") {
		if strings.Contains(line, "task-") && !strings.Contains(line, "Running") && !strings.Contains(line, "Done") {
			m := output.FindStringSubmatch(line)
			require.NotNil(t, m, "corrupted line %q", line)
			counts[m[1]]++
		}
	}
	assert.Len(t, counts, tasks)
	for task, n := range counts {
		assert.Equal(t, lines, n, "task %s", task)
	}

	leftovers, err := afero.Glob(fs, dir+"/wiskess-output*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSpool(t *testing.T) {
	tests := []struct {
		name       string
		maxSize    int64
		rolledOver bool
	}{
		{"memory", 1024, false},
		{"file", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := newSpool(fs, "/tmp", tt.maxSize)
			for _, chunk := range []string{"first\n", "second\n", "third"} {
				_, err := s.Write([]byte(chunk))
				require.NoError(t, err)
			}
			assert.Equal(t, tt.rolledOver, s.rolledOver)
			assert.Equal(t, int64(18), s.Len())

			got := &bytes.Buffer{}
			_, err := got.ReadFrom(s)
			require.NoError(t, err)
			assert.Equal(t, "first\nsecond\nthird", got.String())

			require.NoError(t, s.Close())
			if tt.rolledOver {
				ok, _ := afero.Exists(fs, s.tempFile.Name())
				assert.False(t, ok)
			}
		})
	}
}
