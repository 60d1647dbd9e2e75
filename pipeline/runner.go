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
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
)

// Runner starts external processes. Implementations kill the process when
// ctx is done and return ctx.Err().
type Runner interface {
	// Run executes a command line with the host shell and returns the exit
	// code. Non-zero exit codes are not errors.
	Run(ctx context.Context, line string, stdout, stderr io.Writer) (int, error)
	// RunScript executes a PowerShell command.
	RunScript(ctx context.Context, script string, stdout, stderr io.Writer) (int, error)
	// Probe reports whether binary can be started with args and exits with 0.
	Probe(ctx context.Context, binary string, args ...string) bool
}

// OSRunner runs processes on the host.
type OSRunner struct {
	once sync.Once
	pwsh string
}

// NewOSRunner creates a Runner for the host.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (r *OSRunner) Run(ctx context.Context, line string, stdout, stderr io.Writer) (int, error) {
	return wait(ctx, shellCommand(line), stdout, stderr)
}

func (r *OSRunner) RunScript(ctx context.Context, script string, stdout, stderr io.Writer) (int, error) {
	return wait(ctx, exec.Command(r.powershell(ctx), "-c", script), stdout, stderr) // #nosec
}

func (r *OSRunner) Probe(ctx context.Context, binary string, args ...string) bool {
	code, err := wait(ctx, exec.Command(binary, args...), io.Discard, io.Discard) // #nosec
	return err == nil && code == 0
}

// powershell returns pwsh, or Windows PowerShell if pwsh is not installed.
func (r *OSRunner) powershell(ctx context.Context) string {
	r.once.Do(func() {
		r.pwsh = "pwsh"
		if !r.Probe(ctx, "pwsh", "-h") {
			r.pwsh = "powershell"
		}
	})
	return r.pwsh
}

func wait(ctx context.Context, cmd *exec.Cmd, stdout, stderr io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return -1, errors.Wrap(err, "could not start process")
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.Wrap(err, "process failed")
	}
}
