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

// Package pipeline runs groups of tasks. Each group runs its parallel tasks on
// a worker pool sized to the host, then its serial tasks one at a time. All
// output is written to the run log by a single Sink.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forensicanalysis/wiskess/artefact"
	"github.com/forensicanalysis/wiskess/logger"
	"github.com/forensicanalysis/wiskess/operator"
	"github.com/forensicanalysis/wiskess/placeholder"
	"github.com/forensicanalysis/wiskess/runlog"
)

// Overwrite decides what happens to outputs of earlier runs.
type Overwrite int

const (
	// OverwriteNever skips tasks whose output exists.
	OverwriteNever Overwrite = iota
	// OverwriteAsk asks the operator for every existing output.
	OverwriteAsk
	// OverwriteAlways reruns every task.
	OverwriteAlways
)

// ParseOverwrite parses never, ask or always.
func ParseOverwrite(s string) (Overwrite, error) {
	switch strings.ToLower(s) {
	case "", "never":
		return OverwriteNever, nil
	case "ask":
		return OverwriteAsk, nil
	case "always":
		return OverwriteAlways, nil
	}
	return OverwriteNever, errors.Errorf("unknown overwrite policy %q", s)
}

// FailureKind classifies why a task did not succeed.
type FailureKind string

const (
	NotInstalled  FailureKind = "binary-not-installed"
	ProcessFailed FailureKind = "process-failed"
	TimedOut      FailureKind = "timed-out"
	Cancelled     FailureKind = "cancelled"
)

// Binder returns the path a task should read for a resolved input.
type Binder interface {
	Bind(input string) string
}

// Outcome describes an executed task.
type Outcome struct {
	Group       string
	Task        string
	Input       string
	CommandLine string
	Started     time.Time
	Ended       time.Time
	ReturnCode  int
	Errors      []string
}

// Recorder stores outcomes. It is only called from the Sink goroutine.
type Recorder interface {
	Record(o Outcome) error
}

// Options configure an Executor.
type Options struct {
	OutPath   string
	StartDate string
	EndDate   string
	IOCFile   string
	ToolPath  string

	Overwrite Overwrite
	// Timeout applies to tasks without their own timeout.
	Timeout time.Duration
	// Workers sizes the parallel pool, defaults to GOMAXPROCS.
	Workers int

	Operator operator.Operator
	Binder   Binder
	Recorder Recorder

	// Output larger than SpoolSize is buffered in SpoolDir.
	SpoolSize int64
	SpoolDir  string
}

// Executor runs task groups.
type Executor struct {
	fs     afero.Fs
	runner Runner
	log    *runlog.Log
	opts   Options
	probes *probeMap
}

// NewExecutor creates an Executor writing task output to log.
func NewExecutor(fs afero.Fs, runner Runner, log *runlog.Log, opts Options) *Executor {
	if opts.Operator == nil {
		opts.Operator = operator.Silent{}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.SpoolSize <= 0 {
		opts.SpoolSize = 1 << 20
	}
	if opts.SpoolDir == "" {
		opts.SpoolDir = os.TempDir()
	}
	return &Executor{
		fs:     fs,
		runner: runner,
		log:    log,
		opts:   opts,
		probes: newProbeMap(runner),
	}
}

// Run executes a group and returns when all its tasks finished and their
// output is written. Task failures are logged, only log errors are returned.
func (e *Executor) Run(ctx context.Context, label string, tasks []Task, artefacts artefact.Map) error {
	sink, err := e.log.Open(4*len(tasks) + 1)
	if err != nil {
		return err
	}
	sink.OnHookError(func(err error) {
		logger.L().Warn("could not record process", zap.Error(err))
	})

	var parallel, serial []Task
	for _, task := range tasks {
		if task.Parallel {
			parallel = append(parallel, task)
		} else {
			serial = append(serial, task)
		}
	}

	logger.L().Info(fmt.Sprintf("Running %d %s", len(tasks), label))
	e.pool(ctx, label, parallel, e.opts.Workers, artefacts, sink)
	e.pool(ctx, label, serial, 1, artefacts, sink)

	return errors.Wrap(sink.Close(), "could not write run log")
}

func (e *Executor) pool(ctx context.Context, label string, tasks []Task, limit int, artefacts artefact.Map, sink *runlog.Sink) {
	g := &errgroup.Group{}
	g.SetLimit(limit)
	for _, task := range tasks {
		g.Go(func() error {
			e.run(ctx, label, task, artefacts, sink)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Executor) run(ctx context.Context, label string, task Task, artefacts artefact.Map, sink *runlog.Sink) {
	if !artefacts.Available(task.Input) {
		logger.L().Debug("input not available", zap.String("task", task.Name), zap.String("input", task.Input))
		return
	}
	if err := ctx.Err(); err != nil {
		sink.Printf("[!] Not running %s: %s", task.Name, err)
		return
	}

	folder := task.OutputFolder(e.opts.OutPath)
	b := e.bindings(task, artefacts, folder)
	binary := b.Expand(task.Binary)
	args := b.Expand(task.Args)
	line := binary + " " + args

	for _, token := range placeholder.Unresolved(line) {
		sink.Printf("[!] Unknown placeholder %s in the command of %s", token, task.Name)
	}

	var errs []string
	if err := e.fs.MkdirAll(folder, 0o755); err != nil {
		sink.Printf("[!] Unable to create folder %s: %s", folder, err)
	}
	if task.ChkExists && !e.probes.check(ctx, binary) {
		errs = append(errs, fmt.Sprintf("%s: The path `%s` is not a correct executable binary file.", NotInstalled, binary))
	}

	outfile := task.OutputFile(e.opts.OutPath)
	if !e.eligible(outfile, task.Name) {
		sink.Printf("[ ] The file already exists: %s\nIf wanting to run the module again, %s please delete the output file or run wiskess without --silent mode", outfile, task.Name)
		done(task.Name, errs)
		return
	}

	timeout := task.Timeout
	if timeout == 0 {
		timeout = e.opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	if task.Script {
		script := b.Expand(task.ScriptPosh)
		sink.Printf("[ ] Powershell function running: -c with payload: %s", script)
		code, err := e.capture(sink, func(stdout, stderr io.Writer) (int, error) {
			return e.runner.RunScript(ctx, script, stdout, stderr)
		})
		if kind, msg := failure(code, err); kind != "" {
			errs = append(errs, fmt.Sprintf("%s: script %s", kind, msg))
		}
	}

	sink.Printf("[ ] Running: %s", line)
	logger.L().Info("Running: " + task.Name)
	code, err := e.capture(sink, func(stdout, stderr io.Writer) (int, error) {
		return e.runner.Run(ctx, line, stdout, stderr)
	})
	if kind, msg := failure(code, err); kind != "" {
		errs = append(errs, fmt.Sprintf("%s: %s", kind, msg))
	}
	sink.Printf("[+] Done %s with command: %s %s", task.Name, binary, args)
	if len(errs) > 0 {
		sink.Printf("[!] %s: %s", task.Name, strings.Join(errs, "; "))
	}

	if e.opts.Recorder != nil {
		outcome := Outcome{
			Group:       label,
			Task:        task.Name,
			Input:       b.Input,
			CommandLine: line,
			Started:     started,
			Ended:       time.Now(),
			ReturnCode:  code,
			Errors:      errs,
		}
		sink.Send(runlog.Entry{Hook: func() error { return e.opts.Recorder.Record(outcome) }})
	}
	done(task.Name, errs)
}

func (e *Executor) bindings(task Task, artefacts artefact.Map, folder string) placeholder.Bindings {
	b := placeholder.Bindings{
		Input:     e.input(artefacts[task.Input]),
		Outfile:   task.Outfile,
		Outfolder: folder,
		StartDate: e.opts.StartDate,
		EndDate:   e.opts.EndDate,
		IOCFile:   e.opts.IOCFile,
		OutPath:   e.opts.OutPath,
		ToolPath:  e.opts.ToolPath,
	}
	if task.InputOther != "" {
		b.InputOther = e.input(artefacts[task.InputOther])
	}
	return b
}

func (e *Executor) input(path string) string {
	if path == "" || path == artefact.None {
		return path
	}
	if e.opts.Binder != nil {
		path = e.opts.Binder.Bind(path)
	}
	return placeholder.Canonical(path)
}

// eligible reports whether the task may write outfile, truncating it if an
// existing output is overwritten.
func (e *Executor) eligible(outfile, name string) bool {
	if outfile == "" {
		return true
	}
	info, err := e.fs.Stat(outfile)
	if err != nil || info.IsDir() {
		return true
	}

	switch e.opts.Overwrite {
	case OverwriteAlways:
	case OverwriteAsk:
		prompt := fmt.Sprintf("The output %s of %s exists. Do you want to overwrite it?", outfile, name)
		if !e.opts.Operator.Confirm(prompt, false) {
			return false
		}
	default:
		return false
	}

	f, err := e.fs.OpenFile(outfile, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		logger.L().Warn("could not truncate output", zap.String("file", outfile), zap.Error(err))
		return true
	}
	f.Close() // nolint:errcheck
	return true
}

// capture runs fn with spooled stdout and stderr and queues both for the log.
func (e *Executor) capture(sink *runlog.Sink, fn func(stdout, stderr io.Writer) (int, error)) (int, error) {
	stdout := newSpool(e.fs, e.opts.SpoolDir, e.opts.SpoolSize)
	stderr := newSpool(e.fs, e.opts.SpoolDir, e.opts.SpoolSize)
	code, err := fn(stdout, stderr)
	logger.L().Debug("captured output", zap.Int64("stdout", stdout.Len()), zap.Int64("stderr", stderr.Len()))
	sink.Send(runlog.Entry{Body: stdout})
	sink.Send(runlog.Entry{Body: stderr})
	return code, err
}

func failure(code int, err error) (FailureKind, string) {
	switch {
	case err == nil && code == 0:
		return "", ""
	case errors.Is(err, context.DeadlineExceeded):
		return TimedOut, "killed after timeout"
	case errors.Is(err, context.Canceled):
		return Cancelled, "killed on interrupt"
	case err != nil:
		return ProcessFailed, err.Error()
	}
	return ProcessFailed, fmt.Sprintf("exit code %d", code)
}

func done(name string, errs []string) {
	if len(errs) == 0 {
		logger.L().Info("Done: " + name)
		return
	}
	logger.L().Warn(fmt.Sprintf("Done: %s. Error: %s", name, strings.Join(errs, "; ")))
}
