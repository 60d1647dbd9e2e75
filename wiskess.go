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

package wiskess

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/forensicanalysis/wiskess/artefact"
	"github.com/forensicanalysis/wiskess/config"
	"github.com/forensicanalysis/wiskess/extract"
	"github.com/forensicanalysis/wiskess/logger"
	"github.com/forensicanalysis/wiskess/operator"
	"github.com/forensicanalysis/wiskess/pipeline"
	"github.com/forensicanalysis/wiskess/record"
	"github.com/forensicanalysis/wiskess/runlog"
	"github.com/forensicanalysis/wiskess/validate"
)

// LogTimeFormat names log files and marks the start and end of a run.
const LogTimeFormat = "2006-01-02T150405"

// Arguments configure a run.
type Arguments struct {
	DataSource string
	OutPath    string
	StartDate  string
	EndDate    string
	IOCFile    string
	ToolPath   string
	Silent     bool
	Overwrite  pipeline.Overwrite
	Timeout    time.Duration
}

var defaultArguments = Arguments{
	ToolPath: "./tools",
	IOCFile:  "./config/iocs.txt",
}

// Wiskess runs task files.
type Wiskess struct {
	Args      Arguments
	Fs        afero.Fs
	Operator  operator.Operator
	Runner    pipeline.Runner
	// Extractor copies inputs that cannot be read in place. The command line
	// tool has no raw volume reader and leaves it nil.
	Extractor extract.Extractor
	// Console receives the validation table.
	Console io.Writer
	// StoreURL overrides the location of the process record store.
	StoreURL string

	now func() time.Time
}

// New creates a Wiskess for the host. Silent runs never ask the operator.
func New(args Arguments, op operator.Operator) *Wiskess {
	if args.Silent || op == nil {
		op = operator.Silent{}
	}
	return &Wiskess{
		Args:     args,
		Fs:       afero.NewOsFs(),
		Operator: op,
		Runner:   pipeline.NewOSRunner(),
		Console:  os.Stdout,
		now:      time.Now,
	}
}

func (w *Wiskess) init() error {
	if err := mergo.Merge(&w.Args, defaultArguments); err != nil {
		return errors.Wrap(err, "could not set default arguments")
	}
	if w.Fs == nil {
		w.Fs = afero.NewOsFs()
	}
	if w.Operator == nil || w.Args.Silent {
		w.Operator = operator.Silent{}
	}
	if w.Runner == nil {
		w.Runner = pipeline.NewOSRunner()
	}
	if w.Console == nil {
		w.Console = io.Discard
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.StoreURL == "" {
		w.StoreURL = filepath.Join(w.Args.OutPath, record.FileName)
	}
	return nil
}

// Run executes all groups of the config and validates the wisker outputs.
// Task failures are logged. Errors are returned for invalid configs, invalid
// dates and a run log that cannot be written.
func (w *Wiskess) Run(ctx context.Context, cfg *config.Config) (validate.Summary, error) {
	if err := w.init(); err != nil {
		return validate.Summary{}, err
	}

	if err := w.Fs.MkdirAll(w.Args.OutPath, 0o755); err != nil {
		return validate.Summary{}, errors.Wrap(err, "could not create output folder")
	}
	start := w.now().UTC()
	log, err := w.startLog(start)
	if err != nil {
		return validate.Summary{}, err
	}

	if w.Args.StartDate, err = config.CheckDate(w.Args.StartDate, "start", w.Operator); err != nil {
		return validate.Summary{}, err
	}
	if w.Args.EndDate, err = config.CheckDate(w.Args.EndDate, "end", w.Operator); err != nil {
		return validate.Summary{}, err
	}

	artefacts := artefact.NewResolver(w.Fs, w.Operator, log).Resolve(cfg.Artefacts, w.Args.DataSource, w.Args.Silent)
	for _, name := range artefacts.Names() {
		logger.L().Debug("artefact", zap.String("name", name), zap.String("path", artefacts[name]))
	}
	groups := cfg.Groups()
	if err := pipeline.Check(groups, artefacts); err != nil {
		return validate.Summary{}, err
	}

	store, err := record.OpenOrCreate(w.StoreURL)
	if err != nil {
		logger.L().Warn("could not open process records", zap.Error(err))
	} else {
		defer store.Close() // nolint:errcheck
	}

	executor := pipeline.NewExecutor(w.Fs, w.Runner, log, w.options(log, store))
	for _, group := range groups {
		if err := executor.Run(ctx, group.Label, group.Tasks, artefacts); err != nil {
			return validate.Summary{}, err
		}
		if ctx.Err() != nil {
			break
		}
	}

	summary := w.validate(cfg, artefacts, log)
	if err := w.endLog(log, start); err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

// Validate only checks the wisker outputs of an earlier run.
func (w *Wiskess) Validate(cfg *config.Config) (validate.Summary, error) {
	if err := w.init(); err != nil {
		return validate.Summary{}, err
	}
	w.Args.Silent = true
	w.Operator = operator.Silent{}

	log := runlog.New(w.Fs, filepath.Join(w.Args.OutPath, "wiskess_validate_"+w.now().UTC().Format(LogTimeFormat)+".log"))
	artefacts := artefact.NewResolver(w.Fs, w.Operator, log).Resolve(cfg.Artefacts, w.Args.DataSource, true)
	if err := pipeline.Check(cfg.Groups(), artefacts); err != nil {
		return validate.Summary{}, err
	}
	return w.validate(cfg, artefacts, log), nil
}

func (w *Wiskess) startLog(start time.Time) (*runlog.Log, error) {
	log := runlog.New(w.Fs, filepath.Join(w.Args.OutPath, "wiskess_"+start.Format(LogTimeFormat)+".log"))
	if log.Exists() && (w.Args.Silent || w.Operator.Confirm("The log "+log.Path()+" exists. Do you want to overwrite it?", false)) {
		if err := log.Truncate(); err != nil {
			return nil, err
		}
	}
	msg := "Starting wiskess at: " + start.Format(LogTimeFormat)
	logger.L().Info(msg, zap.String("log", log.Path()))
	if err := log.Printf("%s", msg); err != nil {
		return nil, err
	}
	return log, nil
}

func (w *Wiskess) endLog(log *runlog.Log, start time.Time) error {
	end := w.now().UTC()
	msg := fmt.Sprintf("Wiskess finished at: %s, which took: %s [H:M:S]", end.Format(LogTimeFormat), hms(end.Sub(start)))
	logger.L().Info(msg)
	return log.Printf("%s", msg)
}

func (w *Wiskess) options(log *runlog.Log, store *record.Store) pipeline.Options {
	opts := pipeline.Options{
		OutPath:   w.Args.OutPath,
		StartDate: w.Args.StartDate,
		EndDate:   w.Args.EndDate,
		IOCFile:   w.Args.IOCFile,
		ToolPath:  w.Args.ToolPath,
		Overwrite: w.Args.Overwrite,
		Timeout:   w.Args.Timeout,
		Operator:  w.Operator,
	}
	if store != nil {
		opts.Recorder = store
	}
	if w.Extractor != nil {
		opts.Binder = artefact.NewBinder(w.Fs, w.Extractor, w.Args.DataSource, filepath.Join(w.Args.OutPath, "Artefacts"), log)
	}
	return opts
}

func (w *Wiskess) validate(cfg *config.Config, artefacts artefact.Map, log *runlog.Log) validate.Summary {
	summary := validate.Validate(w.Fs, cfg.Wiskers, artefacts, w.Args.DataSource, w.Args.OutPath)
	summary.Render(w.Console)
	if err := summary.Log(log); err != nil {
		logger.L().Warn("could not log validation", zap.Error(err))
	}
	return summary
}

// hms formats a duration as HH:MM:SS.
func hms(d time.Duration) string {
	s := int64(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}
