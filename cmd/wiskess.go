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

package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/wiskess"
	"github.com/forensicanalysis/wiskess/config"
	"github.com/forensicanalysis/wiskess/logger"
	"github.com/forensicanalysis/wiskess/operator"
	"github.com/forensicanalysis/wiskess/pipeline"
)

type runFlags struct {
	config    string
	artefacts string
	args      wiskess.Arguments
	overwrite string
}

// registerInputs adds the flags that locate the task file, the data source
// and the outputs.
func (f *runFlags) registerInputs(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.config, "config", "config/main.yaml", "task file with wiskers, enrichers and reporters")
	flags.StringVar(&f.artefacts, "artefacts", "config/artefacts.yaml", "artefact file")
	flags.StringVar(&f.args.DataSource, "data-source", "", "root of the mounted image or collected files")
	flags.StringVar(&f.args.OutPath, "out-path", "", "output folder")
	_ = cmd.MarkFlagRequired("data-source")
	_ = cmd.MarkFlagRequired("out-path")
}

func (f *runFlags) register(cmd *cobra.Command) {
	f.registerInputs(cmd)
	flags := cmd.Flags()
	flags.StringVar(&f.args.StartDate, "start-date", "", "start of the time frame (yyyy-mm-dd)")
	flags.StringVar(&f.args.EndDate, "end-date", "", "end of the time frame (yyyy-mm-dd)")
	flags.StringVar(&f.args.IOCFile, "ioc-file", "", "file with indicators of compromise")
	flags.StringVar(&f.args.ToolPath, "tool-path", "", "folder of the installed tools")
	flags.BoolVar(&f.args.Silent, "silent", false, "never ask, skip missing artefacts and existing outputs")
	flags.StringVar(&f.overwrite, "overwrite", "ask", "existing outputs: never, ask or always")
	flags.DurationVar(&f.args.Timeout, "timeout", 0, "timeout per task, 0 disables it")
}

func (f *runFlags) load(fs afero.Fs) (*config.Config, error) {
	cfg, err := config.Load(fs, f.config)
	if err != nil {
		return nil, err
	}
	if f.artefacts != "" {
		if err := cfg.AddArtefacts(fs, f.artefacts); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (f *runFlags) wiskess(cmd *cobra.Command) (*wiskess.Wiskess, error) {
	overwrite, err := pipeline.ParseOverwrite(f.overwrite)
	if err != nil {
		return nil, err
	}
	f.args.Overwrite = overwrite
	w := wiskess.New(f.args, operator.NewConsole(cmd.InOrStdin(), cmd.ErrOrStderr()))
	w.Console = cmd.OutOrStdout()
	return w, nil
}

// Run is the wiskess run commandline subcommand
func Run() *cobra.Command {
	f := &runFlags{}
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "Run all wiskers, enrichers and reporters on a data source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := f.wiskess(cmd)
			if err != nil {
				return err
			}
			cfg, err := f.load(w.Fs)
			if err != nil {
				return err
			}
			_, err = w.Run(cmd.Context(), cfg)
			return err
		},
	}
	f.register(runCommand)
	return runCommand
}

// Validate is the wiskess validate commandline subcommand
func Validate() *cobra.Command {
	var noFail bool
	f := &runFlags{}
	validateCommand := &cobra.Command{
		Use:   "validate",
		Short: "Check the outputs of an earlier run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := f.wiskess(cmd)
			if err != nil {
				return err
			}
			cfg, err := f.load(w.Fs)
			if err != nil {
				return err
			}
			summary, err := w.Validate(cfg)
			if err != nil {
				return err
			}
			if !summary.OK() && !noFail {
				return errors.Errorf("%d outputs are missing or empty", len(summary.Rows))
			}
			return nil
		},
	}
	f.registerInputs(validateCommand)
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

// Root returns the wiskess command with all subcommands.
func Root() *cobra.Command {
	var level string
	rootCmd := &cobra.Command{
		Use:           "wiskess",
		Short:         "Run forensic tools against a mounted image",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(level)
		},
	}
	rootCmd.PersistentFlags().StringVar(&level, "log-level", "info", "console log level: debug, info, warn or error")
	rootCmd.AddCommand(Run(), Validate(), Records())
	return rootCmd
}

func exists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, path)
	}
	return nil
}
