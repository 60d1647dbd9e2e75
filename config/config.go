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

// Package config loads the task and artefact files.
//
// A task file lists the wiskers, enrichers and reporters to run:
//
//	wiskers:
//	  - name: mft_parse
//	    binary: "{tool_path}/MFTECmd"
//	    args: "-f {input} --csv {outfolder} --csvf {outfile}"
//	    input: mft
//	    outfolder: Analysis/FileSystem
//	    outfile: mft.csv
//
// An artefact file declares where the inputs are found:
//
//	artefacts:
//	  - name: mft
//	    path: "{root}/$MFT"
//	    legacy: ""
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/forensicanalysis/wiskess/artefact"
	"github.com/forensicanalysis/wiskess/operator"
	"github.com/forensicanalysis/wiskess/pipeline"
)

// DateFormat is the format of start and end dates.
const DateFormat = "2006-01-02"

// ErrInvalidDate is returned for dates not in DateFormat.
var ErrInvalidDate = errors.New("invalid date")

// Config is a task file. It may declare artefacts as well.
type Config struct {
	Artefacts []artefact.Spec `yaml:"artefacts"`
	Wiskers   []pipeline.Task `yaml:"wiskers"`
	Enrichers []pipeline.Task `yaml:"enrichers"`
	Reporters []pipeline.Task `yaml:"reporters"`
}

// Load reads a task file.
func Load(fs afero.Fs, path string) (*Config, error) {
	c := &Config{}
	if err := decode(fs, path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddArtefacts appends the artefacts declared in an artefact file.
func (c *Config) AddArtefacts(fs afero.Fs, path string) error {
	a := struct {
		Artefacts []artefact.Spec `yaml:"artefacts"`
	}{}
	if err := decode(fs, path, &a); err != nil {
		return err
	}
	c.Artefacts = append(c.Artefacts, a.Artefacts...)
	return nil
}

// Groups returns the task groups in the order they run.
func (c *Config) Groups() []pipeline.Group {
	return []pipeline.Group{
		{Label: "wiskers", Tasks: c.Wiskers},
		{Label: "enrichers", Tasks: c.Enrichers},
		{Label: "reporters", Tasks: c.Reporters},
	}
}

func decode(fs afero.Fs, path string, v interface{}) error {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return errors.Wrapf(err, "could not read config %s", path)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "could not parse config %s", path)
	}
	return nil
}

// CheckDate returns date if it is a valid YYYY-MM-DD date. Otherwise an
// interactive operator is asked until a valid date is given.
func CheckDate(date, kind string, op operator.Operator) (string, error) {
	for {
		if _, err := time.Parse(DateFormat, date); err == nil {
			return date, nil
		}
		if op == nil || !op.Interactive() {
			return "", errors.Wrapf(ErrInvalidDate, "%s date %q", kind, date)
		}
		answer, ok := op.Ask("Invalid date: " + date + " What is the " + kind + " date? (yyyy-mm-dd)")
		if !ok {
			return "", errors.Wrapf(ErrInvalidDate, "%s date %q", kind, date)
		}
		date = answer
	}
}
