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

// Package artefact resolves where named forensic artefacts, e.g. a registry
// hive, an event log folder or the MFT, are located in a data source.
//
// A data source is a mounted image or a folder of collected files. Every
// artefact is declared with a path template containing {root} and an
// optional legacy template for older operating systems. Resolution tries, in
// order, the literal path or glob, the same path with a URL encoded file name,
// and the legacy template. Artefacts that cannot be found are mapped to None,
// and tasks that need them are skipped.
package artefact

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/forensicanalysis/wiskess/logger"
	"github.com/forensicanalysis/wiskess/operator"
	"github.com/forensicanalysis/wiskess/placeholder"
)

// None marks an artefact as unavailable. Tasks using it are skipped, not failed.
const None = "wiskess_none"

// NoOp is the name of an artefact whose path template is kept unresolved.
// Tasks that do not read any artefact use it as input.
const NoOp = "none"

// Spec declares an artefact.
type Spec struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Legacy string `yaml:"legacy"`
}

// Map holds the resolved path of every artefact. It is built once and only
// read afterwards, so it can be shared between workers.
type Map map[string]string

// Available reports whether the artefact exists in the map and is not None.
func (m Map) Available(name string) bool {
	v, ok := m[name]
	return ok && v != None
}

// Names returns the sorted artefact names.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Printer receives messages for the run log.
type Printer interface {
	Printf(format string, args ...interface{}) error
}

// Resolver builds a Map from artefact declarations.
type Resolver struct {
	fs       afero.Fs
	operator operator.Operator
	log      Printer
}

// NewResolver creates a Resolver. The operator is asked for paths that
// cannot be found in interactive runs.
func NewResolver(fs afero.Fs, op operator.Operator, log Printer) *Resolver {
	if op == nil {
		op = operator.Silent{}
	}
	return &Resolver{fs: fs, operator: op, log: log}
}

// Resolve maps every artefact to a path below root. In silent mode missing
// artefacts become None, otherwise the operator is asked once per missing
// artefact.
func (r *Resolver) Resolve(specs []Spec, root string, silent bool) Map {
	m := Map{}
	for _, spec := range specs {
		m[spec.Name] = r.resolve(spec, root, silent)
	}
	return m
}

func (r *Resolver) resolve(spec Spec, root string, silent bool) string {
	p := placeholder.Root(spec.Path, root)
	if found, ok := r.find(p); ok {
		return found
	}

	if spec.Legacy != "" {
		if found, ok := r.find(placeholder.Root(spec.Legacy, root)); ok {
			return found
		}
	}

	if spec.Name == NoOp {
		return spec.Path
	}

	r.printf("[-] Path for %s not found at %s", spec.Name, p)
	if silent {
		return None
	}

	answer, ok := r.operator.Ask(fmt.Sprintf("What is the file path of %s?", spec.Name))
	if !ok {
		r.printf("[-] No path given for %s, skipping it", spec.Name)
		return None
	}
	if found, ok := r.find(answer); ok {
		return found
	}
	return answer
}

// find tries p and then p with an URL encoded file name.
func (r *Resolver) find(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	if r.exists(p) {
		return p, true
	}
	if enc := encodeName(p); enc != p && r.exists(enc) {
		return enc, true
	}
	return "", false
}

// encodeName percent-encodes colons in the last path segment, as collection
// tools store names of alternate data streams.
func encodeName(p string) string {
	name := filepath.Base(p)
	if !strings.Contains(name, ":") {
		return p
	}
	return filepath.Join(filepath.Dir(p), strings.ReplaceAll(name, ":", "%3A"))
}

// exists reports whether p exists or is a glob matching at least one entry.
func (r *Resolver) exists(p string) bool {
	ok, err := afero.Exists(r.fs, p)
	if err == nil && ok {
		return true
	}
	if !isGlob(p) {
		return false
	}
	matches, err := Glob(r.fs, p)
	if err != nil {
		r.printf("[!] Could not glob %s: %s", p, err)
		return false
	}
	return len(matches) > 0
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// Glob returns the entries of fs matching the pattern. The pattern is an
// absolute or relative OS path and may contain **.
func Glob(fs afero.Fs, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		if abs, err := filepath.Abs(pattern); err == nil {
			pattern = abs
		}
	}
	volume := filepath.VolumeName(pattern)
	base := volume + string(filepath.Separator)
	rel := deepen(strings.TrimLeft(filepath.ToSlash(pattern[len(volume):]), "/"))

	fsys := afero.NewIOFS(afero.NewBasePathFs(fs, base))
	matches, err := fsdoublestar.Glob(fsys, rel)
	if err != nil {
		return nil, err
	}
	for i, match := range matches {
		matches[i] = filepath.Join(base, filepath.FromSlash(match))
	}
	return matches, nil
}

// globDepth bounds a bare ** in a pattern. A bare ** of fsdoublestar only
// descends three levels.
const globDepth = 64

// deepen rewrites bare ** components of a slash separated pattern to
// **<globDepth>.
func deepen(pattern string) string {
	parts := strings.Split(pattern, "/")
	for i, part := range parts {
		if part == "**" {
			parts[i] = "**" + strconv.Itoa(globDepth)
		}
	}
	return strings.Join(parts, "/")
}

func (r *Resolver) printf(format string, args ...interface{}) {
	logf(r.log, format, args...)
}

// logf writes to the console and the run log.
func logf(log Printer, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.L().Info(msg)
	if log == nil {
		return
	}
	if err := log.Printf("%s", msg); err != nil {
		logger.L().Warn("could not write run log", zap.Error(err))
	}
}
