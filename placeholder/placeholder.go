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

// Package placeholder substitutes {token} markers in artefact path templates
// and in the binary, args and script fields of tasks.
//
// Recognized tokens are {root}, {input}, {input_other}, {outfile},
// {outfolder}, {start_date}, {end_date}, {ioc_file}, {out_path} and
// {tool_path}. Any other {token} is left in place.
package placeholder

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Bindings hold the values of the task tokens.
type Bindings struct {
	Input      string
	InputOther string
	Outfile    string
	Outfolder  string
	StartDate  string
	EndDate    string
	IOCFile    string
	OutPath    string
	ToolPath   string
}

// Expand replaces all task tokens in template.
func Expand(template string, b Bindings) string {
	return b.replacer().Replace(template)
}

// Expand replaces all task tokens in template.
func (b Bindings) Expand(template string) string {
	return Expand(template, b)
}

func (b Bindings) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{input}", b.Input,
		"{input_other}", b.InputOther,
		"{outfile}", b.Outfile,
		"{outfolder}", b.Outfolder,
		"{start_date}", b.StartDate,
		"{end_date}", b.EndDate,
		"{ioc_file}", b.IOCFile,
		"{out_path}", b.OutPath,
		"{tool_path}", b.ToolPath,
	)
}

// Root replaces {root} in an artefact path template with the data source.
func Root(template, root string) string {
	return strings.ReplaceAll(template, "{root}", root)
}

// Canonical returns the absolute, symlink free form of p. If p cannot be
// resolved, e.g. because it is a glob pattern, p is returned unchanged.
func Canonical(p string) string {
	if p == "" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return p
	}
	return resolved
}

var tokenPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// Unresolved lists the {token} markers still present in s after expansion.
// Unknown tokens are not an error, but callers log them so that a typo in a
// config does not silently end up on a command line unnoticed.
func Unresolved(s string) []string {
	return tokenPattern.FindAllString(s, -1)
}
