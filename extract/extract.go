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

// Package extract copies files that cannot be read in place, e.g. locked
// registry hives of a live system, out of a source volume.
package extract

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Extractor copies relPath of the source volume into destDir and returns the
// path of the copy.
type Extractor interface {
	Extract(source, relPath, destDir string) (string, error)
}

// Func adapts a function to the Extractor interface.
type Func func(source, relPath, destDir string) (string, error)

// Extract calls f.
func (f Func) Extract(source, relPath, destDir string) (string, error) {
	return f(source, relPath, destDir)
}

// FsExtractor copies from a file system opened for the source volume, for
// example a raw NTFS reader, into Dest.
type FsExtractor struct {
	Open func(source string) (afero.Fs, error)
	Dest afero.Fs
}

// Extract copies a file or a directory tree to relPath below destDir. Colons
// in the copied path are replaced, as they are not allowed in Windows file
// names. An existing copy from an earlier run is reused.
func (e *FsExtractor) Extract(source, relPath, destDir string) (string, error) {
	src, err := e.Open(source)
	if err != nil {
		return "", errors.Wrapf(err, "could not open volume %s", source)
	}

	name := path.Clean("/" + filepath.ToSlash(relPath))
	dest := filepath.Join(destDir, filepath.FromSlash(CopyName(name)))

	if ok, _ := afero.Exists(e.Dest, dest); ok {
		return dest, nil
	}

	info, err := src.Stat(name)
	if err != nil {
		return "", errors.Wrapf(err, "could not stat %s", relPath)
	}
	if !info.IsDir() {
		return dest, copyFile(src, e.Dest, name, dest)
	}

	err = afero.Walk(src, name, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.FromSlash(CopyName(strings.TrimPrefix(p, name))))
		if info.IsDir() {
			return e.Dest.MkdirAll(target, 0755)
		}
		return copyFile(src, e.Dest, p, target)
	})
	return dest, err
}

// CopyName is the slash separated path a copied file gets below the output
// folder.
func CopyName(name string) string {
	rel := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
	return strings.ReplaceAll(rel, ":", "_")
}

func copyFile(src, dst afero.Fs, from, to string) error {
	in, err := src.Open(from)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", from)
	}
	defer in.Close() // nolint:errcheck

	if err := dst.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	out, err := dst.Create(to)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", to)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() // nolint:errcheck
		return errors.Wrapf(err, "could not copy %s", from)
	}
	return out.Close()
}
