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

// Package wiskess runs forensic tools over a data source and checks that
// they produced output.
//
// A run
//
// A run reads a task file and an artefact file and goes through these steps:
//     - The artefacts, e.g. the MFT or the event logs, are looked up in the data
//       source. Artefacts that cannot be found are skipped.
//     - Every task must use declared artefacts, otherwise the run stops before
//       any tool is started.
//     - The wiskers run, then the enrichers, then the reporters. Each group
//       finishes completely before the next one starts.
//     - The outputs of the wiskers are validated and missing outputs reported.
//
// Output
//
// An example output folder:
//     case/
//     ├── Analysis
//     │   └── FileSystem
//     │       └── mft.csv
//     ├── Artefacts
//     │   └── Windows
//     │       └── System32
//     │           └── config
//     │               └── SYSTEM
//     ├── Timeline
//     │   └── hayabusa.csv
//     ├── wiskess.forensicstore
//     └── wiskess_2024-03-01T120000.log
//
// Locked files
//
// Files of a live system, e.g. registry hives in use, cannot be opened by the
// tools. A program embedding wiskess sets Wiskess.Extractor to a raw volume
// reader, usually an extract.FsExtractor whose Open returns an afero.Fs of the
// NTFS volume. Inputs that cannot be read are then copied below Artefacts and
// the tools get the copy:
//     w := wiskess.New(args, nil)
//     w.Extractor = &extract.FsExtractor{Open: openNTFS, Dest: w.Fs}
//     summary, err := w.Run(ctx, cfg)
package wiskess
