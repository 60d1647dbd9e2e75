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

// Package wiskess implements the wiskess command line tool. It runs
// forensic tools described in a task file against a mounted image.
//     run       Run all wiskers, enrichers and reporters
//     validate  Check the outputs of an earlier run
//     records   Print the process records of a run
//
// Usage
//
// Run on a mounted image
//     wiskess run --config config/main.yaml --artefacts config/artefacts.yaml \
//         --data-source F: --out-path D:/case --start-date 2024-01-01 --end-date 2024-02-01
// Check the outputs again
//     wiskess validate --data-source F: --out-path D:/case
// Show what was executed
//     wiskess records D:/case/wiskess.forensicstore --name mft_parse
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/forensicanalysis/wiskess/cmd"
	"github.com/forensicanalysis/wiskess/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Root().ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
