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
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// probeFlags are tried in order until the binary exits successfully with one.
var probeFlags = []string{"-h", "help", "--version", "-v", "-V", "-c print('wiskess')"}

const probeTimeout = 10 * time.Second

// probeMap caches which binaries are installed for the duration of a run.
type probeMap struct {
	sync.RWMutex
	runner    Runner
	group     singleflight.Group
	installed map[string]bool
}

func newProbeMap(runner Runner) *probeMap {
	return &probeMap{
		runner:    runner,
		installed: map[string]bool{},
	}
}

// check probes the binary once, even if many tasks share it.
func (pm *probeMap) check(ctx context.Context, binary string) bool {
	pm.RLock()
	ok, found := pm.installed[binary]
	pm.RUnlock()
	if found {
		return ok
	}

	v, _, _ := pm.group.Do(binary, func() (interface{}, error) {
		pm.RLock()
		ok, found := pm.installed[binary]
		pm.RUnlock()
		if found {
			return ok, nil
		}
		ok = pm.probe(ctx, binary)
		pm.Lock()
		pm.installed[binary] = ok
		pm.Unlock()
		return ok, nil
	})
	return v.(bool)
}

func (pm *probeMap) probe(ctx context.Context, binary string) bool {
	for _, flag := range probeFlags {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		ok := pm.runner.Probe(pctx, binary, flag)
		cancel()
		if ok {
			return true
		}
	}
	return false
}
