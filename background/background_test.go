// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitmark-inc/resolver/background"
)

type ticking struct {
	ticks uint64
}

func (p *ticking) Run(args interface{}, shutdown <-chan struct{}) {
	interval := args.(time.Duration)
	ticker := time.NewTicker(interval)
	for {
		select {
		case <-ticker.C:
			atomic.AddUint64(&p.ticks, 1)
		case <-shutdown:
			ticker.Stop()
			return
		}
	}
}

func TestStartStop(t *testing.T) {
	one := &ticking{}
	two := &ticking{}

	processes := background.Processes{one, two}
	handle := background.Start(processes, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	handle.Stop()

	if 0 == atomic.LoadUint64(&one.ticks) {
		t.Error("process one never ran")
	}
	if 0 == atomic.LoadUint64(&two.ticks) {
		t.Error("process two never ran")
	}

	// after Stop the processes must have exited
	n := atomic.LoadUint64(&one.ticks)
	time.Sleep(50 * time.Millisecond)
	if n != atomic.LoadUint64(&one.ticks) {
		t.Error("process one still running after Stop")
	}
}

func TestStopNil(t *testing.T) {
	var handle *background.T
	handle.Stop() // must not panic
}
