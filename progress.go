// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"fmt"

	"github.com/rayfred90/file-to-md-json/logger"
)

// ProgressFunc receives progress updates. It is owned by the caller and is
// invoked synchronously from the active stage.
type ProgressFunc func(percent int, message string)

// progress wraps a caller sink so the run only ever reports a clamped,
// non-decreasing sequence that finishes at exactly 100.
// A panicking sink is logged and ignored.
type progress struct {
	sink ProgressFunc
	last int
	done bool
}

func newProgress(sink ProgressFunc) *progress {
	return &progress{sink: sink, last: -1}
}

// Report emits percent, raised to the last reported value when lower.
func (p *progress) Report(percent int, message string) {
	if p.done {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	if percent < p.last {
		percent = p.last
	}
	// 100 is reserved for Finish.
	if percent == 100 {
		percent = 99
		if p.last > percent {
			percent = p.last
		}
	}
	p.last = percent
	p.emit(percent, message)
}

// Span maps step/total linearly onto [from, to].
func (p *progress) Span(from, to, step, total int, message string) {
	if total <= 0 {
		p.Report(to, message)
		return
	}
	if step > total {
		step = total
	}
	p.Report(from+(to-from)*step/total, message)
}

// Finish emits the final 100 once.
func (p *progress) Finish(message string) {
	if p.done {
		return
	}
	p.done = true
	p.last = 100
	p.emit(100, message)
}

func (p *progress) emit(percent int, message string) {
	if p.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("progress sink panicked", "percent", percent, "panic", fmt.Sprint(r))
		}
	}()
	p.sink(percent, message)
}
