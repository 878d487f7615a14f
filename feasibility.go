// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rayfred90/file-to-md-json/logger"
)

// Feasibility is the outcome of probing a few pages with OCR.
type Feasibility struct {
	PagesTested []int
	Successes   int
	SuccessRate float64
}

func (f Feasibility) String() string {
	return fmt.Sprintf("%d/%d sample pages yielded text (success rate %.0f%%)",
		f.Successes, len(f.PagesTested), f.SuccessRate*100)
}

// samplePages returns every page when total <= allUpTo, otherwise the first
// three, the three centered on total/2 and the last three. The result is
// ascending and free of duplicates.
func samplePages(total, allUpTo int) []int {
	if total <= 0 {
		return nil
	}
	var cand []int
	if total <= allUpTo {
		for i := 1; i <= total; i++ {
			cand = append(cand, i)
		}
		return cand
	}
	mid := total / 2
	cand = []int{1, 2, 3, mid - 1, mid, mid + 1, total - 2, total - 1, total}

	seen := make(map[int]bool, len(cand))
	out := cand[:0]
	for _, n := range cand {
		if n < 1 || n > total || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// testFeasibility OCRs isolated single-page sub-documents for the first
// FeasibilityMaxSamples sample pages. A sample whose sub-document cannot be
// produced is skipped; an unavailable splitter skips the whole test.
func (p *Processor) testFeasibility(ctx context.Context, path string, total int, rep *progress) (Feasibility, error) {
	var f Feasibility

	samples := samplePages(total, p.cfg.FeasibilityAllPagesUpTo)
	if len(samples) > p.cfg.FeasibilityMaxSamples {
		samples = samples[:p.cfg.FeasibilityMaxSamples]
	}
	if p.cfg.Splitter == nil {
		logger.Info("Page-range extraction not configured, skipping OCR feasibility test")
		return f, nil
	}
	logger.Debug(fmt.Sprintf("OCR feasibility test: path=%s samples=%v", path, samples), true)

	for i, pageNr := range samples {
		if err := ctx.Err(); err != nil {
			return f, err
		}
		rep.Span(86, 89, i, len(samples), fmt.Sprintf("Testing OCR on sample page %d", pageNr))

		ok, tested, err := p.probePage(ctx, path, pageNr)
		if errors.Is(err, ErrSplitterUnavailable) {
			logger.Info("Page-range extraction unavailable, skipping OCR feasibility test", "err", err)
			return Feasibility{}, nil
		}
		if ctx.Err() != nil {
			return f, ctx.Err()
		}
		if !tested {
			continue
		}
		f.PagesTested = append(f.PagesTested, pageNr)
		if ok {
			f.Successes++
		}
	}

	if len(f.PagesTested) > 0 {
		f.SuccessRate = float64(f.Successes) / float64(len(f.PagesTested))
	}
	logger.Info("OCR feasibility test finished", "tested", len(f.PagesTested), "successes", f.Successes, "rate", f.SuccessRate)
	return f, nil
}

// probePage reports whether OCR of pageNr yields enough text. tested is
// false when the sample could not be isolated.
func (p *Processor) probePage(ctx context.Context, path string, pageNr int) (ok, tested bool, err error) {
	sub, err := p.cfg.Splitter.ExtractRange(ctx, path, pageNr, pageNr)
	if err != nil {
		logger.Debug(fmt.Sprintf("Sample page isolation failed: page=%d err=%v", pageNr, err), true)
		return false, false, err
	}
	defer sub.Release()

	out, err := p.ocrFile(ctx, sub.Path, pageNr, nil)
	if err != nil {
		logger.Debug(fmt.Sprintf("Sample page OCR failed: page=%d err=%v", pageNr, err), true)
		return false, true, nil
	}
	var text strings.Builder
	for _, pg := range out.Pages {
		text.WriteString(pg.Text)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(text.String()))
	return n > p.cfg.FeasibilityMinChars, true, nil
}

// feasible reports whether full OCR is worth running.
func (p *Processor) feasible(f Feasibility) bool {
	return len(f.PagesTested) > 0 && f.SuccessRate > p.cfg.FeasibilityMinRate
}
