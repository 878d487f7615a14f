// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rayfred90/file-to-md-json/logger"
	"golang.org/x/time/rate"
)

const (
	processingStandard  = "standard"
	processingStreaming = "streaming"
)

// newPacer returns a limiter whose first Wait is immediate and whose later
// Waits are spaced by d. A zero d never blocks.
func newPacer(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// streamingChunkSize is clamp(total/divisor, min, max).
func streamingChunkSize(total int, cfg *Config) int {
	n := total / cfg.StreamingChunkDivisor
	if n < cfg.StreamingMinChunk {
		n = cfg.StreamingMinChunk
	}
	if n > cfg.StreamingMaxChunk {
		n = cfg.StreamingMaxChunk
	}
	return n
}

// extractPage reads one page and renders its text section. A failed page
// yields an inline marker instead of text; tables are optional.
func extractPage(doc Document, pageNr int, withTables bool) (PageResult, string) {
	pr := PageResult{PageNumber: pageNr, Tables: []TableRecord{}}

	text, err := doc.PageText(pageNr)
	if err != nil {
		logger.Debug(fmt.Sprintf("Page extraction failed: page=%d err=%v", pageNr, err), true)
		pr.Error = err.Error()
		return pr, fmt.Sprintf("--- Page %d ---\n[Error extracting page %d: %v]", pageNr, pageNr, err)
	}
	pr.Text = strings.TrimSpace(text)

	var b strings.Builder
	if pr.Text != "" {
		fmt.Fprintf(&b, "--- Page %d ---\n%s", pageNr, pr.Text)
	}
	if !withTables {
		return pr, b.String()
	}

	tables, err := doc.PageTables(pageNr)
	if err != nil {
		logger.Debug(fmt.Sprintf("Table detection failed: page=%d err=%v", pageNr, err), true)
		return pr, b.String()
	}
	for i, data := range tables {
		pr.Tables = append(pr.Tables, TableRecord{Page: pageNr, TableIndex: i, Data: data})
		fmt.Fprintf(&b, "\n--- Table %d (Page %d) ---\n%s", i+1, pageNr, tableToMarkdown(data))
	}
	return pr, strings.TrimPrefix(b.String(), "\n")
}

// runStandard extracts every page in order, with tables on short documents.
func (p *Processor) runStandard(ctx context.Context, doc Document, res *ExtractionResult, rep *progress) (TextStats, error) {
	total := doc.NumPage()
	stats := TextStats{TotalPages: total}
	withTables := total < p.cfg.TableMaxPages
	logger.Debug(fmt.Sprintf("Standard pipeline: pages=%d tables=%v", total, withTables), true)

	var sections []string
	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		pr, section := extractPage(doc, pageNr, withTables)
		stats.add(pr.Text)
		res.Pages = append(res.Pages, pr)
		res.Tables = append(res.Tables, pr.Tables...)
		if section != "" {
			sections = append(sections, section)
		}
		rep.Span(15, 85, pageNr, total, fmt.Sprintf("Processing page %d of %d", pageNr, total))
	}
	res.Text = strings.Join(sections, "\n\n")
	return stats, nil
}

// runStreaming extracts text only, in bounded chunks paced apart.
func (p *Processor) runStreaming(ctx context.Context, doc Document, res *ExtractionResult, rep *progress) (TextStats, error) {
	total := doc.NumPage()
	stats := TextStats{TotalPages: total}
	size := streamingChunkSize(total, p.cfg)
	chunks := (total + size - 1) / size
	fine := total > p.cfg.StreamingFinePageCount
	pacer := newPacer(p.cfg.StreamingPacing)
	logger.Debug(fmt.Sprintf("Streaming pipeline: pages=%d chunk_size=%d chunks=%d", total, size, chunks), true)

	var sections []string
	for c := 0; c < chunks; c++ {
		if err := pacer.Wait(ctx); err != nil {
			return stats, err
		}
		first := c*size + 1
		last := min(first+size-1, total)

		for pageNr := first; pageNr <= last; pageNr++ {
			pr, section := extractPage(doc, pageNr, false)
			stats.add(pr.Text)
			res.Pages = append(res.Pages, pr)
			if section != "" {
				sections = append(sections, section)
			}
			if fine && pageNr%10 == 0 {
				rep.Span(15, 80, pageNr, total, fmt.Sprintf("Processing page %d of %d", pageNr, total))
			}
		}
		rep.Span(15, 80, c+1, chunks, fmt.Sprintf("Processed pages %d-%d of %d", first, last, total))
	}
	res.Text = strings.Join(sections, "\n\n")
	return stats, nil
}
