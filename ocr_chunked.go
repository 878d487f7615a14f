// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rayfred90/file-to-md-json/logger"
)

// chunkedOCR OCRs the document in fixed page ranges, each materialized as
// its own sub-document and released before the next. A failing chunk leaves
// an error block in the text and never stops the run.
func (p *Processor) chunkedOCR(ctx context.Context, path string, total int, res *ExtractionResult, rep *progress) error {
	size := p.cfg.OCRChunkSize
	chunks := (total + size - 1) / size
	pacer := newPacer(p.cfg.OCRChunkPacing)
	logger.Info("Chunked OCR started", "pages", total, "chunk_size", size, "chunks", chunks)

	var (
		sections []string
		agg      ocrOutcome
		failed   int
	)
	for c := 0; c < chunks; c++ {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		first := c*size + 1
		last := min(first+size-1, total)

		out, err := p.ocrChunk(ctx, path, first, last)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("OCR chunk failed", "pages", fmt.Sprintf("%d-%d", first, last), "err", err)
			sections = append(sections, fmt.Sprintf("Pages %d-%d: Error: could not process this chunk", first, last))
			failed++
		} else {
			sections = append(sections, fmt.Sprintf("--- Pages %d-%d ---\n%s", first, last, pageTexts(out)))
			agg.merge(out)
		}
		rep.Span(90, 95, c+1, chunks, fmt.Sprintf("OCR processed pages %d-%d of %d", first, last, total))
	}

	res.Text = strings.Join(sections, "\n\n")
	res.ExtractionMethod = MethodChunkedOCR
	applyOCR(res, agg)
	logger.Info("Chunked OCR completed", "chunks", chunks, "failed_chunks", failed)
	return nil
}

// ocrChunk materializes pages first..last and OCRs the sub-document.
func (p *Processor) ocrChunk(ctx context.Context, path string, first, last int) (ocrOutcome, error) {
	if p.cfg.Splitter == nil {
		return ocrOutcome{}, ErrSplitterUnavailable
	}
	sub, err := p.cfg.Splitter.ExtractRange(ctx, path, first, last)
	if err != nil {
		return ocrOutcome{}, err
	}
	defer func() {
		if err := sub.Release(); err != nil {
			logger.Debug(fmt.Sprintf("Sub-document release failed: path=%s err=%v", sub.Path, err), true)
		}
	}()
	return p.ocrFile(ctx, sub.Path, first, nil)
}

// pageTexts joins the non-empty OCR page texts of one chunk.
func pageTexts(out ocrOutcome) string {
	var parts []string
	for _, pg := range out.Pages {
		if pg.Text != "" {
			parts = append(parts, pg.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
