// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rayfred90/file-to-md-json/logger"
	"github.com/rayfred90/file-to-md-json/ocr"
)

// ocrOutcome is the OCR output of one file or sub-document.
type ocrOutcome struct {
	Pages   []OCRPage
	Samples []int
}

// text joins the non-empty page texts under page headers.
func (o ocrOutcome) text() string {
	var sections []string
	for _, pg := range o.Pages {
		if pg.Text != "" {
			sections = append(sections, fmt.Sprintf("--- Page %d ---\n%s", pg.PageNumber, pg.Text))
		}
	}
	return strings.Join(sections, "\n\n")
}

func (o *ocrOutcome) merge(other ocrOutcome) {
	o.Pages = append(o.Pages, other.Pages...)
	o.Samples = append(o.Samples, other.Samples...)
}

// engine returns the configured OCR engine, else the registered default.
func (p *Processor) engine() ocr.Engine {
	if p.cfg.OCREngine != nil {
		return p.cfg.OCREngine
	}
	return ocr.DefaultEngine()
}

// recognize runs one page image through the engine under the OCR slot,
// retrying retryable failures with a fresh timeout per attempt.
func (p *Processor) recognize(ctx context.Context, engine ocr.Engine, img []byte) (ocr.Result, error) {
	if err := p.ocrSem.Acquire(ctx, 1); err != nil {
		return ocr.Result{}, fmt.Errorf("acquire ocr slot: %w", err)
	}
	defer p.ocrSem.Release(1)

	var (
		res ocr.Result
		err error
	)
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		actx, cancel := context.WithTimeout(ctx, p.cfg.OCRTimeout)
		res, err = engine.Recognize(actx, img)
		cancel()
		if err == nil || !ocr.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		logger.Debug(fmt.Sprintf("Retrying recognition: engine=%s attempt=%d err=%v", engine.Name(), attempt, err), true)
	}
	return res, err
}

// ocrFile renders and recognizes every page of the PDF at path. firstPage
// is the source page number of the file's first page, so sub-documents
// report original numbering. onPage is called after each page.
//
// A missing engine or rasterizer aborts with ocr.ErrUnavailable. Single
// page failures are recorded on the page; the call fails only if no page
// could be recognized.
func (p *Processor) ocrFile(ctx context.Context, path string, firstPage int, onPage func(done, total int)) (ocrOutcome, error) {
	var out ocrOutcome

	engine := p.engine()
	if engine == nil || p.cfg.Rasterizer == nil {
		return out, fmt.Errorf("ocr %s: %w", path, ocr.ErrUnavailable)
	}
	raster, err := p.cfg.Rasterizer.Open(path)
	if err != nil {
		return out, fmt.Errorf("render %s: %w", path, err)
	}
	defer raster.Close()

	total := raster.NumPage()
	if total == 0 {
		return out, fmt.Errorf("ocr %s: %w", path, ErrNoPages)
	}

	var firstErr error
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pg, samples, err := p.ocrPage(ctx, engine, raster, i)
		pg.PageNumber = firstPage + i - 1
		if err != nil {
			if errors.Is(err, ocr.ErrUnavailable) || ctx.Err() != nil {
				return out, err
			}
			logger.Debug(fmt.Sprintf("OCR page failed: path=%s page=%d err=%v", path, pg.PageNumber, err), true)
			pg.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}
		out.Pages = append(out.Pages, pg)
		out.Samples = append(out.Samples, samples...)
		if onPage != nil {
			onPage(i, total)
		}
	}

	failed := 0
	for _, pg := range out.Pages {
		if pg.Error != "" {
			failed++
		}
	}
	if failed == len(out.Pages) {
		return out, fmt.Errorf("ocr %s: every page failed: %w", path, firstErr)
	}
	return out, nil
}

// ocrPage renders and recognizes one page of raster.
func (p *Processor) ocrPage(ctx context.Context, engine ocr.Engine, raster ocr.Raster, pageNr int) (OCRPage, []int, error) {
	img, err := raster.RenderPage(pageNr)
	if err != nil {
		return OCRPage{}, nil, fmt.Errorf("render page %d: %w", pageNr, err)
	}
	res, err := p.recognize(ctx, engine, img)
	if err != nil {
		return OCRPage{}, nil, err
	}

	text := ocr.CleanText(res.Text)
	mean, samples, _ := ocr.PageConfidence(res.Confidences)
	return OCRPage{
		Text:       text,
		Confidence: mean,
		WordCount:  len(strings.Fields(text)),
	}, samples, nil
}

// applyOCR records OCR statistics on res. ocr_confidence is set only when
// at least one positive sample exists.
func applyOCR(res *ExtractionResult, out ocrOutcome) {
	res.OCRPages = out.Pages
	res.PagesProcessed = len(out.Pages)

	withText, words := 0, 0
	for _, pg := range out.Pages {
		if pg.Text != "" {
			withText++
		}
		words += pg.WordCount
	}
	res.Metadata[MetaOCRPagesWithText] = withText
	res.Metadata[MetaTotalWords] = words

	if mean, ok := ocr.Mean(out.Samples); ok {
		res.OCRConfidence = &mean
		res.Metadata[MetaOCRConfidence] = fmt.Sprintf("%.2f%%", mean)
	}
}

// directOCR replaces res.Text with whole-document OCR of path.
func (p *Processor) directOCR(ctx context.Context, path string, res *ExtractionResult, rep *progress) error {
	rep.Report(86, "Running OCR on document")
	out, err := p.ocrFile(ctx, path, 1, func(done, total int) {
		rep.Span(86, 95, done, total, fmt.Sprintf("OCR page %d of %d", done, total))
	})
	if err != nil {
		return err
	}
	res.Text = out.text()
	res.ExtractionMethod = MethodOCRFallback
	applyOCR(res, out)
	logger.Info("OCR fallback completed", "pages", len(out.Pages), "confidence_samples", len(out.Samples))
	return nil
}
