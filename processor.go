// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rayfred90/file-to-md-json/logger"
	"github.com/rayfred90/file-to-md-json/ocr"
	"golang.org/x/sync/semaphore"
)

const bytesPerMB = 1024 * 1024

var debugOnce sync.Once

// Processor runs extraction for any number of documents. Each Extract call
// is an independent run; the only shared resources are the document and
// OCR slots.
type Processor struct {
	cfg    *Config
	sem    *semaphore.Weighted
	ocrSem *semaphore.Weighted

	openDoc    func(path string) (Document, error)
	openImages func(path string) (ImageSource, error)
	pageCount  func(path string) (int, error)
}

// NewProcessor validates the config and creates a new Processor.
func NewProcessor(cfg *Config) *Processor {
	//Validate the config object
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	//Set the logger function
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}

	// Process-wide parser flag; only ever switched on.
	if cfg.DebugOn {
		debugOnce.Do(func() { pdf.DebugOn = true })
	}

	logger.Debug(fmt.Sprintf("Processor initialized: max_concurrent_documents=%d max_concurrent_ocr=%d streaming_threshold_mb=%.0f chunked_ocr_threshold_mb=%.0f ocr_size_limit_mb=%.0f",
		cfg.MaxConcurrentDocuments, cfg.MaxConcurrentOCR, cfg.StreamingThresholdMB, cfg.ChunkedOCRThresholdMB, cfg.OCRSizeLimitMB), true)

	return &Processor{
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentDocuments)),
		ocrSem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentOCR)),
		openDoc:    OpenDocument,
		openImages: OpenImageSource,
		pageCount:  pdfcpuPageCount,
	}
}

// Extract runs one extraction of the PDF at path and reports progress to
// sink, which may be nil. Document-level failures are described on the
// returned result; an error is returned only when ctx ends the run, in
// which case the partial result should be discarded.
func (p *Processor) Extract(ctx context.Context, path string, sink ProgressFunc) (*ExtractionResult, error) {
	rep := newProgress(sink)
	res := newResult()
	runID := uuid.NewString()
	res.Metadata[MetaRunID] = runID
	logger.Debug(fmt.Sprintf("Starting extraction: path=%s run_id=%s", path, runID), true)

	if err := p.acquireSlot(ctx); err != nil {
		logger.Debug(fmt.Sprintf("Failed to acquire slot: err=%v", err), true)
		rep.Finish("Extraction cancelled")
		return res, err
	}
	defer p.sem.Release(1)

	rep.Report(0, "Starting PDF extraction")
	if err := p.run(ctx, path, res, rep); err != nil {
		logger.Debug(fmt.Sprintf("Extraction aborted: path=%s err=%v", path, err), true)
		rep.Finish("Extraction cancelled")
		return res, err
	}

	p.truncate(res)
	res.Metadata[MetaExtractionMethod] = string(res.ExtractionMethod)
	rep.Finish("Extraction complete")
	logger.Debug(fmt.Sprintf("Extraction completed: path=%s method=%s chars=%d images=%d",
		path, res.ExtractionMethod, utf8.RuneCountInString(res.Text), len(res.Images)), true)
	return res, nil
}

func (p *Processor) acquireSlot(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	logger.Debug("Slot acquired successfully", true)
	return nil
}

// run selects and executes the text strategy, then extracts images.
func (p *Processor) run(ctx context.Context, path string, res *ExtractionResult, rep *progress) error {
	var sizeMB float64
	if size, err := fileSize(path); err == nil {
		sizeMB = float64(size) / bytesPerMB
	} else {
		logger.Error("cannot stat document", "path", path, "err", err)
	}
	res.Metadata[MetaFileSizeMB] = round2(sizeMB)

	rep.Report(5, "Opening document")
	doc, err := p.openDoc(path)
	if err != nil {
		logger.Error("PDF processing failed, falling back to OCR", "path", path, "err", err)
		if err := p.recoverUnparsed(ctx, path, err, res, rep); err != nil {
			return err
		}
	} else {
		defer doc.Close()
		if err := p.extractText(ctx, doc, path, sizeMB, res, rep); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	rep.Report(96, "Extracting images")
	p.extractImages(ctx, path, res)
	return nil
}

// extractText runs the size-selected pipeline and, when its text fails the
// quality bar, the OCR branch for the document's size.
func (p *Processor) extractText(ctx context.Context, doc Document, path string, sizeMB float64, res *ExtractionResult, rep *progress) error {
	total := doc.NumPage()
	doc.Info().apply(res.Metadata)
	res.Metadata[MetaPages] = total
	rep.Report(10, fmt.Sprintf("Analyzing document: %d pages, %.1f MB", total, sizeMB))

	var (
		stats   TextStats
		profile QualityProfile
		err     error
	)
	if sizeMB > p.cfg.StreamingThresholdMB {
		res.Metadata[MetaProcessingMethod] = processingStreaming
		profile = p.cfg.StreamingQuality
		stats, err = p.runStreaming(ctx, doc, res, rep)
	} else {
		res.Metadata[MetaProcessingMethod] = processingStandard
		profile = p.cfg.StandardQuality
		stats, err = p.runStandard(ctx, doc, res, rep)
	}
	if err != nil {
		return err
	}

	res.Metadata[MetaPagesWithText] = stats.PagesWithText
	res.Metadata[MetaAvgTextPerPage] = round2(stats.AvgTextPerPage())
	rep.Report(85, "Evaluating text quality")
	if profile.Passed(stats) {
		res.ExtractionMethod = MethodTextExtraction
		return nil
	}
	logger.Info("Extracted text below quality threshold", "pages", total,
		"pages_with_text", stats.PagesWithText, "avg_text_per_page", stats.AvgTextPerPage(), "size_mb", sizeMB)

	switch {
	case sizeMB > p.cfg.OCRSizeLimitMB:
		res.ExtractionMethod = MethodTextExtractionOnly
		res.Metadata[MetaNote] = fmt.Sprintf("File too large for OCR (%.1f MB exceeds %.0f MB); returning directly extracted text only", sizeMB, p.cfg.OCRSizeLimitMB)
		res.Metadata[MetaRecommendation] = fmt.Sprintf("Split the document into parts smaller than %.0f MB to enable OCR", p.cfg.OCRSizeLimitMB)
		return nil

	case sizeMB >= p.cfg.ChunkedOCRThresholdMB:
		return p.largeScanOCR(ctx, path, total, res, rep)
	}

	if err := p.directOCR(ctx, path, res, rep); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("OCR fallback failed", "path", path, "err", err)
		res.ExtractionMethod = MethodTextExtractionOnly
		res.Metadata[MetaOCRError] = err.Error()
		res.Metadata[MetaNote] = "OCR fallback failed; returning directly extracted text only"
		res.Metadata[MetaRecommendation] = ocrRecommendation(err)
	}
	return nil
}

// largeScanOCR probes a sample of pages and commits to chunked OCR only
// when the probe succeeds.
func (p *Processor) largeScanOCR(ctx context.Context, path string, total int, res *ExtractionResult, rep *progress) error {
	rep.Report(86, "Testing OCR feasibility on sample pages")
	f, err := p.testFeasibility(ctx, path, total, rep)
	if err != nil {
		return err
	}
	if !p.feasible(f) {
		res.ExtractionMethod = MethodTextExtractionOnly
		res.Metadata[MetaOCRTestResult] = "OCR test failed: " + f.String()
		res.Metadata[MetaRecommendation] = "Sample pages could not be OCRed reliably; split the document or check scan quality before retrying"
		return nil
	}
	rep.Report(90, fmt.Sprintf("OCR feasible (%s), starting chunked OCR", f))
	return p.chunkedOCR(ctx, path, total, res, rep)
}

// recoverUnparsed OCRs a document the parser rejected. When OCR fails too
// the result carries both errors and placeholder text.
func (p *Processor) recoverUnparsed(ctx context.Context, path string, parseErr error, res *ExtractionResult, rep *progress) error {
	res.Metadata[MetaFallbackReason] = "PDF processing error: " + parseErr.Error()
	if n, err := p.pageCount(path); err == nil {
		res.Metadata[MetaPages] = n
	}

	err := p.directOCR(ctx, path, res, rep)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logger.Error("OCR fallback failed", "path", path, "err", err)
	res.ExtractionMethod = MethodOCRFallback
	res.Error = fmt.Sprintf("PDF processing failed: %v, OCR fallback failed: %v", parseErr, err)
	res.Text = fmt.Sprintf("Error processing PDF: %v", parseErr)
	res.Metadata[MetaRecommendation] = ocrRecommendation(err)
	return nil
}

// ocrRecommendation tells the caller how to get text OCR could not recover.
func ocrRecommendation(err error) string {
	if errors.Is(err, ocr.ErrUnavailable) {
		return "Install or enable an OCR engine (Tesseract, built with -tags ocr) to recover text from scanned pages"
	}
	return "OCR could not recover text; check the scan quality or retry with a different OCR engine"
}

// extractImages fills res.Images. A phase failure leaves Images empty and
// records the error.
func (p *Processor) extractImages(ctx context.Context, path string, res *ExtractionResult) {
	res.Images = []ImageRecord{}
	defer func() {
		if r := recover(); r != nil {
			res.Images = []ImageRecord{}
			res.Metadata[MetaImageExtractionError] = fmt.Sprint(r)
			res.Metadata[MetaImagesExtracted] = 0
		}
	}()

	if p.cfg.MaxImages == 0 {
		res.Metadata[MetaImagesExtracted] = 0
		return
	}
	src, err := p.openImages(path)
	if err != nil {
		logger.Error("image extraction failed", "path", path, "err", err)
		res.Metadata[MetaImageExtractionError] = err.Error()
		res.Metadata[MetaImagesExtracted] = 0
		return
	}
	defer src.Close()

	ex := imageExtractor{maxImages: p.cfg.MaxImages, quality: p.cfg.ImageQuality, maxDim: p.cfg.MaxImageDimension}
	res.Images = ex.extract(ctx, src)
	res.Metadata[MetaImagesExtracted] = len(res.Images)
}

// truncate enforces MaxTotalChars on the final text.
func (p *Processor) truncate(res *ExtractionResult) {
	limit := p.cfg.MaxTotalChars
	if limit <= 0 || utf8.RuneCountInString(res.Text) <= limit {
		return
	}
	res.Text = string([]rune(res.Text)[:limit])
	res.Metadata[MetaTruncated] = true
	logger.Debug(fmt.Sprintf("Truncation applied: limit=%d", limit), true)
}

// pdfcpuPageCount counts pages with pdfcpu, which tolerates some files the
// text parser rejects.
func pdfcpuPageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint(r))
		}
	}()
	return api.PageCountFile(path)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
