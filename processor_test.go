// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rayfred90/file-to-md-json/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sizedFile creates a sparse file of sizeMB megabytes.
func sizedFile(t *testing.T, sizeMB float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o600))
	require.NoError(t, os.Truncate(path, int64(sizeMB*bytesPerMB)))
	return path
}

type fakeDoc struct {
	pages  []string
	tables map[int][][][]string
	errs   map[int]error
	info   Meta
	closed bool
}

func textDoc(n int, text string) *fakeDoc {
	d := &fakeDoc{}
	for i := 0; i < n; i++ {
		d.pages = append(d.pages, text)
	}
	return d
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }

func (d *fakeDoc) PageText(pageNr int) (string, error) {
	if err := d.errs[pageNr]; err != nil {
		return "", err
	}
	return d.pages[pageNr-1], nil
}

func (d *fakeDoc) PageTables(pageNr int) ([][][]string, error) {
	return d.tables[pageNr], nil
}

func (d *fakeDoc) Info() Meta   { return d.info }
func (d *fakeDoc) Close() error { d.closed = true; return nil }

// fakeEngine recognizes "path|page" image payloads produced by fakeRaster.
type fakeEngine struct {
	mu    sync.Mutex
	calls []string
	fn    func(img string) (ocr.Result, error)
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(_ context.Context, img []byte) (ocr.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, string(img))
	e.mu.Unlock()
	return e.fn(string(img))
}

func (e *fakeEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func constEngine(text string, conf ...int) *fakeEngine {
	return &fakeEngine{fn: func(string) (ocr.Result, error) {
		return ocr.Result{Text: text, Confidences: conf}, nil
	}}
}

// fakeRasterizer serves sub-documents named "sub:X-Y" with Y-X+1 pages and
// any other path with pages pages.
type fakeRasterizer struct {
	pages int
	err   error
}

func (r *fakeRasterizer) Open(path string) (ocr.Raster, error) {
	if r.err != nil {
		return nil, r.err
	}
	n := r.pages
	var first, last int
	if _, err := fmt.Sscanf(path, "sub:%d-%d", &first, &last); err == nil {
		n = last - first + 1
	}
	return &fakeRaster{path: path, n: n}, nil
}

type fakeRaster struct {
	path string
	n    int
}

func (r *fakeRaster) NumPage() int { return r.n }
func (r *fakeRaster) RenderPage(pageNr int) ([]byte, error) {
	return []byte(fmt.Sprintf("%s|%d", r.path, pageNr)), nil
}
func (r *fakeRaster) Close() error { return nil }

type fakeSplitter struct {
	mu       sync.Mutex
	fail     map[string]error
	released int
	ranges   []string
}

func (s *fakeSplitter) ExtractRange(_ context.Context, _ string, first, last int) (*SubDocument, error) {
	key := fmt.Sprintf("%d-%d", first, last)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges = append(s.ranges, key)
	if err := s.fail[key]; err != nil {
		return nil, err
	}
	if err := s.fail["*"]; err != nil {
		return nil, err
	}
	return &SubDocument{
		Path:      "sub:" + key,
		FirstPage: first,
		LastPage:  last,
		release: func() error {
			s.mu.Lock()
			s.released++
			s.mu.Unlock()
			return nil
		},
	}, nil
}

type fakeImages struct {
	pages map[int][]RawImage
	n     int
}

func (f *fakeImages) NumPage() int { return f.n }
func (f *fakeImages) PageImages(pageNr int) ([]RawImage, error) {
	return f.pages[pageNr], nil
}
func (f *fakeImages) Close() error { return nil }

type fixture struct {
	doc      *fakeDoc
	docErr   error
	engine   *fakeEngine
	raster   *fakeRasterizer
	splitter *fakeSplitter
	images   ImageSource
	imgErr   error
	mutate   func(cfg *Config)
}

func (f fixture) processor() *Processor {
	cfg := NewDefaultConfig()
	cfg.StreamingPacing = 0
	cfg.OCRChunkPacing = 0
	cfg.OCRTimeout = time.Second
	if f.engine != nil {
		cfg.OCREngine = f.engine
	}
	if f.raster != nil {
		cfg.Rasterizer = f.raster
	}
	if f.splitter != nil {
		cfg.Splitter = f.splitter
	}
	if f.mutate != nil {
		f.mutate(cfg)
	}
	p := NewProcessor(cfg)
	p.openDoc = func(string) (Document, error) {
		if f.docErr != nil {
			return nil, f.docErr
		}
		return f.doc, nil
	}
	p.openImages = func(string) (ImageSource, error) {
		if f.imgErr != nil {
			return nil, f.imgErr
		}
		if f.images == nil {
			return &fakeImages{}, nil
		}
		return f.images, nil
	}
	p.pageCount = func(string) (int, error) { return 0, errors.New("unreadable") }
	return p
}

func extract(t *testing.T, f fixture, sizeMB float64) (*ExtractionResult, *recorder) {
	t.Helper()
	rec := &recorder{}
	res, err := f.processor().Extract(context.Background(), sizedFile(t, sizeMB), rec.sink)
	require.NoError(t, err)
	require.NotNil(t, res)
	assertMonotonicTo100(t, rec.percents)
	return res, rec
}

var longText = strings.Repeat("Lorem ipsum dolor sit amet. ", 10)

func TestExtract_TextDocument(t *testing.T) {
	doc := textDoc(10, longText)
	doc.info = Meta{Title: "Annual Report", Author: "Finance"}
	doc.tables = map[int][][][]string{
		2: {{{"Name", "Qty"}, {"Apples", "3"}}},
	}
	engine := constEngine("should not run")

	res, _ := extract(t, fixture{doc: doc, engine: engine, raster: &fakeRasterizer{pages: 10}}, 1)

	assert.Equal(t, MethodTextExtraction, res.ExtractionMethod)
	assert.Equal(t, string(MethodTextExtraction), res.Metadata[MetaExtractionMethod])
	assert.Zero(t, engine.count(), "no OCR for good text")
	assert.Len(t, res.Pages, 10)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, 2, res.Tables[0].Page)
	assert.Equal(t, 0, res.Tables[0].TableIndex)
	assert.Contains(t, res.Text, "--- Page 1 ---\n")
	assert.Contains(t, res.Text, "--- Table 1 (Page 2) ---\n| Name | Qty |")
	assert.Equal(t, "Annual Report", res.Metadata[MetaTitle])
	assert.Equal(t, 10, res.Metadata[MetaPages])
	assert.Equal(t, 10, res.Metadata[MetaPagesWithText])
	assert.Equal(t, processingStandard, res.Metadata[MetaProcessingMethod])
	assert.NotEmpty(t, res.Metadata[MetaRunID])
	assert.Nil(t, res.OCRConfidence)
	assert.True(t, doc.closed)
}

func TestExtract_TablesSkippedOnLongDocuments(t *testing.T) {
	doc := textDoc(100, longText)
	doc.tables = map[int][][][]string{1: {{{"a", "b"}, {"c", "d"}}}}

	res, _ := extract(t, fixture{doc: doc}, 1)

	assert.Equal(t, MethodTextExtraction, res.ExtractionMethod)
	assert.Empty(t, res.Tables)
	assert.NotContains(t, res.Text, "--- Table")
}

func TestExtract_ScannedDocumentFallsBackToOCR(t *testing.T) {
	engine := constEngine("  Scanned invoice text  \n\n  second line ", 90, 80, 0, -1)

	res, _ := extract(t, fixture{
		doc:    textDoc(10, ""),
		engine: engine,
		raster: &fakeRasterizer{pages: 10},
	}, 2)

	assert.Equal(t, MethodOCRFallback, res.ExtractionMethod)
	assert.Equal(t, 10, engine.count())
	require.NotNil(t, res.OCRConfidence)
	assert.InDelta(t, 85.0, *res.OCRConfidence, 1e-9)
	assert.Equal(t, "85.00%", res.Metadata[MetaOCRConfidence])
	assert.Len(t, res.OCRPages, 10)
	assert.Equal(t, 10, res.PagesProcessed)
	assert.Equal(t, 10, res.Metadata[MetaOCRPagesWithText])
	assert.Equal(t, 50, res.Metadata[MetaTotalWords])
	assert.Contains(t, res.Text, "--- Page 3 ---\nScanned invoice text\nsecond line")
}

func TestExtract_OCRWithoutConfidenceSamples(t *testing.T) {
	res, _ := extract(t, fixture{
		doc:    textDoc(3, ""),
		engine: constEngine("some text", 0, -1),
		raster: &fakeRasterizer{pages: 3},
	}, 1)

	assert.Equal(t, MethodOCRFallback, res.ExtractionMethod)
	assert.Nil(t, res.OCRConfidence)
	assert.NotContains(t, res.Metadata, MetaOCRConfidence)
}

func TestExtract_OCRUnavailableKeepsText(t *testing.T) {
	doc := textDoc(4, "")
	doc.pages[0] = "short"

	res, _ := extract(t, fixture{doc: doc}, 1)

	assert.Equal(t, MethodTextExtractionOnly, res.ExtractionMethod)
	assert.Contains(t, res.Metadata[MetaOCRError], ocr.ErrUnavailable.Error())
	assert.Contains(t, res.Metadata[MetaRecommendation], "Install or enable an OCR engine")
	assert.Contains(t, res.Text, "short")
	assert.Empty(t, res.Error)
}

func TestExtract_OCRRetriesThenGivesUp(t *testing.T) {
	engine := &fakeEngine{fn: func(string) (ocr.Result, error) {
		return ocr.Result{}, fmt.Errorf("tesseract: %w", ocr.ErrUnavailable)
	}}

	res, _ := extract(t, fixture{
		doc:    textDoc(5, ""),
		engine: engine,
		raster: &fakeRasterizer{pages: 5},
		mutate: func(cfg *Config) { cfg.MaxRetries = 2 },
	}, 1)

	assert.Equal(t, 3, engine.count(), "one page, three attempts, then abort")
	assert.Equal(t, MethodTextExtractionOnly, res.ExtractionMethod)
}

func TestExtract_ChunkedOCRForLargeScans(t *testing.T) {
	engine := constEngine(longText, 70, 90)
	splitter := &fakeSplitter{}

	res, _ := extract(t, fixture{
		doc:      textDoc(1000, ""),
		engine:   engine,
		raster:   &fakeRasterizer{pages: 1000},
		splitter: splitter,
	}, 150)

	assert.Equal(t, MethodChunkedOCR, res.ExtractionMethod)
	assert.Equal(t, processingStreaming, res.Metadata[MetaProcessingMethod])
	assert.Equal(t, 50, strings.Count(res.Text, "--- Pages "))
	assert.Contains(t, res.Text, "--- Pages 981-1000 ---\n")
	assert.Equal(t, []string{"1-1", "2-2", "3-3", "499-499", "500-500"}, splitter.ranges[:5])
	assert.Len(t, splitter.ranges, 55)
	assert.Equal(t, 55, splitter.released)
	assert.Equal(t, 1005, engine.count())
	require.NotNil(t, res.OCRConfidence)
	assert.InDelta(t, 80.0, *res.OCRConfidence, 1e-9)
	assert.Equal(t, 1000, res.PagesProcessed)
	assert.Equal(t, 1000, res.OCRPages[999].PageNumber)
}

func TestExtract_ChunkFailureIsRecordedInline(t *testing.T) {
	splitter := &fakeSplitter{fail: map[string]error{"21-40": errors.New("trim failed")}}

	res, _ := extract(t, fixture{
		doc:      textDoc(60, ""),
		engine:   constEngine(longText, 50),
		raster:   &fakeRasterizer{pages: 60},
		splitter: splitter,
	}, 120)

	assert.Equal(t, MethodChunkedOCR, res.ExtractionMethod)
	assert.Contains(t, res.Text, "--- Pages 1-20 ---")
	assert.Contains(t, res.Text, "Pages 21-40: Error: could not process this chunk")
	assert.Contains(t, res.Text, "--- Pages 41-60 ---")
	assert.Len(t, res.OCRPages, 40)
}

func TestExtract_FeasibilityFailure(t *testing.T) {
	tests := []struct {
		name     string
		engine   *fakeEngine
		splitter *fakeSplitter
		result   string
	}{
		{
			name:     "sparse OCR text",
			engine:   constEngine("too short", 40),
			splitter: &fakeSplitter{},
			result:   "0/5 sample pages",
		},
		{
			name:   "no splitter",
			engine: constEngine(longText, 40),
			result: "0/0 sample pages",
		},
		{
			name:     "splitter unavailable",
			engine:   constEngine(longText, 40),
			splitter: &fakeSplitter{fail: map[string]error{"*": fmt.Errorf("%w: no temp dir", ErrSplitterUnavailable)}},
			result:   "0/0 sample pages",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{
				doc:    textDoc(40, ""),
				engine: tt.engine,
				raster: &fakeRasterizer{pages: 40},
			}
			if tt.splitter != nil {
				f.splitter = tt.splitter
			}
			res, _ := extract(t, f, 110)

			assert.Equal(t, MethodTextExtractionOnly, res.ExtractionMethod)
			assert.Contains(t, res.Metadata[MetaOCRTestResult], tt.result)
			assert.NotEmpty(t, res.Metadata[MetaRecommendation])
			assert.Nil(t, res.OCRConfidence)
		})
	}
}

func TestExtract_FeasibilitySkipsUnisolatedSamples(t *testing.T) {
	// Two samples cannot be isolated; the other three all succeed.
	splitter := &fakeSplitter{fail: map[string]error{
		"1-1": errors.New("broken page"),
		"2-2": errors.New("broken page"),
	}}
	res, _ := extract(t, fixture{
		doc:      textDoc(40, ""),
		engine:   constEngine(longText, 60),
		raster:   &fakeRasterizer{pages: 40},
		splitter: splitter,
	}, 110)

	assert.Equal(t, MethodChunkedOCR, res.ExtractionMethod)
}

func TestExtract_TooLargeForOCR(t *testing.T) {
	engine := constEngine(longText, 90)
	doc := textDoc(20, "")
	doc.pages[0] = "a little text"

	res, _ := extract(t, fixture{doc: doc, engine: engine, raster: &fakeRasterizer{pages: 20}, splitter: &fakeSplitter{}}, 250)

	assert.Equal(t, MethodTextExtractionOnly, res.ExtractionMethod)
	assert.NotEmpty(t, res.Metadata[MetaNote])
	assert.NotEmpty(t, res.Metadata[MetaRecommendation])
	assert.Zero(t, engine.count())
	assert.Contains(t, res.Text, "a little text")
}

func TestExtract_StreamingQualityProfile(t *testing.T) {
	// 3 of 10 pages with text meets the relaxed streaming ratio exactly.
	doc := textDoc(10, "")
	for i := 0; i < 3; i++ {
		doc.pages[i] = strings.Repeat("x", 200)
	}
	engine := constEngine(longText, 90)

	res, _ := extract(t, fixture{doc: doc, engine: engine, raster: &fakeRasterizer{pages: 10}}, 60)

	assert.Equal(t, processingStreaming, res.Metadata[MetaProcessingMethod])
	assert.Equal(t, MethodTextExtraction, res.ExtractionMethod)
	assert.Zero(t, engine.count())
}

func TestExtract_PageErrorsAreInline(t *testing.T) {
	doc := textDoc(10, longText)
	doc.errs = map[int]error{4: fmt.Errorf("page 4: %w", ErrNullPage)}

	res, _ := extract(t, fixture{doc: doc}, 1)

	assert.Equal(t, MethodTextExtraction, res.ExtractionMethod)
	assert.Contains(t, res.Text, "[Error extracting page 4:")
	assert.NotEmpty(t, res.Pages[3].Error)
	assert.Empty(t, res.Pages[4].Error)
}

func TestExtract_ZeroPages(t *testing.T) {
	res, _ := extract(t, fixture{
		doc:    &fakeDoc{},
		engine: constEngine(longText, 90),
		raster: &fakeRasterizer{pages: 0},
	}, 1)

	assert.Equal(t, MethodTextExtractionOnly, res.ExtractionMethod)
	assert.Equal(t, 0.0, res.Metadata[MetaAvgTextPerPage])
	assert.Contains(t, res.Metadata[MetaOCRError], ErrNoPages.Error())
	assert.Contains(t, res.Metadata[MetaRecommendation], "check the scan quality")
}

func TestExtract_ParseFailure(t *testing.T) {
	parseErr := errors.New("malformed xref table")

	t.Run("ocr recovers", func(t *testing.T) {
		res, _ := extract(t, fixture{
			docErr: parseErr,
			engine: constEngine("recovered by ocr", 75),
			raster: &fakeRasterizer{pages: 2},
		}, 1)

		assert.Equal(t, MethodOCRFallback, res.ExtractionMethod)
		assert.Equal(t, "PDF processing error: malformed xref table", res.Metadata[MetaFallbackReason])
		assert.Contains(t, res.Text, "recovered by ocr")
		assert.Empty(t, res.Error)
		assert.NotContains(t, res.Metadata, MetaRecommendation)
	})

	t.Run("ocr fails too", func(t *testing.T) {
		res, _ := extract(t, fixture{docErr: parseErr}, 1)

		assert.Equal(t, "Error processing PDF: malformed xref table", res.Text)
		assert.True(t, strings.HasPrefix(res.Error, "PDF processing failed: malformed xref table, OCR fallback failed: "))
		assert.Contains(t, res.Metadata[MetaRecommendation], "Install or enable an OCR engine")
		assert.Empty(t, res.Images)
	})
}

func TestExtract_Images(t *testing.T) {
	t.Run("phase failure", func(t *testing.T) {
		res, _ := extract(t, fixture{doc: textDoc(2, longText), imgErr: errors.New("pdfcpu read: bad object")}, 1)

		assert.Empty(t, res.Images)
		assert.NotNil(t, res.Images)
		assert.Equal(t, "pdfcpu read: bad object", res.Metadata[MetaImageExtractionError])
		assert.Equal(t, 0, res.Metadata[MetaImagesExtracted])
	})

	t.Run("alpha page does not affect later pages", func(t *testing.T) {
		src := &fakeImages{n: 2, pages: map[int][]RawImage{
			1: {{Format: "png", Data: pngWithAlpha(t, 8, 8)}},
			2: {{Format: "jpg", Data: []byte("not an image")}, {Format: "png", Data: pngWithAlpha(t, 4, 4)}},
		}}
		res, _ := extract(t, fixture{doc: textDoc(2, longText), images: src}, 1)

		require.Len(t, res.Images, 2)
		assert.Equal(t, 1, res.Images[0].PageNumber)
		assert.Equal(t, 2, res.Images[1].PageNumber)
		assert.Equal(t, 1, res.Images[1].ImageIndex)
		assert.Equal(t, 2, res.Metadata[MetaImagesExtracted])
	})
}

func TestExtract_Truncation(t *testing.T) {
	res, _ := extract(t, fixture{
		doc:    textDoc(10, longText),
		mutate: func(cfg *Config) { cfg.MaxTotalChars = 100 },
	}, 1)

	assert.Equal(t, 100, len([]rune(res.Text)))
	assert.Equal(t, true, res.Metadata[MetaTruncated])
}

func TestExtract_PanickingProgressSink(t *testing.T) {
	p := fixture{doc: textDoc(3, longText)}.processor()
	res, err := p.Extract(context.Background(), sizedFile(t, 1), func(int, string) { panic("sink broke") })

	require.NoError(t, err)
	assert.Equal(t, MethodTextExtraction, res.ExtractionMethod)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}

	_, err := fixture{doc: textDoc(3, longText)}.processor().Extract(ctx, sizedFile(t, 1), rec.sink)

	assert.ErrorIs(t, err, context.Canceled)
	assertMonotonicTo100(t, rec.percents)
}

func TestStreamingChunkSize(t *testing.T) {
	cfg := NewDefaultConfig()
	tests := []struct {
		pages, want int
	}{
		{0, 5}, {30, 5}, {60, 6}, {150, 15}, {200, 20}, {5000, 20},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pages), func(t *testing.T) {
			assert.Equal(t, tt.want, streamingChunkSize(tt.pages, cfg))
		})
	}
}

func TestProcessor_Extract_GeneratedPDF(t *testing.T) {
	path := writeFixture(t, "inventory.pdf", buildPDF(map[string]string{"Title": "Inventory"},
		linesPage(
			"Quarterly results were strong across regions.",
			"Revenue grew while operating costs stayed flat.",
			"Warehouse counts were reconciled in March.",
			"The table on the next page lists stock on hand.",
		),
		tablePage(inventoryRows, "Prose follows the table."),
	))
	proc := NewProcessor(NewDefaultConfig())

	rec := &recorder{}
	res, err := proc.Extract(context.Background(), path, rec.sink)
	require.NoError(t, err)
	assertMonotonicTo100(t, rec.percents)

	assert.Empty(t, res.Error)
	assert.Equal(t, MethodTextExtraction, res.ExtractionMethod)
	assert.Contains(t, res.Text, "--- Page 1 ---\nQuarterly results were strong across regions.\nRevenue grew while operating costs stayed flat.\n")
	assert.Contains(t, res.Text, "--- Table 1 (Page 2) ---\n| Name | Qty | Price |\n| --- | --- | --- |\n| Widget | 2 | 9.99 |\n")
	assert.NotContains(t, res.Text, "NameQty")

	require.Len(t, res.Pages, 2)
	require.Len(t, res.Pages[1].Tables, 1)
	assert.Equal(t, 2, res.Metadata[MetaPages])
	assert.Equal(t, "Inventory", res.Metadata[MetaTitle])
	assert.Equal(t, processingStandard, res.Metadata[MetaProcessingMethod])
	assert.Empty(t, res.Images)
	assert.Equal(t, 0, res.Metadata[MetaImagesExtracted])
}

func TestNewProcessor_DebugSwitchOnlyTurnsOn(t *testing.T) {
	defer func(prev bool) { pdf.DebugOn = prev }(pdf.DebugOn)

	pdf.DebugOn = true
	NewProcessor(NewDefaultConfig())
	assert.True(t, pdf.DebugOn, "a processor without debug leaves the parser flag alone")
}

func TestNewProcessor_InvalidConfigPanics(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.MaxConcurrentDocuments = 0
	assert.Panics(t, func() { NewProcessor(cfg) })
}
