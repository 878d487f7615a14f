// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

// ExtractionMethod names the pipeline that produced ExtractionResult.Text.
type ExtractionMethod string

const (
	MethodTextExtraction     ExtractionMethod = "text_extraction"
	MethodOCRFallback        ExtractionMethod = "ocr_fallback"
	MethodChunkedOCR         ExtractionMethod = "chunked_ocr"
	MethodTextExtractionOnly ExtractionMethod = "text_extraction_only"
)

// ExtractionResult is the complete outcome of one extraction run.
// It is built by a single run and not modified after Extract returns.
type ExtractionResult struct {
	Text             string           `json:"text"`
	Tables           []TableRecord    `json:"tables"`
	Pages            []PageResult     `json:"pages"`
	Images           []ImageRecord    `json:"images"`
	Metadata         map[string]any   `json:"metadata"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`

	// OCRConfidence is set only when at least one OCR page reported a
	// positive confidence sample.
	OCRConfidence  *float64  `json:"ocr_confidence,omitempty"`
	OCRPages       []OCRPage `json:"ocr_pages,omitempty"`
	PagesProcessed int       `json:"pages_processed,omitempty"`

	// Error is set only when the document could be neither parsed nor OCRed.
	Error string `json:"error,omitempty"`
}

// PageResult holds what direct extraction produced for one page.
type PageResult struct {
	PageNumber int           `json:"page_number"`
	Text       string        `json:"text"`
	Tables     []TableRecord `json:"tables"`
	Error      string        `json:"error,omitempty"`
}

// TableRecord is one detected table. Data rows may be ragged.
type TableRecord struct {
	Page       int        `json:"page"`
	TableIndex int        `json:"table_index"`
	Data       [][]string `json:"data"`
}

// ImageRecord is one embedded image after normalization.
type ImageRecord struct {
	PageNumber        int    `json:"page_number"`
	ImageIndex        int    `json:"image_index"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	OriginalFormat    string `json:"original_format"`
	NormalizedFormat  string `json:"format"`
	SizeBytes         int    `json:"size_bytes"`
	EncodedPayload    string `json:"base64_data"`
	SuggestedFilename string `json:"filename"`
}

// OCRPage holds per-page OCR statistics.
type OCRPage struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	WordCount  int     `json:"word_count"`
	Error      string  `json:"error,omitempty"`
}

// Metadata keys written by the core.
const (
	MetaTitle                = "title"
	MetaAuthor               = "author"
	MetaSubject              = "subject"
	MetaCreator              = "creator"
	MetaProducer             = "producer"
	MetaPages                = "pages"
	MetaFileSizeMB           = "file_size_mb"
	MetaProcessingMethod     = "processing_method"
	MetaExtractionMethod     = "extraction_method"
	MetaPagesWithText        = "pages_with_text"
	MetaAvgTextPerPage       = "avg_text_per_page"
	MetaOCRConfidence        = "ocr_confidence"
	MetaOCRPagesWithText     = "ocr_pages_with_text"
	MetaTotalWords           = "total_words"
	MetaImagesExtracted      = "images_extracted"
	MetaImageExtractionError = "image_extraction_error"
	MetaNote                 = "note"
	MetaRecommendation       = "recommendation"
	MetaOCRTestResult        = "ocr_test_result"
	MetaFallbackReason       = "fallback_reason"
	MetaOCRError             = "ocr_error"
	MetaRunID                = "run_id"
	MetaTruncated            = "truncated"
)

func newResult() *ExtractionResult {
	return &ExtractionResult{
		Tables:           []TableRecord{},
		Pages:            []PageResult{},
		Images:           []ImageRecord{},
		Metadata:         map[string]any{},
		ExtractionMethod: MethodTextExtraction,
	}
}
