// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rayfred90/file-to-md-json/logger"
	"github.com/rayfred90/file-to-md-json/ocr"
)

// QualityProfile is one threshold pair for the text-quality heuristic.
type QualityProfile struct {
	MinTextPageRatio float64 `yaml:"min_text_page_ratio" validate:"gte=0,lte=1"`
	MinAvgChars      float64 `yaml:"min_avg_chars" validate:"gte=0"`
}

type Config struct {
	MaxConcurrentDocuments int           `yaml:"max_concurrent_documents" validate:"min=1,max=10"`
	MaxConcurrentOCR       int           `yaml:"max_concurrent_ocr" validate:"min=1,max=10"`
	OCRTimeout             time.Duration `yaml:"ocr_timeout" validate:"required"`
	MaxRetries             int           `yaml:"max_retries" validate:"min=0,max=3"`
	MaxTotalChars          int           `yaml:"max_total_chars" validate:"min=0"`

	// Strategy thresholds, in megabytes.
	StreamingThresholdMB  float64 `yaml:"streaming_threshold_mb" validate:"gt=0"`
	ChunkedOCRThresholdMB float64 `yaml:"chunked_ocr_threshold_mb" validate:"gtefield=StreamingThresholdMB"`
	OCRSizeLimitMB        float64 `yaml:"ocr_size_limit_mb" validate:"gtefield=ChunkedOCRThresholdMB"`

	StandardQuality  QualityProfile `yaml:"standard_quality"`
	StreamingQuality QualityProfile `yaml:"streaming_quality"`

	// Tables are only extracted below this page count.
	TableMaxPages int `yaml:"table_max_pages" validate:"min=0"`

	StreamingChunkDivisor  int           `yaml:"streaming_chunk_divisor" validate:"min=1"`
	StreamingMinChunk      int           `yaml:"streaming_min_chunk" validate:"min=1"`
	StreamingMaxChunk      int           `yaml:"streaming_max_chunk" validate:"gtefield=StreamingMinChunk"`
	StreamingPacing        time.Duration `yaml:"streaming_pacing" validate:"min=0"`
	StreamingFinePageCount int           `yaml:"streaming_fine_page_count" validate:"min=0"`

	OCRChunkSize   int           `yaml:"ocr_chunk_size" validate:"min=1"`
	OCRChunkPacing time.Duration `yaml:"ocr_chunk_pacing" validate:"min=0"`
	OCRLanguages   []string      `yaml:"ocr_languages" validate:"dive,required"`
	OCRRenderDPI   float64       `yaml:"ocr_render_dpi" validate:"gte=0"`

	FeasibilityAllPagesUpTo int     `yaml:"feasibility_all_pages_up_to" validate:"min=0"`
	FeasibilityMaxSamples   int     `yaml:"feasibility_max_samples" validate:"min=1"`
	FeasibilityMinChars     int     `yaml:"feasibility_min_chars" validate:"min=0"`
	FeasibilityMinRate      float64 `yaml:"feasibility_min_rate" validate:"gte=0,lte=1"`

	MaxImages         int `yaml:"max_images" validate:"min=0,max=50"`
	ImageQuality      int `yaml:"image_quality" validate:"min=1,max=100"`
	MaxImageDimension int `yaml:"max_image_dimension" validate:"min=0"`

	// TempDir holds materialized sub-documents; empty means os.TempDir.
	TempDir string `yaml:"temp_dir"`
	DebugOn bool   `yaml:"debug"`

	Logger     logger.LogFunc     `yaml:"-" validate:"-"`
	OCREngine  ocr.Engine         `yaml:"-" validate:"-"`
	Rasterizer ocr.Rasterizer     `yaml:"-" validate:"-"`
	Splitter   PageRangeExtractor `yaml:"-" validate:"-"`
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxConcurrentDocuments: 5,
		MaxConcurrentOCR:       1,
		OCRTimeout:             2 * time.Minute,
		MaxRetries:             1,
		MaxTotalChars:          0,

		StreamingThresholdMB:  50,
		ChunkedOCRThresholdMB: 100,
		OCRSizeLimitMB:        200,

		StandardQuality:  QualityProfile{MinTextPageRatio: 0.5, MinAvgChars: 100},
		StreamingQuality: QualityProfile{MinTextPageRatio: 0.3, MinAvgChars: 50},

		TableMaxPages: 100,

		StreamingChunkDivisor:  10,
		StreamingMinChunk:      5,
		StreamingMaxChunk:      20,
		StreamingPacing:        100 * time.Millisecond,
		StreamingFinePageCount: 500,

		OCRChunkSize:   20,
		OCRChunkPacing: 500 * time.Millisecond,
		OCRLanguages:   []string{"eng"},
		OCRRenderDPI:   144,

		FeasibilityAllPagesUpTo: 10,
		FeasibilityMaxSamples:   5,
		FeasibilityMinChars:     50,
		FeasibilityMinRate:      0.5,

		MaxImages:    50,
		ImageQuality: 85,

		DebugOn: false,
	}
}

func (cfg *Config) Validate() error {
	logger.Debug("Validating Config Object")
	validate := validator.New()
	return validate.Struct(cfg)
}
