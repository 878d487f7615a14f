// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rayfred90/file-to-md-json/logger"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PDFX_"

// LoadConfig builds a Config from defaults, an optional YAML file, an optional
// .env file in the working directory, and PDFX_* environment variables, in
// that order of precedence (later wins). The result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		logger.Debug("config file loaded", "path", path)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.MaxConcurrentDocuments = envInt("MAX_CONCURRENT_DOCUMENTS", cfg.MaxConcurrentDocuments)
	cfg.MaxConcurrentOCR = envInt("MAX_CONCURRENT_OCR", cfg.MaxConcurrentOCR)
	cfg.OCRTimeout = envDur("OCR_TIMEOUT", cfg.OCRTimeout)
	cfg.MaxRetries = envInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.MaxTotalChars = envInt("MAX_TOTAL_CHARS", cfg.MaxTotalChars)

	cfg.StreamingThresholdMB = envFloat("STREAMING_THRESHOLD_MB", cfg.StreamingThresholdMB)
	cfg.ChunkedOCRThresholdMB = envFloat("CHUNKED_OCR_THRESHOLD_MB", cfg.ChunkedOCRThresholdMB)
	cfg.OCRSizeLimitMB = envFloat("OCR_SIZE_LIMIT_MB", cfg.OCRSizeLimitMB)

	cfg.StandardQuality.MinTextPageRatio = envFloat("STANDARD_MIN_TEXT_PAGE_RATIO", cfg.StandardQuality.MinTextPageRatio)
	cfg.StandardQuality.MinAvgChars = envFloat("STANDARD_MIN_AVG_CHARS", cfg.StandardQuality.MinAvgChars)
	cfg.StreamingQuality.MinTextPageRatio = envFloat("STREAMING_MIN_TEXT_PAGE_RATIO", cfg.StreamingQuality.MinTextPageRatio)
	cfg.StreamingQuality.MinAvgChars = envFloat("STREAMING_MIN_AVG_CHARS", cfg.StreamingQuality.MinAvgChars)

	cfg.TableMaxPages = envInt("TABLE_MAX_PAGES", cfg.TableMaxPages)
	cfg.StreamingChunkDivisor = envInt("STREAMING_CHUNK_DIVISOR", cfg.StreamingChunkDivisor)
	cfg.StreamingMinChunk = envInt("STREAMING_MIN_CHUNK", cfg.StreamingMinChunk)
	cfg.StreamingMaxChunk = envInt("STREAMING_MAX_CHUNK", cfg.StreamingMaxChunk)
	cfg.StreamingPacing = envDur("STREAMING_PACING", cfg.StreamingPacing)
	cfg.StreamingFinePageCount = envInt("STREAMING_FINE_PAGE_COUNT", cfg.StreamingFinePageCount)
	cfg.OCRChunkSize = envInt("OCR_CHUNK_SIZE", cfg.OCRChunkSize)
	cfg.OCRChunkPacing = envDur("OCR_CHUNK_PACING", cfg.OCRChunkPacing)
	cfg.OCRLanguages = envList("OCR_LANGUAGES", cfg.OCRLanguages)
	cfg.OCRRenderDPI = envFloat("OCR_RENDER_DPI", cfg.OCRRenderDPI)

	cfg.FeasibilityAllPagesUpTo = envInt("FEASIBILITY_ALL_PAGES_UP_TO", cfg.FeasibilityAllPagesUpTo)
	cfg.FeasibilityMaxSamples = envInt("FEASIBILITY_MAX_SAMPLES", cfg.FeasibilityMaxSamples)
	cfg.FeasibilityMinChars = envInt("FEASIBILITY_MIN_CHARS", cfg.FeasibilityMinChars)
	cfg.FeasibilityMinRate = envFloat("FEASIBILITY_MIN_RATE", cfg.FeasibilityMinRate)

	cfg.MaxImages = envInt("MAX_IMAGES", cfg.MaxImages)
	cfg.ImageQuality = envInt("IMAGE_QUALITY", cfg.ImageQuality)
	cfg.MaxImageDimension = envInt("MAX_IMAGE_DIMENSION", cfg.MaxImageDimension)

	cfg.TempDir = envStr("TEMP_DIR", cfg.TempDir)
	cfg.DebugOn = envBool("DEBUG", cfg.DebugOn)
}

func envStr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Error("ignoring invalid integer env value", "key", EnvPrefix+k, "value", v)
		return def
	}
	return n
}

func envFloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Error("ignoring invalid float env value", "key", EnvPrefix+k, "value", v)
		return def
	}
	return f
}

func envDur(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Error("ignoring invalid duration env value", "key", EnvPrefix+k, "value", v)
		return def
	}
	return d
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + k))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
