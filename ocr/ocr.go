// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package ocr defines the calling contract between the extraction core and an
// OCR engine, plus the page rasterizer that feeds it.
package ocr

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrUnavailable reports that no OCR engine or rasterizer is installed.
// Callers treat it as retryable; it is never converted into empty text.
var ErrUnavailable = errors.New("ocr: engine unavailable")

// Result is the raw output of one recognition call.
// Confidences holds one 0-100 score per detected token; values <= 0 mean
// "no detection".
type Result struct {
	Text        string
	Confidences []int
}

// Engine recognizes text in a single rendered page image (PNG/JPEG bytes).
// Implementations must tolerate concurrent independent calls or be
// serialized by the caller.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// Raster is an opened document that can render pages to images.
type Raster interface {
	NumPage() int
	// RenderPage renders the 1-based page to encoded image bytes.
	RenderPage(pageNr int) ([]byte, error)
	Close() error
}

// Rasterizer opens documents for rendering.
type Rasterizer interface {
	Open(path string) (Raster, error)
}

var (
	mu            sync.RWMutex
	defaultEngine Engine
)

// SetDefaultEngine registers the engine returned by DefaultEngine.
func SetDefaultEngine(e Engine) {
	mu.Lock()
	defaultEngine = e
	mu.Unlock()
}

// DefaultEngine returns the registered engine, or nil.
func DefaultEngine() Engine {
	mu.RLock()
	defer mu.RUnlock()
	return defaultEngine
}

// IsRetryable reports whether a recognition error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// PageConfidence returns the mean of the positive confidences and the
// positive samples themselves. ok is false when nothing was detected.
func PageConfidence(confidences []int) (mean float64, samples []int, ok bool) {
	sum := 0
	for _, c := range confidences {
		if c > 0 {
			samples = append(samples, c)
			sum += c
		}
	}
	if len(samples) == 0 {
		return 0, nil, false
	}
	return float64(sum) / float64(len(samples)), samples, true
}

// Mean averages pooled confidence samples across pages.
func Mean(pooled []int) (float64, bool) {
	if len(pooled) == 0 {
		return 0, false
	}
	sum := 0
	for _, c := range pooled {
		sum += c
	}
	return float64(sum) / float64(len(pooled)), true
}

// CleanText trims every line and drops blank ones.
func CleanText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
