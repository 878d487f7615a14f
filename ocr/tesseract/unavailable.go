// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

//go:build !ocr

package tesseract

import (
	"context"
	"fmt"

	"github.com/rayfred90/file-to-md-json/ocr"
)

// Engine is the stand-in used when the binary is built without the ocr tag.
// Every call fails with ocr.ErrUnavailable.
type Engine struct {
	Languages []string
	DPI       int
}

// New returns an engine that reports Tesseract as unavailable.
func New(languages ...string) *Engine {
	return &Engine{Languages: languages}
}

func (e *Engine) Name() string { return "tesseract-unavailable" }

func (e *Engine) Recognize(ctx context.Context, image []byte) (ocr.Result, error) {
	return ocr.Result{}, fmt.Errorf("tesseract support not compiled in (build with -tags ocr): %w", ocr.ErrUnavailable)
}
