// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

//go:build ocr

package tesseract

import (
	"context"
	"fmt"
	"math"

	"github.com/otiai10/gosseract/v2"
	"github.com/rayfred90/file-to-md-json/logger"
	"github.com/rayfred90/file-to-md-json/ocr"
)

func init() {
	ocr.SetDefaultEngine(New("eng"))
}

// Engine implements ocr.Engine on top of a gosseract client.
// A fresh client is created per call so concurrent calls never share state.
type Engine struct {
	Languages []string
	DPI       int

	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New(languages ...string) *Engine {
	return &Engine{Languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract on one encoded page image.
func (e *Engine) Recognize(ctx context.Context, image []byte) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(e.Languages) > 0 {
		if err := c.SetLanguage(e.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if e.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// text is still usable without per-word scores
		logger.Debug("tesseract: no word boxes", "err", err)
		return ocr.Result{Text: text}, nil
	}
	confidences := make([]int, 0, len(boxes))
	for _, b := range boxes {
		confidences = append(confidences, int(math.Round(b.Confidence)))
	}
	return ocr.Result{Text: text, Confidences: confidences}, nil
}
