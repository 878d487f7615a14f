// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package raster renders PDF pages to images for OCR using MuPDF.
package raster

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/rayfred90/file-to-md-json/logger"
	"github.com/rayfred90/file-to-md-json/ocr"
)

// DefaultDPI renders at twice the 72dpi PDF user space.
const DefaultDPI = 144.0

// Fitz implements ocr.Rasterizer with go-fitz.
type Fitz struct {
	DPI float64
}

// New returns a rasterizer rendering at dpi, or DefaultDPI when dpi <= 0.
func New(dpi float64) *Fitz {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Fitz{DPI: dpi}
}

// Open opens path for page rendering.
func (f *Fitz) Open(path string) (ocr.Raster, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open for rendering: %w", err)
	}
	logger.Debug("raster: document opened", "path", path, "pages", doc.NumPage())
	return &document{doc: doc, dpi: f.DPI}, nil
}

type document struct {
	doc *fitz.Document
	dpi float64
}

func (d *document) NumPage() int { return d.doc.NumPage() }

// RenderPage renders a 1-based page to PNG.
func (d *document) RenderPage(pageNr int) ([]byte, error) {
	if pageNr < 1 || pageNr > d.doc.NumPage() {
		return nil, fmt.Errorf("render page %d: out of range (1-%d)", pageNr, d.doc.NumPage())
	}
	png, err := d.doc.ImagePNG(pageNr-1, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageNr, err)
	}
	return png, nil
}

func (d *document) Close() error { return d.doc.Close() }
