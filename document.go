// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/rayfred90/file-to-md-json/logger"
)

var (
	// ErrNullPage is returned for page slots the page tree cannot resolve.
	ErrNullPage = errors.New("null page")
	// ErrParserPanic wraps a panic raised inside the PDF parser.
	ErrParserPanic = errors.New("pdf parser panic")
	// ErrNoPages reports a document with an empty page tree.
	ErrNoPages = errors.New("document has no pages")
)

// Document is a parsed PDF the pipelines read page by page.
// Page numbers are 1-based.
type Document interface {
	NumPage() int
	PageText(pageNr int) (string, error)
	PageTables(pageNr int) ([][][]string, error)
	Info() Meta
	Close() error
}

// pdfDocument implements Document with github.com/ledongthuc/pdf.
type pdfDocument struct {
	path string
	f    io.ReaderAt
	c    io.Closer
	r    *pdf.Reader
}

// OpenDocument opens and parses the PDF at path.
func OpenDocument(path string) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open %s: %w: %v", path, ErrParserPanic, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	logger.Debug(fmt.Sprintf("Document opened: path=%s pages=%d", path, r.NumPage()), true)
	return &pdfDocument{path: path, f: f, c: f, r: r}, nil
}

// NewDocument parses a PDF held in ra.
func NewDocument(ra io.ReaderAt, size int64) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse: %w: %v", ErrParserPanic, r)
		}
	}()
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	return &pdfDocument{f: ra, r: r}, nil
}

func (d *pdfDocument) NumPage() int { return d.r.NumPage() }

func (d *pdfDocument) Close() error {
	if d.c == nil {
		return nil
	}
	return d.c.Close()
}

func (d *pdfDocument) page(pageNr int) (pdf.Page, error) {
	page := d.r.Page(pageNr)
	if page.V.IsNull() {
		return page, fmt.Errorf("page %d: %w", pageNr, ErrNullPage)
	}
	return page, nil
}

// PageText returns the plain text of one page.
func (d *pdfDocument) PageText(pageNr int) (text string, err error) {
	defer recoverPage(pageNr, &err)
	page, err := d.page(pageNr)
	if err != nil {
		return "", err
	}
	return pageText(page, cacheFonts(page))
}

// PageTables returns the tables detected on one page from glyph positions.
func (d *pdfDocument) PageTables(pageNr int) (tables [][][]string, err error) {
	defer recoverPage(pageNr, &err)
	page, err := d.page(pageNr)
	if err != nil {
		return nil, err
	}
	return detectTables(page.Content().Text), nil
}

// Info returns the document metadata, or the Info dictionary alone when the
// XMP stream cannot be read.
func (d *pdfDocument) Info() (m Meta) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("metadata read panicked", "panic", fmt.Sprint(r))
			m = Meta{}
		}
	}()
	m, err := d.Metadata()
	if err != nil {
		logger.Debug("XMP metadata unreadable, using Info dictionary", "err", err)
		return d.readInfo()
	}
	return m
}

func recoverPage(pageNr int, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("page %d: %w: %v", pageNr, ErrParserPanic, r)
	}
}

// cacheFonts creates a one-time map of fonts for a page to avoid
// repeatedly parsing font charmaps.
func cacheFonts(page pdf.Page) map[string]*pdf.Font {
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		if _, exists := fonts[name]; !exists {
			f := page.Font(name)
			fonts[name] = &f
		}
	}
	return fonts
}

// fileSize returns the size of the file at path.
func fileSize(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}
