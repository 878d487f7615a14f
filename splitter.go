// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rayfred90/file-to-md-json/logger"
)

// ErrSplitterUnavailable reports that sub-documents cannot be produced at
// all, as opposed to one page range failing.
var ErrSplitterUnavailable = errors.New("page-range extraction unavailable")

// SubDocument is a standalone PDF holding a page range of its source.
// Release must be called once the caller is done with it.
type SubDocument struct {
	Path      string
	FirstPage int
	LastPage  int

	release func() error
}

// Release deletes the temporary file backing the sub-document.
func (s *SubDocument) Release() error {
	if s == nil || s.release == nil {
		return nil
	}
	err := s.release()
	s.release = nil
	return err
}

// PageRangeExtractor materializes page ranges of a PDF as sub-documents.
type PageRangeExtractor interface {
	ExtractRange(ctx context.Context, path string, first, last int) (*SubDocument, error)
}

// pdfcpuSplitter implements PageRangeExtractor in-process with pdfcpu.
type pdfcpuSplitter struct {
	dir  string
	conf *model.Configuration
	seq  atomic.Int64
}

// NewPageRangeExtractor returns a pdfcpu-backed extractor writing into dir
// (os.TempDir when empty).
func NewPageRangeExtractor(dir string) PageRangeExtractor {
	return &pdfcpuSplitter{dir: dir, conf: pdfcpuConfig()}
}

func pdfcpuConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (s *pdfcpuSplitter) ExtractRange(ctx context.Context, path string, first, last int) (*SubDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if first < 1 || last < first {
		return nil, fmt.Errorf("invalid page range %d-%d", first, last)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSplitterUnavailable, err)
	}
	dir, err := os.MkdirTemp(s.dir, "pdfx-range-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSplitterUnavailable, err)
	}

	n := s.seq.Add(1)
	out := filepath.Join(dir, fmt.Sprintf("chunk_%03d_pages_%d-%d.pdf", n, first, last))
	selection := fmt.Sprintf("%d-%d", first, last)
	if first == last {
		selection = fmt.Sprint(first)
	}
	if err := trimFile(path, out, selection, s.conf); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("extract pages %d-%d: %w", first, last, err)
	}
	logger.Debug(fmt.Sprintf("Sub-document materialized: pages=%d-%d path=%s", first, last, out), true)

	return &SubDocument{
		Path:      out,
		FirstPage: first,
		LastPage:  last,
		release:   func() error { return os.RemoveAll(dir) },
	}, nil
}

// trimFile shields callers from pdfcpu panics on malformed input.
func trimFile(in, out, selection string, conf *model.Configuration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	return api.TrimFile(in, out, []string{selection}, conf)
}
