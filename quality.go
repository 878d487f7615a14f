// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import "unicode/utf8"

// ratioEpsilon absorbs float error in total*ratio (10*0.3 is not exactly 3).
const ratioEpsilon = 1e-9

// TextStats aggregates direct-extraction results over a whole document.
type TextStats struct {
	TotalPages    int
	PagesWithText int
	TotalChars    int
}

// add records one page's trimmed text.
func (s *TextStats) add(text string) {
	if text == "" {
		return
	}
	s.PagesWithText++
	s.TotalChars += utf8.RuneCountInString(text)
}

// AvgTextPerPage is TotalChars/TotalPages, or 0 for an empty document.
func (s TextStats) AvgTextPerPage() float64 {
	if s.TotalPages <= 0 {
		return 0
	}
	return float64(s.TotalChars) / float64(s.TotalPages)
}

// Passed reports whether direct extraction produced usable text under q.
// A document without pages never passes.
func (q QualityProfile) Passed(s TextStats) bool {
	if s.TotalPages <= 0 {
		return false
	}
	if float64(s.PagesWithText)+ratioEpsilon < float64(s.TotalPages)*q.MinTextPageRatio {
		return false
	}
	return s.AvgTextPerPage() >= q.MinAvgChars
}
