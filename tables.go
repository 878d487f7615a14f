// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// rowTolerance is the Y distance (points) within which glyphs share a row.
	rowTolerance = 3.0
	// columnBucket is the X granularity (points) used to align cell starts.
	columnBucket = 5.0
	// cellGapFactor splits a row into cells at gaps wider than this many
	// font sizes.
	cellGapFactor = 1.0
	// wordGapFactor inserts a space at gaps wider than this many font sizes.
	wordGapFactor = 0.15

	defaultFontSize = 10.0
	minTableRows    = 2
	minTableCols    = 2
)

type textBlock struct {
	x, right float64
	text     string
}

// detectTables finds grid-aligned runs of rows on a page. Each table is
// returned as rows of cell strings, header row first.
func detectTables(texts []pdf.Text) [][][]string {
	var (
		tables [][][]string
		run    [][]textBlock
	)
	flush := func() {
		if t := buildTable(run); t != nil {
			tables = append(tables, t)
		}
		run = nil
	}
	for _, row := range groupIntoRows(texts) {
		blocks := rowBlocks(row)
		if len(blocks) >= minTableCols {
			run = append(run, blocks)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// groupIntoRows buckets glyphs by baseline and orders rows top to bottom.
func groupIntoRows(texts []pdf.Text) [][]pdf.Text {
	type bucket struct {
		yMin, yMax float64
		texts      []pdf.Text
	}
	var buckets []bucket
	for _, t := range texts {
		placed := false
		for i := range buckets {
			b := &buckets[i]
			if t.Y >= b.yMin-rowTolerance && t.Y <= b.yMax+rowTolerance {
				b.texts = append(b.texts, t)
				b.yMin = math.Min(b.yMin, t.Y)
				b.yMax = math.Max(b.yMax, t.Y)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{yMin: t.Y, yMax: t.Y, texts: []pdf.Text{t}})
		}
	}
	// PDF user space grows upwards.
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].yMax > buckets[j].yMax })

	rows := make([][]pdf.Text, len(buckets))
	for i, b := range buckets {
		rows[i] = b.texts
	}
	return rows
}

// rowBlocks merges the glyphs of one row into cells.
func rowBlocks(row []pdf.Text) []textBlock {
	sorted := make([]pdf.Text, len(row))
	copy(sorted, row)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var (
		blocks []textBlock
		cur    *textBlock
		sb     strings.Builder
	)
	closeBlock := func() {
		if cur != nil {
			cur.text = strings.TrimSpace(sb.String())
			if cur.text != "" {
				blocks = append(blocks, *cur)
			}
		}
		cur = nil
		sb.Reset()
	}
	for _, t := range sorted {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if cur != nil {
			gap := t.X - cur.right
			if gap > cellGapFactor*size {
				closeBlock()
			} else if gap > wordGapFactor*size {
				sb.WriteByte(' ')
			}
		}
		if cur == nil {
			cur = &textBlock{x: t.X}
		}
		sb.WriteString(t.S)
		cur.right = math.Max(cur.right, t.X+t.W)
	}
	closeBlock()
	return blocks
}

// buildTable aligns a run of multi-cell rows on shared column starts.
func buildTable(run [][]textBlock) [][]string {
	if len(run) < minTableRows {
		return nil
	}

	counts := make(map[int]int)
	for _, row := range run {
		seen := make(map[int]bool)
		for _, b := range row {
			k := int(math.Round(b.x / columnBucket))
			if !seen[k] {
				seen[k] = true
				counts[k]++
			}
		}
	}
	need := len(run)
	if need > 3 {
		need = 3
	}
	var starts []float64
	for k, n := range counts {
		if n >= need {
			starts = append(starts, float64(k)*columnBucket)
		}
	}
	sort.Float64s(starts)

	var cols []float64
	for _, x := range starts {
		if len(cols) > 0 && x-cols[len(cols)-1] <= columnBucket*2 {
			continue
		}
		cols = append(cols, x)
	}
	if len(cols) < minTableCols {
		return nil
	}

	table := make([][]string, len(run))
	for r, row := range run {
		cells := make([]string, len(cols))
		for _, b := range row {
			c := columnFor(cols, b.x)
			if cells[c] != "" {
				cells[c] += " "
			}
			cells[c] += b.text
		}
		table[r] = cells
	}
	return table
}

// columnFor returns the right-most column starting at or before x.
func columnFor(cols []float64, x float64) int {
	idx := 0
	for i, c := range cols {
		if c <= x+columnBucket*2 {
			idx = i
		}
	}
	return idx
}

// tableToMarkdown renders rows as a markdown table, padding every row to the
// header width.
func tableToMarkdown(data [][]string) string {
	if len(data) == 0 || len(data[0]) == 0 {
		return ""
	}
	header := data[0]
	width := len(header)

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(markdownCell(c))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(header)
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	for _, row := range data[1:] {
		if len(row) == 0 {
			continue
		}
		cells := row
		if len(cells) < width {
			cells = make([]string, width)
			copy(cells, row)
		}
		writeRow(cells)
	}
	return b.String()
}

func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
