// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a PDF with one content stream per page. Pages share a
// Courier font with explicit widths so glyph positions are realistic.
func buildPDF(info map[string]string, pages ...string) []byte {
	const firstPage = 4
	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>"}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	widths := strings.TrimSpace(strings.Repeat("600 ", 126-32+1))
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths ["+widths+"] >>")

	for i, content := range pages {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", firstPage+2*i+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	infoRef := ""
	if len(info) > 0 {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var d strings.Builder
		d.WriteString("<<")
		for _, k := range keys {
			fmt.Fprintf(&d, " /%s (%s)", k, info[k])
		}
		d.WriteString(" >>")
		objs = append(objs, d.String())
		infoRef = fmt.Sprintf(" /Info %d 0 R", len(objs))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, infoRef, xref)
	return b.Bytes()
}

// linesPage places every line in its own text object, 20pt apart.
func linesPage(lines ...string) string {
	var sb strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&sb, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", 720-20*i, l)
	}
	return sb.String()
}

// tablePage lays rows out as one text object per cell at fixed columns,
// followed by a line of prose.
func tablePage(rows [][]string, prose string) string {
	cols := []int{72, 200, 300}
	var sb strings.Builder
	for r, row := range rows {
		for c, cell := range row {
			fmt.Fprintf(&sb, "BT /F1 12 Tf %d %d Td (%s) Tj ET\n", cols[c], 700-15*r, cell)
		}
	}
	fmt.Fprintf(&sb, "BT /F1 12 Tf 72 600 Td (%s) Tj ET\n", prose)
	return sb.String()
}

var inventoryRows = [][]string{
	{"Name", "Qty", "Price"},
	{"Widget", "2", "9.99"},
	{"Gadget", "10", "1.50"},
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// imagePDF builds a PDF with one page per encoded image.
func imagePDF(t *testing.T, imgs ...[]byte) string {
	t.Helper()
	readers := make([]io.Reader, len(imgs))
	for i, img := range imgs {
		readers[i] = bytes.NewReader(img)
	}
	var buf bytes.Buffer
	require.NoError(t, api.ImportImages(nil, &buf, readers, nil, nil))
	return writeFixture(t, "images.pdf", buf.Bytes())
}
