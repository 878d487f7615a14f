// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rayfred90/file-to-md-json/logger"
)

// tjSpaceKern is the TJ adjustment, in thousandths of text space, beyond
// which a gap reads as a word break.
const tjSpaceKern = 200

// rawEncoding passes code points through unchanged.
type rawEncoding struct{}

func (rawEncoding) Decode(raw string) string { return raw }

// pageText returns the plain text of a page. Text objects and line moves
// start new lines and horizontal moves insert a space, so separately placed
// runs never fuse into one word.
// fonts can be passed in (to improve parsing performance) or left nil.
func pageText(page pdf.Page, fonts map[string]*pdf.Font) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = errors.New(fmt.Sprint(r))
		}
	}()

	contents := page.V.Key("Contents")
	if page.V.IsNull() || contents.Kind() == pdf.Null {
		return "", nil
	}
	if fonts == nil {
		fonts = cacheFonts(page)
	}

	w := &textWriter{enc: rawEncoding{}}
	op := func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		w.apply(op, args, fonts)
	}

	// Contents is either one stream or an array of streams read as one.
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), op)
			w.newline()
		}
	} else {
		pdf.Interpret(contents, op)
	}

	logger.Debug(fmt.Sprintf("Completed content parsing: bytes=%d", w.sb.Len()), true)
	return tidyLines(w.sb.String()), nil
}

type textWriter struct {
	sb  strings.Builder
	enc pdf.TextEncoding

	// Tm origin of the current text object, used to tell line moves from
	// moves within a line.
	tmY    float64
	haveTm bool
}

func (w *textWriter) write(raw string) { w.sb.WriteString(w.enc.Decode(raw)) }
func (w *textWriter) newline()        { w.sb.WriteByte('\n') }
func (w *textWriter) space()          { w.sb.WriteByte(' ') }

func (w *textWriter) apply(op string, args []pdf.Value, fonts map[string]*pdf.Font) {
	switch op {
	case "BT":
		w.newline()
		w.haveTm = false

	case "T*":
		w.newline()

	case "Td", "TD":
		if len(args) != 2 {
			panic("bad " + op + " operator")
		}
		switch {
		case args[1].Float64() != 0:
			w.newline()
		case args[0].Float64() != 0:
			w.space()
		}

	case "Tm":
		if len(args) != 6 {
			panic("bad Tm operator")
		}
		y := args[5].Float64()
		if w.haveTm {
			if y != w.tmY {
				w.newline()
			} else {
				w.space()
			}
		}
		w.tmY, w.haveTm = y, true

	case "Tf":
		if len(args) != 2 {
			panic("bad Tf operator")
		}
		if font, ok := fonts[args[0].Name()]; ok {
			w.enc = font.Encoder()
		} else {
			w.enc = rawEncoding{}
		}

	case "'":
		if len(args) != 1 {
			panic("bad ' operator")
		}
		w.newline()
		w.write(args[0].RawString())

	case "\"":
		if len(args) != 3 {
			panic("bad \" operator")
		}
		w.newline()
		w.write(args[2].RawString())

	case "Tj":
		if len(args) != 1 {
			panic("bad Tj operator")
		}
		w.write(args[0].RawString())

	case "TJ":
		if len(args) != 1 {
			panic("bad TJ operator")
		}
		v := args[0]
		for i := 0; i < v.Len(); i++ {
			x := v.Index(i)
			switch x.Kind() {
			case pdf.String:
				w.write(x.RawString())
			case pdf.Integer, pdf.Real:
				if x.Float64() < -tjSpaceKern {
					w.space()
				}
			}
		}
	}
}

// tidyLines trims trailing blanks, collapses runs of spaces and drops empty
// lines.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
