// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rayfred90/file-to-md-json/logger"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// NormalizedImageFormat is the single encoding every ImageRecord carries.
const NormalizedImageFormat = "jpeg"

// RawImage is an embedded image as stored in the document.
type RawImage struct {
	Name   string
	Format string
	Width  int
	Height int
	Data   []byte
}

// ImageSource walks the embedded images of a document page by page.
type ImageSource interface {
	NumPage() int
	PageImages(pageNr int) ([]RawImage, error)
	Close() error
}

// pdfcpuImages implements ImageSource with pdfcpu.
type pdfcpuImages struct {
	f   *os.File
	ctx *model.Context
}

// OpenImageSource reads and optimizes the PDF at path for image walking.
func OpenImageSource(path string) (src ImageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read images: %w: %v", ErrParserPanic, r)
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ctx, err := api.ReadValidateAndOptimize(f, pdfcpuConfig())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &pdfcpuImages{f: f, ctx: ctx}, nil
}

func (s *pdfcpuImages) NumPage() int { return s.ctx.PageCount }

func (s *pdfcpuImages) Close() error { return s.f.Close() }

// PageImages returns the images of one page ordered by object number.
func (s *pdfcpuImages) PageImages(pageNr int) (out []RawImage, err error) {
	defer recoverPage(pageNr, &err)
	imgs, err := pdfcpu.ExtractPageImages(s.ctx, pageNr, false)
	if err != nil {
		return nil, err
	}
	objNrs := make([]int, 0, len(imgs))
	for nr := range imgs {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	for _, nr := range objNrs {
		img := imgs[nr]
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img.Reader)
		if err != nil {
			logger.Debug("image stream unreadable, skipping", "page", pageNr, "obj", nr, "err", err)
			continue
		}
		out = append(out, RawImage{
			Name:   img.Name,
			Format: img.FileType,
			Width:  img.Width,
			Height: img.Height,
			Data:   data,
		})
	}
	return out, nil
}

// imageExtractor normalizes embedded images into ImageRecords.
type imageExtractor struct {
	maxImages int
	quality   int
	maxDim    int
}

// extract walks src in page order and stops once maxImages records exist.
// Per-page and per-image failures are logged and skipped.
func (e imageExtractor) extract(ctx context.Context, src ImageSource) []ImageRecord {
	out := []ImageRecord{}
	total := src.NumPage()
	for pageNr := 1; pageNr <= total && len(out) < e.maxImages; pageNr++ {
		if ctx.Err() != nil {
			break
		}
		raws, err := src.PageImages(pageNr)
		if err != nil {
			logger.Debug(fmt.Sprintf("Image walk failed: page=%d err=%v", pageNr, err), true)
			continue
		}
		for i, raw := range raws {
			if len(out) >= e.maxImages {
				logger.Debug(fmt.Sprintf("Image cap reached: max=%d page=%d", e.maxImages, pageNr), true)
				break
			}
			rec, err := e.normalize(pageNr, i, raw)
			if err != nil {
				logger.Debug("image skipped", "page", pageNr, "index", i, "format", raw.Format, "err", err)
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}

// normalize decodes raw, flattens it onto white, optionally scales it down
// and re-encodes it as JPEG.
func (e imageExtractor) normalize(pageNr, index int, raw RawImage) (rec ImageRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode image: %v", r)
		}
	}()
	img, decoded, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return ImageRecord{}, fmt.Errorf("decode image: %w", err)
	}
	img = scaleDown(flatten(img), e.maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return ImageRecord{}, fmt.Errorf("encode jpeg: %w", err)
	}

	format := raw.Format
	if format == "" {
		format = decoded
	}
	b := img.Bounds()
	return ImageRecord{
		PageNumber:        pageNr,
		ImageIndex:        index,
		Width:             b.Dx(),
		Height:            b.Dy(),
		OriginalFormat:    format,
		NormalizedFormat:  NormalizedImageFormat,
		SizeBytes:         len(raw.Data),
		EncodedPayload:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		SuggestedFilename: fmt.Sprintf("page_%d_img_%d.jpg", pageNr, index+1),
	}, nil
}

// flatten composites img over opaque white. Gray and YCbCr images have no
// alpha channel and are returned unchanged.
func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.YCbCr:
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// scaleDown fits img into a maxDim square, keeping the aspect ratio.
func scaleDown(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
