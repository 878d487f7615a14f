// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

//go:build !ocr

package tesseract

import (
	"context"
	"testing"

	"github.com/rayfred90/file-to-md-json/ocr"
	"github.com/stretchr/testify/assert"
)

func TestUnavailableEngine(t *testing.T) {
	e := New("eng")
	res, err := e.Recognize(context.Background(), []byte("png"))

	assert.ErrorIs(t, err, ocr.ErrUnavailable)
	assert.Empty(t, res.Text, "an unavailable engine must never fabricate text")
	assert.True(t, ocr.IsRetryable(err))
}
