// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package logger

import (
	"bytes"
	"testing"

	"github.com/rayfred90/file-to-md-json/tracer"
	"github.com/stretchr/testify/assert"
)

type entry struct {
	level   LogLevel
	msg     string
	keyvals []interface{}
}

func capture(t *testing.T) *[]entry {
	t.Helper()
	var got []entry
	SetLogger(func(level LogLevel, msg string, keyvals ...interface{}) {
		got = append(got, entry{level, msg, keyvals})
	})
	tracer.Flush(&bytes.Buffer{})
	return &got
}

func TestDebug_TraceFlag(t *testing.T) {
	got := capture(t)

	Debug("traced", "page", 3, true)
	Debug("plain", "page", 4)

	if assert.Len(t, *got, 2) {
		assert.Equal(t, DebugLevel, (*got)[0].level)
		assert.Equal(t, []interface{}{"page", 3}, (*got)[0].keyvals, "trace flag must be stripped")
		assert.Equal(t, []interface{}{"page", 4}, (*got)[1].keyvals)
	}
	assert.Equal(t, []string{"traced"}, tracer.Messages())
}

func TestDebug_BoolValueIsNotTraceFlag(t *testing.T) {
	got := capture(t)

	Debug("kv bool", "ok", true)

	if assert.Len(t, *got, 1) {
		assert.Equal(t, []interface{}{"ok", true}, (*got)[0].keyvals)
	}
	assert.Empty(t, tracer.Messages())
}

func TestError_AlwaysTraced(t *testing.T) {
	got := capture(t)

	Error("boom", "err", assert.AnError)

	if assert.Len(t, *got, 1) {
		assert.Equal(t, ErrorLevel, (*got)[0].level)
	}
	assert.Equal(t, []string{"boom"}, tracer.Messages())
}

func TestSetLogger_IgnoresNil(t *testing.T) {
	got := capture(t)
	SetLogger(nil)

	Info("still captured")
	assert.Len(t, *got, 1)
}
