// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// withTestLogger swaps in a buffer-backed logger and restores the previous
// one (and the global level) when the test finishes.
func withTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()

	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	}()

	Init(Config{Level: "debug", Format: "json", Output: &buf})

	Debug().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"level":"debug"`) {
		t.Errorf("expected debug level in output, got: %s", out)
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got: %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got: %s", out)
	}
}

func TestInitLevelFiltersLowerEvents(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	}()

	Init(Config{Level: "warn", Output: &buf})

	Info().Msg("suppressed")
	Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info event should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn event should pass at warn level: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prevLevel)

	SetLevelString("error")
	if got := GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("GetLevel() = %v, want error", got)
	}

	SetLevelString("debug")
	if got := GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("GetLevel() = %v, want debug", got)
	}
}

func TestErrAttachesError(t *testing.T) {
	buf := withTestLogger(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Err(errors.New("boom")).Msg("operation failed")

	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected error field, got: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("Err should log at error level, got: %s", out)
	}
}

func TestWithAddsPersistentField(t *testing.T) {
	buf := withTestLogger(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	child := With().Str("component", "scanner").Logger()
	child.Info().Msg("first")
	child.Info().Msg("second")

	out := buf.String()
	if strings.Count(out, `"component":"scanner"`) != 2 {
		t.Errorf("expected component field on every line, got: %s", out)
	}
}

func TestConsoleFormatDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	}()

	Init(Config{Level: "info", Format: "console", Output: &buf})
	Info().Str("key", "value").Msg("console output")

	if buf.Len() == 0 {
		t.Error("expected console output to be written")
	}
}
