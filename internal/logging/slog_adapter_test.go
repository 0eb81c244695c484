// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package logging

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogLoggerWritesThroughZerolog(t *testing.T) {
	buf := withTestLogger(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := NewSlogLogger()
	logger.Info("slog message", "key", "value", "count", int64(3))

	out := buf.String()
	if !strings.Contains(out, `"message":"slog message"`) {
		t.Errorf("expected message, got: %s", out)
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected string attr, got: %s", out)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("expected int attr, got: %s", out)
	}
}

func TestSlogLevelMapping(t *testing.T) {
	buf := withTestLogger(t)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	logger := NewSlogLogger()
	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	out := buf.String()
	for _, want := range []string{
		`"level":"debug"`,
		`"level":"info"`,
		`"level":"warn"`,
		`"level":"error"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)
	SetLogger(Logger().Level(zerolog.WarnLevel))

	h := NewSlogHandler()
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestSlogWithAttrsPersist(t *testing.T) {
	buf := withTestLogger(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := NewSlogLogger().With("service", "api")
	logger.Info("first")
	logger.Info("second")

	if strings.Count(buf.String(), `"service":"api"`) != 2 {
		t.Errorf("expected service attr on every record, got: %s", buf.String())
	}
}

func TestSlogGroupPrefixesKeys(t *testing.T) {
	buf := withTestLogger(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := NewSlogLogger().WithGroup("req")
	logger.Info("grouped", "method", "GET")

	if !strings.Contains(buf.String(), `"req.method":"GET"`) {
		t.Errorf("expected group-prefixed key, got: %s", buf.String())
	}
}

func TestSlogEmptyGroupIsNoop(t *testing.T) {
	h := NewSlogHandler()
	if h.WithGroup("") != slog.Handler(h) {
		t.Error("empty group name should return the same handler")
	}
}
