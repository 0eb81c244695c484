// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package models

// FunscriptAction is one haptic command: position 0..100 at offset `at`
// milliseconds from the start of the media.
type FunscriptAction struct {
	At  int64 `json:"at"`
	Pos int   `json:"pos"`
}

// Funscript is a sidecar haptic script. Actions are sorted by At.
type Funscript struct {
	Version  string            `json:"version,omitempty"`
	Inverted bool              `json:"inverted,omitempty"`
	Range    int               `json:"range,omitempty"`
	Actions  []FunscriptAction `json:"actions"`
}

// FunscriptStats summarizes a script for catalog storage.
// AvgSpeed is in position-percent per second.
type FunscriptStats struct {
	ActionCount int
	AvgSpeed    float64
}
