// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package models

// MediaType classifies a catalog entry by its container kind.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
	MediaTypeOther MediaType = "other"
)

// VR stereo layouts. Mono means a single eye view (no 3D).
const (
	StereoSBS  = "sbs"
	StereoTB   = "tb"
	StereoMono = "mono"
)

// MediaItem is one row of the media catalog.
//
// Items are keyed in storage by RelPath (unique); ID is a stable opaque
// identifier derived from RelPath so it survives rescans. Rows are only
// written by the scanner; request handlers never mutate them.
type MediaItem struct {
	ID         string    `json:"id"`
	RelPath    string    `json:"relPath"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	Ext        string    `json:"ext"`
	MediaType  MediaType `json:"mediaType"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedMs int64     `json:"modifiedMs"`

	// Video-only attributes, absent for images and unprobed files.
	DurationMs *int64 `json:"durationMs,omitempty"`
	Width      *int   `json:"width,omitempty"`
	Height     *int   `json:"height,omitempty"`

	// Sidecar haptic script attributes.
	HasFunscript         bool     `json:"hasFunscript"`
	FunscriptActionCount *int     `json:"funscriptActionCount,omitempty"`
	FunscriptAvgSpeed    *float64 `json:"funscriptAvgSpeed,omitempty"`

	// VR classification. VRFov is 180 or 360; VRStereo is one of the
	// Stereo* constants; VRProjection carries the probed projection name
	// when the container declares one (e.g. "equirectangular").
	IsVR         bool    `json:"isVr"`
	VRFov        *int    `json:"vrFov,omitempty"`
	VRStereo     *string `json:"vrStereo,omitempty"`
	VRProjection *string `json:"vrProjection,omitempty"`
}

// FileInfo is the on-demand stat payload for a media item.
type FileInfo struct {
	ID         string `json:"id"`
	RelPath    string `json:"relPath"`
	SizeBytes  int64  `json:"sizeBytes"`
	ModifiedMs int64  `json:"modifiedMs"`
	Exists     bool   `json:"exists"`
}
