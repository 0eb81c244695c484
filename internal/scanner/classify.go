// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package scanner

import (
	"strings"

	"github.com/gabriel20xx/MediaViewer/internal/ffmpeg"
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// VRInfo is the result of VR classification for one file.
type VRInfo struct {
	IsVR       bool
	Fov        *int // 180 or 360
	Stereo     *string
	Projection *string
}

// halfSphereBound is the spherical bound width at or below which a video
// is treated as a 180-degree dome rather than a full sphere.
const halfSphereBound = 0.75

// ClassifyVR decides whether a file is VR media and derives FOV/stereo.
//
// The probe path wins: explicit spherical or stereo3d side data flags VR
// outright. The dimension heuristic applies next (2:1 frames at 3000x1500+
// are full spheres, 1:1 frames at 2500x2500+ are domes). The filename/path
// token heuristic is the last resort and only fires on word-boundary
// tokens, so "1080p" never matches "180".
func ClassifyVR(relPath string, probe *ffmpeg.ProbeResult) VRInfo {
	tokens := tokenize(relPath)
	tokenFov := fovFromTokens(tokens)
	tokenStereo := stereoFromTokens(tokens)

	// (a)+(b): explicit side data.
	if probe != nil && (probe.Spherical || probe.Stereo3D) {
		info := VRInfo{IsVR: true}

		fov := 360
		if probe.Spherical && probe.BoundLeft != nil && probe.BoundRight != nil {
			if *probe.BoundRight-*probe.BoundLeft <= halfSphereBound {
				fov = 180
			}
		} else if tokenFov != nil {
			fov = *tokenFov
		}
		info.Fov = &fov

		stereo := models.StereoMono
		switch {
		case probe.Stereo3D && strings.Contains(probe.StereoType, "side"):
			stereo = models.StereoSBS
		case probe.Stereo3D && (strings.Contains(probe.StereoType, "top") || strings.Contains(probe.StereoType, "over")):
			stereo = models.StereoTB
		case tokenStereo != nil:
			stereo = *tokenStereo
		}
		info.Stereo = &stereo

		if probe.Projection != "" {
			proj := probe.Projection
			info.Projection = &proj
		}
		return info
	}

	// (c): dimension heuristic.
	if probe != nil && probe.Width != nil && probe.Height != nil {
		if fov, ok := fovFromDimensions(*probe.Width, *probe.Height); ok {
			info := VRInfo{IsVR: true, Fov: &fov}
			stereo := models.StereoMono
			if tokenStereo != nil {
				stereo = *tokenStereo
			}
			info.Stereo = &stereo
			return info
		}
	}

	// (d): path/filename token heuristic. Any stereo layout code counts as
	// a VR trigger on its own; word-boundary tokenization keeps short codes
	// like "lr" and "tb" from matching inside ordinary words.
	composite := strings.Contains(strings.ToLower(relPath), "lrf_full_sbs")
	vrToken := tokens["vr"] || tokens["vr180"] || tokens["vr360"]

	if vrToken || composite || tokenFov != nil || tokenStereo != nil {
		info := VRInfo{IsVR: true}

		fov := 360
		if tokenFov != nil {
			fov = *tokenFov
		}
		info.Fov = &fov

		stereo := models.StereoMono
		if composite {
			stereo = models.StereoSBS
		} else if tokenStereo != nil {
			stereo = *tokenStereo
		}
		info.Stereo = &stereo
		return info
	}

	return VRInfo{}
}

// fovFromDimensions applies the frame-size heuristic.
// Returns (fov, true) when the frame matches a VR layout.
func fovFromDimensions(width, height int) (int, bool) {
	if width <= 0 || height <= 0 {
		return 0, false
	}
	ratio := float64(width) / float64(height)

	// 2:1 equirectangular full sphere
	if ratio >= 1.9 && ratio <= 2.1 && width >= 3000 && height >= 1500 {
		return 360, true
	}
	// 1:1 square dome (typically stacked stereo 180)
	if ratio >= 0.95 && ratio <= 1.05 && width >= 2500 && height >= 2500 {
		return 180, true
	}
	return 0, false
}

// tokenize lowercases the path and splits it on every non-alphanumeric
// rune, producing word-boundary tokens.
func tokenize(relPath string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = true
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(relPath) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// fovFromTokens maps FOV tokens to degrees.
func fovFromTokens(tokens map[string]bool) *int {
	if tokens["180"] || tokens["vr180"] {
		fov := 180
		return &fov
	}
	if tokens["360"] || tokens["vr360"] {
		fov := 360
		return &fov
	}
	return nil
}

// stereoFromTokens maps stereo layout codes to a layout.
func stereoFromTokens(tokens map[string]bool) *string {
	sbsCodes := []string{"lr", "rl", "sbs", "3dh"}
	tbCodes := []string{"tb", "bt", "ou", "overunder", "3dv"}

	for _, c := range sbsCodes {
		if tokens[c] {
			s := models.StereoSBS
			return &s
		}
	}
	for _, c := range tbCodes {
		if tokens[c] {
			s := models.StereoTB
			return &s
		}
	}
	return nil
}
