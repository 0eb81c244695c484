// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package ffmpeg wraps the external ffprobe and ffmpeg binaries.
//
// Every invocation is a child process per call with a bounded context;
// stderr is always drained so a chatty encoder cannot block the pipe.
// Probe and transcode failures are transient by contract: callers degrade
// (no VR metadata, no thumbnail) instead of failing the request.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
)

// defaultProbeTimeout bounds one ffprobe invocation.
const defaultProbeTimeout = 15 * time.Second

// Prober runs ffprobe against local media files.
type Prober struct {
	bin     string
	timeout time.Duration
}

// NewProber creates a Prober. bin defaults to "ffprobe" on PATH.
func NewProber(bin string, timeout time.Duration) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{bin: bin, timeout: timeout}
}

// ProbeResult is the subset of ffprobe output the catalog cares about.
type ProbeResult struct {
	DurationMs *int64 `json:"durationMs,omitempty"`
	Width      *int   `json:"width,omitempty"`
	Height     *int   `json:"height,omitempty"`

	// Spherical side data (VR probe path).
	Spherical  bool     `json:"spherical"`
	Projection string   `json:"projection,omitempty"`
	BoundLeft  *float64 `json:"boundLeft,omitempty"`
	BoundRight *float64 `json:"boundRight,omitempty"`

	// Stereo 3D side data.
	Stereo3D   bool   `json:"stereo3d"`
	StereoType string `json:"stereoType,omitempty"`
}

// ffprobe JSON output shapes. Only the fields we read are declared.
type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType    string          `json:"codec_type"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	SideDataList []probeSideData `json:"side_data_list"`
}

type probeSideData struct {
	SideDataType string      `json:"side_data_type"`
	Projection   string      `json:"projection"`
	Type         string      `json:"type"`
	BoundLeft    json.Number `json:"bound_left"`
	BoundRight   json.Number `json:"bound_right"`
}

// Probe inspects a media file and returns container metadata plus any VR
// side data. A non-zero ffprobe exit is returned as an error; callers treat
// it as "no probe data" rather than a request failure.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// #nosec G204 -- binary path comes from operator configuration, not request input
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w (stderr: %s)", path, err, truncate(stderr.String(), 300))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	result := &ProbeResult{}

	if out.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && secs > 0 {
			ms := int64(math.Round(secs * 1000))
			result.DurationMs = &ms
		}
	}

	for i := range out.Streams {
		s := &out.Streams[i]
		if s.CodecType != "video" {
			continue
		}
		if s.Width > 0 && s.Height > 0 && result.Width == nil {
			w, h := s.Width, s.Height
			result.Width = &w
			result.Height = &h
		}
		for _, sd := range s.SideDataList {
			parseSideData(result, sd)
		}
	}

	return result, nil
}

// parseSideData folds one side_data_list entry into the result.
func parseSideData(result *ProbeResult, sd probeSideData) {
	switch {
	case strings.EqualFold(sd.SideDataType, "Spherical Mapping"),
		strings.EqualFold(sd.SideDataType, "spherical"):
		result.Spherical = true
		if sd.Projection != "" {
			result.Projection = strings.ToLower(sd.Projection)
		}
		if v, err := sd.BoundLeft.Float64(); err == nil {
			result.BoundLeft = &v
		}
		if v, err := sd.BoundRight.Float64(); err == nil {
			result.BoundRight = &v
		}

	case strings.EqualFold(sd.SideDataType, "Stereo 3D"),
		strings.EqualFold(sd.SideDataType, "stereo3d"):
		result.Stereo3D = true
		result.StereoType = strings.ToLower(sd.Type)
	}
}

// truncate shortens external tool output for error messages.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// logProbeDegraded records a degraded probe at debug level. Kept here so
// callers share one wording.
func logProbeDegraded(path string, err error) {
	logging.Debug().Err(err).Str("path", path).Msg("ffprobe degraded, continuing without probe data")
}

// ProbeOrNil probes and returns nil (logging at debug) on failure.
func (p *Prober) ProbeOrNil(ctx context.Context, path string) *ProbeResult {
	result, err := p.Probe(ctx, path)
	if err != nil {
		logProbeDegraded(path, err)
		return nil
	}
	return result
}
