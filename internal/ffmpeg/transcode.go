// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
)

// Transcoder spawns ffmpeg children for on-demand conversions.
type Transcoder struct {
	bin string
}

// NewTranscoder creates a Transcoder. bin defaults to "ffmpeg" on PATH.
func NewTranscoder(bin string) *Transcoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Transcoder{bin: bin}
}

// StartH264 starts a single H.264 pass-through transcode of path and
// returns the child's stdout. The fragmented-mp4 movflags make the output
// playable while still being written. The child is killed when ctx is
// canceled (the response closing); the caller must drain and close the
// returned reader and then Wait.
func (t *Transcoder) StartH264(ctx context.Context, path string) (io.ReadCloser, *exec.Cmd, error) {
	// #nosec G204 -- binary path comes from operator configuration, not request input
	cmd := exec.CommandContext(ctx, t.bin,
		"-v", "error",
		"-i", path,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "160k",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ffmpeg stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Drain stderr so the child never blocks on a full pipe.
	go drainStderr("transcode", stderr)

	logging.Debug().Str("path", path).Int("pid", cmd.Process.Pid).Msg("transcode started")
	return stdout, cmd, nil
}

// Thumbnail extracts a single frame at offsetMs into a JPEG at outPath.
// A non-zero exit is an error; the thumbnail generator's circuit breaker
// decides whether to retry.
func (t *Transcoder) Thumbnail(ctx context.Context, path string, offsetMs int64, outPath string) error {
	offset := float64(offsetMs) / 1000.0

	// #nosec G204 -- binary path comes from operator configuration, not request input
	cmd := exec.CommandContext(ctx, t.bin,
		"-v", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", "scale=640:-2",
		"-q:v", "4",
		"-y",
		outPath,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg thumbnail failed for %s: %w (output: %s)", path, err, truncate(string(out), 300))
	}
	return nil
}

// drainStderr logs child stderr lines at debug level until EOF.
func drainStderr(op string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logging.Debug().Str("op", op).Str("ffmpeg", scanner.Text()).Msg("ffmpeg stderr")
	}
}
