// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package stream serves media bytes over single-range HTTP, with an
// optional on-demand H.264 remux for containers a client cannot play.
// VR player requests additionally feed the heartbeat inferrer.
package stream

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel20xx/MediaViewer/internal/ffmpeg"
	"github.com/gabriel20xx/MediaViewer/internal/heartbeat"
	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/metrics"
	"github.com/gabriel20xx/MediaViewer/internal/models"
	"github.com/gabriel20xx/MediaViewer/internal/session"
)

// contentTypes maps known extensions to their media type. Unknown
// extensions fall back to content sniffing, then octet-stream.
var contentTypes = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// Engine resolves catalog items to files and writes their bytes.
type Engine struct {
	root       string
	transcoder *ffmpeg.Transcoder
	inferrer   *heartbeat.Inferrer
	uaToken    string
}

// NewEngine creates a streaming engine rooted at the media directory.
// uaToken is the lowercase substring that marks a DeoVR user agent.
func NewEngine(root string, transcoder *ffmpeg.Transcoder, inferrer *heartbeat.Inferrer, uaToken string) *Engine {
	return &Engine{
		root:       root,
		transcoder: transcoder,
		inferrer:   inferrer,
		uaToken:    uaToken,
	}
}

// AbsolutePath resolves a catalog rel path under the media root.
func (e *Engine) AbsolutePath(relPath string) string {
	return filepath.Join(e.root, filepath.FromSlash(relPath))
}

// isVRPlayer decides whether a request comes from a heartbeat-tracked VR
// player: the UA token or an explicit mvFrom=deovr marks one, and
// mvFrom=desktop always opts out (desktop preview of a VR title).
func (e *Engine) isVRPlayer(r *http.Request) bool {
	from := r.URL.Query().Get("mvFrom")
	if from == "desktop" {
		return false
	}
	if from == "deovr" {
		return true
	}
	return strings.Contains(strings.ToLower(r.UserAgent()), e.uaToken)
}

// ServeMedia streams a catalog item, honoring single-range requests.
func (e *Engine) ServeMedia(w http.ResponseWriter, r *http.Request, item *models.MediaItem) {
	absPath := e.AbsolutePath(item.RelPath)

	if r.URL.Query().Get("transcode") == "h264" && item.MediaType == models.MediaTypeVideo {
		e.serveTranscode(w, r, item, absPath)
		return
	}

	f, err := os.Open(absPath) // #nosec G304 -- path is catalog-derived, rooted under the media directory
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	size := info.Size()

	w.Header().Set("Content-Type", e.contentType(item.Ext, f))
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Accept-Ranges", "bytes")
	// VR players mis-handle stale 304s on media URLs.
	w.Header().Set("Cache-Control", "no-store")

	rng, ok := parseRange(r.Header.Get("Range"), size)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	status := http.StatusOK
	var start, length int64 = 0, size
	if rng != nil {
		status = http.StatusPartialContent
		start = rng.start
		length = rng.end - rng.start + 1
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}

	// Hooks install only once bytes will actually flow: a 416 or a HEAD
	// probe is not a playback signal.
	onData, onClose := e.observe(r, item)
	if onClose != nil {
		defer onClose()
	}

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return
		}
	}

	metrics.TrackActiveStream(true)
	defer metrics.TrackActiveStream(false)

	dst := &countingWriter{w: w, onData: onData}
	if _, err := io.CopyN(dst, f, length); err != nil {
		// Client went away mid-stream; nothing to clean up beyond the
		// deferred close hook.
		logging.Debug().Err(err).Str("media_id", item.ID).Msg("stream ended early")
	}
}

// serveTranscode remuxes to fragmented MP4 on the fly. The response has no
// known length and is not seekable; ffmpeg dies with the request context.
func (e *Engine) serveTranscode(w http.ResponseWriter, r *http.Request, item *models.MediaItem, absPath string) {
	stdout, cmd, err := e.transcoder.StartH264(r.Context(), absPath)
	if err != nil {
		logging.Error().Err(err).Str("media_id", item.ID).Msg("failed to start transcode")
		http.Error(w, "transcode failed", http.StatusInternalServerError)
		return
	}
	defer func() { _ = cmd.Wait() }()
	defer func() { _ = stdout.Close() }()

	metrics.TranscodesTotal.Inc()
	metrics.TrackActiveStream(true)
	defer metrics.TrackActiveStream(false)

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	onData, onClose := e.observe(r, item)
	if onClose != nil {
		defer onClose()
	}

	dst := &countingWriter{w: w, onData: onData}
	if _, err := io.Copy(dst, stdout); err != nil {
		logging.Debug().Err(err).Str("media_id", item.ID).Msg("transcode stream ended early")
	}
}

// observe installs heartbeat hooks for VR player requests. Both returned
// funcs are nil for ordinary clients.
func (e *Engine) observe(r *http.Request, item *models.MediaItem) (onData func(int), onClose func()) {
	if e.inferrer == nil || !e.isVRPlayer(r) {
		return nil, nil
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = session.DefaultSessionID
	}
	return e.inferrer.StreamOpened(sessionID, remoteIP(r), item.ID)
}

// contentType resolves the response media type: extension map first, then
// a 512-byte sniff, then octet-stream.
func (e *Engine) contentType(ext string, f *os.File) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "application/octet-stream"
	}
	if n > 0 {
		if ct := http.DetectContentType(buf[:n]); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

// byteRange is an inclusive byte interval.
type byteRange struct {
	start, end int64
}

// parseRange interprets a Range header against a file size.
//
// Only the single form "bytes=start-end" (end optional) is accepted; a
// missing or unrecognized header means the full file (nil, true). A
// syntactically valid range that cannot be satisfied returns (nil, false)
// for a 416 reply. The end is clamped to size-1.
func parseRange(header string, size int64) (*byteRange, bool) {
	if header == "" {
		return nil, true
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, true
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, true
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return nil, true
	}
	if start >= size {
		return nil, false
	}

	end := size - 1
	if s := strings.TrimSpace(endStr); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil || parsed < start {
			return nil, false
		}
		if parsed < end {
			end = parsed
		}
	}
	return &byteRange{start: start, end: end}, true
}

// countingWriter reports every chunk written to the byte counter and, when
// set, the heartbeat observer.
type countingWriter struct {
	w      io.Writer
	onData func(int)
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		metrics.StreamBytesTotal.Add(float64(n))
		if cw.onData != nil {
			cw.onData(n)
		}
	}
	return n, err
}

// remoteIP extracts the peer address, preferring the first X-Forwarded-For
// entry behind a reverse proxy.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			first = fwd[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
