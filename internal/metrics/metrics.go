// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package metrics provides Prometheus instrumentation for MediaViewer:
// API latency and throughput, WebSocket fan-out, range streaming,
// DeoVR heartbeat inference, scanning, and thumbnail generation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediaviewer_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaviewer_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaviewer_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// WebSocket Metrics
	WSConnectedSockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaviewer_ws_connected_sockets",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaviewer_ws_broadcasts_total",
			Help: "Total number of session state broadcasts",
		},
	)

	WSMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaviewer_ws_messages_total",
			Help: "Total number of inbound WebSocket messages by type",
		},
		[]string{"type"},
	)

	// Streaming Metrics
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaviewer_streams_active",
			Help: "Current number of in-flight media streams",
		},
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaviewer_stream_bytes_total",
			Help: "Total bytes written to media stream responses",
		},
	)

	TranscodesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaviewer_transcodes_total",
			Help: "Total number of on-demand H.264 transcodes started",
		},
	)

	// Heartbeat Metrics
	HeartbeatPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaviewer_heartbeat_publishes_total",
			Help: "Total number of sync updates published by DeoVR heartbeat inference",
		},
		[]string{"kind"}, // "playing", "paused"
	)

	HeartbeatStatesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaviewer_heartbeat_states_active",
			Help: "Current number of tracked DeoVR stream states",
		},
	)

	// Scanner Metrics
	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaviewer_scan_running",
			Help: "1 while a library scan is in progress",
		},
	)

	ScanFilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaviewer_scan_files_total",
			Help: "Files processed by the most recent library scan",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediaviewer_scan_duration_seconds",
			Help:    "Duration of library scans in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Thumbnail Metrics
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaviewer_thumbnails_total",
			Help: "Thumbnail generation attempts by outcome",
		},
		[]string{"outcome"}, // "cached", "generated", "failed", "rejected"
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// TrackActiveStream adjusts the in-flight stream gauge.
func TrackActiveStream(start bool) {
	if start {
		StreamsActive.Inc()
	} else {
		StreamsActive.Dec()
	}
}
