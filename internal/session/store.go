// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package session holds the in-memory authoritative sync state: one
// playback cursor per session, client presence, socket registries, and
// per-viewer resume positions. Everything lives behind a single coarse
// mutex that is held only for read/modify/write, never across I/O; state
// is process-local and lost on restart by design.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// DefaultSessionID names the shared session clients join unless they ask
// for another.
const DefaultSessionID = "default"

// DefaultFPS seeds fresh session states.
const DefaultFPS = 30

// ErrEmptyMediaID rejects updates carrying mediaId:"" (null is permitted,
// the empty string is always a caller bug).
var ErrEmptyMediaID = errors.New("mediaId must be null or non-empty")

// ErrEmptyClientID rejects updates with no originating client.
var ErrEmptyClientID = errors.New("clientId must not be empty")

// Socket is the hub-side handle the store fans broadcasts out to.
// Send must be non-blocking: it reports false when the socket's queue is
// full instead of stalling the caller.
type Socket interface {
	Send(v interface{}) bool
}

// Update is a validated-and-clamped write request for a session cursor.
type Update struct {
	SessionID    string
	MediaID      *string
	TimeMs       float64
	Paused       bool
	FPS          float64
	Frame        int64
	FromClientID string
}

// ephemerals carries the coordinated-start schedule attached to snapshots.
type ephemerals struct {
	playAt            string
	playAtLocalMs     *int64
	capturedAtLocalMs *int64
}

// Store is the C3 sync state store.
type Store struct {
	mu sync.Mutex

	sessions  map[string]models.SessionState
	ephem     map[string]ephemerals
	presences map[string]*models.ClientPresence
	sockets   map[string]map[Socket]struct{}
	playback  map[string]models.PlaybackCursor // key: clientID + "\x00" + mediaID

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]models.SessionState),
		ephem:     make(map[string]ephemerals),
		presences: make(map[string]*models.ClientPresence),
		sockets:   make(map[string]map[Socket]struct{}),
		playback:  make(map[string]models.PlaybackCursor),
		now:       time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// normalizeSessionID maps the empty session id to the default session.
func normalizeSessionID(sessionID string) string {
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

// defaultState is the fresh state handed out for unknown sessions:
// paused, at zero, with no media.
func defaultState(sessionID string) models.SessionState {
	return models.SessionState{
		SessionID: sessionID,
		MediaID:   nil,
		TimeMs:    0,
		Paused:    true,
		FPS:       DefaultFPS,
		Frame:     0,
	}
}

// GetSession returns the stored state for a session, or a fresh default.
// The returned value never carries ephemerals; use SessionWithEphemerals
// for broadcast snapshots.
func (s *Store) GetSession(sessionID string) models.SessionState {
	sessionID = normalizeSessionID(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		return st
	}
	return defaultState(sessionID)
}

// UpsertSession validates, clamps, timestamps, and stores an update,
// returning the stored state.
//
// Clamps: timeMs >= 0, fps >= 1, frame >= 0. mediaId may be nil but never
// empty. UpdatedAtMs is strictly monotonic per session so observers can
// order states even when wall time repeats.
func (s *Store) UpsertSession(u Update) (models.SessionState, error) {
	if u.MediaID != nil && *u.MediaID == "" {
		return models.SessionState{}, ErrEmptyMediaID
	}
	sessionID := normalizeSessionID(u.SessionID)

	if u.TimeMs < 0 {
		u.TimeMs = 0
	}
	if u.FPS < 1 {
		u.FPS = 1
	}
	if u.Frame < 0 {
		u.Frame = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	if prev, ok := s.sessions[sessionID]; ok && nowMs <= prev.UpdatedAtMs {
		nowMs = prev.UpdatedAtMs + 1
	}

	st := models.SessionState{
		SessionID:    sessionID,
		MediaID:      u.MediaID,
		TimeMs:       u.TimeMs,
		Paused:       u.Paused,
		FPS:          u.FPS,
		Frame:        u.Frame,
		FromClientID: u.FromClientID,
		UpdatedAtMs:  nowMs,
	}
	s.sessions[sessionID] = st
	return st, nil
}

// SetEphemerals attaches a coordinated-start schedule to a session.
func (s *Store) SetEphemerals(sessionID, playAt string, playAtLocalMs, capturedAtLocalMs *int64) {
	sessionID = normalizeSessionID(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephem[sessionID] = ephemerals{
		playAt:            playAt,
		playAtLocalMs:     playAtLocalMs,
		capturedAtLocalMs: capturedAtLocalMs,
	}
}

// ClearPlayAt drops the coordinated-start schedule for a session. Invoked
// whenever a paused update commits, or a playing update omits playAt.
func (s *Store) ClearPlayAt(sessionID string) {
	sessionID = normalizeSessionID(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ephem, sessionID)
}

// SessionWithEphemerals returns the broadcast snapshot: stored state (or
// default) with any ephemerals attached.
func (s *Store) SessionWithEphemerals(sessionID string) models.SessionState {
	sessionID = normalizeSessionID(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		st = defaultState(sessionID)
	}
	if e, ok := s.ephem[sessionID]; ok {
		st.PlayAt = e.playAt
		st.PlayAtLocalMs = e.playAtLocalMs
		st.CapturedAtLocalMs = e.capturedAtLocalMs
	}
	return st
}

// UpsertPresence creates or refreshes presence metadata for a client id.
// Zero-valued fields leave existing values untouched.
func (s *Store) UpsertPresence(clientID, userAgent, ipAddress string) {
	if clientID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presences[clientID]
	if !ok {
		p = &models.ClientPresence{
			ClientID:      clientID,
			ConnectedAtMs: s.now().UnixMilli(),
		}
		s.presences[clientID] = p
	}
	if userAgent != "" {
		p.UserAgent = userAgent
	}
	if ipAddress != "" {
		p.IPAddress = ipAddress
	}
}

// SetPresenceUI updates the UI status fields of a presence.
// mediaID distinguishes null (clear) from absent (keep).
func (s *Store) SetPresenceUI(clientID, uiView string, mediaID models.NullableString) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presences[clientID]
	if !ok {
		return
	}
	if uiView != "" {
		p.UIView = uiView
	}
	if mediaID.Set {
		p.UIMediaID = mediaID.Value
	}
}

// DropPresence removes a client id and its socket set.
func (s *Store) DropPresence(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presences, clientID)
	delete(s.sockets, clientID)
}

// AttachSocket adds a socket to a client id's set.
func (s *Store) AttachSocket(clientID string, sock Socket) {
	if clientID == "" || sock == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sockets[clientID]
	if !ok {
		set = make(map[Socket]struct{})
		s.sockets[clientID] = set
	}
	set[sock] = struct{}{}
}

// DetachSocket removes a socket from a client id's set and reports whether
// it was the last one. When it was, the presence is removed too.
func (s *Store) DetachSocket(clientID string, sock Socket) (last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sockets[clientID]
	if !ok {
		return false
	}
	delete(set, sock)
	if len(set) > 0 {
		return false
	}
	delete(s.sockets, clientID)
	delete(s.presences, clientID)
	return true
}

// Presences returns a snapshot of all presences, ordered by connection
// time then client id for stable broadcast payloads.
func (s *Store) Presences() []models.ClientPresence {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ClientPresence, 0, len(s.presences))
	for _, p := range s.presences {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAtMs != out[j].ConnectedAtMs {
			return out[i].ConnectedAtMs < out[j].ConnectedAtMs
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out
}

// SocketsFor snapshots the socket set of one client id.
func (s *Store) SocketsFor(clientID string) []Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.sockets[clientID]
	out := make([]Socket, 0, len(set))
	for sock := range set {
		out = append(out, sock)
	}
	return out
}

// AllSockets snapshots every attached socket across all client ids.
func (s *Store) AllSockets() []Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Socket
	for _, set := range s.sockets {
		for sock := range set {
			out = append(out, sock)
		}
	}
	return out
}

// playbackKey builds the composite map key for a resume cursor.
func playbackKey(clientID, mediaID string) string {
	return clientID + "\x00" + mediaID
}

// UpsertPlayback stores a per-viewer resume cursor.
func (s *Store) UpsertPlayback(clientID, mediaID string, timeMs, fps float64, frame int64) (models.PlaybackCursor, error) {
	if clientID == "" {
		return models.PlaybackCursor{}, ErrEmptyClientID
	}
	if mediaID == "" {
		return models.PlaybackCursor{}, ErrEmptyMediaID
	}
	if timeMs < 0 {
		timeMs = 0
	}
	if fps < 1 {
		fps = 1
	}
	if frame < 0 {
		frame = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := models.PlaybackCursor{
		ClientID:    clientID,
		MediaID:     mediaID,
		TimeMs:      timeMs,
		FPS:         fps,
		Frame:       frame,
		UpdatedAtMs: s.now().UnixMilli(),
	}
	s.playback[playbackKey(clientID, mediaID)] = cursor
	return cursor, nil
}

// GetPlayback returns the resume cursor for (clientID, mediaID), if any.
func (s *Store) GetPlayback(clientID, mediaID string) (models.PlaybackCursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor, ok := s.playback[playbackKey(clientID, mediaID)]
	return cursor, ok
}
