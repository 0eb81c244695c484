// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package heartbeat infers playback state for DeoVR players, which stream
// media but never report position. The only observable signals are stream
// opens, data flow, and closes; the inferrer turns those into synthetic
// sync commits so ordinary clients can follow along.
package heartbeat

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/metrics"
	"github.com/gabriel20xx/MediaViewer/internal/session"
)

const (
	// FPS is the nominal frame rate assumed for inferred commits.
	FPS = 30

	// publishMinInterval rate-limits periodic playing refreshes; pause and
	// resume transitions always publish immediately.
	publishMinInterval = 750 * time.Millisecond

	// instantPauseDebounce delays the pause commit after the last stream
	// closes, long enough for a seek's immediate reopen to cancel it.
	instantPauseDebounce = 125 * time.Millisecond

	// idlePauseAfter forces a pause when a nominally open stream moves no
	// bytes, which is how DeoVR behaves when the user pauses without
	// closing the connection.
	idlePauseAfter = 650 * time.Millisecond

	// tickInterval drives periodic position refreshes while playing.
	tickInterval = time.Second

	// forgetAfter evicts stream states with no activity, covering players
	// that vanish without closing cleanly.
	forgetAfter = 60 * time.Second

	// sweepInterval paces the eviction sweep.
	sweepInterval = 5 * time.Second
)

// streamState tracks one (session, player) pair. The wall-clock anchor
// startedAt is set so that now - startedAt equals the current media
// position while playing; lastTimeMs holds the frozen position while
// paused.
type streamState struct {
	sessionID string
	clientID  string
	mediaID   string

	startedAt  time.Time
	lastTimeMs float64
	paused     bool
	inFlight   int
	lastDataAt time.Time

	limiter *rate.Limiter
	pauseTm *time.Timer
	idleTm  *time.Timer
}

// Inferrer converts stream lifecycle signals into session commits.
type Inferrer struct {
	store     *session.Store
	broadcast func(sessionID string)

	mu      sync.Mutex
	streams map[string]*streamState

	now func() time.Time
}

// New creates an Inferrer publishing through the given store and broadcast
// callback.
func New(store *session.Store, broadcast func(sessionID string)) *Inferrer {
	return &Inferrer{
		store:     store,
		broadcast: broadcast,
		streams:   make(map[string]*streamState),
		now:       time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (inf *Inferrer) SetClock(now func() time.Time) {
	inf.mu.Lock()
	inf.now = now
	inf.mu.Unlock()
}

// ClientID derives the synthetic client id a player publishes under.
// Players are keyed by IP: DeoVR opens many connections per playback.
func ClientID(ip string) string {
	return "vr:deovr:" + ip
}

func streamKey(sessionID, clientID string) string {
	return sessionID + "|" + clientID
}

// StreamOpened registers a new media stream for a player and returns the
// observation hooks the streaming handler must invoke: onData for every
// chunk written, onClose exactly once when the response ends.
func (inf *Inferrer) StreamOpened(sessionID, ip, mediaID string) (onData func(int), onClose func()) {
	clientID := ClientID(ip)
	key := streamKey(sessionID, clientID)

	inf.mu.Lock()
	now := inf.now()

	st, ok := inf.streams[key]
	if ok && st.mediaID != mediaID {
		// Media switch: the old state is meaningless for the new title.
		st.stopPauseTimer()
		st.stopIdleTimer()
		delete(inf.streams, key)
		st, ok = nil, false
	}

	if !ok {
		st = &streamState{
			sessionID:  sessionID,
			clientID:   clientID,
			mediaID:    mediaID,
			startedAt:  now,
			paused:     false,
			lastDataAt: now,
			limiter:    rate.NewLimiter(rate.Every(publishMinInterval), 1),
		}
		inf.streams[key] = st
		st.inFlight++
		metrics.HeartbeatStatesActive.Set(float64(len(inf.streams)))

		// First sight of this title: announce playback from zero.
		st.limiter.Allow()
		inf.armIdleTimer(st, key)
		inf.publishLocked(st, "playing")
		inf.mu.Unlock()
	} else {
		// Same title again, typically a seek or a ranged re-request.
		st.stopPauseTimer()
		st.inFlight++
		st.lastDataAt = now
		inf.armIdleTimer(st, key)

		if st.paused {
			st.paused = false
			st.startedAt = now.Add(-time.Duration(st.lastTimeMs * float64(time.Millisecond)))
			inf.publishLocked(st, "playing")
		} else if st.limiter.Allow() {
			st.lastTimeMs = float64(now.Sub(st.startedAt).Milliseconds())
			inf.publishLocked(st, "playing")
		}
		inf.mu.Unlock()
	}

	onData = func(n int) { inf.streamData(key) }
	onClose = func() { inf.streamClosed(key) }
	return onData, onClose
}

// streamData records byte flow, resuming a paused state (DeoVR unpauses by
// pulling data on an already-open connection).
func (inf *Inferrer) streamData(key string) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	st, ok := inf.streams[key]
	if !ok {
		return
	}
	now := inf.now()
	st.lastDataAt = now
	inf.armIdleTimer(st, key)

	if st.paused {
		st.paused = false
		st.startedAt = now.Add(-time.Duration(st.lastTimeMs * float64(time.Millisecond)))
		inf.publishLocked(st, "playing")
	}
}

// streamClosed decrements the open-stream count; when the last stream
// closes, the position freezes and a short debounce decides whether this
// was a pause or just a seek reopening immediately after.
func (inf *Inferrer) streamClosed(key string) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	st, ok := inf.streams[key]
	if !ok {
		return
	}
	st.inFlight--
	if st.inFlight > 0 {
		return
	}
	st.inFlight = 0

	if !st.paused {
		st.lastTimeMs = float64(inf.now().Sub(st.startedAt).Milliseconds())
	}

	// With no open stream there is nothing left to go idle; the debounce
	// decides whether this close was a pause or a seek.
	st.stopIdleTimer()
	st.stopPauseTimer()
	st.pauseTm = time.AfterFunc(instantPauseDebounce, func() {
		inf.debouncedPause(key)
	})
}

// debouncedPause fires when no stream reopened within the debounce window.
func (inf *Inferrer) debouncedPause(key string) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	st, ok := inf.streams[key]
	if !ok || st.inFlight > 0 || st.paused {
		return
	}
	st.paused = true
	inf.publishLocked(st, "paused")
}

// armIdleTimer schedules the idle-pause check, rearming on every data
// event so the timer only fires after a genuine gap. Caller holds inf.mu.
func (inf *Inferrer) armIdleTimer(st *streamState, key string) {
	if st.idleTm == nil {
		st.idleTm = time.AfterFunc(idlePauseAfter, func() {
			inf.idlePause(key)
		})
		return
	}
	st.idleTm.Reset(idlePauseAfter)
}

// idlePause fires when an open stream moved no bytes for idlePauseAfter:
// the player paused in place without closing the connection.
func (inf *Inferrer) idlePause(key string) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	st, ok := inf.streams[key]
	if !ok || st.paused || st.inFlight <= 0 {
		return
	}
	now := inf.now()
	if now.Sub(st.lastDataAt) < idlePauseAfter {
		// Data arrived after this timer was armed; a rearmed timer covers it.
		return
	}
	st.lastTimeMs = float64(now.Sub(st.startedAt).Milliseconds())
	st.paused = true
	inf.publishLocked(st, "paused")
}

// Run drives the periodic refresh tick and the eviction sweep until the
// context ends. Designed to run under supervision.
func (inf *Inferrer) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	sweeper := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "heartbeat").Msg("heartbeat inferrer stopped")
			return ctx.Err()
		case <-ticker.C:
			inf.tick()
		case <-sweeper.C:
			inf.sweep()
		}
	}
}

// tick refreshes the inferred position of every playing stream. It also
// backstops the idle timer: a silent open stream is paused here too in case
// the timer was lost.
func (inf *Inferrer) tick() {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	now := inf.now()
	for _, st := range inf.streams {
		if st.paused || st.inFlight <= 0 {
			continue
		}

		if now.Sub(st.lastDataAt) >= idlePauseAfter {
			// Open but silent connection: the player paused in place.
			st.lastTimeMs = float64(now.Sub(st.startedAt).Milliseconds())
			st.paused = true
			inf.publishLocked(st, "paused")
			continue
		}

		if st.limiter.Allow() {
			st.lastTimeMs = float64(now.Sub(st.startedAt).Milliseconds())
			inf.publishLocked(st, "playing")
		}
	}
}

// sweep evicts states with no stream activity for forgetAfter.
func (inf *Inferrer) sweep() {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	now := inf.now()
	for key, st := range inf.streams {
		if now.Sub(st.lastDataAt) > forgetAfter {
			st.stopPauseTimer()
			st.stopIdleTimer()
			delete(inf.streams, key)
		}
	}
	metrics.HeartbeatStatesActive.Set(float64(len(inf.streams)))
}

// publishLocked commits the state's snapshot and requests a broadcast.
// Caller holds inf.mu.
func (inf *Inferrer) publishLocked(st *streamState, kind string) {
	frame := int64(math.Floor(st.lastTimeMs / 1000 * FPS))
	mediaID := st.mediaID

	_, err := inf.store.UpsertSession(session.Update{
		SessionID:    st.sessionID,
		MediaID:      &mediaID,
		TimeMs:       st.lastTimeMs,
		Paused:       st.paused,
		FPS:          FPS,
		Frame:        frame,
		FromClientID: st.clientID,
	})
	if err != nil {
		logging.Warn().Err(err).Str("client_id", st.clientID).Msg("heartbeat publish rejected")
		return
	}
	inf.store.ClearPlayAt(st.sessionID)

	metrics.HeartbeatPublishesTotal.WithLabelValues(kind).Inc()
	if inf.broadcast != nil {
		inf.broadcast(st.sessionID)
	}
}

func (st *streamState) stopPauseTimer() {
	if st.pauseTm != nil {
		st.pauseTm.Stop()
		st.pauseTm = nil
	}
}

func (st *streamState) stopIdleTimer() {
	if st.idleTm != nil {
		st.idleTm.Stop()
		st.idleTm = nil
	}
}
