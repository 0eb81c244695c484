// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package heartbeat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel20xx/MediaViewer/internal/session"
)

// fakeClock is a manually advanced wall clock safe for the debounce
// timer goroutine.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testHarness struct {
	inf        *Inferrer
	store      *session.Store
	clock      *fakeClock
	mu         sync.Mutex
	broadcasts int
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		store: session.NewStore(),
		clock: newFakeClock(),
	}
	h.inf = New(h.store, func(sessionID string) {
		h.mu.Lock()
		h.broadcasts++
		h.mu.Unlock()
	})
	h.inf.SetClock(h.clock.Now)
	h.store.SetClock(h.clock.Now)
	return h
}

func (h *testHarness) broadcastCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcasts
}

func TestStreamOpenedPublishesPlayingImmediately(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose()

	st := h.store.GetSession("default")
	require.NotNil(t, st.MediaID)
	assert.Equal(t, "m1", *st.MediaID)
	assert.False(t, st.Paused)
	assert.Equal(t, float64(0), st.TimeMs)
	assert.Equal(t, float64(FPS), st.FPS)
	assert.Equal(t, ClientID("1.2.3.4"), st.FromClientID)
	assert.Equal(t, 1, h.broadcastCount())
}

func TestCloseFreezesPositionAndDebouncedPauseCommits(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")

	// Played for 1200ms before the connection dropped.
	h.clock.Advance(1200 * time.Millisecond)
	onClose()

	// Not paused yet: the debounce window is still open.
	assert.False(t, h.store.GetSession("default").Paused)

	// Debounce elapses with no reopen.
	key := streamKey("default", ClientID("1.2.3.4"))
	h.clock.Advance(instantPauseDebounce)
	h.inf.debouncedPause(key)

	st := h.store.GetSession("default")
	assert.True(t, st.Paused)
	assert.Equal(t, float64(1200), st.TimeMs)
	// floor(1.2s * 30fps) = frame 36
	assert.Equal(t, int64(36), st.Frame)
}

func TestReopenWithinDebounceStaysPlaying(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	h.clock.Advance(1200 * time.Millisecond)
	onClose()

	// Seek: the player reopens the same title right away.
	h.clock.Advance(50 * time.Millisecond)
	_, onClose2 := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose2()

	// A late debounce fire must be a no-op with a stream in flight.
	h.inf.debouncedPause(streamKey("default", ClientID("1.2.3.4")))
	assert.False(t, h.store.GetSession("default").Paused)
}

func TestReopenAfterPauseResumesFromFrozenPosition(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	h.clock.Advance(1200 * time.Millisecond)
	onClose()
	key := streamKey("default", ClientID("1.2.3.4"))
	h.clock.Advance(instantPauseDebounce)
	h.inf.debouncedPause(key)
	require.True(t, h.store.GetSession("default").Paused)

	// Player resumes: position picks up where it froze.
	h.clock.Advance(175 * time.Millisecond)
	_, onClose2 := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose2()

	st := h.store.GetSession("default")
	assert.False(t, st.Paused)
	assert.Equal(t, float64(1200), st.TimeMs)
}

func TestMediaChangeStartsFresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	h.clock.Advance(5 * time.Second)

	// New title on the same connection key: state restarts at zero.
	_, onClose2 := h.inf.StreamOpened("default", "1.2.3.4", "m2")
	defer onClose2()

	st := h.store.GetSession("default")
	require.NotNil(t, st.MediaID)
	assert.Equal(t, "m2", *st.MediaID)
	assert.False(t, st.Paused)
	assert.Equal(t, float64(0), st.TimeMs)

	// The old title's close hook lands late and must not disturb the
	// recreated state.
	onClose()
}

func TestDataOnPausedStreamResumes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	onData, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose()
	h.clock.Advance(900 * time.Millisecond)

	// Idle connection gets force-paused by the tick.
	h.clock.Advance(idlePauseAfter)
	h.inf.tick()
	require.True(t, h.store.GetSession("default").Paused)

	// Bytes moving again means the player resumed in place.
	onData(4096)
	assert.False(t, h.store.GetSession("default").Paused)
}

func TestTickForcesIdlePause(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose()

	h.clock.Advance(idlePauseAfter)
	h.inf.tick()

	st := h.store.GetSession("default")
	assert.True(t, st.Paused)
	assert.Equal(t, float64(idlePauseAfter.Milliseconds()), st.TimeMs)
}

func TestIdleTimerPausesWithoutTick(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose()

	// The dedicated idle timer fires at the threshold, between ticks.
	key := streamKey("default", ClientID("1.2.3.4"))
	h.clock.Advance(idlePauseAfter)
	h.inf.idlePause(key)

	st := h.store.GetSession("default")
	assert.True(t, st.Paused)
	assert.Equal(t, float64(idlePauseAfter.Milliseconds()), st.TimeMs)
}

func TestIdlePauseIgnoresFreshData(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	onData, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose()

	// Data flowed more recently than the threshold: a stale timer fire is
	// a no-op because each data event rearms a fresh one.
	key := streamKey("default", ClientID("1.2.3.4"))
	h.clock.Advance(500 * time.Millisecond)
	onData(4096)
	h.clock.Advance(200 * time.Millisecond)
	h.inf.idlePause(key)

	assert.False(t, h.store.GetSession("default").Paused)
}

func TestSweepEvictsForgottenStates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	onClose()

	h.clock.Advance(forgetAfter + time.Second)
	h.inf.sweep()

	h.inf.mu.Lock()
	defer h.inf.mu.Unlock()
	assert.Empty(t, h.inf.streams)
}

func TestClientID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "vr:deovr:10.0.0.7", ClientID("10.0.0.7"))
}

func TestPublishClearsCoordinatedStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	local := int64(1)
	h.store.SetEphemerals("default", "2026-01-01T00:00:00Z", &local, &local)

	_, onClose := h.inf.StreamOpened("default", "1.2.3.4", "m1")
	defer onClose()

	assert.Empty(t, h.store.SessionWithEphemerals("default").PlayAt)
}
