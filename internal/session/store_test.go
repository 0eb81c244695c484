// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// fakeSocket records sends; full simulates a saturated outbound queue.
type fakeSocket struct {
	sent []interface{}
	full bool
}

func (f *fakeSocket) Send(v interface{}) bool {
	if f.full {
		return false
	}
	f.sent = append(f.sent, v)
	return true
}

func strPtr(s string) *string { return &s }

func TestGetSessionDefaults(t *testing.T) {
	t.Parallel()
	s := NewStore()

	st := s.GetSession("")
	assert.Equal(t, DefaultSessionID, st.SessionID)
	assert.Nil(t, st.MediaID)
	assert.True(t, st.Paused)
	assert.Equal(t, float64(0), st.TimeMs)
	assert.Equal(t, float64(DefaultFPS), st.FPS)
	assert.Equal(t, int64(0), st.Frame)
}

func TestUpsertSessionClamps(t *testing.T) {
	t.Parallel()
	s := NewStore()

	st, err := s.UpsertSession(Update{
		SessionID: "default",
		MediaID:   strPtr("abc"),
		TimeMs:    -5,
		FPS:       0,
		Frame:     -3,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(0), st.TimeMs)
	assert.Equal(t, float64(1), st.FPS)
	assert.Equal(t, int64(0), st.Frame)
}

func TestUpsertSessionRejectsEmptyMediaID(t *testing.T) {
	t.Parallel()
	s := NewStore()

	_, err := s.UpsertSession(Update{MediaID: strPtr("")})
	assert.ErrorIs(t, err, ErrEmptyMediaID)

	// nil mediaId is fine: it means "no media loaded".
	_, err = s.UpsertSession(Update{MediaID: nil})
	assert.NoError(t, err)
}

func TestUpsertSessionMonotonicUpdatedAt(t *testing.T) {
	t.Parallel()
	s := NewStore()

	// Frozen clock: wall time never advances, yet UpdatedAtMs must.
	frozen := time.UnixMilli(1_700_000_000_000)
	s.SetClock(func() time.Time { return frozen })

	first, err := s.UpsertSession(Update{TimeMs: 1})
	require.NoError(t, err)
	second, err := s.UpsertSession(Update{TimeMs: 2})
	require.NoError(t, err)
	third, err := s.UpsertSession(Update{TimeMs: 3})
	require.NoError(t, err)

	assert.Equal(t, frozen.UnixMilli(), first.UpdatedAtMs)
	assert.Equal(t, first.UpdatedAtMs+1, second.UpdatedAtMs)
	assert.Equal(t, second.UpdatedAtMs+1, third.UpdatedAtMs)
}

func TestEphemeralsAttachAndClear(t *testing.T) {
	t.Parallel()
	s := NewStore()

	local := int64(123)
	captured := int64(456)
	s.SetEphemerals("default", "2026-01-01T00:00:00Z", &local, &captured)

	st := s.SessionWithEphemerals("default")
	assert.Equal(t, "2026-01-01T00:00:00Z", st.PlayAt)
	require.NotNil(t, st.PlayAtLocalMs)
	assert.Equal(t, local, *st.PlayAtLocalMs)
	require.NotNil(t, st.CapturedAtLocalMs)
	assert.Equal(t, captured, *st.CapturedAtLocalMs)

	// GetSession never exposes ephemerals.
	assert.Empty(t, s.GetSession("default").PlayAt)

	s.ClearPlayAt("default")
	st = s.SessionWithEphemerals("default")
	assert.Empty(t, st.PlayAt)
	assert.Nil(t, st.PlayAtLocalMs)
	assert.Nil(t, st.CapturedAtLocalMs)
}

func TestPresenceLifecycle(t *testing.T) {
	t.Parallel()
	s := NewStore()

	s.UpsertPresence("c1", "agent-one", "10.0.0.1")
	s.UpsertPresence("c2", "agent-two", "10.0.0.2")

	// Zero-valued fields keep what is already there.
	s.UpsertPresence("c1", "", "")
	all := s.Presences()
	require.Len(t, all, 2)
	assert.Equal(t, "agent-one", all[0].UserAgent)
	assert.Equal(t, "10.0.0.1", all[0].IPAddress)

	s.SetPresenceUI("c1", "player", models.NullableString{Set: true, Value: strPtr("m1")})
	all = s.Presences()
	assert.Equal(t, "player", all[0].UIView)
	require.NotNil(t, all[0].UIMediaID)
	assert.Equal(t, "m1", *all[0].UIMediaID)

	// Explicit null clears the media id; absent keeps it.
	s.SetPresenceUI("c1", "library", models.NullableString{Set: true, Value: nil})
	assert.Nil(t, s.Presences()[0].UIMediaID)

	s.DropPresence("c1")
	assert.Len(t, s.Presences(), 1)
}

func TestDetachSocketRemovesPresenceOnLast(t *testing.T) {
	t.Parallel()
	s := NewStore()

	s.UpsertPresence("c1", "ua", "ip")
	a := &fakeSocket{}
	b := &fakeSocket{}
	s.AttachSocket("c1", a)
	s.AttachSocket("c1", b)

	assert.False(t, s.DetachSocket("c1", a))
	assert.Len(t, s.Presences(), 1)

	assert.True(t, s.DetachSocket("c1", b))
	assert.Empty(t, s.Presences())
	assert.Empty(t, s.SocketsFor("c1"))
}

func TestSocketsForSnapshots(t *testing.T) {
	t.Parallel()
	s := NewStore()

	a := &fakeSocket{}
	b := &fakeSocket{}
	s.AttachSocket("c1", a)
	s.AttachSocket("c2", b)

	assert.Len(t, s.SocketsFor("c1"), 1)
	assert.Len(t, s.AllSockets(), 2)
	assert.Empty(t, s.SocketsFor("unknown"))
}

func TestPlaybackCursor(t *testing.T) {
	t.Parallel()
	s := NewStore()

	_, err := s.UpsertPlayback("", "m1", 0, 30, 0)
	assert.ErrorIs(t, err, ErrEmptyClientID)
	_, err = s.UpsertPlayback("c1", "", 0, 30, 0)
	assert.ErrorIs(t, err, ErrEmptyMediaID)

	cur, err := s.UpsertPlayback("c1", "m1", -10, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, float64(0), cur.TimeMs)
	assert.Equal(t, float64(1), cur.FPS)
	assert.Equal(t, int64(0), cur.Frame)

	got, ok := s.GetPlayback("c1", "m1")
	require.True(t, ok)
	assert.Equal(t, cur, got)

	// Cursors are keyed per (client, media) pair.
	_, ok = s.GetPlayback("c1", "m2")
	assert.False(t, ok)
	_, ok = s.GetPlayback("c2", "m1")
	assert.False(t, ok)
}
