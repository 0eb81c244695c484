// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gabriel20xx/MediaViewer/internal/session"
)

func TestRemoteIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "192.168.1.20:54321"
	assert.Equal(t, "192.168.1.20", RemoteIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", RemoteIP(req))
}

func TestClientSendNonBlocking(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub()

	c := newTestClient(h)
	c.send = make(chan interface{}, 1)

	assert.True(t, c.Send("first"))
	// Queue full: Send must refuse instead of blocking.
	assert.False(t, c.Send("second"))

	// After teardown Send refuses too; it never touches the closed channel.
	c.closeSend()
	assert.False(t, c.Send("third"))
	c.closeSend() // idempotent
}

func TestSetIdentity(t *testing.T) {
	t.Parallel()
	h, _ := newTestHub()
	c := newTestClient(h)

	assert.Equal(t, session.DefaultSessionID, c.SessionID())

	prev := c.setIdentity("c1", "room-2")
	assert.Empty(t, prev)
	assert.Equal(t, "c1", c.ClientID())
	assert.Equal(t, "room-2", c.SessionID())

	// Rekey keeps the session when the hello omits it.
	prev = c.setIdentity("c2", "")
	assert.Equal(t, "c1", prev)
	assert.Equal(t, "room-2", c.SessionID())
}
