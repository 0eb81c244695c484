// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package websocket

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/metrics"
	"github.com/gabriel20xx/MediaViewer/internal/models"
	"github.com/gabriel20xx/MediaViewer/internal/session"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Single-host LAN coordinator: cross-origin page loads are expected
	// (VR headsets, phones), so the origin check is permissive.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub owns the socket set and serializes the sync protocol: every inbound
// message commits (or targets) through the session store and fans the
// resulting snapshot back out. Broadcasts are serialized through a channel
// so state snapshots are taken one at a time.
type Hub struct {
	store *session.Store

	clients    map[*Client]bool
	broadcast  chan string // session ids whose state should be fanned out
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	now func() time.Time
}

// NewHub creates a new Hub over the given store.
func NewHub(store *session.Store) *Hub {
	return &Hub{
		store:      store,
		broadcast:  make(chan string, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		now:        time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (h *Hub) SetClock(now func() time.Time) {
	h.mu.Lock()
	h.now = now
	h.mu.Unlock()
}

func (h *Hub) clock() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.now()
}

// ServeWS upgrades an HTTP request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h, conn, RemoteIP(r), r.UserAgent())
	h.Register <- client
	client.Start()
}

// RunWithContext starts the hub with context support for graceful shutdown.
// This method is designed for use with suture supervision.
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast requests
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: Handle broadcast requests or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case sessionID := <-h.broadcast:
			h.broadcastToClients(sessionID)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnectedSockets.Set(float64(total))
	logging.Info().Int("total_sockets", total).Str("ip", client.ip).Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.WSConnectedSockets.Set(float64(total))
	logging.Info().Int("total_sockets", total).Msg("websocket client disconnected")

	// Dropping the last socket for a client id removes its presence, which
	// every remaining viewer should see.
	if clientID := client.ClientID(); clientID != "" {
		if last := h.store.DetachSocket(clientID, client); last {
			h.BroadcastState(client.SessionID())
		}
	}
}

// logGracefulShutdown closes all clients and logs structured shutdown info.
// ctx.Err() is NOT logged as an error because context cancellation is
// expected behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	reason := getShutdownReason(ctx)
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// handleInbound dispatches one message from a socket. Invalid messages are
// dropped silently: the socket stays connected, nothing is committed.
func (h *Hub) handleInbound(c *Client, msg InboundMessage) {
	metrics.WSMessagesTotal.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case MessageTypeHello:
		h.handleHello(c, msg)
	case MessageTypeStatus:
		h.handleStatus(c, msg)
	case MessageTypeUpdate:
		h.handleUpdate(c, msg)
	case MessageTypePing:
		c.Send(PongMessage{
			Type:             MessageTypePong,
			Nonce:            msg.Nonce,
			ClientSentAt:     msg.ClientSentAt,
			ServerReceivedAt: h.clock().UnixMilli(),
		})
	default:
		logging.Debug().Str("type", msg.Type).Msg("dropping unknown websocket message")
	}
}

// handleHello binds the socket to a logical client id (possibly rekeying an
// earlier binding), registers presence, and greets the socket with the
// server clock plus the current session snapshot.
func (h *Hub) handleHello(c *Client, msg InboundMessage) {
	if msg.ClientID == "" {
		return
	}

	prev := c.setIdentity(msg.ClientID, msg.SessionID)
	if prev != "" && prev != msg.ClientID {
		if last := h.store.DetachSocket(prev, c); last {
			logging.Debug().Str("old_client_id", prev).Str("client_id", msg.ClientID).Msg("websocket client rekeyed")
		}
	}

	userAgent := msg.UserAgent
	if userAgent == "" {
		userAgent = c.userAgent
	}
	h.store.UpsertPresence(msg.ClientID, userAgent, c.ip)
	h.store.AttachSocket(msg.ClientID, c)

	c.Send(GreetingMessage{Type: MessageTypeGreeting, ServerTimeMs: h.clock().UnixMilli()})
	c.Send(h.stateSnapshot(c.SessionID()))
	h.BroadcastState(c.SessionID())
}

// handleStatus updates presence UI fields. A status before any hello has no
// identity to attach to and is dropped.
func (h *Hub) handleStatus(c *Client, msg InboundMessage) {
	clientID := c.ClientID()
	if clientID == "" {
		clientID = msg.ClientID
	}
	if clientID == "" {
		return
	}

	h.store.SetPresenceUI(clientID, msg.View, msg.MediaID)
	h.BroadcastState(c.SessionID())
}

// handleUpdate commits a sync:update, or delivers it unmodified to one
// target client when toClientId is present (targeted seek: the shared state
// is not touched).
func (h *Hub) handleUpdate(c *Client, msg InboundMessage) {
	fromClientID := c.ClientID()
	sessionID := c.SessionID()

	if msg.ToClientID != "" {
		h.deliverTargeted(sessionID, fromClientID, msg)
		return
	}

	st, err := h.store.UpsertSession(session.Update{
		SessionID:    sessionID,
		MediaID:      msg.MediaID.Value,
		TimeMs:       msg.TimeMs,
		Paused:       msg.Paused,
		FPS:          msg.FPS,
		Frame:        msg.Frame,
		FromClientID: fromClientID,
	})
	if err != nil {
		logging.Debug().Err(err).Str("client_id", fromClientID).Msg("dropping invalid sync update")
		return
	}

	// A coordinated start only survives while playing; pausing or omitting
	// playAt clears any earlier schedule.
	if !st.Paused && msg.PlayAt != "" {
		h.store.SetEphemerals(sessionID, msg.PlayAt, msg.PlayAtLocalMs, msg.CapturedAtLocalMs)
	} else {
		h.store.ClearPlayAt(sessionID)
	}

	h.BroadcastState(sessionID)
}

// deliverTargeted sends a proposed state to one client's sockets without
// committing it. The payload mirrors sync:state so receivers reuse their
// normal apply path, with the seek handshake fields passed through verbatim.
func (h *Hub) deliverTargeted(sessionID, fromClientID string, msg InboundMessage) {
	proposed := models.SessionState{
		SessionID:    sessionID,
		MediaID:      msg.MediaID.Value,
		TimeMs:       msg.TimeMs,
		Paused:       msg.Paused,
		FPS:          msg.FPS,
		Frame:        msg.Frame,
		FromClientID: fromClientID,
		UpdatedAtMs:  h.clock().UnixMilli(),
	}
	if proposed.TimeMs < 0 {
		proposed.TimeMs = 0
	}
	if proposed.FPS < 1 {
		proposed.FPS = 1
	}

	out := StateMessage{
		Type:               MessageTypeState,
		State:              proposed,
		Clients:            h.store.Presences(),
		FromClientID:       fromClientID,
		OpenInUI:           msg.OpenInUI,
		SeekToken:          msg.SeekToken,
		SeekPhase:          msg.SeekPhase,
		SeekWantPlay:       msg.SeekWantPlay,
		SeekTargetClientID: msg.SeekTargetClientID,
	}

	for _, sock := range h.store.SocketsFor(msg.ToClientID) {
		sock.Send(out)
	}
}

// stateSnapshot builds the broadcast payload for a session.
func (h *Hub) stateSnapshot(sessionID string) StateMessage {
	return StateMessage{
		Type:    MessageTypeState,
		State:   h.store.SessionWithEphemerals(sessionID),
		Clients: h.store.Presences(),
	}
}

// BroadcastState queues a session snapshot fan-out. Non-blocking: if the
// queue is full the freshest pending broadcast already supersedes this one.
func (h *Hub) BroadcastState(sessionID string) {
	select {
	case h.broadcast <- sessionID:
	default:
		logging.Warn().Str("session_id", sessionID).Msg("broadcast channel full, dropping state broadcast")
	}
}

// broadcastToClients snapshots the session and fans it out to every socket
// in a deterministic order.
// DETERMINISM: Sorts clients by their socket ID to ensure consistent
// iteration order; map iteration would deliver in random order.
func (h *Hub) broadcastToClients(sessionID string) {
	message := h.stateSnapshot(sessionID)
	metrics.WSBroadcastsTotal.Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.SessionID() == sessionID {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	// Track clients to remove (can't modify map during iteration)
	var toRemove []*Client

	for _, client := range clients {
		if !client.Send(message) {
			// Queue full: the socket is dead or hopelessly behind.
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) == 0 {
		return
	}

	// A slow socket gets the same full teardown as a normal disconnect:
	// otherwise its presence and store attachment would outlive it, and the
	// read pump's later Unregister would find nothing left to clean up.
	for _, client := range toRemove {
		client.closeSend()
		delete(h.clients, client)
	}
	metrics.WSConnectedSockets.Set(float64(len(h.clients)))

	for _, client := range toRemove {
		logging.Warn().Str("client_id", client.ClientID()).Str("ip", client.ip).Msg("dropping slow websocket client")
		if clientID := client.ClientID(); clientID != "" {
			if last := h.store.DetachSocket(clientID, client); last {
				h.BroadcastState(client.SessionID())
			}
		}
	}
}

// closeAllClients gracefully closes all connected WebSocket clients.
// DETERMINISM: Closes clients in ID order to ensure consistent shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.closeSend()
		delete(h.clients, client)
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// GetClientCount returns the number of connected sockets.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
