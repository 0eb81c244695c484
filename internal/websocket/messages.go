// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package websocket

import (
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// Inbound message types.
const (
	MessageTypeHello  = "sync:hello"
	MessageTypeStatus = "client:status"
	MessageTypeUpdate = "sync:update"
	MessageTypePing   = "ws:ping"
)

// Outbound message types.
const (
	MessageTypeGreeting = "hello"
	MessageTypeState    = "sync:state"
	MessageTypePong     = "ws:pong"
)

// InboundMessage is the union of every message a socket may send. Fields
// irrelevant to a given type are simply left at their zero values; malformed
// messages are dropped without a reply, the socket stays up.
type InboundMessage struct {
	Type string `json:"type"`

	// sync:hello
	ClientID  string `json:"clientId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`

	// client:status
	View string `json:"uiView,omitempty"`

	// sync:update (MediaID is shared with client:status and distinguishes
	// an explicit null from an absent field)
	MediaID           models.NullableString `json:"mediaId,omitempty"`
	TimeMs            float64               `json:"timeMs,omitempty"`
	Paused            bool                  `json:"paused,omitempty"`
	FPS               float64               `json:"fps,omitempty"`
	Frame             int64                 `json:"frame,omitempty"`
	PlayAt            string                `json:"playAt,omitempty"`
	PlayAtLocalMs     *int64                `json:"playAtLocalMs,omitempty"`
	CapturedAtLocalMs *int64                `json:"capturedAtLocalMs,omitempty"`

	// Targeted delivery and opaque seek-handshake passthrough.
	ToClientID         string `json:"toClientId,omitempty"`
	OpenInUI           *bool  `json:"openInUi,omitempty"`
	SeekToken          string `json:"seekToken,omitempty"`
	SeekPhase          string `json:"seekPhase,omitempty"`
	SeekWantPlay       *bool  `json:"seekWantPlay,omitempty"`
	SeekTargetClientID string `json:"seekTargetClientId,omitempty"`

	// ws:ping (echoed back untouched, so types are opaque)
	Nonce        interface{} `json:"nonce,omitempty"`
	ClientSentAt interface{} `json:"clientSentAt,omitempty"`
}

// GreetingMessage is sent once per socket right after a successful hello.
type GreetingMessage struct {
	Type         string `json:"type"`
	ServerTimeMs int64  `json:"serverTimeMs"`
}

// StateMessage is the broadcast (and targeted-delivery) payload: the
// session snapshot plus the current presence roster. The seek fields are
// only populated on targeted deliveries and pass through verbatim.
type StateMessage struct {
	Type    string                  `json:"type"`
	State   models.SessionState     `json:"state"`
	Clients []models.ClientPresence `json:"clients"`

	FromClientID       string `json:"fromClientId,omitempty"`
	OpenInUI           *bool  `json:"openInUi,omitempty"`
	SeekToken          string `json:"seekToken,omitempty"`
	SeekPhase          string `json:"seekPhase,omitempty"`
	SeekWantPlay       *bool  `json:"seekWantPlay,omitempty"`
	SeekTargetClientID string `json:"seekTargetClientId,omitempty"`
}

// PongMessage answers ws:ping with the caller's correlation fields echoed
// back plus the server receive time, enabling client-side clock offset
// estimation.
type PongMessage struct {
	Type             string      `json:"type"`
	Nonce            interface{} `json:"nonce,omitempty"`
	ClientSentAt     interface{} `json:"clientSentAt,omitempty"`
	ServerReceivedAt int64       `json:"serverReceivedAt"`
}
