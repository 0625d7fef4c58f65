package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/notehub/internal/model"
)

// Frame types exchanged over the channel.
const (
	FrameRegister        = "register"
	FrameNewNotification = "new_notification"
	FramePresenceCount   = "presence_count"
)

// Frame is the envelope of every websocket message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Registration announces which recipient a channel belongs to.
type Registration struct {
	RecipientID string `json:"recipientId"`
	DisplayName string `json:"displayName"`
}

// EventType classifies an Event delivered to the subscriber.
type EventType int

const (
	EventNotification EventType = iota
	EventPresence
	EventState
)

// State is the lifecycle state of a subscription.
type State int

const (
	StateConnecting State = iota
	StateLive
	StateReconnecting
	StateOffline
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateOffline:
		return "offline"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one item of a subscription stream. Only the field matching
// Type is meaningful.
type Event struct {
	Type         EventType
	Notification model.Notification
	Presence     int
	State        State
	// Attempt is the reconnect attempt number for StateReconnecting.
	Attempt int
}

// NewRegisterFrame builds the identity announcement sent on every open.
func NewRegisterFrame(identity model.Identity) (Frame, error) {
	data, err := json.Marshal(Registration{
		RecipientID: identity.RecipientID,
		DisplayName: identity.DisplayName,
	})
	if err != nil {
		return Frame{}, fmt.Errorf("encoding registration: %w", err)
	}
	return Frame{Type: FrameRegister, Data: data}, nil
}

// NewNotificationFrame wraps n for pushing to a client.
func NewNotificationFrame(n model.Notification) (Frame, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding notification: %w", err)
	}
	return Frame{Type: FrameNewNotification, Data: data}, nil
}

// NewPresenceFrame wraps a presence count for pushing to a client.
func NewPresenceFrame(count int) Frame {
	data, _ := json.Marshal(count)
	return Frame{Type: FramePresenceCount, Data: data}
}

// errIgnored marks frames that are dropped without being an error worth
// more than a debug line.
type errIgnored struct {
	reason string
}

func (e errIgnored) Error() string { return e.reason }

// decodeFrame turns raw bytes into an Event. Unknown frame types and
// malformed payloads return an error and are dropped by the caller.
func decodeFrame(raw []byte) (Event, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("decoding frame: %w", err)
	}

	switch frame.Type {
	case FrameNewNotification:
		var n model.Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			return Event{}, fmt.Errorf("decoding notification: %w", err)
		}
		if n.ID == "" {
			return Event{}, errIgnored{reason: "notification without id"}
		}
		return Event{Type: EventNotification, Notification: n}, nil

	case FramePresenceCount:
		var count int
		if err := json.Unmarshal(frame.Data, &count); err != nil {
			return Event{}, fmt.Errorf("decoding presence count: %w", err)
		}
		return Event{Type: EventPresence, Presence: count}, nil

	default:
		return Event{}, errIgnored{reason: "unknown frame type " + frame.Type}
	}
}
