package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
)

// ErrClosed is returned by operations on a closed subscription.
var ErrClosed = errors.New("subscription closed")

// eventBuffer is how many events may queue before the reader blocks.
const eventBuffer = 64

// Subscription is one live channel for one identity. It owns the
// websocket connection and its reconnect loop; Close releases both.
type Subscription struct {
	identity model.Identity
	url      string
	dialer   *websocket.Dialer
	delay    time.Duration
	maxRetry int
	logg     *logging.Logger
	ctx      context.Context

	events chan Event
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
}

func newSubscription(ctx context.Context, m *Manager, identity model.Identity) *Subscription {
	return &Subscription{
		identity: identity,
		url:      m.opts.URL,
		dialer:   m.dialer,
		delay:    m.opts.ReconnectDelay,
		maxRetry: m.opts.MaxReconnectAttempts,
		logg:     m.logg,
		ctx:      m.logg.WithRecipient(ctx, identity.RecipientID),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		state:    StateConnecting,
	}
}

// Identity returns the identity this subscription announced.
func (s *Subscription) Identity() model.Identity {
	return s.identity
}

// Events returns the event stream. It is closed once the subscription
// has stopped for good (closed or offline).
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when Close has been called.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close disconnects and waits for the reader goroutine to exit.
// It is safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout"),
				deadline,
			)
			_ = conn.Close()
		}
	})
	<-s.exited
	return nil
}

func (s *Subscription) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run is the connection loop: connect, announce, read until the
// connection drops, then retry with a fixed delay up to maxRetry times.
func (s *Subscription) run() {
	defer close(s.exited)
	defer close(s.events)

	attempt := 0
	for {
		if attempt > 0 {
			s.setState(StateReconnecting, attempt)
			select {
			case <-s.done:
				s.setState(StateClosed, 0)
				return
			case <-time.After(s.delay):
			}
		}

		conn, err := s.connect()
		if err != nil {
			if s.closing() {
				s.setState(StateClosed, 0)
				return
			}
			s.logg.Error(s.logg.WithField(s.ctx, "attempt", attempt), "realtime connect failed", err)
			if attempt >= s.maxRetry {
				s.logg.Warn(s.ctx, "realtime reconnect attempts exhausted; live updates stopped")
				s.setState(StateOffline, 0)
				return
			}
			attempt++
			continue
		}

		attempt = 0
		s.setState(StateLive, 0)
		s.logg.Info(s.ctx, "realtime channel live")

		err = s.readLoop(conn)
		_ = conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if s.closing() {
			s.setState(StateClosed, 0)
			return
		}
		s.logg.Error(s.ctx, "realtime channel dropped", err)
		if s.maxRetry == 0 {
			s.setState(StateOffline, 0)
			return
		}
		attempt = 1
	}
}

// connect dials and announces the identity. The connection is only
// published for reading once the announce has been written, so no event
// can be delivered on a channel the server has not bound to us.
func (s *Subscription) connect() (*websocket.Conn, error) {
	dialCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	conn, resp, err := s.dialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dialing %s: session rejected: %w", s.url, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", s.url, err)
	}

	frame, err := NewRegisterFrame(s.identity)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("announcing identity: %w", err)
	}

	s.mu.Lock()
	if s.closing() {
		s.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()

	return conn, nil
}

// readLoop forwards decoded frames until the connection fails.
func (s *Subscription) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := decodeFrame(raw)
		if err != nil {
			var ignored errIgnored
			if errors.As(err, &ignored) {
				s.logg.Debug(s.logg.WithField(s.ctx, "reason", ignored.reason), "dropping frame")
			} else {
				s.logg.Warn(s.logg.WithField(s.ctx, "error", err.Error()), "dropping malformed frame")
			}
			continue
		}

		if !s.emit(ev) {
			return ErrClosed
		}
	}
}

func (s *Subscription) setState(state State, attempt int) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.emit(Event{Type: EventState, State: state, Attempt: attempt})
}

// emit delivers ev unless the subscription is closing. The closed state
// event is delivered best effort on the buffered channel.
func (s *Subscription) emit(ev Event) bool {
	if ev.Type == EventState && ev.State == StateClosed {
		select {
		case s.events <- ev:
		default:
		}
		return true
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}
