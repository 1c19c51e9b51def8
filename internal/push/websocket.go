package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types on the push socket.
const (
	frameToken     = "token"
	frameMessage   = "message"
	frameDenied    = "denied"
	frameRequest   = "request_permission"
	frameSubscribe = "subscribe"
)

type frame struct {
	Type     string   `json:"type"`
	DeviceID string   `json:"device_id,omitempty"`
	Token    string   `json:"token,omitempty"`
	Message  *Message `json:"message,omitempty"`
}

// WSMessaging talks to the push service over a websocket. A lost connection is
// not re-established; the next process start dials again.
type WSMessaging struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	token     string
	denied    bool
	closed    bool
	changed   chan struct{} // closed and replaced whenever token/denied/closed change
	onRefresh []func(string)
	onMessage []func(Message)
	queue     []func()      // callbacks waiting to run, in frame order
	wake      chan struct{} // signals queue has work

	done chan struct{}
}

// DialMessaging connects to the push service at url and subscribes deviceID.
func DialMessaging(ctx context.Context, url, deviceID string, log *slog.Logger) (*WSMessaging, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push: dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("push: dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	m := &WSMessaging{
		conn:    conn,
		log:     log,
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if err := m.send(frame{Type: frameSubscribe, DeviceID: deviceID}); err != nil {
		conn.Close()
		return nil, err
	}
	go m.listen()
	go m.runCallbacks()
	return m, nil
}

func (m *WSMessaging) send(f frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("push: sending %s: %w", f.Type, err)
	}
	return nil
}

func (m *WSMessaging) listen() {
	defer close(m.done)
	defer m.update(func() { m.closed = true })

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, websocket.ErrCloseSent) {
				m.log.Debug("push socket closed", "error", err)
			}
			return
		}
		m.handle(data)
	}
}

func (m *WSMessaging) handle(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		m.log.Warn("push: bad frame", "error", err)
		return
	}

	switch f.Type {
	case frameToken:
		var refresh []func(string)
		m.update(func() {
			if m.token != "" && m.token != f.Token {
				refresh = append(refresh, m.onRefresh...)
			}
			m.token = f.Token
			m.denied = false
		})
		for _, fn := range refresh {
			m.enqueue(func() { fn(f.Token) })
		}
	case frameDenied:
		m.update(func() { m.denied = true })
	case frameMessage:
		if f.Message == nil {
			return
		}
		m.mu.Lock()
		fns := append([]func(Message){}, m.onMessage...)
		m.mu.Unlock()
		msg := *f.Message
		for _, fn := range fns {
			m.enqueue(func() { fn(msg) })
		}
	default:
		m.log.Debug("push: ignoring frame", "type", f.Type)
	}
}

// enqueue hands a callback to runCallbacks so the read loop never waits on it.
func (m *WSMessaging) enqueue(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// runCallbacks runs queued callbacks one at a time until the reader stops.
func (m *WSMessaging) runCallbacks() {
	for {
		stopping := false
		select {
		case <-m.wake:
		case <-m.done:
			stopping = true
		}
		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			fn := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			fn()
		}
		if stopping {
			return
		}
	}
}

// update applies fn under the lock and wakes waiters.
func (m *WSMessaging) update(fn func()) {
	m.mu.Lock()
	fn()
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
}

// wait blocks until ready reports true or ctx ends.
func (m *WSMessaging) wait(ctx context.Context, ready func() (bool, error)) error {
	for {
		m.mu.Lock()
		ok, err := ready()
		ch := m.changed
		m.mu.Unlock()
		if ok || err != nil {
			return err
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RequestPermission implements Messaging.
func (m *WSMessaging) RequestPermission(ctx context.Context) error {
	if err := m.send(frame{Type: frameRequest}); err != nil {
		return err
	}
	return m.wait(ctx, m.resolved)
}

// Token implements Messaging.
func (m *WSMessaging) Token(ctx context.Context) (string, error) {
	var tok string
	err := m.wait(ctx, func() (bool, error) {
		ok, err := m.resolved()
		tok = m.token
		return ok, err
	})
	if err != nil {
		return "", err
	}
	return tok, nil
}

// resolved must be called with mu held.
func (m *WSMessaging) resolved() (bool, error) {
	switch {
	case m.denied:
		return false, ErrPermissionDenied
	case m.token != "":
		return true, nil
	case m.closed:
		return false, errors.New("push: connection closed")
	}
	return false, nil
}

// OnTokenRefresh implements Messaging.
func (m *WSMessaging) OnTokenRefresh(fn func(string)) {
	m.mu.Lock()
	m.onRefresh = append(m.onRefresh, fn)
	m.mu.Unlock()
}

// OnMessage implements Messaging.
func (m *WSMessaging) OnMessage(fn func(Message)) {
	m.mu.Lock()
	m.onMessage = append(m.onMessage, fn)
	m.mu.Unlock()
}

// Close closes the socket and waits for the reader to stop.
func (m *WSMessaging) Close() error {
	m.writeMu.Lock()
	_ = m.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	m.writeMu.Unlock()
	err := m.conn.Close()
	<-m.done
	return err
}
