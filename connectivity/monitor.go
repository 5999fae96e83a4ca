// Package connectivity tracks whether the ephemeris provider is reachable
// by holding a websocket heartbeat connection open. Connection transitions
// drive the sync registry's online/offline state.
package connectivity

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Monitor maintains the heartbeat connection with reconnect and exponential
// backoff. The state callback receives true on connect and false on loss.
type Monitor struct {
	url           string
	onStateChange func(online bool)

	mu   sync.Mutex
	conn *websocket.Conn

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
}

// heartbeatFrame is the provider's keep-alive message. Contents are
// informational only; receiving anything at all proves liveness.
type heartbeatFrame struct {
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
}

// NewMonitor creates a monitor for the given heartbeat endpoint.
func NewMonitor(url string, onStateChange func(online bool)) *Monitor {
	return &Monitor{
		url:               url,
		onStateChange:     onStateChange,
		reconnectDelay:    5 * time.Second,
		maxReconnectDelay: 60 * time.Second,
	}
}

// Run connects and reads heartbeat frames until the context is cancelled,
// reconnecting with exponential backoff on failure.
func (m *Monitor) Run(ctx context.Context) {
	delay := m.reconnectDelay

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		default:
		}

		if err := m.connect(); err != nil {
			log.Printf("⚠️  Heartbeat connection failed: %v", err)
			m.onStateChange(false)
			log.Printf("🔄 Retrying heartbeat connection in %v...", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > m.maxReconnectDelay {
				delay = m.maxReconnectDelay
			}
			continue
		}

		log.Println("✅ Ephemeris heartbeat connected")
		m.onStateChange(true)
		delay = m.reconnectDelay

		m.readLoop(ctx)

		select {
		case <-ctx.Done():
			m.Close()
			return
		default:
		}

		log.Println("⚠️  Heartbeat connection lost")
		m.onStateChange(false)
	}
}

func (m *Monitor) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(m.url, nil)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	return nil
}

// readLoop consumes heartbeat frames until the connection drops.
func (m *Monitor) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.Close()
			return
		}

		var frame heartbeatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed frames still prove the link is alive.
			continue
		}
	}
}

// Close tears down the current connection, if any.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}
