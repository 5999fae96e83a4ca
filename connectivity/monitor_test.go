package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitState(t *testing.T, states <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-states:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for state %v", want)
	}
}

func TestMonitorReportsConnectAndLoss(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections atomic.Int32
	drop := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(heartbeatFrame{Timestamp: time.Now().Unix(), Status: "ok"})
		if connections.Add(1) == 1 {
			<-drop
			return
		}
		// Later connections stay open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	states := make(chan bool, 16)
	m := NewMonitor("ws"+strings.TrimPrefix(server.URL, "http"), func(online bool) {
		states <- online
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitState(t, states, true)

	close(drop) // server drops the connection
	waitState(t, states, false)

	// Shutdown mirrors the application: cancel, then close the connection so
	// a blocked read unblocks immediately. Close repeats in case the monitor
	// was mid-reconnect when the first one landed.
	cancel()
	deadline := time.After(10 * time.Second)
	for {
		m.Close()
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("monitor did not stop on context cancel")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestMonitorReportsOfflineWhenUnreachable(t *testing.T) {
	states := make(chan bool, 16)
	m := NewMonitor("ws://127.0.0.1:1/heartbeat", func(online bool) {
		states <- online
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitState(t, states, false)
}

func TestMonitorCloseIsIdempotent(t *testing.T) {
	m := NewMonitor("ws://127.0.0.1:1/heartbeat", func(bool) {})
	m.Close()
	m.Close()
	require.Nil(t, m.conn)
}
