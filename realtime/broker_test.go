package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmichub-sync/events"
)

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func receive(t *testing.T, client chan []byte) envelope {
	t.Helper()
	select {
	case raw := <-client:
		var env envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return envelope{}
	}
}

func TestBrokerBroadcastReachesClients(t *testing.T) {
	b := NewBroker()
	go b.Run()

	client := make(chan []byte, 10)
	b.register <- client

	b.Broadcast("chart-update", map[string]string{"chartId": "c1"})

	env := receive(t, client)
	assert.Equal(t, "chart-update", env.Event)
	assert.JSONEq(t, `{"chartId":"c1"}`, string(env.Payload))

	b.unregister <- client
}

func TestBrokerBridgeBus(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	b := NewBroker()
	go b.Run()

	client := make(chan []byte, 10)
	b.register <- client

	unsub := b.BridgeBus(bus)
	bus.Emit(events.ChartSynced, map[string]string{"chartId": "c1"})

	env := receive(t, client)
	assert.Equal(t, events.ChartSynced, env.Event)

	unsub()
	bus.Emit(events.ChartSynced, map[string]string{"chartId": "c2"})
	select {
	case raw := <-client:
		t.Fatalf("unexpected broadcast after unsubscribe: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}
