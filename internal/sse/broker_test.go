package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/whatsdrip/dashboard/internal/redis"
)

func setupBroker(t *testing.T) *Broker {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	broker := NewBroker(client)
	t.Cleanup(broker.Close)
	return broker
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case event := <-client.Events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	first := broker.Subscribe(DefaultTopic)
	second := broker.Subscribe(DefaultTopic)
	assert.Equal(t, 2, broker.ClientCount(DefaultTopic))

	require.NoError(t, broker.PublishJSON(ctx, DefaultTopic, EventNotification, map[string]string{
		"level":   "error",
		"message": "Session expired. Please sign in again.",
	}))

	for _, client := range []*Client{first, second} {
		event := receive(t, client)
		assert.Equal(t, EventNotification, event.Type)

		var data map[string]string
		require.NoError(t, json.Unmarshal(event.Data, &data))
		assert.Equal(t, "error", data["level"])
	}
}

func TestBroker_TopicsAreIsolated(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	a := broker.Subscribe("a")
	b := broker.Subscribe("b")

	require.NoError(t, broker.PublishJSON(ctx, "a", EventStatus, map[string]string{"state": "connected"}))

	event := receive(t, a)
	assert.Equal(t, EventStatus, event.Type)

	select {
	case ev := <-b.Events:
		t.Fatalf("unexpected event on topic b: %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 2, broker.TotalClients())
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := setupBroker(t)

	client := broker.Subscribe(DefaultTopic)
	broker.Unsubscribe(client)
	broker.Unsubscribe(client)

	assert.Equal(t, 0, broker.ClientCount(DefaultTopic))
	select {
	case <-client.Done:
	default:
		t.Fatal("done channel not closed")
	}

	again := broker.Subscribe(DefaultTopic)
	require.NoError(t, broker.PublishJSON(context.Background(), DefaultTopic, EventDashboard, map[string]int{"totalContacts": 3}))

	assert.Equal(t, EventDashboard, receive(t, again).Type)
	select {
	case ev := <-again.Events:
		t.Fatalf("event delivered twice: %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroker_Close(t *testing.T) {
	broker := setupBroker(t)
	client := broker.Subscribe(DefaultTopic)

	broker.Close()

	select {
	case <-client.Done:
	default:
		t.Fatal("done channel not closed")
	}
	assert.Equal(t, 0, broker.TotalClients())
}
