package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpreach/smartpreach-server/internal/model"
)

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case event := <-client.Events:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroker_LocalFanOut(t *testing.T) {
	broker := NewBroker(nil)
	defer broker.Close()

	a := broker.Subscribe("session00001")
	b := broker.Subscribe("session00001")
	other := broker.Subscribe("session00002")

	assert.Equal(t, 2, broker.ClientCount("session00001"))
	assert.Equal(t, 3, broker.TotalClients())

	event := Event{Type: model.SessionEventState, Data: json.RawMessage(`{"font_size":120}`)}
	require.NoError(t, broker.Publish(context.Background(), "session00001", event))

	assert.Equal(t, event, receive(t, a))
	assert.Equal(t, event, receive(t, b))

	select {
	case <-other.Events:
		t.Fatal("event leaked to another session")
	default:
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker(nil)
	defer broker.Close()

	client := broker.Subscribe("session00001")
	broker.Unsubscribe(client)

	assert.Equal(t, 0, broker.ClientCount("session00001"))
	_, open := <-client.Done
	assert.False(t, open)

	t.Run("second unsubscribe is harmless", func(t *testing.T) {
		assert.NotPanics(t, func() { broker.Unsubscribe(client) })
	})
}

func TestBroker_DropsWhenBufferFull(t *testing.T) {
	broker := NewBroker(nil)
	defer broker.Close()

	client := broker.Subscribe("session00001")
	for i := 0; i < clientBufferSize+5; i++ {
		require.NoError(t, broker.Publish(context.Background(), "session00001", Event{Type: model.SessionEventState}))
	}

	assert.Len(t, client.Events, clientBufferSize)
}

func TestBroker_CloseReleasesClients(t *testing.T) {
	broker := NewBroker(nil)
	client := broker.Subscribe("session00001")

	broker.Close()

	select {
	case <-client.Done:
	case <-time.After(time.Second):
		t.Fatal("client not released on close")
	}
	assert.Equal(t, 0, broker.TotalClients())
	assert.NotPanics(t, func() { broker.Unsubscribe(client) })
}
