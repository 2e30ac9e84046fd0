package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, "sfd#1")
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections["sfd#1"]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("Connection should be registered")
	}
	if len(connections) != 1 {
		t.Fatalf("Expected 1 connection, got %d", len(connections))
	}

	conn.Close()

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	_, exists = hub.connections["sfd#1"]
	hub.mu.RUnlock()

	if exists {
		t.Fatal("Connection should be unregistered after close")
	}
}

func TestHub_BroadcastToChannel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, r.URL.Query().Get("channel"))
	}))
	defer server.Close()

	dial := func(channel string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:]+"?channel="+channel, nil)
		if err != nil {
			t.Fatalf("Failed to connect to %s: %v", channel, err)
		}
		return conn
	}

	subscribed := dial("sfd%231")
	defer subscribed.Close()
	other := dial("sfd%232")
	defer other.Close()

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast("sfd#1", &Message{
		Type: "loan_status_changed",
		Data: map[string]interface{}{"loan_id": "abc", "status": "active"},
	})

	subscribed.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	if err := subscribed.ReadJSON(&got); err != nil {
		t.Fatalf("expected message on subscribed channel: %v", err)
	}
	if got.Type != "loan_status_changed" || got.Channel != "sfd#1" {
		t.Fatalf("unexpected message: %+v", got)
	}

	other.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("other channel should not receive the message")
	}
}
