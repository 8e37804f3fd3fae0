package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T, tenantFor func(r *http.Request) string) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, tenantFor(r))
	}))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMap(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, tenant string) map[string]interface{} {
	t.Helper()
	if err := conn.WriteJSON(ControlMessage{Type: "SUBSCRIBE", TenantID: tenant, MsgID: "m1"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	return readMap(t, conn)
}

func TestBroadcastReachesOnlyTenant(t *testing.T) {
	hub, url := startHub(t, func(r *http.Request) string { return "" })

	a := dial(t, url)
	b := dial(t, url)
	if ack := subscribe(t, a, "tenant-a"); ack["type"] != "ACK" || ack["tenantId"] != "tenant-a" {
		t.Fatalf("Unexpected ack: %v", ack)
	}
	if ack := subscribe(t, b, "tenant-b"); ack["type"] != "ACK" {
		t.Fatalf("Unexpected ack: %v", ack)
	}

	if n := hub.Broadcast("tenant-a", Event{Type: "scan.created", Payload: map[string]int{"score": 80}}); n != 1 {
		t.Errorf("Expected 1 recipient, got %d", n)
	}

	msg := readMap(t, a)
	if msg["type"] != "scan.created" || msg["tenantId"] != "tenant-a" {
		t.Errorf("Unexpected event: %v", msg)
	}
	payload, _ := msg["payload"].(map[string]interface{})
	if payload["score"] != float64(80) {
		t.Errorf("Unexpected payload: %v", msg["payload"])
	}

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var other map[string]interface{}
	if err := b.ReadJSON(&other); err == nil {
		t.Errorf("Other tenant received %v", other)
	}
}

func TestAuthenticatedTenantIsPinned(t *testing.T) {
	hub, url := startHub(t, func(r *http.Request) string { return r.URL.Query().Get("tenant") })

	conn := dial(t, url+"?tenant=tenant-a")
	if msg := subscribe(t, conn, "tenant-b"); msg["type"] != "ERROR" {
		t.Errorf("Switching tenants should be rejected, got %v", msg)
	}

	// Pinned clients are subscribed from the start
	if msg := subscribe(t, conn, ""); msg["type"] != "ACK" || msg["tenantId"] != "tenant-a" {
		t.Fatalf("Unexpected ack: %v", msg)
	}
	hub.Publish("tenant-a", "template.saved", nil)
	if msg := readMap(t, conn); msg["type"] != "template.saved" {
		t.Errorf("Unexpected event: %v", msg)
	}
}

func TestUnknownMessageAndPing(t *testing.T) {
	_, url := startHub(t, func(r *http.Request) string { return "" })
	conn := dial(t, url)

	conn.WriteJSON(ControlMessage{Type: "PING", MsgID: "p"})
	if msg := readMap(t, conn); msg["type"] != "PONG" || msg["msgId"] != "p" {
		t.Errorf("Unexpected reply: %v", msg)
	}

	conn.WriteJSON(ControlMessage{Type: "DANCE"})
	if msg := readMap(t, conn); msg["type"] != "ERROR" {
		t.Errorf("Unexpected reply: %v", msg)
	}

	if msg := subscribe(t, conn, ""); msg["type"] != "ERROR" {
		t.Errorf("Anonymous subscribe without tenant should fail, got %v", msg)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t, func(r *http.Request) string { return "t" })
	conn := dial(t, url)
	subscribe(t, conn, "t")
	if hub.Count() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.Count())
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Errorf("Client still registered after disconnect")
	}
}
