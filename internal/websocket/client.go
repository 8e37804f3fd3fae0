package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Dashboards only send small control messages.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from other origins; auth happens before the upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	ID string

	// tenant this connection may subscribe to, empty when unauthenticated
	allowedTenant string

	// guarded by hub.mu
	tenantID string
}

// ControlMessage is sent by dashboards
type ControlMessage struct {
	Type     string `json:"type"`
	TenantID string `json:"tenantId,omitempty"`
	MsgID    string `json:"msgId,omitempty"`
}

// readPump handles control messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS error: %v", err)
			}
			break
		}

		var msg ControlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError(msg.MsgID, "invalid message")
			continue
		}

		switch msg.Type {
		case "SUBSCRIBE":
			tenant := msg.TenantID
			if tenant == "" {
				tenant = c.allowedTenant
			}
			if tenant == "" || (c.allowedTenant != "" && tenant != c.allowedTenant) {
				c.sendError(msg.MsgID, "tenant not allowed")
				continue
			}
			c.hub.Subscribe(c, tenant)
			c.SendJSON(map[string]string{
				"type":     "ACK",
				"msgId":    msg.MsgID,
				"status":   "subscribed",
				"tenantId": tenant,
			})
		case "PING":
			c.SendJSON(map[string]string{"type": "PONG", "msgId": msg.MsgID})
		default:
			c.sendError(msg.MsgID, "unknown message type")
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON queues a JSON message for the client; it drops the message when the buffer is full
func (c *Client) SendJSON(v interface{}) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return nil
	}
	select {
	case c.send <- msg:
	default:
	}
	return nil
}

func (c *Client) sendError(msgID, reason string) {
	c.SendJSON(map[string]string{"type": "ERROR", "msgId": msgID, "error": reason})
}

// ServeWs upgrades the request and registers the dashboard. When tenantID is
// set the client is subscribed to it right away and may not switch tenants.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, tenantID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		ID:            "web_" + uuid.New().String(),
		allowedTenant: tenantID,
		tenantID:      tenantID,
	}
	select {
	case client.hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
