package relay

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// conn pumps frames between one WebSocket and its hub handle.
type conn struct {
	hub    *Hub
	ws     *websocket.Conn
	client *client
	logger *slog.Logger
}

func (c *conn) readPump() {
	defer func() {
		c.hub.detachClient(c.client)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("relay: read", slog.Int64("user_id", c.client.actor.ID), slog.Any("error", err))
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.hub.tell(c.client, ack(EventError, "", "malformed message"))
			continue
		}
		c.handle(in)
	}
}

func (c *conn) handle(in inbound) {
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "join":
		ref, err := CanJoin(c.client.actor, in.Topic)
		if err != nil {
			c.logger.Info("relay: join refused",
				slog.Int64("user_id", c.client.actor.ID),
				slog.String("topic", in.Topic),
				slog.Any("error", err))
			c.hub.tell(c.client, ack(EventError, notify.Topic(in.Topic), err.Error()))
			return
		}
		c.hub.joinTopic(c.client, ref.Topic)
	case "leave":
		ref, err := notify.ParseTopic(in.Topic)
		if err != nil {
			c.hub.tell(c.client, ack(EventError, notify.Topic(in.Topic), err.Error()))
			return
		}
		c.hub.leaveTopic(c.client, ref.Topic)
	default:
		c.hub.tell(c.client, ack(EventError, "", "unknown message type"))
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame, ok := <-c.client.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
