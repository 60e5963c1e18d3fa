package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hexsettle/backend/internal/ai"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
)

// Client is one socket bound to one seat of one game. A spectator has no
// seat and may only watch.
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	gameID    string
	playerID  string
	spectator bool
	send      chan []byte
	logger    *zap.Logger

	// guarded by hub.mu
	closed  bool
	lastSeq uint64
}

// writePump writes queued messages and keeps the connection alive with pings.
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
				// the hub closed the channel; the close frame is best effort
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readPump reads inbound messages until the socket fails, then leaves the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("connection closed unexpectedly", zap.Error(err))
			} else {
				c.logger.Debug("connection closed", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("badRequest", "message is not valid JSON", "")
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage dispatches one inbound message. The seat always comes from
// the connection.
func (c *Client) handleMessage(msg WSMessage) {
	var hdr inboundHeader
	if err := unmarshal(msg.Data, &hdr); err != nil {
		c.sendError("badRequest", "invalid message data", "")
		return
	}
	if hdr.GameID != "" && hdr.GameID != c.gameID {
		c.sendError("wrongGame", "this connection is bound to game "+c.gameID, hdr.ActionID)
		return
	}
	if c.spectator {
		c.handleSpectatorMessage(msg, hdr)
		return
	}
	if hdr.PlayerID != "" && hdr.PlayerID != c.playerID {
		c.sendError("wrongSeat", "this connection is bound to seat "+c.playerID, hdr.ActionID)
		return
	}

	switch msg.Type {
	case TypePing:
		c.hub.sendTo(c, outbound{Type: TypePong, Data: map[string]string{"timestamp": stamp(c.hub.now())}})

	case TypeRequestGameSync:
		c.hub.sync(context.Background(), c)

	case TypeEnableAutoMode:
		var d autoModeData
		if err := unmarshal(msg.Data, &d); err != nil {
			c.sendError("badRequest", "invalid auto mode settings", "")
			return
		}
		cfg := ai.Config{Personality: d.Personality, Difficulty: d.Difficulty}
		if err := c.hub.automation.EnableAutoMode(c.gameID, c.playerID, cfg); err != nil {
			c.sendError("autoModeFailed", err.Error(), "")
			return
		}
		c.hub.syncRoom(context.Background(), c.gameID)

	case TypeDisableAutoMode:
		if err := c.hub.automation.DisableAutoMode(c.gameID, c.playerID); err != nil {
			c.sendError("autoModeFailed", err.Error(), "")
			return
		}
		c.hub.syncRoom(context.Background(), c.gameID)

	default:
		a, err := decodeAction(msg.Type, msg.Data)
		if err != nil {
			c.sendError("badRequest", err.Error(), hdr.ActionID)
			return
		}
		a.ID = hdr.ActionID
		a.PlayerID = c.playerID
		a.ExpectedTurn = hdr.ExpectedTurn
		// a dropped socket must not cancel an action already submitted
		res, err := c.hub.engine.ProcessAction(context.Background(), c.gameID, a)
		c.hub.sendResult(c, res, err)
	}
}

// handleSpectatorMessage serves the read-only subset of the protocol.
func (c *Client) handleSpectatorMessage(msg WSMessage, hdr inboundHeader) {
	switch msg.Type {
	case TypePing:
		c.hub.sendTo(c, outbound{Type: TypePong, Data: map[string]string{"timestamp": stamp(c.hub.now())}})
	case TypeRequestGameSync:
		c.hub.sync(context.Background(), c)
	default:
		c.sendError("spectator", "spectators cannot act in the game", hdr.ActionID)
	}
}

func (c *Client) sendError(code, message, actionID string) {
	c.hub.sendTo(c, outbound{Type: TypeError, Data: errorData{
		GameID:    c.gameID,
		Timestamp: stamp(c.hub.now()),
		Code:      code,
		Message:   message,
		ActionID:  actionID,
	}})
}
