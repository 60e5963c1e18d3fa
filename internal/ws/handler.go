package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hexsettle/backend/internal/game"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

// Handler upgrades GET /games/:id/ws. The seat or spectator token comes
// from the token query parameter or a bearer Authorization header.
func (h *Hub) Handler(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")

		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
			return
		}
		claims, err := ParseSeatToken(secret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid seat token"})
			return
		}
		if claims.GameID != gameID {
			c.JSON(http.StatusForbidden, gin.H{"error": "token is not valid for this game"})
			return
		}

		st, err := h.engine.State(c.Request.Context(), gameID)
		if errors.Is(err, game.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		if err != nil {
			h.logger.Error("failed to load game for connection", zap.String("game_id", gameID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
			return
		}
		if !claims.Spectator && st.Player(claims.PlayerID) == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "seat is not part of this game"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("upgrade failed", zap.String("game_id", gameID), zap.Error(err))
			return
		}

		id := uuid.New().String()
		client := &Client{
			id:        id,
			hub:       h,
			conn:      conn,
			gameID:    gameID,
			playerID:  claims.PlayerID,
			spectator: claims.Spectator,
			send:      make(chan []byte, sendBuffer),
			logger: h.logger.With(
				zap.String("game_id", gameID),
				zap.String("player_id", claims.PlayerID),
				zap.Bool("spectator", claims.Spectator),
				zap.String("conn_id", id),
			),
		}
		h.join(client)

		go client.writePump()
		go client.readPump()
	}
}
