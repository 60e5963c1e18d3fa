package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hexsettle/backend/internal/ai"
	"github.com/hexsettle/backend/internal/game"
	"go.uber.org/zap"
)

const operatorKey = "operator"

// OperatorMiddleware authenticates the X-Operator and X-Operator-Token
// headers against the operator accounts.
func OperatorMiddleware(ops Operators, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.GetHeader("X-Operator"))
		token := strings.TrimSpace(c.GetHeader("X-Operator-Token"))
		if name == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		acc, err := ops.Authenticate(c.Request.Context(), name, token, c.ClientIP())
		if err != nil {
			logger.Info("operator rejected", zap.String("operator", name), zap.String("route", c.FullPath()), zap.Error(err))
			ops.LogAction(context.WithoutCancel(c.Request.Context()), name, c.ClientIP(), c.FullPath(), "authenticate", nil, false)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid operator credentials"})
			return
		}

		c.Set(operatorKey, acc.Name)
		c.Next()
	}
}

type autoModeRequest struct {
	Personality        ai.Personality `json:"personality"`
	Difficulty         ai.Difficulty  `json:"difficulty"`
	ThinkTimeMs        int            `json:"think_time_ms"`
	MaxActionsPerCycle int            `json:"max_actions_per_cycle"`
}

// seatOf resolves the :id and :seat params to a seat of a live game.
func seatOf(c *gin.Context, engine Engine) (string, string, bool) {
	gameID, seat := c.Param("id"), c.Param("seat")
	st, err := engine.State(c.Request.Context(), gameID)
	if errors.Is(err, game.ErrGameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return "", "", false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
		return "", "", false
	}
	if st.Player(seat) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seat not found"})
		return "", "", false
	}
	return gameID, seat, true
}

func audit(c *gin.Context, ops Operators, action string, details map[string]any, success bool) {
	ops.LogAction(context.WithoutCancel(c.Request.Context()), c.GetString(operatorKey), c.ClientIP(), c.FullPath(), action, details, success)
}

// EnableSeatAutoMode hands a seat to the scheduler on an operator's request.
func EnableSeatAutoMode(engine Engine, auto Automation, ops Operators) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, seat, ok := seatOf(c, engine)
		if !ok {
			return
		}

		var req autoModeRequest
		// an empty body takes every default
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		cfg := ai.Config{
			Personality:        req.Personality,
			Difficulty:         req.Difficulty,
			ThinkTime:          msToDuration(req.ThinkTimeMs),
			MaxActionsPerCycle: req.MaxActionsPerCycle,
		}
		details := map[string]any{"game_id": gameID, "player_id": seat, "personality": req.Personality, "difficulty": req.Difficulty}

		auto.RegisterGame(gameID)
		if err := auto.EnableAutoMode(gameID, seat, cfg); err != nil {
			audit(c, ops, "enable_auto_mode", details, false)
			status := http.StatusInternalServerError
			if errors.Is(err, ai.ErrInvalidConfig) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		audit(c, ops, "enable_auto_mode", details, true)
		c.JSON(http.StatusOK, gin.H{"game_id": gameID, "player_id": seat, "auto_mode": true})
	}
}

// DisableSeatAutoMode ends voluntary auto-mode for a seat.
func DisableSeatAutoMode(engine Engine, auto Automation, ops Operators) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, seat, ok := seatOf(c, engine)
		if !ok {
			return
		}
		details := map[string]any{"game_id": gameID, "player_id": seat}

		if err := auto.DisableAutoMode(gameID, seat); err != nil {
			audit(c, ops, "disable_auto_mode", details, false)
			status := http.StatusInternalServerError
			if errors.Is(err, ai.ErrGameNotRegistered) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		audit(c, ops, "disable_auto_mode", details, true)
		c.JSON(http.StatusOK, gin.H{"game_id": gameID, "player_id": seat, "auto_mode": auto.IsPlayerAI(gameID, seat)})
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
