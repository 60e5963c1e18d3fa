package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hexsettle/backend/internal/config"
)

// GetConfig returns the rule and automation defaults the frontend shows
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"victory_points":    cfg.VictoryPoints,
			"trade_ttl_seconds": int(cfg.TradeTTL.Seconds()),
			"ai_personality":    cfg.AIPersonality,
			"ai_difficulty":     cfg.AIDifficulty,
			"ai_think_time_ms":  cfg.AIThinkTime.Milliseconds(),
			"ai_personalities":  []string{"balanced", "builder", "trader", "aggressive"},
			"ai_difficulties":   []string{"easy", "medium", "hard"},
			"environment":       cfg.Environment,
		})
	}
}
