package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hexsettle/backend/internal/admin"
	"github.com/hexsettle/backend/internal/config"
	"github.com/hexsettle/backend/internal/database"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	name := os.Getenv("OPERATOR_NAME")
	if name == "" {
		name = "operator"
		logger.Info("using default operator name", zap.String("name", name))
	}

	token := os.Getenv("OPERATOR_TOKEN")
	if token == "" {
		if cfg.IsProduction() {
			logger.Fatal("OPERATOR_TOKEN must be set in production")
		}
		token = "change-me-in-production"
		logger.Warn("using default operator token, set OPERATOR_TOKEN outside development")
	}

	displayName := "Operator"
	roles := []string{"operator"}
	allowedIPs := []string{} // empty allows any address
	if v := os.Getenv("OPERATOR_ALLOWED_IPS"); v != "" {
		for _, ip := range strings.Split(v, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				allowedIPs = append(allowedIPs, ip)
			}
		}
	}

	if err := admin.NewStore(db, logger).Upsert(ctx, name, displayName, token, roles, allowedIPs); err != nil {
		logger.Fatal("failed to seed operator account", zap.Error(err))
	}

	logger.Info("operator account created/updated",
		zap.String("name", name),
		zap.Strings("roles", roles),
		zap.Strings("allowed_ips", allowedIPs))
}
