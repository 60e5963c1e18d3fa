package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hexsettle/backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrOperatorNotFound = errors.New("operator account not found")
	ErrInvalidToken     = errors.New("invalid operator token")
	ErrIPNotAllowed     = errors.New("request address not allowed for operator")
)

// Store reads operator accounts and writes the audit trail.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("admin")}
}

// Get retrieves an operator account by name
func (s *Store) Get(ctx context.Context, name string) (*models.OperatorAccount, error) {
	var acc models.OperatorAccount
	err := s.db.GetContext(ctx, &acc, `SELECT name, display_name, token_hash, roles, allowed_ips, created_at, updated_at FROM operator_accounts WHERE name=$1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &acc, nil
}

// HashToken returns the bcrypt hash stored for a plain token.
func HashToken(plainToken string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hashed), nil
}

// VerifyToken checks if the provided token matches the stored hash
func VerifyToken(hashedToken, plainToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken)) == nil
}

// IPAllowed reports whether ip may act for acc. An empty list allows any address.
func IPAllowed(acc *models.OperatorAccount, ip string) bool {
	if len(acc.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range acc.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

// Upsert creates or replaces an operator account (used for seeding).
func (s *Store) Upsert(ctx context.Context, name, displayName, plainToken string, roles, allowedIPs []string) error {
	hashed, err := HashToken(plainToken)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operator_accounts (name, display_name, token_hash, roles, allowed_ips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			roles = EXCLUDED.roles,
			allowed_ips = EXCLUDED.allowed_ips,
			updated_at = NOW()
	`, name, displayName, hashed, pq.Array(roles), pq.Array(allowedIPs))
	return err
}

// Authenticate validates a name + token pair from the given address.
func (s *Store) Authenticate(ctx context.Context, name, token, ip string) (*models.OperatorAccount, error) {
	acc, err := s.Get(ctx, name)
	if err != nil {
		s.logger.Info("operator lookup failed", zap.String("operator", name), zap.Error(err))
		return nil, err
	}
	if !VerifyToken(acc.TokenHash, token) {
		s.logger.Info("operator token rejected", zap.String("operator", name))
		return nil, ErrInvalidToken
	}
	if !IPAllowed(acc, ip) {
		s.logger.Info("operator address rejected", zap.String("operator", name), zap.String("ip", ip))
		return nil, ErrIPNotAllowed
	}
	return acc, nil
}

// LogAction records an operator action in the audit log
func (s *Store) LogAction(ctx context.Context, operator, ip, route, action string, details map[string]any, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.logger.Warn("failed to marshal audit details", zap.Error(err))
		detailsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operator_audit (operator, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, operator, ip, route, action, detailsJSON, success)
	if err != nil {
		s.logger.Warn("failed to log operator action", zap.String("operator", operator), zap.String("action", action), zap.Error(err))
	}
	return err
}

// RecentAudit returns audit entries, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit, offset int) ([]models.OperatorAudit, error) {
	var logs []models.OperatorAudit
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, operator, ip, route, action, details, success, created_at
		FROM operator_audit
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return logs, err
}
