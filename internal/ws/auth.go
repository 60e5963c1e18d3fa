package ws

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidSeatToken = errors.New("invalid seat token")

// SeatClaims bind a connection to one seat of one game, or to no seat for
// a spectator.
type SeatClaims struct {
	GameID    string `json:"gameId"`
	PlayerID  string `json:"playerId,omitempty"`
	Spectator bool   `json:"spectator,omitempty"`
	jwt.RegisteredClaims
}

// IssueSeatToken signs a seat token valid for ttl.
func IssueSeatToken(secret []byte, gameID, playerID string, ttl time.Duration, now time.Time) (string, error) {
	claims := SeatClaims{
		GameID:   gameID,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IssueSpectatorToken signs a read-only token for watching a game.
func IssueSpectatorToken(secret []byte, gameID string, ttl time.Duration, now time.Time) (string, error) {
	claims := SeatClaims{
		GameID:    gameID,
		Spectator: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "spectator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSeatToken verifies an HS256 seat token.
func ParseSeatToken(secret []byte, token string) (*SeatClaims, error) {
	claims := &SeatClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeatToken, err)
	}
	if !parsed.Valid || claims.GameID == "" {
		return nil, ErrInvalidSeatToken
	}
	// a token names a seat or is a spectator token, never both
	if claims.Spectator != (claims.PlayerID == "") {
		return nil, ErrInvalidSeatToken
	}
	return claims, nil
}
