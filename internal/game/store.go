package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store persists game state snapshots. LoadState returns an error wrapping
// ErrGameNotFound when nothing is stored for the id.
type Store interface {
	SaveState(ctx context.Context, s *GameState) error
	LoadState(ctx context.Context, gameID string) (*GameState, error)
}

func stateKey(gameID string) string {
	return "game:" + gameID + ":state"
}

// RedisStore keeps the live copy of each game in Redis with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) SaveState(ctx context.Context, s *GameState) error {
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	return r.rdb.SetEx(ctx, stateKey(s.ID), data, r.ttl).Err()
}

func (r *RedisStore) LoadState(ctx context.Context, gameID string) (*GameState, error) {
	data, err := r.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s not in redis", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, err
	}
	return DecodeState(data)
}

// SQLStore keeps one snapshot row per game in Postgres. Older versions never
// overwrite newer ones.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (q *SQLStore) SaveState(ctx context.Context, s *GameState) error {
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO game_snapshots (game_id, version, phase, state, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, NOW())
		ON CONFLICT (game_id) DO UPDATE
		SET version = EXCLUDED.version, phase = EXCLUDED.phase, state = EXCLUDED.state, updated_at = NOW()
		WHERE game_snapshots.version <= EXCLUDED.version`,
		s.ID, int64(s.Version), string(s.Phase), string(data))
	return err
}

func (q *SQLStore) LoadState(ctx context.Context, gameID string) (*GameState, error) {
	var data string
	err := q.db.GetContext(ctx, &data, `SELECT state FROM game_snapshots WHERE game_id = $1`, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s has no snapshot", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, err
	}
	return DecodeState([]byte(data))
}

// TieredStore writes through a fast primary (Redis) and a durable fallback
// (Postgres). Loads that miss the primary are served from the fallback and
// re-warm the primary.
type TieredStore struct {
	primary  Store
	fallback Store
	logger   *zap.Logger
}

func NewTieredStore(primary, fallback Store, logger *zap.Logger) *TieredStore {
	return &TieredStore{primary: primary, fallback: fallback, logger: logger.Named("store")}
}

// SaveState writes both tiers. A failure in either is returned so the game
// stays dirty until both hold the version.
func (t *TieredStore) SaveState(ctx context.Context, s *GameState) error {
	primaryErr := t.primary.SaveState(ctx, s)
	fallbackErr := t.fallback.SaveState(ctx, s)
	if fallbackErr != nil {
		t.logger.Warn("snapshot write failed", zap.String("game_id", s.ID), zap.Error(fallbackErr))
	}
	return errors.Join(primaryErr, fallbackErr)
}

func (t *TieredStore) LoadState(ctx context.Context, gameID string) (*GameState, error) {
	s, err := t.primary.LoadState(ctx, gameID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrGameNotFound) {
		t.logger.Warn("primary load failed, trying snapshot", zap.String("game_id", gameID), zap.Error(err))
	}
	s, err = t.fallback.LoadState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if werr := t.primary.SaveState(ctx, s); werr != nil {
		t.logger.Warn("re-warm failed", zap.String("game_id", gameID), zap.Error(werr))
	}
	return s, nil
}

// MemoryStore keeps encoded snapshots in process. It is used when neither
// Redis nor Postgres is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	// failSaves simulates an outage
	failSaves bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

var errStoreUnavailable = errors.New("store unavailable")

func (m *MemoryStore) SaveState(_ context.Context, s *GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return errStoreUnavailable
	}
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	m.data[s.ID] = data
	return nil
}

func (m *MemoryStore) LoadState(_ context.Context, gameID string) (*GameState, error) {
	m.mu.RLock()
	data, ok := m.data[gameID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return DecodeState(data)
}

// SetFailSaves toggles simulated save failures.
func (m *MemoryStore) SetFailSaves(fail bool) {
	m.mu.Lock()
	m.failSaves = fail
	m.mu.Unlock()
}
