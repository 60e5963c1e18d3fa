package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listener receives every committed update of every game, in commit order
// per game. Implementations must not block.
type Listener interface {
	OnGameUpdate(u Update)
}

// Update describes one committed state change. State is shared and must be
// treated as read-only. Action is nil for engine maintenance such as trade
// expiry.
type Update struct {
	GameID    string
	Sequence  uint64
	State     *GameState
	Events    []Event
	Action    *Action
	Timestamp time.Time
}

// ActionResult is returned from ProcessAction.
type ActionResult struct {
	Success  bool       `json:"success"`
	ActionID string     `json:"actionId,omitempty"`
	Sequence uint64     `json:"sequence"`
	State    *GameState `json:"state,omitempty"`
	Events   []Event    `json:"events,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type ManagerConfig struct {
	TradeSweepInterval   time.Duration
	PersistRetryInterval time.Duration
	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
	// Seed seeds dice and steal draws; zero seeds from the clock.
	Seed int64
}

// Manager owns every live game. All mutations go through ProcessAction or
// the trade sweeper and are serialized per game; different games never
// block each other.
type Manager struct {
	store     Store
	history   History
	publisher Publisher
	logger    *zap.Logger
	cfg       ManagerConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.RWMutex
	games     map[string]*liveGame
	listeners []Listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type liveGame struct {
	mu sync.Mutex
	// publishMu is taken before mu is released so that persistence and
	// broadcast happen in commit order.
	publishMu sync.Mutex
	state     *GameState
	committed atomic.Int64
	saved     atomic.Int64
}

func newLiveGame(s *GameState, saved bool) *liveGame {
	g := &liveGame{state: s}
	g.committed.Store(int64(s.Version))
	if saved {
		g.saved.Store(int64(s.Version))
	} else {
		g.saved.Store(-1)
	}
	return g
}

func (g *liveGame) dirty() bool {
	return g.saved.Load() < g.committed.Load()
}

// NewManager creates a manager. history and publisher may be nil.
func NewManager(store Store, history History, publisher Publisher, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.TradeSweepInterval <= 0 {
		cfg.TradeSweepInterval = 5 * time.Second
	}
	if cfg.PersistRetryInterval <= 0 {
		cfg.PersistRetryInterval = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		store:     store,
		history:   history,
		publisher: publisher,
		logger:    logger.Named("engine"),
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
		games:     make(map[string]*liveGame),
	}
}

// AddListener subscribes l to committed updates.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *Manager) now() time.Time {
	return m.cfg.Now().UTC()
}

// CreateGame starts a new game. An empty id gets a generated one.
func (m *Manager) CreateGame(ctx context.Context, id string, seats []Seat, settings Settings, seed int64) (*GameState, error) {
	if id == "" {
		id = "game_" + uuid.NewString()
	}
	if seed == 0 {
		seed = m.randInt63()
	}
	s, err := NewGame(id, seats, settings, seed, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.games[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: game %s already exists", ErrInvalidAction, id)
	}
	g := newLiveGame(s, false)
	m.games[id] = g
	m.mu.Unlock()

	g.publishMu.Lock()
	m.persist(context.WithoutCancel(ctx), g, s)
	g.publishMu.Unlock()
	m.logger.Info("game created", zap.String("game_id", id), zap.Int("players", len(seats)))
	return s, nil
}

func (m *Manager) game(ctx context.Context, gameID string) (*liveGame, error) {
	m.mu.RLock()
	g, ok := m.games[gameID]
	m.mu.RUnlock()
	if ok {
		return g, nil
	}

	s, err := m.store.LoadState(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if s.Phase == PhaseEnded {
		// finished games are read-only and not kept in memory
		return newLiveGame(s, true), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.games[gameID]; ok {
		return existing, nil
	}
	g = newLiveGame(s, true)
	m.games[gameID] = g
	m.logger.Info("game loaded", zap.String("game_id", gameID), zap.Uint64("version", s.Version))
	return g, nil
}

// State returns the current committed state. The value is shared and must
// not be modified.
func (m *Manager) State(ctx context.Context, gameID string) (*GameState, error) {
	g, err := m.game(ctx, gameID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, nil
}

// Games lists the ids of games held in memory.
func (m *Manager) Games() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ProcessAction validates and applies a to the game, persists and
// broadcasts the result. A rejected action leaves the game untouched and
// returns both a failed result and the rejection error.
func (m *Manager) ProcessAction(ctx context.Context, gameID string, a Action) (*ActionResult, error) {
	g, err := m.game(ctx, gameID)
	if err != nil {
		return &ActionResult{Success: false, ActionID: a.ID, Error: err.Error()}, err
	}

	g.mu.Lock()
	a = m.prepare(a)

	var updates []Update
	if (a.Type == ActionAcceptTrade || a.Type == ActionRejectTrade) && g.state.Phase != PhaseEnded {
		if next, events, ok := PruneExpiredTrades(g.state, a.Timestamp); ok {
			updates = append(updates, m.commit(g, next, events, nil, a.Timestamp))
		}
	}
	next, events, applyErr := m.apply(g.state, a)
	if applyErr == nil {
		updates = append(updates, m.commit(g, next, events, &a, a.Timestamp))
	}
	seq := g.state.Version

	if len(updates) > 0 {
		g.publishMu.Lock()
		g.mu.Unlock()
		m.publish(context.WithoutCancel(ctx), g, updates)
		g.publishMu.Unlock()
	} else {
		g.mu.Unlock()
	}

	if applyErr != nil {
		fields := []zap.Field{
			zap.String("game_id", gameID), zap.String("player_id", a.PlayerID),
			zap.String("action", string(a.Type)), zap.Error(applyErr),
		}
		if IsRejection(applyErr) {
			m.logger.Debug("action rejected", fields...)
		} else {
			m.logger.Error("action failed", fields...)
		}
		return &ActionResult{Success: false, ActionID: a.ID, Sequence: seq, Error: applyErr.Error()}, applyErr
	}
	return &ActionResult{Success: true, ActionID: a.ID, Sequence: next.Version, State: next, Events: events}, nil
}

// prepare fills in the id, timestamp and random draws the submitter left empty.
func (m *Manager) prepare(a Action) Action {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = m.now()
	}
	a.Timestamp = a.Timestamp.UTC()
	switch a.Type {
	case ActionRoll:
		if a.Payload.Die1 == 0 && a.Payload.Die2 == 0 {
			a.Payload.Die1 = m.randIntn(6) + 1
			a.Payload.Die2 = m.randIntn(6) + 1
		}
	case ActionStealResource:
		if a.Payload.StealIndex == nil {
			a.Payload.StealIndex = Int(m.randIntn(1 << 20))
		}
	case ActionCreateTradeOffer:
		if a.Payload.TradeID == "" {
			a.Payload.TradeID = "trade_" + uuid.NewString()
		}
	}
	return a
}

func (m *Manager) randIntn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}

func (m *Manager) randInt63() int64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Int63()
}

func (m *Manager) apply(s *GameState, a Action) (next *GameState, events []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic applying action",
				zap.String("game_id", s.ID), zap.String("action", string(a.Type)),
				zap.Any("panic", r), zap.Stack("stack"))
			next, events, err = nil, nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return Apply(s, a)
}

// commit installs next as the canonical state. Caller holds g.mu.
func (m *Manager) commit(g *liveGame, next *GameState, events []Event, a *Action, at time.Time) Update {
	next.Version = g.state.Version + 1
	g.state = next
	g.committed.Store(int64(next.Version))
	return Update{GameID: next.ID, Sequence: next.Version, State: next, Events: events, Action: a, Timestamp: at}
}

// publish persists, records and broadcasts updates. Caller holds g.publishMu.
func (m *Manager) publish(ctx context.Context, g *liveGame, updates []Update) {
	for _, u := range updates {
		m.persist(ctx, g, u.State)

		if m.history != nil {
			if u.Action != nil {
				if err := m.history.RecordAction(ctx, u.GameID, u.Sequence, *u.Action, u.Events); err != nil {
					m.logger.Warn("action log write failed", zap.String("game_id", u.GameID), zap.Uint64("seq", u.Sequence), zap.Error(err))
				}
			}
			if HasEvent(u.Events, EventGameEnded) {
				if err := m.history.RecordResult(ctx, u.State); err != nil {
					m.logger.Warn("result write failed", zap.String("game_id", u.GameID), zap.Error(err))
				}
			}
		}
		if m.publisher != nil && len(u.Events) > 0 {
			if err := m.publisher.Publish(ctx, u.GameID, u.Sequence, u.Events); err != nil {
				m.logger.Warn("event publish failed", zap.String("game_id", u.GameID), zap.Error(err))
			}
		}

		m.mu.RLock()
		listeners := append([]Listener(nil), m.listeners...)
		m.mu.RUnlock()
		for _, l := range listeners {
			l.OnGameUpdate(u)
		}
		if HasEvent(u.Events, EventGameEnded) {
			m.retire(g, u.State)
		}
	}
}

// persist saves s; a failure leaves the game dirty for the retry loop.
// Caller holds g.publishMu.
func (m *Manager) persist(ctx context.Context, g *liveGame, s *GameState) bool {
	if err := m.store.SaveState(ctx, s); err != nil {
		m.logger.Warn("state persist failed, will retry", zap.String("game_id", s.ID), zap.Uint64("version", s.Version), zap.Error(err))
		return false
	}
	if int64(s.Version) > g.saved.Load() {
		g.saved.Store(int64(s.Version))
	}
	return true
}

// FlushDirty retries persistence for every game whose latest state has not
// been saved. It returns how many games were flushed.
func (m *Manager) FlushDirty(ctx context.Context) int {
	m.mu.RLock()
	pending := make([]*liveGame, 0)
	for _, g := range m.games {
		if g.dirty() {
			pending = append(pending, g)
		}
	}
	m.mu.RUnlock()

	flushed := 0
	for _, g := range pending {
		g.mu.Lock()
		s := g.state
		g.publishMu.Lock()
		g.mu.Unlock()
		if m.persist(ctx, g, s) {
			flushed++
			m.retire(g, s)
		}
		g.publishMu.Unlock()
	}
	if flushed > 0 {
		m.logger.Info("flushed pending state", zap.Int("games", flushed))
	}
	return flushed
}

// CleanupExpiredTrades removes expired trade offers from one game and
// reports whether anything was removed.
func (m *Manager) CleanupExpiredTrades(ctx context.Context, gameID string) (bool, error) {
	g, err := m.game(ctx, gameID)
	if err != nil {
		return false, err
	}
	g.mu.Lock()
	now := m.now()
	next, events, ok := PruneExpiredTrades(g.state, now)
	if !ok || g.state.Phase == PhaseEnded {
		g.mu.Unlock()
		return false, nil
	}
	u := m.commit(g, next, events, nil, now)
	g.publishMu.Lock()
	g.mu.Unlock()
	m.publish(context.WithoutCancel(ctx), g, []Update{u})
	g.publishMu.Unlock()
	m.logger.Debug("expired trades removed", zap.String("game_id", gameID), zap.Int("count", len(events)))
	return true, nil
}

// SweepTrades runs CleanupExpiredTrades over every live game.
func (m *Manager) SweepTrades(ctx context.Context) {
	for _, id := range m.Games() {
		if _, err := m.CleanupExpiredTrades(ctx, id); err != nil {
			m.logger.Warn("trade sweep failed", zap.String("game_id", id), zap.Error(err))
		}
	}
}

// retire drops a finished game from memory once its final state is saved.
// Later reads are served from the store. Caller holds g.publishMu.
func (m *Manager) retire(g *liveGame, s *GameState) {
	if s.Phase != PhaseEnded || g.dirty() {
		return
	}
	m.mu.Lock()
	if m.games[s.ID] == g {
		delete(m.games, s.ID)
	}
	m.mu.Unlock()
	m.logger.Info("finished game released", zap.String("game_id", s.ID), zap.Uint64("version", s.Version))
}

// Start runs the trade sweeper and the persistence retry loop until Stop.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(2)
	go m.every(ctx, m.cfg.TradeSweepInterval, m.SweepTrades)
	go m.every(ctx, m.cfg.PersistRetryInterval, func(ctx context.Context) { m.FlushDirty(ctx) })
	m.logger.Info("engine started",
		zap.Duration("trade_sweep", m.cfg.TradeSweepInterval),
		zap.Duration("persist_retry", m.cfg.PersistRetryInterval))
}

// Stop halts background loops and makes a final flush attempt.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.FlushDirty(ctx)
	m.logger.Info("engine stopped")
}

func (m *Manager) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
