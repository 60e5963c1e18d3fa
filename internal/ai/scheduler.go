package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hexsettle/backend/internal/game"
	"go.uber.org/zap"
)

// Engine is the part of the game manager the scheduler drives.
type Engine interface {
	State(ctx context.Context, gameID string) (*game.GameState, error)
	ProcessAction(ctx context.Context, gameID string, a game.Action) (*game.ActionResult, error)
}

type SchedulerConfig struct {
	PollInterval time.Duration
	// Defaults fills the fields an auto-mode request leaves empty and
	// configures disconnect takeovers.
	Defaults Config
}

// Scheduler plays automated seats. Every poll it runs one cycle per
// registered game, each game on its own goroutine, and never starts a
// cycle for a game whose previous cycle is still running.
type Scheduler struct {
	engine  Engine
	decider Decider
	clock   Clock
	cfg     SchedulerConfig
	logger  *zap.Logger

	mu    sync.Mutex
	games map[string]*registeredGame

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(engine Engine, decider Decider, clock Clock, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	cfg.Defaults = cfg.Defaults.withDefaults(DefaultConfig())
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		engine:  engine,
		decider: decider,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.Named("scheduler"),
		games:   make(map[string]*registeredGame),
	}
}

// RegisterGame makes a game eligible for automation. Registering twice is
// a no-op.
func (s *Scheduler) RegisterGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; ok {
		return
	}
	s.games[gameID] = &registeredGame{id: gameID, seats: make(map[string]*seatAutomation)}
	s.logger.Info("game registered", zap.String("game_id", gameID))
}

// UnregisterGame discards the game and all of its seat automations.
func (s *Scheduler) UnregisterGame(gameID string) {
	s.mu.Lock()
	g, ok := s.games[gameID]
	delete(s.games, gameID)
	s.mu.Unlock()
	if ok {
		s.logger.Info("game unregistered", zap.String("game_id", gameID), zap.Int("automated_seats", len(g.seats)))
	}
}

// EnableAutoMode hands a seat to the scheduler at the player's request. It
// replaces a takeover already running for the seat.
func (s *Scheduler) EnableAutoMode(gameID, playerID string, cfg Config) error {
	cfg = cfg.withDefaults(s.cfg.Defaults)
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotRegistered, gameID)
	}
	if seat, ok := g.seats[playerID]; ok {
		seat.mode = ModeVoluntary
		seat.cfg = cfg
	} else {
		g.seats[playerID] = &seatAutomation{playerID: playerID, mode: ModeVoluntary, cfg: cfg, createdAt: s.clock.Now()}
	}
	s.logger.Info("auto mode enabled",
		zap.String("game_id", gameID), zap.String("player_id", playerID),
		zap.String("personality", string(cfg.Personality)), zap.String("difficulty", string(cfg.Difficulty)))
	return nil
}

// DisableAutoMode ends voluntary auto-mode. A takeover of a disconnected
// seat is left alone; it ends on reconnection.
func (s *Scheduler) DisableAutoMode(gameID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotRegistered, gameID)
	}
	if seat, ok := g.seats[playerID]; ok && seat.mode == ModeVoluntary {
		delete(g.seats, playerID)
		s.logger.Info("auto mode disabled", zap.String("game_id", gameID), zap.String("player_id", playerID))
	}
	return nil
}

// HandlePlayerDisconnection starts a takeover for the seat unless it is
// already automated.
func (s *Scheduler) HandlePlayerDisconnection(gameID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotRegistered, gameID)
	}
	if _, ok := g.seats[playerID]; ok {
		return nil
	}
	g.seats[playerID] = &seatAutomation{playerID: playerID, mode: ModeInvoluntary, cfg: s.cfg.Defaults, createdAt: s.clock.Now()}
	s.logger.Info("seat taken over after disconnect", zap.String("game_id", gameID), zap.String("player_id", playerID))
	return nil
}

// HandlePlayerReconnection ends a takeover. Voluntary auto-mode stays on.
func (s *Scheduler) HandlePlayerReconnection(gameID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return
	}
	if seat, ok := g.seats[playerID]; ok && seat.mode == ModeInvoluntary {
		delete(g.seats, playerID)
		s.logger.Info("takeover ended on reconnect", zap.String("game_id", gameID), zap.String("player_id", playerID))
	}
}

func (s *Scheduler) IsPlayerAI(gameID, playerID string) bool {
	_, ok := s.Mode(gameID, playerID)
	return ok
}

// Mode reports how a seat is automated, if at all.
func (s *Scheduler) Mode(gameID, playerID string) (Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return "", false
	}
	seat, ok := g.seats[playerID]
	if !ok {
		return "", false
	}
	return seat.mode, true
}

// Start runs cycles on the clock's ticker until ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.PollInterval))
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-ticker.C():
				s.dispatch(ctx, &s.wg)
			}
		}
	}()
}

// Stop cancels the loop and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunCycle runs one cycle for every idle registered game and waits for them.
func (s *Scheduler) RunCycle(ctx context.Context) {
	var wg sync.WaitGroup
	s.dispatch(ctx, &wg)
	wg.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, wg *sync.WaitGroup) {
	for _, id := range s.claim() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.runGame(ctx, id)
		}(id)
	}
}

// claim marks every idle game as processing and returns their ids.
func (s *Scheduler) claim() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, g := range s.games {
		if g.processing || len(g.seats) == 0 {
			continue
		}
		g.processing = true
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) release(gameID string) {
	s.mu.Lock()
	if g, ok := s.games[gameID]; ok {
		g.processing = false
	}
	s.mu.Unlock()
}

func (s *Scheduler) runGame(ctx context.Context, gameID string) {
	defer s.release(gameID)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("automation cycle panicked", zap.String("game_id", gameID), zap.Any("panic", r))
		}
	}()

	state, err := s.engine.State(ctx, gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			s.logger.Warn("registered game no longer exists", zap.String("game_id", gameID))
			s.UnregisterGame(gameID)
			return
		}
		s.logger.Error("failed to load game for automation", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	if state.Phase == game.PhaseEnded {
		s.UnregisterGame(gameID)
		return
	}

	for _, playerID := range state.TurnOrder {
		cfg, ok := s.ready(gameID, playerID, state)
		if !ok {
			continue
		}
		state = s.playSeat(ctx, gameID, playerID, cfg, state)
		if state == nil || state.Phase == game.PhaseEnded {
			return
		}
	}
}

func needsToAct(s *game.GameState, playerID string) bool {
	return game.MustAct(s, playerID) || len(game.PendingResponses(s, playerID)) > 0
}

// ready reports whether the seat is automated, owes a move and has waited
// out its think time.
func (s *Scheduler) ready(gameID, playerID string, state *game.GameState) (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return Config{}, false
	}
	seat, ok := g.seats[playerID]
	if !ok {
		return Config{}, false
	}
	if !needsToAct(state, playerID) {
		seat.due = false
		return Config{}, false
	}
	now := s.clock.Now()
	if !seat.due {
		seat.due = true
		seat.readyAt = now.Add(seat.cfg.ThinkTime)
	}
	if now.Before(seat.readyAt) {
		return Config{}, false
	}
	return seat.cfg, true
}

// playSeat submits decisions for one seat until it no longer owes a move,
// its turn is complete or the per-cycle cap is reached. It returns the
// latest state it saw, or nil when the seat or game went away.
func (s *Scheduler) playSeat(ctx context.Context, gameID, playerID string, cfg Config, state *game.GameState) *game.GameState {
	log := s.logger.With(zap.String("game_id", gameID), zap.String("player_id", playerID))
	defer s.rearm(gameID, playerID)

	executed := 0
	fellBack := false
	for executed < cfg.MaxActionsPerCycle && needsToAct(state, playerID) {
		if ctx.Err() != nil {
			return state
		}
		d, err := s.decider.Decide(ctx, state, playerID, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return state
			}
			log.Warn("decider failed", zap.Error(err))
		} else if len(d.Actions) == 0 {
			return state
		}

		rejected := err != nil
		for _, a := range d.Actions {
			if executed >= cfg.MaxActionsPerCycle {
				break
			}
			a.PlayerID = playerID
			res, err := s.engine.ProcessAction(ctx, gameID, a)
			if err != nil {
				if game.IsStale(err) {
					s.dropSeat(gameID, playerID, err)
					return nil
				}
				s.recordFailure(gameID, playerID)
				log.Warn("automated action rejected", zap.String("action", string(a.Type)), zap.Error(err))
				rejected = true
				break
			}
			executed++
			state = res.State
			s.recordSuccess(gameID, playerID, a.Type)
		}

		if rejected {
			if fellBack {
				return state
			}
			fellBack = true
			if fresh, err := s.engine.State(ctx, gameID); err == nil {
				state = fresh
			}
			fb, ok := fallbackAction(state, playerID)
			if !ok {
				return state
			}
			res, err := s.engine.ProcessAction(ctx, gameID, fb)
			if err != nil {
				if game.IsStale(err) {
					s.dropSeat(gameID, playerID, err)
					return nil
				}
				s.recordFailure(gameID, playerID)
				log.Warn("fallback action rejected", zap.String("action", string(fb.Type)), zap.Error(err))
				return state
			}
			executed++
			state = res.State
			s.recordSuccess(gameID, playerID, fb.Type)
			continue
		}
		if d.TurnComplete {
			break
		}
	}
	if executed > 0 {
		log.Debug("automation cycle done", zap.Int("actions", executed), zap.Uint64("version", state.Version))
	}
	return state
}

// fallbackAction is the move that keeps the game going when the decider's
// plan was rejected.
func fallbackAction(s *game.GameState, playerID string) (game.Action, bool) {
	a := game.Action{PlayerID: playerID, ExpectedTurn: game.Int(s.Turn)}
	switch {
	case s.CurrentPlayer != playerID || s.Phase == game.PhaseDiscard:
		pending := game.PendingResponses(s, playerID)
		if len(pending) == 0 {
			return a, false
		}
		a.Type = game.ActionRejectTrade
		a.Payload.TradeID = pending[0].ID
	case s.Phase == game.PhaseRoll:
		a.Type = game.ActionRoll
	case s.Phase == game.PhaseActions && s.PendingRoadBuilding == nil:
		a.Type = game.ActionEndTurn
	default:
		return a, false
	}
	return a, true
}

func (s *Scheduler) rearm(gameID, playerID string) {
	s.withSeat(gameID, playerID, func(seat *seatAutomation) { seat.due = false })
}

func (s *Scheduler) recordSuccess(gameID, playerID string, t game.ActionType) {
	now := s.clock.Now()
	s.withSeat(gameID, playerID, func(seat *seatAutomation) {
		seat.stats.ActionsExecuted++
		seat.stats.LastActionAt = now
		if t == game.ActionEndTurn {
			seat.stats.TurnsPlayed++
		}
	})
}

func (s *Scheduler) recordFailure(gameID, playerID string) {
	s.withSeat(gameID, playerID, func(seat *seatAutomation) { seat.stats.Failures++ })
}

func (s *Scheduler) withSeat(gameID, playerID string, fn func(*seatAutomation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[gameID]; ok {
		if seat, ok := g.seats[playerID]; ok {
			fn(seat)
		}
	}
}

// dropSeat removes a seat whose actions can no longer apply.
func (s *Scheduler) dropSeat(gameID, playerID string, cause error) {
	s.mu.Lock()
	if g, ok := s.games[gameID]; ok {
		delete(g.seats, playerID)
	}
	s.mu.Unlock()
	s.logger.Warn("automation deregistered after stale action",
		zap.String("game_id", gameID), zap.String("player_id", playerID), zap.Error(cause))
}
