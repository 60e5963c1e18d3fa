package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hexsettle/backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	ticks chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0, ticks: make(chan time.Time, 1)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return fakeTicker{c.ticks} }

type fakeTicker struct{ c chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.c }
func (t fakeTicker) Stop()               {}

func seats(n int) []game.Seat {
	out := make([]game.Seat, n)
	for i := range out {
		id := string(rune('A' + i))
		out[i] = game.Seat{ID: id, Name: "Player " + id}
	}
	return out
}

func newTestManager(t *testing.T, clock *fakeClock, players int) *game.Manager {
	t.Helper()
	m := game.NewManager(game.NewMemoryStore(), nil, nil, game.ManagerConfig{Now: clock.Now, Seed: 7}, zap.NewNop())
	_, err := m.CreateGame(context.Background(), "g1", seats(players), game.DefaultSettings(), 42)
	require.NoError(t, err)
	return m
}

func newTestScheduler(engine Engine, clock *fakeClock) *Scheduler {
	return NewScheduler(engine, NewHeuristicDecider(), clock, SchedulerConfig{
		PollInterval: time.Second,
		Defaults:     Config{ThinkTime: 500 * time.Millisecond},
	}, zap.NewNop())
}

// cycles advances the clock past the think time before every cycle.
func cycles(s *Scheduler, clock *fakeClock, n int) {
	for i := 0; i < n; i++ {
		clock.Advance(time.Second)
		s.RunCycle(context.Background())
	}
}

func TestDisconnectTakeover(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 3), clock)
	s.RegisterGame("g1")

	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))

	assert.True(t, s.IsPlayerAI("g1", "A"))
	assert.False(t, s.IsPlayerAI("g1", "B"))
	sum := s.Summary()
	assert.Equal(t, 1, sum.TotalGames)
	assert.Equal(t, 1, sum.TotalAIPlayers)
	assert.Equal(t, 1, sum.DisconnectedPlayers)
	assert.Equal(t, 0, sum.AutoModePlayers)
	require.Len(t, sum.Games, 1)
	assert.Equal(t, ModeInvoluntary, sum.Games[0].Seats[0].Mode)
}

func TestEnableAutoModeReplacesTakeover(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 3), clock)
	s.RegisterGame("g1")

	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))
	require.NoError(t, s.EnableAutoMode("g1", "A", Config{Personality: PersonalityTrader}))

	sum := s.Summary()
	assert.Equal(t, 1, sum.TotalAIPlayers)
	assert.Equal(t, 1, sum.AutoModePlayers)
	assert.Equal(t, 0, sum.DisconnectedPlayers)
	mode, ok := s.Mode("g1", "A")
	require.True(t, ok)
	assert.Equal(t, ModeVoluntary, mode)
	assert.Equal(t, PersonalityTrader, sum.Games[0].Seats[0].Config.Personality)
}

func TestDisconnectKeepsVoluntaryAutoMode(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 3), clock)
	s.RegisterGame("g1")

	require.NoError(t, s.EnableAutoMode("g1", "A", Config{}))
	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))

	sum := s.Summary()
	assert.Equal(t, 1, sum.TotalAIPlayers)
	assert.Equal(t, 1, sum.AutoModePlayers)
	assert.Equal(t, 0, sum.DisconnectedPlayers)
}

func TestReconnectionSemantics(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 3), clock)
	s.RegisterGame("g1")

	require.NoError(t, s.EnableAutoMode("g1", "A", Config{}))
	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))
	s.HandlePlayerReconnection("g1", "A")
	assert.True(t, s.IsPlayerAI("g1", "A"))

	require.NoError(t, s.HandlePlayerDisconnection("g1", "B"))
	s.HandlePlayerReconnection("g1", "B")
	assert.False(t, s.IsPlayerAI("g1", "B"))
}

func TestDisableAutoMode(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 3), clock)
	s.RegisterGame("g1")

	require.NoError(t, s.EnableAutoMode("g1", "A", Config{}))
	require.NoError(t, s.DisableAutoMode("g1", "A"))
	assert.False(t, s.IsPlayerAI("g1", "A"))

	// a takeover ends on reconnection, not on disable
	require.NoError(t, s.HandlePlayerDisconnection("g1", "B"))
	require.NoError(t, s.DisableAutoMode("g1", "B"))
	assert.True(t, s.IsPlayerAI("g1", "B"))
}

func TestUnregisteredGame(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 2), clock)

	assert.ErrorIs(t, s.EnableAutoMode("g1", "A", Config{}), ErrGameNotRegistered)
	assert.ErrorIs(t, s.HandlePlayerDisconnection("g1", "A"), ErrGameNotRegistered)
	assert.ErrorIs(t, s.DisableAutoMode("g1", "A"), ErrGameNotRegistered)
	s.HandlePlayerReconnection("g1", "A")

	s.RegisterGame("g1")
	s.RegisterGame("g1")
	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))
	s.UnregisterGame("g1")
	s.UnregisterGame("g1")

	assert.False(t, s.IsPlayerAI("g1", "A"))
	assert.Equal(t, 0, s.Summary().TotalGames)
}

func TestEnableAutoModeRejectsBadConfig(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(newTestManager(t, clock, 2), clock)
	s.RegisterGame("g1")

	err := s.EnableAutoMode("g1", "A", Config{Personality: "chaotic"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = s.EnableAutoMode("g1", "A", Config{Difficulty: "impossible"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, s.IsPlayerAI("g1", "A"))
}

func TestSchedulerPlaysThroughSetup(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock, 2)
	s := newTestScheduler(m, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.EnableAutoMode("g1", "A", Config{Difficulty: DifficultyHard}))
	require.NoError(t, s.HandlePlayerDisconnection("g1", "B"))

	cycles(s, clock, 16)

	st, err := m.State(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, st.Phase.IsSetup(), "still in %s", st.Phase)
	for _, p := range st.Players {
		placed := (5 - p.SettlementsLeft) + (4 - p.CitiesLeft)
		assert.GreaterOrEqual(t, placed, 2, "player %s", p.ID)
		assert.LessOrEqual(t, p.RoadsLeft, 13, "player %s", p.ID)
	}

	sum := s.Summary()
	for _, seat := range sum.Games[0].Seats {
		assert.Positive(t, seat.Stats.ActionsExecuted, seat.PlayerID)
		assert.GreaterOrEqual(t, seat.Stats.TurnsPlayed, 2, seat.PlayerID)
	}
}

func TestSchedulerRespectsThinkTime(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock, 2)
	s := newTestScheduler(m, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.EnableAutoMode("g1", "A", Config{ThinkTime: 5 * time.Second}))

	version := func() uint64 {
		st, err := m.State(context.Background(), "g1")
		require.NoError(t, err)
		return st.Version
	}

	s.RunCycle(context.Background())
	assert.Zero(t, version())

	clock.Advance(2 * time.Second)
	s.RunCycle(context.Background())
	assert.Zero(t, version())

	clock.Advance(4 * time.Second)
	s.RunCycle(context.Background())
	assert.Equal(t, uint64(3), version(), "settlement, road and end turn")
}

func TestSchedulerLeavesHumanSeatsAlone(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock, 2)
	s := newTestScheduler(m, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.EnableAutoMode("g1", "B", Config{}))

	cycles(s, clock, 3)

	st, err := m.State(context.Background(), "g1")
	require.NoError(t, err)
	assert.Zero(t, st.Version)
	assert.Equal(t, "A", st.CurrentPlayer)
}

type stubEngine struct {
	mu    sync.Mutex
	state *game.GameState
	err   error
	calls int
}

func (e *stubEngine) State(context.Context, string) (*game.GameState, error) {
	return e.state, nil
}

func (e *stubEngine) ProcessAction(_ context.Context, _ string, a game.Action) (*game.ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return &game.ActionResult{Success: false, ActionID: a.ID, Error: e.err.Error()}, e.err
	}
	return &game.ActionResult{Success: true, ActionID: a.ID, State: e.state}, nil
}

func (e *stubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newStubEngine(t *testing.T, err error) *stubEngine {
	t.Helper()
	st, gerr := game.NewGame("g1", seats(2), game.DefaultSettings(), 42, t0)
	require.NoError(t, gerr)
	return &stubEngine{state: st, err: err}
}

func TestSchedulerDropsSeatOnStaleError(t *testing.T) {
	clock := newFakeClock()
	engine := newStubEngine(t, game.ErrNotYourTurn)
	s := newTestScheduler(engine, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))

	cycles(s, clock, 2)

	assert.Equal(t, 1, engine.Calls())
	assert.False(t, s.IsPlayerAI("g1", "A"))
}

func TestSchedulerKeepsSeatOnTransientError(t *testing.T) {
	clock := newFakeClock()
	engine := newStubEngine(t, errors.New("connection reset"))
	s := newTestScheduler(engine, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))

	cycles(s, clock, 2)

	assert.True(t, s.IsPlayerAI("g1", "A"))
	assert.Positive(t, s.Summary().Games[0].Seats[0].Stats.Failures)
}

func TestSchedulerReleasesFinishedGame(t *testing.T) {
	clock := newFakeClock()
	engine := newStubEngine(t, nil)
	engine.state.Phase = game.PhaseEnded
	s := newTestScheduler(engine, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.HandlePlayerDisconnection("g1", "A"))

	cycles(s, clock, 1)

	assert.Zero(t, engine.Calls())
	assert.False(t, s.IsPlayerAI("g1", "A"))
	assert.Equal(t, 0, s.Summary().TotalGames)
}

type repeatDecider struct{ n int }

func (d repeatDecider) Decide(_ context.Context, s *game.GameState, playerID string, _ Config) (Decision, error) {
	out := Decision{}
	for i := 0; i < d.n; i++ {
		out.Actions = append(out.Actions, game.Action{Type: game.ActionEndTurn, PlayerID: playerID})
	}
	return out, nil
}

func TestSchedulerCapsActionsPerCycle(t *testing.T) {
	clock := newFakeClock()
	engine := newStubEngine(t, nil)
	s := NewScheduler(engine, repeatDecider{n: 10}, clock, SchedulerConfig{}, zap.NewNop())
	s.RegisterGame("g1")
	require.NoError(t, s.EnableAutoMode("g1", "A", Config{MaxActionsPerCycle: 3, ThinkTime: time.Millisecond}))

	cycles(s, clock, 2)

	assert.Equal(t, 3, engine.Calls())
	assert.Equal(t, 3, s.Summary().Games[0].Seats[0].Stats.ActionsExecuted)
}

func TestSchedulerSkipsGameAlreadyProcessing(t *testing.T) {
	clock := newFakeClock()
	engine := newStubEngine(t, nil)
	s := newTestScheduler(engine, clock)
	s.RegisterGame("g1")
	require.NoError(t, s.EnableAutoMode("g1", "A", Config{}))

	s.mu.Lock()
	s.games["g1"].processing = true
	s.mu.Unlock()

	cycles(s, clock, 2)
	assert.Zero(t, engine.Calls())
}

func TestSchedulerStartStop(t *testing.T) {
	clock := newFakeClock()
	engine := newStubEngine(t, nil)
	s := NewScheduler(engine, repeatDecider{n: 1}, clock, SchedulerConfig{}, zap.NewNop())
	s.RegisterGame("g1")
	require.NoError(t, s.EnableAutoMode("g1", "A", Config{ThinkTime: time.Millisecond}))

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		clock.Advance(time.Second)
		select {
		case clock.ticks <- clock.Now():
		default:
		}
		return engine.Calls() > 0
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}
