package ws

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hexsettle/backend/internal/ai"
	"github.com/hexsettle/backend/internal/game"
	"go.uber.org/zap"
)

// Engine is the part of the game manager the hub needs.
type Engine interface {
	State(ctx context.Context, gameID string) (*game.GameState, error)
	ProcessAction(ctx context.Context, gameID string, a game.Action) (*game.ActionResult, error)
}

// Automation is the part of the scheduler the hub drives on connect and
// disconnect.
type Automation interface {
	RegisterGame(gameID string)
	EnableAutoMode(gameID, playerID string, cfg ai.Config) error
	DisableAutoMode(gameID, playerID string) error
	HandlePlayerDisconnection(gameID, playerID string) error
	HandlePlayerReconnection(gameID, playerID string)
	IsPlayerAI(gameID, playerID string) bool
}

type room struct {
	clients    map[string]*Client // playerID -> connection
	spectators map[string]*Client // connection id -> connection
	paused     bool
}

func newRoom() *room {
	return &room{clients: make(map[string]*Client), spectators: make(map[string]*Client)}
}

// connections lists seats and spectators alike.
func (r *room) connections() []*Client {
	out := make([]*Client, 0, len(r.clients)+len(r.spectators))
	for _, c := range r.clients {
		out = append(out, c)
	}
	for _, c := range r.spectators {
		out = append(out, c)
	}
	return out
}

// Hub tracks the connection of every seat and every spectator and fans
// committed updates out to each game's connections. Register and unregister go through one loop so
// connect and disconnect handling never interleave.
type Hub struct {
	engine     Engine
	automation Automation
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	rooms map[string]*room

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewHub(engine Engine, automation Automation, logger *zap.Logger) *Hub {
	return &Hub{
		engine:     engine,
		automation: automation,
		logger:     logger.Named("ws"),
		now:        time.Now,
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ctx)
	}()
}

// Stop ends the loop and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rooms {
		for _, c := range r.connections() {
			h.closeClient(c)
			c.conn.Close()
		}
	}
}

func (h *Hub) run(ctx context.Context) {
	h.logger.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub stopping")
			return
		case c := <-h.register:
			h.attach(ctx, c)
		case c := <-h.unregister:
			h.detach(ctx, c)
		}
	}
}

func (h *Hub) join(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.conn.Close()
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// roomFor must be called with h.mu held.
func (h *Hub) roomFor(gameID string) *room {
	r, ok := h.rooms[gameID]
	if !ok {
		r = newRoom()
		h.rooms[gameID] = r
	}
	return r
}

func (h *Hub) attach(ctx context.Context, c *Client) {
	h.mu.Lock()
	r := h.roomFor(c.gameID)
	if c.spectator {
		r.spectators[c.id] = c
		h.mu.Unlock()
		c.logger.Info("spectator connected")
		h.sync(ctx, c)
		return
	}
	replaced := false
	if old, ok := r.clients[c.playerID]; ok {
		old.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
			time.Now().Add(5*time.Second))
		old.conn.Close()
		h.closeClient(old)
		replaced = true
	}
	r.clients[c.playerID] = c
	wasPaused := r.paused
	h.mu.Unlock()

	h.automation.RegisterGame(c.gameID)
	h.automation.HandlePlayerReconnection(c.gameID, c.playerID)
	c.logger.Info("seat connected", zap.Bool("replaced", replaced))

	h.sync(ctx, c)

	if wasPaused && !h.automation.IsPlayerAI(c.gameID, c.playerID) {
		h.setPaused(ctx, c.gameID, c.playerID, false)
	}
}

func (h *Hub) detach(ctx context.Context, c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.gameID]
	if c.spectator {
		if ok {
			delete(r.spectators, c.id)
		}
		h.closeClient(c)
		h.mu.Unlock()
		c.logger.Info("spectator disconnected")
		return
	}
	current := ok && r.clients[c.playerID] == c
	if current {
		delete(r.clients, c.playerID)
	}
	h.closeClient(c)
	h.mu.Unlock()

	if !current {
		// superseded by a newer connection for the same seat
		return
	}
	c.logger.Info("seat disconnected")
	if err := h.automation.HandlePlayerDisconnection(c.gameID, c.playerID); err != nil {
		c.logger.Warn("takeover not started", zap.Error(err))
	}
	if !h.humansConnected(c.gameID) {
		h.setPaused(ctx, c.gameID, c.playerID, true)
	}
}

// humansConnected reports whether any connected seat is played by a person.
func (h *Hub) humansConnected(gameID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[gameID]
	if !ok {
		return false
	}
	for pid := range r.clients {
		if !h.automation.IsPlayerAI(gameID, pid) {
			return true
		}
	}
	return false
}

func (h *Hub) setPaused(ctx context.Context, gameID, playerID string, paused bool) {
	st, err := h.engine.State(ctx, gameID)
	if err != nil {
		h.logger.Warn("pause state unavailable", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	if paused && st.Phase == game.PhaseEnded {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[gameID]
	if !ok || r.paused == paused {
		return
	}
	r.paused = paused
	msg := outbound{Type: TypeGameResumed, Data: pauseData{
		GameID: gameID, Sequence: st.Version, Timestamp: stamp(h.now()),
		Reason: "playerReconnected", PlayerID: playerID,
	}}
	if paused {
		msg.Type = TypeGamePaused
		msg.Data = pauseData{
			GameID: gameID, Sequence: st.Version, Timestamp: stamp(h.now()),
			Reason: "noPlayersConnected", PlayerID: playerID,
		}
	}
	h.logger.Info(msg.Type, zap.String("game_id", gameID), zap.String("player_id", playerID))
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, c := range r.connections() {
		h.enqueue(c, data)
	}
}

// OnGameUpdate implements game.Listener. Each connection gets an update at
// most once and never one older than what it already has.
func (h *Hub) OnGameUpdate(u game.Update) {
	payloads := h.updateMessages(u)

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[u.GameID]
	if !ok {
		return
	}
	for _, c := range r.connections() {
		if u.Sequence <= c.lastSeq {
			continue
		}
		c.lastSeq = u.Sequence
		for _, p := range payloads {
			if !h.enqueue(c, p) {
				break
			}
		}
	}
}

func (h *Hub) updateMessages(u game.Update) [][]byte {
	ts := stamp(u.Timestamp)
	update := stateUpdateData{
		GameID: u.GameID, Sequence: u.Sequence, Timestamp: ts,
		State: u.State, Events: u.Events,
	}
	if u.Action != nil {
		update.ActionID = u.Action.ID
		update.PlayerID = u.Action.PlayerID
	}
	msgs := []outbound{{Type: TypeGameStateUpdate, Data: update}}

	for _, e := range u.Events {
		switch e.Type {
		case game.EventTurnEnded, game.EventTurnStarted:
			turn, _ := e.Data["turn"].(int)
			t := TypeTurnEnded
			if e.Type == game.EventTurnStarted {
				t = TypeTurnStarted
			}
			msgs = append(msgs, outbound{Type: t, Data: turnData{
				GameID: u.GameID, Sequence: u.Sequence, Timestamp: ts,
				PlayerID: e.PlayerID, Turn: turn,
				Automated: h.automation.IsPlayerAI(u.GameID, e.PlayerID),
			}})
		case game.EventGameEnded:
			scores := make(map[string]int, len(u.State.Players))
			for _, p := range u.State.Players {
				scores[p.ID] = p.VictoryPoints
			}
			msgs = append(msgs, outbound{Type: TypeGameEnded, Data: gameEndedData{
				GameID: u.GameID, Sequence: u.Sequence, Timestamp: ts,
				WinnerID: u.State.Winner, Scores: scores,
			}})
		}
	}

	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			h.logger.Error("failed to encode update", zap.String("game_id", u.GameID), zap.String("type", m.Type), zap.Error(err))
			continue
		}
		out = append(out, b)
	}
	return out
}

// sync sends c a full snapshot of its game.
func (h *Hub) sync(ctx context.Context, c *Client) {
	st, err := h.engine.State(ctx, c.gameID)
	if err != nil {
		c.sendError(errorCode(err), err.Error(), "")
		return
	}
	automated := h.automatedSeats(st)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendSnapshot(c, st, automated)
}

// syncRoom sends every connection of the game a fresh snapshot.
func (h *Hub) syncRoom(ctx context.Context, gameID string) {
	st, err := h.engine.State(ctx, gameID)
	if err != nil {
		h.logger.Warn("sync failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	automated := h.automatedSeats(st)

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[gameID]; ok {
		for _, c := range r.connections() {
			h.sendSnapshot(c, st, automated)
		}
	}
}

func (h *Hub) automatedSeats(st *game.GameState) []string {
	out := []string{}
	for _, pid := range st.TurnOrder {
		if h.automation.IsPlayerAI(st.ID, pid) {
			out = append(out, pid)
		}
	}
	return out
}

// sendSnapshot must be called with h.mu held. A snapshot older than what
// the connection already has is skipped.
func (h *Hub) sendSnapshot(c *Client, st *game.GameState, automated []string) {
	if st.Version < c.lastSeq {
		return
	}
	data := syncData{
		GameID: st.ID, Sequence: st.Version, Timestamp: stamp(h.now()),
		State: st, PlayerID: c.playerID, Spectator: c.spectator,
		Automated: automated, Connected: []string{},
	}
	if r, ok := h.rooms[c.gameID]; ok {
		for pid := range r.clients {
			data.Connected = append(data.Connected, pid)
		}
		sort.Strings(data.Connected)
		data.Spectators = len(r.spectators)
		data.Paused = r.paused
	}
	b, err := json.Marshal(outbound{Type: TypeGameSync, Data: data})
	if err != nil {
		h.logger.Error("failed to encode snapshot", zap.String("game_id", st.ID), zap.Error(err))
		return
	}
	if h.enqueue(c, b) {
		c.lastSeq = st.Version
	}
}

func (h *Hub) sendResult(c *Client, res *game.ActionResult, err error) {
	data := actionResultData{GameID: c.gameID, Timestamp: stamp(h.now()), Success: err == nil}
	if res != nil {
		data.ActionID = res.ActionID
		data.Sequence = res.Sequence
	}
	if err != nil {
		data.Error = err.Error()
		data.Code = errorCode(err)
	}
	h.sendTo(c, outbound{Type: TypeActionResult, Data: data})
	if err != nil {
		c.sendError(data.Code, data.Error, data.ActionID)
	}
}

func (h *Hub) sendTo(c *Client, msg outbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueue(c, b)
}

// enqueue must be called with h.mu held. A connection that cannot keep up
// is closed; its read loop then unregisters it.
func (h *Hub) enqueue(c *Client, data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("send buffer full, dropping connection")
		h.closeClient(c)
		return false
	}
}

// closeClient must be called with h.mu held.
func (h *Hub) closeClient(c *Client) {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Connected lists the seats of a game with a live connection.
func (h *Hub) Connected(gameID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []string{}
	if r, ok := h.rooms[gameID]; ok {
		for pid := range r.clients {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out
}

// Spectators counts the watch-only connections of a game.
func (h *Hub) Spectators(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[gameID]; ok {
		return len(r.spectators)
	}
	return 0
}

func (h *Hub) Paused(gameID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[gameID]
	return ok && r.paused
}
