package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStateRecordRoundTrip(t *testing.T) {
	s := rollNonSeven(t, completeSetup(t, newTestGame(t, 3))).Clone()
	grant(s, "A", Resources{Ore: 1})
	s = mustApply(t, s, Action{ID: "offer", Type: ActionCreateTradeOffer, PlayerID: "A", Payload: Payload{TradeID: "t1", Offer: Resources{Ore: 1}, Request: Resources{Wool: 1}}})
	s.Player("B").DevCards = append(s.Player("B").DevCards, DevCard{Kind: CardKnight, BoughtTurn: 3})
	s.Version = 17

	data, err := EncodeState(s)
	require.NoError(t, err)
	decoded, err := DecodeState(data)
	require.NoError(t, err)

	assert.Equal(t, toJSON(t, ToRecord(s)), toJSON(t, ToRecord(decoded)))
	assert.Equal(t, s.Board.Vertices[5].Neighbors, decoded.Board.Vertices[5].Neighbors)
	assert.True(t, decoded.SeenAction("offer"))
	assert.Equal(t, s.ActiveTrades[0].ExpiresAt, decoded.ActiveTrades[0].ExpiresAt)
}

func TestDecodeStateRejectsBadRecords(t *testing.T) {
	_, err := DecodeState([]byte("{not json"))
	assert.Error(t, err)

	r := ToRecord(newTestGame(t, 2))
	r.Schema = 99
	_, err = FromRecord(r)
	assert.Error(t, err)

	r = ToRecord(newTestGame(t, 2))
	r.Board.Hexes = r.Board.Hexes[:5]
	_, err = FromRecord(r)
	assert.Error(t, err)

	r = ToRecord(newTestGame(t, 2))
	r.Board.Roads = append(r.Board.Roads, RoadRecord{Edge: 500, Owner: "A"})
	_, err = FromRecord(r)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.LoadState(ctx, "missing")
	assert.ErrorIs(t, err, ErrGameNotFound)

	s := newTestGame(t, 2)
	require.NoError(t, store.SaveState(ctx, s))
	loaded, err := store.LoadState(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, toJSON(t, ToRecord(s)), toJSON(t, ToRecord(loaded)))

	store.SetFailSaves(true)
	assert.Error(t, store.SaveState(ctx, s))
}

func TestTieredStoreReportsEitherTier(t *testing.T) {
	ctx := context.Background()
	hot, durable := NewMemoryStore(), NewMemoryStore()
	store := NewTieredStore(hot, durable, zap.NewNop())
	s := newTestGame(t, 2)

	durable.SetFailSaves(true)
	assert.Error(t, store.SaveState(ctx, s), "durable failure surfaces")
	_, err := hot.LoadState(ctx, s.ID)
	assert.NoError(t, err)

	durable.SetFailSaves(false)
	hot.SetFailSaves(true)
	assert.Error(t, store.SaveState(ctx, s))
	_, err = durable.LoadState(ctx, s.ID)
	assert.NoError(t, err)

	hot.SetFailSaves(false)
	assert.NoError(t, store.SaveState(ctx, s))
}

func TestTieredStoreLoadRewarmsPrimary(t *testing.T) {
	ctx := context.Background()
	hot, durable := NewMemoryStore(), NewMemoryStore()
	store := NewTieredStore(hot, durable, zap.NewNop())
	s := newTestGame(t, 2)
	require.NoError(t, durable.SaveState(ctx, s))

	loaded, err := store.LoadState(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	_, err = hot.LoadState(ctx, s.ID)
	assert.NoError(t, err)

	_, err = store.LoadState(ctx, "missing")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestDurableFailureKeepsGameDirty(t *testing.T) {
	ctx := context.Background()
	hot, durable := NewMemoryStore(), NewMemoryStore()
	m := NewManager(NewTieredStore(hot, durable, zap.NewNop()), nil, nil, ManagerConfig{Now: func() time.Time { return t0 }, Seed: 1}, zap.NewNop())
	startedGame(t, m, "g1", 2)

	durable.SetFailSaves(true)
	res, err := m.ProcessAction(ctx, "g1", Action{Type: ActionRoll, PlayerID: "A", Payload: Payload{Die1: 2, Die2: 2}})
	require.NoError(t, err)
	assert.Zero(t, m.FlushDirty(ctx))

	durable.SetFailSaves(false)
	assert.Equal(t, 1, m.FlushDirty(ctx))
	saved, err := durable.LoadState(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, res.Sequence, saved.Version)
}
