package store_test

import (
	"context"
	"testing"

	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
	"github.com/stretchr/testify/require"
)

func TestWALAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	require.NoError(t, s.AppendWAL(ctx, store.WALEntry{Height: 1, Round: 0}))
	require.NoError(t, s.AppendWAL(ctx, store.WALEntry{Height: 1, Round: 1}))
	require.NoError(t, s.AppendWAL(ctx, store.WALEntry{Height: 2, Round: 0}))

	entries, err := s.LoadWAL(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, s.TruncateWAL(ctx, 1))
	entries, err = s.LoadWAL(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, entries)

	entries, err = s.LoadWAL(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDecisionStoreTipAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	_, err := s.LoadDecision(ctx, 5)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveDecision(ctx, store.DecidedValue{Height: 3}))
	require.NoError(t, s.SaveDecision(ctx, store.DecidedValue{Height: 5}))

	tip, err := s.TipHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, types.Height(5), tip)

	min, err := s.HistoryMinHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, types.Height(3), min)
}

func TestValidatorSetStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	_, err := s.LoadValidatorSet(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	vs := types.NewValidatorSet([]types.Validator{{Address: "v1", VotingPower: 1}})
	require.NoError(t, s.SaveValidatorSet(ctx, 1, vs))

	got, err := s.LoadValidatorSet(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
}
