package streaming_test

import (
	"testing"

	"github.com/maestro-bft/maestro/streaming"
	"github.com/stretchr/testify/require"
)

func TestErasureEncodeReconstructRoundTrip(t *testing.T) {
	const dataShards, parityShards = 4, 2
	value := []byte("this is a proposal value long enough to split across shards")

	enc, err := streaming.NewErasureEncoder(dataShards, parityShards)
	require.NoError(t, err)
	shards, err := enc.Encode(value)
	require.NoError(t, err)
	require.Len(t, shards, dataShards+parityShards)

	rec, err := streaming.NewErasureReconstructor(dataShards, parityShards, len(shards[0]))
	require.NoError(t, err)

	// Drop two shards (within tolerance) and feed the rest.
	var lastErr error
	for i, s := range shards {
		if i == 1 || i == 3 {
			continue
		}
		lastErr = rec.AddShard(i, s)
	}
	require.NoError(t, lastErr)

	got, err := rec.Data(len(value))
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestErasureReconstructorReportsIncompleteSet(t *testing.T) {
	const dataShards, parityShards = 4, 2
	value := []byte("short value")

	enc, err := streaming.NewErasureEncoder(dataShards, parityShards)
	require.NoError(t, err)
	shards, err := enc.Encode(value)
	require.NoError(t, err)

	rec, err := streaming.NewErasureReconstructor(dataShards, parityShards, len(shards[0]))
	require.NoError(t, err)

	err = rec.AddShard(0, shards[0])
	require.ErrorIs(t, err, streaming.ErrIncompleteSet)
}
