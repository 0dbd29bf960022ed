package streaming_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/streaming"
	"github.com/maestro-bft/maestro/wire"
	"github.com/stretchr/testify/require"
)

func TestReassembleCompletesOnFin(t *testing.T) {
	r := streaming.NewReassembler(signing.Blake2bHashScheme{}, 8, time.Minute)
	streamID := uuid.New()

	_, err := r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 0, Kind: wire.PartInit,
		Init: &wire.ProposalPartInit{Height: 1, Round: 0, Proposer: "v1"},
	})
	require.NoError(t, err)

	_, err = r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 1, Kind: wire.PartData, Data: []byte("hello "),
	})
	require.NoError(t, err)

	_, err = r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 2, Kind: wire.PartData, Data: []byte("world"),
	})
	require.NoError(t, err)

	valueId := signing.Blake2bHashScheme{}.ValueId([]byte("hello world"))
	assembled, err := r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 3, Kind: wire.PartFin,
		Fin: &wire.ProposalPartFin{ValueId: valueId, Signature: []byte("sig")},
	})
	require.NoError(t, err)
	require.NotNil(t, assembled)
	require.Equal(t, []byte("hello world"), assembled.ValueBytes)
	require.Equal(t, valueId, assembled.ValueId)
	require.Equal(t, 0, r.Pending())
}

func TestReassembleRejectsMismatchedValueId(t *testing.T) {
	r := streaming.NewReassembler(signing.Blake2bHashScheme{}, 8, time.Minute)
	streamID := uuid.New()

	_, _ = r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 0, Kind: wire.PartInit,
		Init: &wire.ProposalPartInit{Height: 1},
	})
	_, err := r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 1, Kind: wire.PartFin,
		Fin: &wire.ProposalPartFin{ValueId: "wrong"},
	})
	require.Error(t, err)
	require.Equal(t, 0, r.Pending())
}

func TestReassembleWaitsOnMissingDataPart(t *testing.T) {
	r := streaming.NewReassembler(signing.Blake2bHashScheme{}, 8, time.Minute)
	streamID := uuid.New()

	_, _ = r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 0, Kind: wire.PartInit,
		Init: &wire.ProposalPartInit{Height: 1},
	})
	assembled, err := r.AddPart("peer1", wire.ProposalPart{
		StreamID: streamID, Sequence: 2, Kind: wire.PartFin,
		Fin: &wire.ProposalPartFin{ValueId: "x"},
	})
	require.NoError(t, err)
	require.Nil(t, assembled)
	require.Equal(t, 1, r.Pending())
}

func TestSweepEvictsStaleStreams(t *testing.T) {
	r := streaming.NewReassembler(signing.Blake2bHashScheme{}, 8, time.Millisecond)
	streamID := uuid.New()
	_, _ = r.AddPart("peer1", wire.ProposalPart{StreamID: streamID, Kind: wire.PartInit, Init: &wire.ProposalPartInit{}})

	time.Sleep(5 * time.Millisecond)
	evicted := r.Sweep(time.Now())
	require.Len(t, evicted, 1)
	require.Equal(t, 0, r.Pending())
}
