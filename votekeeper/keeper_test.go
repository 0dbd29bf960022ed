package votekeeper_test

import (
	"testing"

	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/votekeeper"
	"github.com/stretchr/testify/require"
)

func fourValidators() types.ValidatorSet {
	return types.NewValidatorSet([]types.Validator{
		{Address: "v1", VotingPower: 1},
		{Address: "v2", VotingPower: 1},
		{Address: "v3", VotingPower: 1},
		{Address: "v4", VotingPower: 1},
	})
}

func prevote(addr types.Address, r types.Round, v types.NilOrVal[types.ValueId]) types.SignedVote {
	return types.SignedVote{Vote: types.Vote{
		Type: types.Prevote, Height: 1, Round: r, Value: v, Address: addr,
	}}
}

func precommit(addr types.Address, r types.Round, v types.NilOrVal[types.ValueId]) types.SignedVote {
	return types.SignedVote{Vote: types.Vote{
		Type: types.Precommit, Height: 1, Round: r, Value: v, Address: addr,
	}}
}

func TestPolkaValueEmittedOnceAtQuorum(t *testing.T) {
	vs := fourValidators()
	k := votekeeper.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint)

	require.Nil(t, k.Apply(prevote("v1", 0, types.Val[types.ValueId]("A")), 0))
	require.Nil(t, k.Apply(prevote("v2", 0, types.Val[types.ValueId]("A")), 0))

	ev := k.Apply(prevote("v3", 0, types.Val[types.ValueId]("A")), 0)
	require.NotNil(t, ev)
	require.Equal(t, types.PolkaValue, ev.Kind)
	require.Equal(t, types.ValueId("A"), ev.Value)

	// A fourth vote for the same value must not re-emit.
	ev2 := k.Apply(prevote("v4", 0, types.Val[types.ValueId]("A")), 0)
	require.Nil(t, ev2)
}

func TestEquivocationDoesNotDoubleCount(t *testing.T) {
	vs := fourValidators()
	k := votekeeper.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint)

	require.Nil(t, k.Apply(prevote("v1", 0, types.Val[types.ValueId]("A")), 0))

	// v2 equivocates: first votes A, then votes B. Neither crosses quorum,
	// and the conflicting vote must not count toward B's tally.
	require.Nil(t, k.Apply(prevote("v2", 0, types.Val[types.ValueId]("A")), 0))
	ev := k.Apply(prevote("v2", 0, types.Val[types.ValueId]("B")), 0)
	require.Nil(t, ev)

	require.False(t, k.IsThresholdMet(0, types.Prevote, types.Val[types.ValueId]("B")))

	evid := k.Evidence()
	require.Len(t, evid, 1)
	require.Equal(t, types.Address("v2"), evid[0].Existing.Vote.Address)
	require.Equal(t, types.ValueId("A"), evid[0].Existing.Vote.Value.UnwrapOr(""))
	require.Equal(t, types.ValueId("B"), evid[0].Conflicting.Vote.Value.UnwrapOr(""))

	// A only has 2 votes (v1, v2's first vote) -- not quorum yet.
	require.False(t, k.IsThresholdMet(0, types.Prevote, types.Val[types.ValueId]("A")))
}

func TestSkipRoundRequiresHonestThreshold(t *testing.T) {
	vs := fourValidators()
	k := votekeeper.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint)

	// Only one validator (weight 1/4) active at round 2: not enough for
	// honest threshold (1/3).
	require.Nil(t, k.Apply(prevote("v2", 2, types.Val[types.ValueId]("B")), 0))

	// A second distinct validator's vote at round 2 pushes distinct
	// weight to 2/4 >= 1/3: SkipRound(2) should fire exactly once.
	ev := k.Apply(prevote("v3", 2, types.Nil[types.ValueId]()), 0)
	require.NotNil(t, ev)
	require.Equal(t, types.SkipRoundThreshold, ev.Kind)
	require.Equal(t, types.Round(2), ev.Round)

	ev2 := k.Apply(prevote("v4", 2, types.Nil[types.ValueId]()), 0)
	require.Nil(t, ev2)
}

func TestBuildCertificateRequiresQuorum(t *testing.T) {
	vs := fourValidators()
	k := votekeeper.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint)

	k.Apply(precommit("v1", 0, types.Val[types.ValueId]("A")), 0)
	k.Apply(precommit("v2", 0, types.Val[types.ValueId]("A")), 0)

	_, ok := k.BuildCertificate(0, types.Precommit, "A")
	require.False(t, ok)

	k.Apply(precommit("v3", 0, types.Val[types.ValueId]("A")), 0)
	votes, ok := k.BuildCertificate(0, types.Precommit, "A")
	require.True(t, ok)
	require.Len(t, votes, 3)
}

func TestFaBCertificateRequiresFourFifths(t *testing.T) {
	// n=5f+1 with f=1 => n=6; weight 4f+1=5 needed.
	vs := types.NewValidatorSet([]types.Validator{
		{Address: "v1", VotingPower: 1},
		{Address: "v2", VotingPower: 1},
		{Address: "v3", VotingPower: 1},
		{Address: "v4", VotingPower: 1},
		{Address: "v5", VotingPower: 1},
		{Address: "v6", VotingPower: 1},
	})
	k := votekeeper.New(1, vs, types.DefaultFaBParams(), votekeeper.FaB)

	for _, a := range []types.Address{"v1", "v2", "v3", "v4"} {
		ev := k.Apply(prevote(a, 0, types.Val[types.ValueId]("A")), 0)
		require.Nil(t, ev)
	}
	ev := k.Apply(prevote("v5", 0, types.Val[types.ValueId]("A")), 0)
	require.NotNil(t, ev)
	require.Equal(t, types.CertificateValue, ev.Kind)
}
