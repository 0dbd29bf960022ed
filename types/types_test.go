package types_test

import (
	"encoding/json"
	"testing"

	"github.com/maestro-bft/maestro/types"
	"github.com/stretchr/testify/require"
)

func TestNilOrVal(t *testing.T) {
	n := types.Nil[types.ValueId]()
	require.True(t, n.IsNil())
	_, ok := n.Value()
	require.False(t, ok)
	require.Equal(t, types.ValueId("x"), n.UnwrapOr("x"))

	v := types.Val(types.ValueId("abc"))
	require.False(t, v.IsNil())
	got, ok := v.Value()
	require.True(t, ok)
	require.Equal(t, types.ValueId("abc"), got)
}

func TestNilOrValJSONRoundTrip(t *testing.T) {
	v := types.Val(types.ValueId("abc"))
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `"abc"`, string(b))

	var got types.NilOrVal[types.ValueId]
	require.NoError(t, json.Unmarshal(b, &got))
	id, ok := got.Value()
	require.True(t, ok)
	require.Equal(t, types.ValueId("abc"), id)

	n := types.Nil[types.ValueId]()
	b, err = json.Marshal(n)
	require.NoError(t, err)
	require.Equal(t, "null", string(b))

	var gotNil types.NilOrVal[types.ValueId]
	require.NoError(t, json.Unmarshal(b, &gotNil))
	require.True(t, gotNil.IsNil())
}

func TestValidatorSetProposerRotation(t *testing.T) {
	vs := types.NewValidatorSet([]types.Validator{
		{Address: "v1", VotingPower: 1},
		{Address: "v2", VotingPower: 1},
		{Address: "v3", VotingPower: 1},
		{Address: "v4", VotingPower: 1},
	})
	require.Equal(t, uint64(4), vs.TotalVotingPower())

	p0, ok := vs.Proposer(1, 0)
	require.True(t, ok)
	p1, ok := vs.Proposer(1, 1)
	require.True(t, ok)
	require.NotEqual(t, p0.Address, p1.Address)

	// Rotation wraps: proposer at (h=1,r=4) == proposer at (h=1,r=0).
	p4, ok := vs.Proposer(1, 4)
	require.True(t, ok)
	require.Equal(t, p0.Address, p4.Address)
}

func TestRatioMetBy(t *testing.T) {
	q := types.Ratio{Num: 2, Denom: 3}
	require.False(t, q.MetBy(2, 4)) // 2/4 < 2/3
	require.True(t, q.MetBy(3, 4))  // 3/4 >= 2/3
}

func TestCommitCertificateVerify(t *testing.T) {
	vs := types.NewValidatorSet([]types.Validator{
		{Address: "v1", VotingPower: 1},
		{Address: "v2", VotingPower: 1},
		{Address: "v3", VotingPower: 1},
		{Address: "v4", VotingPower: 1},
	})
	params := types.DefaultTendermintParams()

	mkVote := func(addr types.Address) types.SignedVote {
		return types.SignedVote{
			Vote: types.Vote{
				Type:    types.Precommit,
				Height:  1,
				Round:   0,
				Value:   types.Val[types.ValueId]("A"),
				Address: addr,
			},
		}
	}

	cc := types.CommitCertificate{
		Height:  1,
		Round:   0,
		ValueId: "A",
		Votes:   []types.SignedVote{mkVote("v1"), mkVote("v2"), mkVote("v3")},
	}
	require.NoError(t, cc.Verify(vs, params))

	// Two validators is below quorum (2/4 < 2/3).
	cc2 := cc
	cc2.Votes = cc.Votes[:2]
	require.Error(t, cc2.Verify(vs, params))

	// Duplicate signer is rejected even if "weight" would suffice.
	cc3 := cc
	cc3.Votes = []types.SignedVote{mkVote("v1"), mkVote("v1"), mkVote("v1")}
	require.Error(t, cc3.Verify(vs, params))
}
