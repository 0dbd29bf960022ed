package driver_test

import (
	"testing"

	"github.com/maestro-bft/maestro/driver"
	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/votekeeper"
	"github.com/stretchr/testify/require"
)

type testValue string

func (v testValue) ID() types.ValueId { return types.ValueId(v) }

func fourValidators() types.ValidatorSet {
	return types.NewValidatorSet([]types.Validator{
		{Address: "v1", VotingPower: 1},
		{Address: "v2", VotingPower: 1},
		{Address: "v3", VotingPower: 1},
		{Address: "v4", VotingPower: 1},
	})
}

func vote(typ types.VoteType, h types.Height, r types.Round, val testValue, addr types.Address) types.SignedVote {
	return types.SignedVote{Vote: types.Vote{Type: typ, Height: h, Round: r, Value: types.Val(val.ID()), Address: addr}}
}

func TestDriverHappyPathDecides(t *testing.T) {
	vs := fourValidators()
	d := driver.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint, "v1", nil)

	outs, err := d.Process(driver.Input{Kind: driver.InNewRound, Round: 0})
	require.NoError(t, err)
	require.Equal(t, driver.OutGetValue, outs[0].Kind)

	val := testValue("A")
	outs, err = d.Process(driver.Input{Kind: driver.InProposeValue, Round: 0, Value: val})
	require.NoError(t, err)
	require.Equal(t, driver.OutPropose, outs[0].Kind)

	p := types.SignedProposal{Proposal: types.Proposal{Height: 1, Round: 0, Value: val, PolRound: types.NilRound, Proposer: "v1"}}
	outs, err = d.Process(driver.Input{Kind: driver.InProposal, Proposal: p, Validity: types.Valid})
	require.NoError(t, err)
	require.Equal(t, driver.OutVote, outs[0].Kind)
	require.Equal(t, types.Prevote, outs[0].Vote.Type)

	// three of four prevote A: crosses 2/3 quorum (weight 3 of 4).
	for _, addr := range []types.Address{"v1", "v2", "v3"} {
		outs, err = d.Process(driver.Input{Kind: driver.InVote, Vote: vote(types.Prevote, 1, 0, val, addr)})
		require.NoError(t, err)
	}
	// the third prevote should have cascaded into a precommit vote output
	var sawPrecommit bool
	for _, o := range outs {
		if o.Kind == driver.OutVote && o.Vote.Type == types.Precommit {
			sawPrecommit = true
		}
	}
	require.True(t, sawPrecommit, "expected precommit to be cast after polka")

	for _, addr := range []types.Address{"v1", "v2", "v3"} {
		outs, err = d.Process(driver.Input{Kind: driver.InVote, Vote: vote(types.Precommit, 1, 0, val, addr)})
		require.NoError(t, err)
	}
	var decided bool
	var decidedValue types.Value
	for _, o := range outs {
		if o.Kind == driver.OutDecide {
			decided = true
			decidedValue = o.Value
		}
	}
	require.True(t, decided)
	require.Equal(t, val, decidedValue)
}

func TestDriverRejectsWrongHeightVote(t *testing.T) {
	vs := fourValidators()
	d := driver.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint, "v1", nil)

	_, err := d.Process(driver.Input{Kind: driver.InVote, Vote: types.SignedVote{Vote: types.Vote{Height: 2}}})
	require.ErrorIs(t, err, driver.ErrInvalidVoteHeight)
}

func TestDriverRejectsWrongHeightProposal(t *testing.T) {
	vs := fourValidators()
	d := driver.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint, "v1", nil)

	_, err := d.Process(driver.Input{Kind: driver.InProposal, Proposal: types.SignedProposal{Proposal: types.Proposal{Height: 9}}})
	require.ErrorIs(t, err, driver.ErrInvalidProposalHeight)
}

func TestDriverEmitsExactlyOnePrevotePerRound(t *testing.T) {
	vs := fourValidators()
	d := driver.New(1, vs, types.DefaultTendermintParams(), votekeeper.Tendermint, "v1", nil)

	_, err := d.Process(driver.Input{Kind: driver.InNewRound, Round: 0})
	require.NoError(t, err)
	val := testValue("A")
	outs, err := d.Process(driver.Input{Kind: driver.InProposeValue, Round: 0, Value: val})
	require.NoError(t, err)
	require.Equal(t, driver.OutPropose, outs[0].Kind)

	p := types.SignedProposal{Proposal: types.Proposal{Height: 1, Round: 0, Value: val, PolRound: types.NilRound, Proposer: "v1"}}
	outs, err = d.Process(driver.Input{Kind: driver.InProposal, Proposal: p, Validity: types.Valid})
	require.NoError(t, err)
	require.Equal(t, types.Prevote, outs[0].Vote.Type)
	require.Equal(t, val.ID(), outs[0].Vote.Value.UnwrapOr(""))

	// a replayed proposal must not produce a second prevote for the round
	outs, err = d.Process(driver.Input{Kind: driver.InProposal, Proposal: p, Validity: types.Valid})
	require.NoError(t, err)
	for _, o := range outs {
		require.False(t, o.Kind == driver.OutVote && o.Vote.Type == types.Prevote)
	}
}
