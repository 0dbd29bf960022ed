package round_test

import (
	"testing"

	"github.com/maestro-bft/maestro/round"
	"github.com/maestro-bft/maestro/types"
	"github.com/stretchr/testify/require"
)

type testValue string

func (v testValue) ID() types.ValueId { return types.ValueId(v) }

func TestTendermint_ProposerEntersProposeAndGetsValue(t *testing.T) {
	s := round.NewState(1)
	info := round.Info{Address: "v1", Proposer: "v1"}

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InNewRound, Round: 0})
	require.Equal(t, round.Propose, tr.State.Step)
	require.Len(t, tr.Outputs, 1)
	require.Equal(t, round.OutGetValueAndScheduleTimeout, tr.Outputs[0].Kind)
}

func TestTendermint_NonProposerSchedulesTimeout(t *testing.T) {
	s := round.NewState(1)
	info := round.Info{Address: "v2", Proposer: "v1"}

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InNewRound, Round: 0})
	require.Equal(t, round.Propose, tr.State.Step)
	require.Equal(t, round.OutScheduleTimeout, tr.Outputs[0].Kind)
	require.Equal(t, round.TimeoutPropose, tr.Outputs[0].Timeout.Kind)
}

func TestTendermint_HappyPath(t *testing.T) {
	info := round.Info{InputRound: 0, Address: "v1", Proposer: "v1"}
	s := round.NewState(1)

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InNewRound, Round: 0})
	require.Equal(t, round.Propose, tr.State.Step)

	val := testValue("A")
	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InProposeValue, Value: val})
	require.Equal(t, round.Propose, tr.State.Step)
	require.Equal(t, round.OutPropose, tr.Outputs[0].Kind)

	p := types.Proposal{Height: 1, Round: 0, Value: val, PolRound: types.NilRound, Proposer: "v1"}
	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InProposal, Proposal: &p})
	require.Equal(t, round.Prevote, tr.State.Step)
	require.Equal(t, round.OutVote, tr.Outputs[0].Kind)
	require.Equal(t, types.Prevote, tr.Outputs[0].Vote.Type)
	require.False(t, tr.Outputs[0].Vote.Value.IsNil())

	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InProposalAndPolkaCurrent, Proposal: &p})
	require.Equal(t, round.Precommit, tr.State.Step)
	require.Equal(t, types.Precommit, tr.Outputs[0].Vote.Type)
	require.NotNil(t, tr.State.Locked)
	require.Equal(t, val, tr.State.Locked.Value)

	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InProposalAndPrecommitValue, Proposal: &p})
	require.Equal(t, round.Commit, tr.State.Step)
	require.Equal(t, round.OutDecision, tr.Outputs[0].Kind)
	require.Equal(t, val, tr.Outputs[0].Value)
}

func TestTendermint_ProposerSilentThenNilRoundThenSkip(t *testing.T) {
	info := round.Info{InputRound: 0, Address: "v2", Proposer: "v1"}
	s := round.NewState(1)

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InNewRound, Round: 0})
	require.Equal(t, round.Propose, tr.State.Step)

	// propose timeout elapses: prevote nil
	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InTimeoutPropose})
	require.Equal(t, round.Prevote, tr.State.Step)
	require.True(t, tr.Outputs[0].Vote.Value.IsNil())

	// polka nil -> precommit nil
	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InPolkaNil})
	require.Equal(t, round.Precommit, tr.State.Step)
	require.True(t, tr.Outputs[0].Vote.Value.IsNil())

	// precommit timeout -> move to round 1
	tr = round.ApplyTendermint(tr.State, info, round.Input{Kind: round.InTimeoutPrecommit})
	require.Equal(t, round.Unstarted, tr.State.Step)
	require.Equal(t, types.Round(1), tr.State.Round)
	require.Equal(t, round.OutNewRound, tr.Outputs[0].Kind)
}

func TestTendermint_PrevotePreviousLockRules(t *testing.T) {
	// Locked at round 0 on value A; at round 1 sees a ProposalAndPolkaPrevious
	// for value A with vr=0 >= locked.round -> prevotes A.
	s := round.State{
		Height: 1,
		Round:  1,
		Step:   round.Propose,
		Locked: &round.RoundValue{Value: testValue("A"), Round: 0},
		Valid:  &round.RoundValue{Value: testValue("A"), Round: 0},
	}
	info := round.Info{InputRound: 1, Address: "v3", Proposer: "v2"}
	p := types.Proposal{Height: 1, Round: 1, Value: testValue("A"), PolRound: 0, Proposer: "v2"}

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InProposalAndPolkaPrevious, Proposal: &p})
	require.Equal(t, round.Prevote, tr.State.Step)
	require.False(t, tr.Outputs[0].Vote.Value.IsNil())
	v, _ := tr.Outputs[0].Vote.Value.Value()
	require.Equal(t, types.ValueId("A"), v)
}

func TestTendermint_SkipRoundMovesForward(t *testing.T) {
	s := round.State{Height: 1, Round: 0, Step: round.Propose}
	info := round.Info{InputRound: 0, Address: "v1", Proposer: "v1"}

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InSkipRound, Round: 2})
	require.Equal(t, round.Unstarted, tr.State.Step)
	require.Equal(t, types.Round(2), tr.State.Round)
}

func TestTendermint_CommitIsTerminal(t *testing.T) {
	s := round.State{Height: 1, Round: 0, Step: round.Commit, Decision: &round.Decision{Round: 0, Value: testValue("A")}}
	info := round.Info{InputRound: 0, Address: "v1", Proposer: "v1"}

	tr := round.ApplyTendermint(s, info, round.Input{Kind: round.InPolkaAny})
	require.Equal(t, round.Commit, tr.State.Step)
	require.Empty(t, tr.Outputs)
}
