package round

import "github.com/maestro-bft/maestro/types"

// ApplyTendermint applies input to state under the Tendermint variant's
// rules (spec.md §4.2). It is a pure function: given the same
// (state, info, input), it always returns the same Transition.
func ApplyTendermint(state State, info Info, input Input) Transition {
	thisRound := state.Round == info.InputRound

	switch {
	// From Unstarted.
	case state.Step == Unstarted && input.Kind == InNewRound && info.IsProposer():
		state.Round = input.Round
		return proposeValidOrGetValue(state, info.Address)

	case state.Step == Unstarted && input.Kind == InNewRound:
		state.Round = input.Round
		return scheduleTimeoutPropose(state)

	// From Propose. Input must be for current round.
	case state.Step == Propose && input.Kind == InProposeValue && thisRound:
		return propose(state, input.Value, info.Address)

	case state.Step == Propose && input.Kind == InProposal && thisRound && input.Proposal.PolRound.IsNil():
		return prevote(state, info.Address, *input.Proposal)

	case state.Step == Propose && input.Kind == InInvalidProposal && thisRound:
		return prevoteNil(state, info.Address)

	case state.Step == Propose && input.Kind == InProposalAndPolkaPrevious && thisRound &&
		isValidPolRound(state, input.Proposal.PolRound):
		return prevotePrevious(state, info.Address, *input.Proposal)

	case state.Step == Propose && input.Kind == InInvalidProposalAndPolkaPrevious && thisRound &&
		isValidPolRound(state, input.Proposal.PolRound):
		return prevoteNil(state, info.Address)

	case state.Step == Propose && input.Kind == InTimeoutPropose && thisRound:
		return prevoteNil(state, info.Address)

	// From Prevote. Input must be for current round.
	case state.Step == Prevote && input.Kind == InPolkaAny && thisRound:
		return scheduleTimeoutPrevote(state)

	case state.Step == Prevote && input.Kind == InPolkaNil && thisRound:
		return precommitNil(state, info.Address)

	case state.Step == Prevote && input.Kind == InProposalAndPolkaCurrent && thisRound:
		return precommit(state, info.Address, *input.Proposal)

	case state.Step == Prevote && input.Kind == InTimeoutPrevote && thisRound:
		return precommitNil(state, info.Address)

	// From Precommit.
	case state.Step == Precommit && input.Kind == InProposalAndPolkaCurrent && thisRound:
		return setValidValue(state, *input.Proposal)

	// From Commit: no more transitions.
	case state.Step == Commit:
		return invalid(state)

	// Any step except Commit, round guards.
	case input.Kind == InPrecommitAny && thisRound:
		return scheduleTimeoutPrecommit(state)

	case input.Kind == InTimeoutPrecommit && thisRound:
		return roundSkip(state, info.InputRound.Next())

	case input.Kind == InSkipRound && state.Round < input.Round:
		return roundSkip(state, input.Round)

	// ProposalAndPrecommitValue applies unconditionally (spec.md §4.2:
	// "applies regardless of step or round and causes an unconditional
	// decision").
	case input.Kind == InProposalAndPrecommitValue:
		return commit(state, info.InputRound, *input.Proposal)

	default:
		return invalid(state)
	}
}

func proposeValidOrGetValue(state State, address types.Address) Transition {
	if state.Valid != nil {
		out := Output{
			Kind:     OutPropose,
			Value:    state.Valid.Value,
			PolRound: state.Valid.Round,
		}
		return to(state.withStep(Propose), out)
	}
	out := Output{
		Kind:    OutGetValueAndScheduleTimeout,
		Timeout: Timeout{Round: state.Round, Kind: TimeoutPropose},
	}
	return to(state.withStep(Propose), out)
}

func scheduleTimeoutPropose(state State) Transition {
	out := Output{Kind: OutScheduleTimeout, Timeout: Timeout{Round: state.Round, Kind: TimeoutPropose}}
	return to(state.withStep(Propose), out)
}

func propose(state State, value types.Value, address types.Address) Transition {
	out := Output{Kind: OutPropose, Value: value, PolRound: types.NilRound}
	return to(state.withStep(Propose), out)
}

func prevote(state State, address types.Address, p types.Proposal) Transition {
	proposed := p.Value.ID()
	var subject types.NilOrVal[types.ValueId]
	switch {
	case state.Locked != nil && state.Locked.Value.ID() == proposed:
		subject = types.Val(proposed)
	case state.Locked != nil:
		subject = types.Nil[types.ValueId]()
	default:
		subject = types.Val(proposed)
	}
	v := types.Vote{Type: types.Prevote, Height: state.Height, Round: state.Round, Value: subject, Address: address}
	return to(state.withStep(Prevote), Output{Kind: OutVote, Vote: &v})
}

// prevotePrevious handles ProposalAndPolkaPrevious (spec.md §4.2 row for
// Propose with valid vr<round, polka at vr): we prevote the value unless
// we're locked on a different value at a round strictly after vr.
func prevotePrevious(state State, address types.Address, p types.Proposal) Transition {
	vr := p.PolRound
	proposed := p.Value.ID()
	var subject types.NilOrVal[types.ValueId]
	switch {
	case state.Locked != nil && state.Locked.Round <= vr:
		subject = types.Val(proposed)
	case state.Locked != nil && state.Locked.Value.ID() == proposed:
		subject = types.Val(proposed)
	case state.Locked != nil:
		subject = types.Nil[types.ValueId]()
	default:
		subject = types.Val(proposed)
	}
	v := types.Vote{Type: types.Prevote, Height: state.Height, Round: state.Round, Value: subject, Address: address}
	return to(state.withStep(Prevote), Output{Kind: OutVote, Vote: &v})
}

func prevoteNil(state State, address types.Address) Transition {
	v := types.Vote{Type: types.Prevote, Height: state.Height, Round: state.Round, Value: types.Nil[types.ValueId](), Address: address}
	return to(state.withStep(Prevote), Output{Kind: OutVote, Vote: &v})
}

func precommit(state State, address types.Address, p types.Proposal) Transition {
	v := types.Vote{Type: types.Precommit, Height: state.Height, Round: state.Round, Value: types.Val(p.Value.ID()), Address: address}
	next := state.withLocked(RoundValue{Value: p.Value, Round: state.Round}).
		withValid(RoundValue{Value: p.Value, Round: state.Round}).
		withStep(Precommit)
	return to(next, Output{Kind: OutVote, Vote: &v})
}

func precommitNil(state State, address types.Address) Transition {
	v := types.Vote{Type: types.Precommit, Height: state.Height, Round: state.Round, Value: types.Nil[types.ValueId](), Address: address}
	return to(state.withStep(Precommit), Output{Kind: OutVote, Vote: &v})
}

func setValidValue(state State, p types.Proposal) Transition {
	next := state.withValid(RoundValue{Value: p.Value, Round: state.Round})
	return to(next)
}

func scheduleTimeoutPrevote(state State) Transition {
	return to(state, Output{Kind: OutScheduleTimeout, Timeout: Timeout{Round: state.Round, Kind: TimeoutPrevote}})
}

func scheduleTimeoutPrecommit(state State) Transition {
	return to(state, Output{Kind: OutScheduleTimeout, Timeout: Timeout{Round: state.Round, Kind: TimeoutPrecommit}})
}

func roundSkip(state State, r types.Round) Transition {
	state.Round = r
	out := Output{Kind: OutNewRound, Round: r}
	return to(state.withStep(Unstarted), out)
}

func commit(state State, r types.Round, p types.Proposal) Transition {
	state.Decision = &Decision{Round: r, Value: p.Value}
	out := Output{Kind: OutDecision, Value: p.Value, DecisionRound: r}
	return to(state.withStep(Commit), out)
}
