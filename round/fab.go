package round

import "github.com/maestro-bft/maestro/types"

// ApplyFaB applies input to state under the FaB variant's rules
// (spec.md §4.3). Like ApplyTendermint it is pure and deterministic.
//
// Differences from Tendermint, per spec.md §4.3:
//   - Proposers at round > 0 pass through an extra Prepropose step,
//     waiting for a 4f+1 prevote certificate from a round >= the
//     previous round before proposing.
//   - There is no Precommit step or vote type; only prevotes exist.
//   - Decision requires a valid proposal *and* a matching 4f+1
//     certificate at the same round (InCanDecide).
//   - A 2f+1 lock observed within a certificate must be honored by a
//     proposer in Prepropose; if the locked value isn't cached locally,
//     it must be fetched (OutRequestValue) rather than silently
//     skipped -- this fixes the latent safety issue spec.md §9 flags in
//     the original implementation.
func ApplyFaB(state State, info Info, input Input) Transition {
	thisRound := state.Round == info.InputRound

	switch {
	case state.Step == Unstarted && input.Kind == InNewRound && info.IsProposer() && input.Round > 0:
		state.Round = input.Round
		out := Output{Kind: OutScheduleTimeout, Timeout: Timeout{Round: input.Round, Kind: TimeoutPropose}}
		return to(state.withStep(Prepropose), out)

	case state.Step == Unstarted && input.Kind == InNewRound && info.IsProposer():
		// Round 0: no previous round to certify from, behave like
		// Tendermint's proposer entry.
		state.Round = input.Round
		return proposeValidOrGetValue(state, info.Address)

	case state.Step == Unstarted && input.Kind == InNewRound:
		state.Round = input.Round
		return scheduleTimeoutPropose(state)

	// Prepropose: waiting for the certificate from the previous round.
	case state.Step == Prepropose && input.Kind == InEnoughPrevotesForRound && info.InputRound+1 >= state.Round:
		if input.LockedValue != nil {
			if input.LockedValue.Value != nil {
				out := Output{Kind: OutPropose, Value: input.LockedValue.Value, PolRound: input.LockedValue.Round}
				next := state.withLocked(*input.LockedValue).withStep(Propose)
				return to(next, out)
			}
			// Locked on v, but v is not cached: fetch it before
			// proposing rather than silently falling back to a fresh
			// value (spec.md §9 FaB open question).
			out := Output{Kind: OutRequestValue, RequestedValueId: input.LockedValue.ValueId}
			next := state.withLocked(*input.LockedValue).withStep(Prepropose)
			return to(next, out)
		}
		return proposeValidOrGetValue(state, info.Address)

	// From Propose. Input must be for current round.
	case state.Step == Propose && input.Kind == InProposeValue && thisRound:
		return propose(state, input.Value, info.Address)

	case state.Step == Propose && input.Kind == InProposal && thisRound && input.Proposal.PolRound.IsNil():
		return prevote(state, info.Address, *input.Proposal)

	case state.Step == Propose && input.Kind == InInvalidProposal && thisRound:
		return prevoteNil(state, info.Address)

	case state.Step == Propose && input.Kind == InTimeoutPropose && thisRound:
		return prevoteNil(state, info.Address)

	// From Prevote.
	case state.Step == Prevote && input.Kind == InEnoughPrevotesForRound && thisRound:
		return scheduleTimeoutPrevote(state)

	case state.Step == Prevote && input.Kind == InTimeoutPrevote && thisRound:
		return roundSkip(state, info.InputRound.Next())

	case state.Step == Commit:
		return invalid(state)

	// Decision: valid proposal + matching certificate at the same round.
	case input.Kind == InCanDecide:
		return commit(state, info.InputRound, *input.Proposal)

	case input.Kind == InSkipRound && state.Round < input.Round:
		return roundSkip(state, input.Round)

	default:
		return invalid(state)
	}
}
