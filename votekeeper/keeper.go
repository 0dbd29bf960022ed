// Package votekeeper implements spec.md §4.1: tallying votes per
// (round, vote-type, value) and emitting threshold events at most once
// per (round, kind). It is grounded on the teacher's actor-facing
// request/response naming (gordian tmi.AddPrevoteRequest/AddVoteResult)
// and on malachite's core-votekeeper/src/keeper.rs for tally semantics.
//
// VoteKeeper is a pure, synchronous data structure (spec.md §5): it never
// performs I/O and is meant to be driven exclusively by the driver
// package.
package votekeeper

import (
	"github.com/maestro-bft/maestro/types"
)

// Mode selects which threshold events a Keeper can emit: Tendermint
// (prevote+precommit, PolkaAny/PolkaNil/PolkaValue/PrecommitAny/
// PrecommitValue/SkipRound) or FaB (prevote only,
// CertificateAny/CertificateValue/SkipRound), per spec.md §4.1.
type Mode uint8

const (
	Tendermint Mode = iota
	FaB
)

// Event is a threshold event emitted by Apply, at most once per
// (round, kind) (spec.md §4.1).
type Event struct {
	Kind  types.ThresholdKind
	Round types.Round
	// Value is set for *Value kinds; zero value otherwise.
	Value types.ValueId
}

// Keeper tallies votes for a single height across all of its rounds.
type Keeper struct {
	height types.Height
	vs     types.ValidatorSet
	params types.ThresholdParams
	mode   Mode

	rounds map[types.Round]*perRound
}

// New returns a Keeper for the given height, validator set and threshold
// parameters.
func New(height types.Height, vs types.ValidatorSet, params types.ThresholdParams, mode Mode) *Keeper {
	return &Keeper{
		height: height,
		vs:     vs,
		params: params,
		mode:   mode,
		rounds: make(map[types.Round]*perRound),
	}
}

func (k *Keeper) round(r types.Round) *perRound {
	pr, ok := k.rounds[r]
	if !ok {
		pr = newPerRound()
		k.rounds[r] = pr
	}
	return pr
}

// Apply accepts a signed vote at the keeper's height and returns the
// threshold event it newly crossed, if any. currentRound is the round
// the driver is presently in, used to evaluate the SkipRound condition
// (spec.md §4.1: "aggregate distinct-validator weight in round r >
// current round >= f+1").
//
// Pre-conditions: vote.Height must match the keeper's height (the driver
// is responsible for routing votes to the keeper for the right height;
// passing a mismatched height is a programmer error and panics, matching
// the teacher's convention of failing hard on violated internal
// invariants rather than returning a sentinel the caller is likely to
// ignore). A vote whose signer is absent from the validator set is
// silently dropped (post-condition: tally unchanged, no event).
func (k *Keeper) Apply(vote types.SignedVote, currentRound types.Round) *Event {
	if vote.Vote.Height != k.height {
		panic("votekeeper: vote height does not match keeper height")
	}

	validator, ok := k.vs.ByAddress(vote.Vote.Address)
	if !ok {
		return nil
	}

	pr := k.round(vote.Vote.Round)
	pr.add(vote, validator.VotingPower)

	// Whether or not this vote was a fresh tally or an equivocation/replay,
	// a round skip may already qualify from previously recorded votes,
	// so thresholds are always re-checked.
	return k.checkThresholds(vote.Vote.Round, vote.Vote.Type, currentRound)
}

// checkThresholds evaluates every threshold kind relevant to votes of
// `typ` in round r, relative to currentRound, returning the first newly
// crossed event. Each (round, kind[, value]) can only ever be returned
// once, since perRound.emitted/emittedValue latch on first crossing.
func (k *Keeper) checkThresholds(r types.Round, typ types.VoteType, currentRound types.Round) *Event {
	pr := k.rounds[r]
	total := k.vs.TotalVotingPower()

	if k.mode == FaB {
		if typ == types.Prevote {
			if ev := pr.maybeEmitValueEvent(r, types.Prevote, types.CertificateValue, total, k.params.Certificate); ev != nil {
				return ev
			}
			if !pr.emitted[types.CertificateAny] && k.params.Certificate.MetBy(pr.sumAllOf(types.Prevote), total) {
				pr.emitted[types.CertificateAny] = true
				return &Event{Kind: types.CertificateAny, Round: r}
			}
		}
	} else {
		switch typ {
		case types.Prevote:
			if ev := pr.maybeEmitValueEvent(r, types.Prevote, types.PolkaValue, total, k.params.Quorum); ev != nil {
				return ev
			}
			if !pr.emitted[types.PolkaNil] && k.params.Quorum.MetBy(pr.forNilOf(types.Prevote), total) {
				pr.emitted[types.PolkaNil] = true
				return &Event{Kind: types.PolkaNil, Round: r}
			}
			if !pr.emitted[types.PolkaAny] && k.params.Quorum.MetBy(pr.sumAllOf(types.Prevote), total) {
				pr.emitted[types.PolkaAny] = true
				return &Event{Kind: types.PolkaAny, Round: r}
			}
		case types.Precommit:
			if ev := pr.maybeEmitValueEvent(r, types.Precommit, types.PrecommitValue, total, k.params.Quorum); ev != nil {
				return ev
			}
			if !pr.emitted[types.PrecommitAny] && k.params.Quorum.MetBy(pr.sumAllOf(types.Precommit), total) {
				pr.emitted[types.PrecommitAny] = true
				return &Event{Kind: types.PrecommitAny, Round: r}
			}
		}
	}

	if !r.IsNil() && r > currentRound {
		if ev := k.checkSkipRound(r, currentRound); ev != nil {
			return ev
		}
	}
	return nil
}

func (k *Keeper) checkSkipRound(r, currentRound types.Round) *Event {
	pr := k.rounds[r]
	if pr.skipEmitted {
		return nil
	}
	if k.params.Honest.MetBy(pr.distinctWeight, k.vs.TotalVotingPower()) {
		pr.skipEmitted = true
		return &Event{Kind: types.SkipRoundThreshold, Round: r}
	}
	return nil
}

// IsThresholdMet is a read-only query used by the driver's multiplexer
// to check whether a threshold has been reached without mutating state
// (spec.md §4.1 is_threshold_met).
func (k *Keeper) IsThresholdMet(r types.Round, typ types.VoteType, threshold types.NilOrVal[types.ValueId]) bool {
	pr, ok := k.rounds[r]
	if !ok {
		return false
	}
	total := k.vs.TotalVotingPower()
	var weight uint64
	if v, isVal := threshold.Value(); isVal {
		weight = pr.forValueOf(typ, v)
	} else {
		weight = pr.forNilOf(typ)
	}
	ratio := k.params.Quorum
	if k.mode == FaB {
		ratio = k.params.Certificate
	}
	return ratio.MetBy(weight, total)
}

// EmbeddedLock reports the value id, if any, whose prevote weight in
// round r meets the 2f+1 lock threshold (spec.md §4.3 "Locking rule"):
// a certificate can carry a 4f+1 quorum while also embedding a distinct
// 2f+1-weighted value that a Prepropose proposer in a later round must
// honor. FaB mode only; Tendermint mode never calls this.
func (k *Keeper) EmbeddedLock(r types.Round) (types.ValueId, bool) {
	pr, ok := k.rounds[r]
	if !ok {
		return "", false
	}
	total := k.vs.TotalVotingPower()
	for subject, weight := range pr.weights[types.Prevote] {
		v, isVal := subject.Value()
		if !isVal {
			continue
		}
		if k.params.Lock.MetBy(weight, total) {
			return v, true
		}
	}
	return "", false
}

// BuildCertificate collects the prevotes (FaB: also prevotes;
// Tendermint: prevotes for Polka, precommits for Commit) for value at
// round and returns them if their aggregated voting power meets the
// certificate/quorum threshold (spec.md §4.1 build_certificate).
func (k *Keeper) BuildCertificate(r types.Round, typ types.VoteType, value types.ValueId) ([]types.SignedVote, bool) {
	pr, ok := k.rounds[r]
	if !ok {
		return nil, false
	}
	votes := pr.votesFor(typ, types.Val(value))
	var weight uint64
	for _, sv := range votes {
		v, _ := k.vs.ByAddress(sv.Vote.Address)
		weight += v.VotingPower
	}
	ratio := k.params.Quorum
	if k.mode == FaB {
		ratio = k.params.Certificate
	}
	if !ratio.MetBy(weight, k.vs.TotalVotingPower()) {
		return nil, false
	}
	return votes, true
}

// BuildSkipRoundCertificate returns the prevotes+precommits (whichever
// were recorded) at round r whose distinct signers meet the honest
// threshold (spec.md §4.1 build_skip_round_certificate).
func (k *Keeper) BuildSkipRoundCertificate(r types.Round) ([]types.SignedVote, bool) {
	pr, ok := k.rounds[r]
	if !ok {
		return nil, false
	}
	if !k.params.Honest.MetBy(pr.distinctWeight, k.vs.TotalVotingPower()) {
		return nil, false
	}
	return pr.allVotes(), true
}

// Evidence returns every piece of equivocation evidence recorded across
// all rounds of this height (spec.md §9 "Evidence map as a first-class
// queryable type").
func (k *Keeper) Evidence() []Equivocation {
	var out []Equivocation
	for _, pr := range k.rounds {
		out = append(out, pr.evidence...)
	}
	return out
}

// Equivocation records a conflicting second vote: the first-seen vote
// remains authoritative in the tally, and this pair is kept purely as
// evidence (spec.md §4.1 "Equivocation policy").
type Equivocation struct {
	Existing    types.SignedVote
	Conflicting types.SignedVote
}
