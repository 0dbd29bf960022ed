package votekeeper

import "github.com/maestro-bft/maestro/types"

// perRound holds the votes, weight tallies and already-emitted threshold
// events for a single round, mirroring malachite's PerRound<Ctx>
// (core-votekeeper/src/keeper.rs) and spec.md §3 "Vote tally (per
// height)".
type perRound struct {
	// byTypeAndAddr records the first-seen vote of each (type, address),
	// used to detect equivocation and to build certificates/evidence.
	byTypeAndAddr map[types.VoteType]map[types.Address]types.SignedVote

	// weights accumulates voting power per (type, subject), where
	// subject is NilOrVal[ValueId].
	weights map[types.VoteType]map[types.NilOrVal[types.ValueId]]uint64

	// distinctAddrs and distinctWeight track every validator who has
	// cast any vote (of either type) in this round, regardless of
	// value, for the SkipRound condition (spec.md §4.1: "aggregate
	// distinct-validator weight in round r").
	distinctAddrs map[types.Address]bool
	distinctWeight uint64

	emitted      map[types.ThresholdKind]bool
	emittedValue map[types.ThresholdKind]map[types.ValueId]bool
	skipEmitted  bool

	evidence []Equivocation

	order []types.SignedVote // insertion order, for allVotes()
}

func newPerRound() *perRound {
	return &perRound{
		byTypeAndAddr:  make(map[types.VoteType]map[types.Address]types.SignedVote),
		weights:        make(map[types.VoteType]map[types.NilOrVal[types.ValueId]]uint64),
		distinctAddrs:  make(map[types.Address]bool),
		emitted:        make(map[types.ThresholdKind]bool),
		emittedValue:   make(map[types.ThresholdKind]map[types.ValueId]bool),
	}
}

// add records vote if no prior vote of the same (type, address) existed.
// It returns true if the tally was updated (new vote or a bit-identical
// replay), false if this was a conflicting second vote, in which case it
// is recorded as equivocation evidence rather than counted (spec.md §4.1
// "Equivocation policy").
func (pr *perRound) add(sv types.SignedVote, weight uint64) bool {
	typ := sv.Vote.Type
	addrMap, ok := pr.byTypeAndAddr[typ]
	if !ok {
		addrMap = make(map[types.Address]types.SignedVote)
		pr.byTypeAndAddr[typ] = addrMap
	}

	if existing, ok := addrMap[sv.Vote.Address]; ok {
		if existing.Vote.Value == sv.Vote.Value {
			// Identical replay: idempotent, no new tally, no evidence.
			return true
		}
		pr.evidence = append(pr.evidence, Equivocation{Existing: existing, Conflicting: sv})
		return false
	}

	addrMap[sv.Vote.Address] = sv

	wm, ok := pr.weights[typ]
	if !ok {
		wm = make(map[types.NilOrVal[types.ValueId]]uint64)
		pr.weights[typ] = wm
	}
	wm[sv.Vote.Value] += weight

	if !pr.distinctAddrs[sv.Vote.Address] {
		pr.distinctAddrs[sv.Vote.Address] = true
		pr.distinctWeight += weight
	}

	pr.order = append(pr.order, sv)
	return true
}

func (pr *perRound) sumAllOf(typ types.VoteType) uint64 {
	var sum uint64
	for _, w := range pr.weights[typ] {
		sum += w
	}
	return sum
}

func (pr *perRound) forNilOf(typ types.VoteType) uint64 {
	return pr.weights[typ][types.Nil[types.ValueId]()]
}

func (pr *perRound) forValueOf(typ types.VoteType, v types.ValueId) uint64 {
	return pr.weights[typ][types.Val(v)]
}

func (pr *perRound) votesFor(typ types.VoteType, subject types.NilOrVal[types.ValueId]) []types.SignedVote {
	var out []types.SignedVote
	for _, sv := range pr.order {
		if sv.Vote.Type == typ && sv.Vote.Value == subject {
			out = append(out, sv)
		}
	}
	return out
}

func (pr *perRound) allVotes() []types.SignedVote {
	out := make([]types.SignedVote, len(pr.order))
	copy(out, pr.order)
	return out
}

// maybeEmitValueEvent checks every distinct value voted for under typ in
// this round and returns the first one newly crossing quorum under
// threshold kind, marking it emitted.
func (pr *perRound) maybeEmitValueEvent(
	r types.Round, typ types.VoteType, kind types.ThresholdKind, total uint64, ratio types.Ratio,
) *Event {
	seen, ok := pr.emittedValue[kind]
	if !ok {
		seen = make(map[types.ValueId]bool)
		pr.emittedValue[kind] = seen
	}
	for subject, weight := range pr.weights[typ] {
		v, isVal := subject.Value()
		if !isVal || seen[v] {
			continue
		}
		if ratio.MetBy(weight, total) {
			seen[v] = true
			return &Event{Kind: kind, Round: r, Value: v}
		}
	}
	return nil
}
