// Package proposal implements spec.md §4.4: storing proposals per round,
// recording equivocation evidence, and associating a validity verdict.
// Grounded on malachite's core-consensus/src/full_proposal_keeper.rs
// (which stores proposals keyed by (height, round, value-id) alongside a
// validity marker) and on gordian's kstate.go round-keyed proposal cache.
package proposal

import "github.com/maestro-bft/maestro/types"

// Entry is a stored proposal together with its validity verdict.
type Entry struct {
	Proposal types.SignedProposal
	Validity types.Validity
}

type roundKey struct {
	height types.Height
	round  types.Round
}

// Keeper stores at most one valid proposal per (height, round, value-id)
// from a given proposer, recording equivocation when a proposer submits
// two distinct values for the same (height, round) (spec.md §4.4).
type Keeper struct {
	entries map[roundKey]map[types.ValueId]Entry

	// proposerOf tracks, per (height, round), the proposer's address and
	// the single value-id we've accepted from them, to detect a second,
	// differing proposal from the same proposer.
	proposerOf map[roundKey]map[types.Address]types.ValueId

	evidence []Equivocation
}

// Equivocation records two distinct proposals submitted by the same
// proposer for the same (height, round) (spec.md §4.4 "store").
type Equivocation struct {
	First  types.SignedProposal
	Second types.SignedProposal
}

// New returns an empty Keeper.
func New() *Keeper {
	return &Keeper{
		entries:    make(map[roundKey]map[types.ValueId]Entry),
		proposerOf: make(map[roundKey]map[types.Address]types.ValueId),
	}
}

// Store records a proposal and its validity verdict. If an existing
// proposal from the same proposer for the same (height, round) has a
// different value-id, an equivocation record is added instead of
// replacing the first-seen proposal (spec.md §4.4, §3 "Proposal keeper"
// invariants).
func (k *Keeper) Store(p types.SignedProposal, v types.Validity) {
	rk := roundKey{height: p.Proposal.Height, round: p.Proposal.Round}

	byAddr, ok := k.proposerOf[rk]
	if !ok {
		byAddr = make(map[types.Address]types.ValueId)
		k.proposerOf[rk] = byAddr
	}

	newID := p.Proposal.Value.ID()
	if existingID, ok := byAddr[p.Proposal.Proposer]; ok {
		if existingID == newID {
			return // identical replay, nothing to do
		}
		if existing, ok := k.get(rk, existingID); ok {
			k.evidence = append(k.evidence, Equivocation{First: existing.Proposal, Second: p})
		}
		return
	}
	byAddr[p.Proposal.Proposer] = newID

	byValue, ok := k.entries[rk]
	if !ok {
		byValue = make(map[types.ValueId]Entry)
		k.entries[rk] = byValue
	}
	byValue[newID] = Entry{Proposal: p, Validity: v}
}

func (k *Keeper) get(rk roundKey, valueID types.ValueId) (Entry, bool) {
	byValue, ok := k.entries[rk]
	if !ok {
		return Entry{}, false
	}
	e, ok := byValue[valueID]
	return e, ok
}

// Get returns the stored proposal for (height, round, value-id), if any
// (spec.md §4.4 get).
func (k *Keeper) Get(h types.Height, r types.Round, valueID types.ValueId) (Entry, bool) {
	return k.get(roundKey{height: h, round: r}, valueID)
}

// ProposalsForRound returns every stored proposal for a round, across
// proposers, for the multiplexer to inspect after a vote threshold fires
// (spec.md §4.4 proposals_for_round).
func (k *Keeper) ProposalsForRound(h types.Height, r types.Round) []Entry {
	byValue, ok := k.entries[roundKey{height: h, round: r}]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(byValue))
	for _, e := range byValue {
		out = append(out, e)
	}
	return out
}

// Evidence returns every equivocation recorded so far.
func (k *Keeper) Evidence() []Equivocation {
	return k.evidence
}
