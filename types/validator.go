package types

import "sort"

// Validator is a single member of a ValidatorSet: an address, its public
// key, and its voting power. Validators are immutable once created.
type Validator struct {
	Address     Address
	PubKey      PublicKey
	VotingPower uint64
}

// ValidatorSet is an ordered, immutable collection of validators for one
// height. Ordering is by address, which makes the set's total power and
// membership checks deterministic across nodes regardless of how the
// embedder assembled the slice.
type ValidatorSet struct {
	validators []Validator
	byAddress  map[Address]int
	totalPower uint64
}

// NewValidatorSet builds a ValidatorSet from an unordered slice of
// validators, sorting by address and precomputing total voting power.
// Duplicate addresses are rejected by keeping only the first occurrence's
// index mapping; callers should never pass duplicates.
func NewValidatorSet(vs []Validator) ValidatorSet {
	sorted := make([]Validator, len(vs))
	copy(sorted, vs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	byAddress := make(map[Address]int, len(sorted))
	var total uint64
	for i, v := range sorted {
		if _, ok := byAddress[v.Address]; !ok {
			byAddress[v.Address] = i
		}
		total += v.VotingPower
	}

	return ValidatorSet{
		validators: sorted,
		byAddress:  byAddress,
		totalPower: total,
	}
}

// TotalVotingPower returns the sum of voting power across all validators.
func (vs ValidatorSet) TotalVotingPower() uint64 { return vs.totalPower }

// Len returns the number of validators in the set.
func (vs ValidatorSet) Len() int { return len(vs.validators) }

// ByAddress looks up a validator by address.
func (vs ValidatorSet) ByAddress(addr Address) (Validator, bool) {
	i, ok := vs.byAddress[addr]
	if !ok {
		return Validator{}, false
	}
	return vs.validators[i], true
}

// ByIndex returns the i'th validator in address order.
func (vs ValidatorSet) ByIndex(i int) (Validator, bool) {
	if i < 0 || i >= len(vs.validators) {
		return Validator{}, false
	}
	return vs.validators[i], true
}

// IndexOf returns the index of addr in address order, or -1 if absent.
func (vs ValidatorSet) IndexOf(addr Address) int {
	i, ok := vs.byAddress[addr]
	if !ok {
		return -1
	}
	return i
}

// All returns the validators in address order. The returned slice must
// not be mutated by callers.
func (vs ValidatorSet) All() []Validator { return vs.validators }

// Proposer returns the validator selected to propose at (height, round),
// using the deterministic rotation spec.md §4.6 describes:
// (height - 1 + round) mod count. The selection function is pluggable;
// this is the default the runtime uses unless a ProposerSelector option
// overrides it.
func (vs ValidatorSet) Proposer(h Height, r Round) (Validator, bool) {
	n := len(vs.validators)
	if n == 0 || r.IsNil() {
		return Validator{}, false
	}
	idx := (int64(h) - 1 + int64(r)) % int64(n)
	if idx < 0 {
		idx += int64(n)
	}
	return vs.validators[idx], true
}

// ProposerSelector is the pluggable proposer-selection function described
// in spec.md §4.6.
type ProposerSelector func(vs ValidatorSet, h Height, r Round) (Validator, bool)

// DefaultProposerSelector is the round-robin rotation implementing
// ValidatorSet.Proposer.
func DefaultProposerSelector(vs ValidatorSet, h Height, r Round) (Validator, bool) {
	return vs.Proposer(h, r)
}
