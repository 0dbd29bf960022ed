package bfttest

import (
	"fmt"

	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/types"
)

// Fixture bundles a deterministic validator set and the machinery to
// sign on its members' behalf, for tests spanning more than one package
// (votekeeper+round+proposal+driver+runtime+sync all consume the same
// types.ValidatorSet/HashScheme shape, so one fixture can drive all of
// them). Grounded on tmconsensustest.Fixture, trimmed to what this
// core's smaller type surface needs: no header/block hashing, no
// signature-proof aggregation scheme, just votes, proposals and
// certificates.
type Fixture struct {
	PrivVals   PrivVals
	HashScheme signing.HashScheme
	Verifier   signing.Verifier
	Params     types.ThresholdParams
}

// NewFixture returns a Fixture with n deterministic validators, the
// default Blake2bHashScheme, the ed25519 Verifier, and Tendermint-mode
// threshold params. Callers may override Params for FaB-mode tests.
func NewFixture(n int) *Fixture {
	return &Fixture{
		PrivVals:   DeterministicValidators(n),
		HashScheme: signing.Blake2bHashScheme{},
		Verifier:   Verifier{},
		Params:     types.DefaultTendermintParams(),
	}
}

// ValSet builds the types.ValidatorSet for f's validators.
func (f *Fixture) ValSet() types.ValidatorSet {
	return types.NewValidatorSet(f.PrivVals.Validators())
}

// SignVote fills in v.Address from the validator at idx and returns the
// signed vote.
func (f *Fixture) SignVote(v types.Vote, idx int) types.SignedVote {
	pv := f.PrivVals[idx]
	v.Address = pv.Val.Address

	signBytes := f.HashScheme.VoteSignBytes(v)
	sig, err := pv.Signer.Sign(signBytes)
	if err != nil {
		panic(fmt.Errorf("bfttest: failed to sign vote: %w", err))
	}
	return types.SignedVote{Vote: v, Signature: sig}
}

// SignProposal fills in p.Proposer from the validator at idx and
// returns the signed proposal.
func (f *Fixture) SignProposal(p types.Proposal, idx int) types.SignedProposal {
	pv := f.PrivVals[idx]
	p.Proposer = pv.Val.Address

	signBytes := f.HashScheme.ProposalSignBytes(p)
	sig, err := pv.Signer.Sign(signBytes)
	if err != nil {
		panic(fmt.Errorf("bfttest: failed to sign proposal: %w", err))
	}
	return types.SignedProposal{Proposal: p, Signature: sig}
}

// CommitCertificate builds a CommitCertificate for valueId at (h, r),
// with precommits signed by the validators at idxs.
func (f *Fixture) CommitCertificate(h types.Height, r types.Round, valueId types.ValueId, idxs []int) types.CommitCertificate {
	votes, addrs := f.signedVotes(h, r, types.Precommit, valueId, idxs)
	vs := f.ValSet()
	return types.CommitCertificate{
		Height:  h,
		Round:   r,
		ValueId: valueId,
		Votes:   votes,
		Signers: types.SignerBitSet(vs, addrs),
	}
}

// PolkaCertificate builds a PolkaCertificate for valueId at (h, r),
// with prevotes signed by the validators at idxs.
func (f *Fixture) PolkaCertificate(h types.Height, r types.Round, valueId types.ValueId, idxs []int) types.PolkaCertificate {
	votes, addrs := f.signedVotes(h, r, types.Prevote, valueId, idxs)
	vs := f.ValSet()
	return types.PolkaCertificate{
		Height:  h,
		Round:   r,
		ValueId: valueId,
		Votes:   votes,
		Signers: types.SignerBitSet(vs, addrs),
	}
}

func (f *Fixture) signedVotes(
	h types.Height, r types.Round, vt types.VoteType, valueId types.ValueId, idxs []int,
) ([]types.SignedVote, []types.Address) {
	votes := make([]types.SignedVote, len(idxs))
	addrs := make([]types.Address, len(idxs))
	for i, idx := range idxs {
		v := types.Vote{
			Type:   vt,
			Height: h,
			Round:  r,
			Value:  types.Val(valueId),
		}
		sv := f.SignVote(v, idx)
		votes[i] = sv
		addrs[i] = sv.Vote.Address
	}
	return votes, addrs
}
