package types

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// CommitCertificate is (height, round, value-id, list of signed
// precommits for that value): the proof a decision is safe to act on
// (spec.md §3). PolkaCertificate has the identical shape over prevotes.
//
// Signers is a bitset over ValidatorSet indices, mirroring the
// teacher's CommonMessageSignatureProof.SignatureBitSet: it lets a
// verifier quickly compare "did this certificate's signer set change"
// without rehashing every vote, and it is what gets gossiped alongside
// the aggregated voting power rather than re-deriving it from Votes.
type CommitCertificate struct {
	Height  Height
	Round   Round
	ValueId ValueId
	Votes   []SignedVote
	Signers *bitset.BitSet
}

// PolkaCertificate has the same structure as CommitCertificate but over
// prevotes; it records a "polka" (quorum of prevotes) for a value at a
// round (spec.md §3).
type PolkaCertificate struct {
	Height  Height
	Round   Round
	ValueId ValueId
	Votes   []SignedVote
	Signers *bitset.BitSet
}

// SkipRoundCertificate is the list of prevotes justifying a round skip:
// distinct signers whose combined weight meets the honest threshold
// (spec.md §4.1 build_skip_round_certificate).
type SkipRoundCertificate struct {
	Height  Height
	Round   Round
	Votes   []SignedVote
	Signers *bitset.BitSet
}

// ErrCertificateInvalid is returned by Verify when a certificate does not
// meet the required threshold, contains a vote from a non-member, or
// double-counts a signer.
type ErrCertificateInvalid struct {
	Reason string
}

func (e ErrCertificateInvalid) Error() string {
	return fmt.Sprintf("invalid certificate: %s", e.Reason)
}

// Verify checks that cc's signers are distinct members of vs and that
// their combined voting power meets params.Quorum (spec.md §3 "Commit
// certificate"). It does not verify cryptographic signatures; that is
// the signing package's responsibility (the core is parametric over the
// signature scheme, spec.md §1).
func (cc CommitCertificate) Verify(vs ValidatorSet, params ThresholdParams) error {
	return verifyVotePowerCertificate(cc.Votes, cc.ValueId, Precommit, vs, params.Quorum)
}

// Verify checks that pc's signers are distinct members of vs and that
// their combined voting power meets params.Quorum (or params.Certificate
// in FaB mode -- callers pass the appropriate ratio).
func (pc PolkaCertificate) Verify(vs ValidatorSet, quorum Ratio) error {
	return verifyVotePowerCertificate(pc.Votes, pc.ValueId, Prevote, vs, quorum)
}

// Verify checks that src's signers are distinct members of vs and that
// their combined voting power meets params.Honest.
func (src SkipRoundCertificate) Verify(vs ValidatorSet, params ThresholdParams) error {
	seen := make(map[Address]struct{}, len(src.Votes))
	var weight uint64
	for _, sv := range src.Votes {
		if sv.Vote.Height != src.Height {
			return ErrCertificateInvalid{Reason: "vote height mismatch"}
		}
		if sv.Vote.Round != src.Round {
			return ErrCertificateInvalid{Reason: "vote round mismatch"}
		}
		v, ok := vs.ByAddress(sv.Vote.Address)
		if !ok {
			return ErrCertificateInvalid{Reason: "signer not in validator set"}
		}
		if _, dup := seen[sv.Vote.Address]; dup {
			return ErrCertificateInvalid{Reason: "duplicate signer"}
		}
		seen[sv.Vote.Address] = struct{}{}
		weight += v.VotingPower
	}
	if !params.Honest.MetBy(weight, vs.TotalVotingPower()) {
		return ErrCertificateInvalid{Reason: "insufficient weight for honest threshold"}
	}
	return nil
}

func verifyVotePowerCertificate(
	votes []SignedVote, valueID ValueId, wantType VoteType, vs ValidatorSet, quorum Ratio,
) error {
	seen := make(map[Address]struct{}, len(votes))
	var weight uint64
	for _, sv := range votes {
		if sv.Vote.Type != wantType {
			return ErrCertificateInvalid{Reason: "wrong vote type in certificate"}
		}
		id, isVal := sv.Vote.Value.Value()
		if !isVal || id != valueID {
			return ErrCertificateInvalid{Reason: "vote does not match certificate value"}
		}
		v, ok := vs.ByAddress(sv.Vote.Address)
		if !ok {
			return ErrCertificateInvalid{Reason: "signer not in validator set"}
		}
		if _, dup := seen[sv.Vote.Address]; dup {
			return ErrCertificateInvalid{Reason: "duplicate signer"}
		}
		seen[sv.Vote.Address] = struct{}{}
		weight += v.VotingPower
	}
	if !quorum.MetBy(weight, vs.TotalVotingPower()) {
		return ErrCertificateInvalid{Reason: "insufficient weight for quorum"}
	}
	return nil
}

// SignerBitSet builds a bitset over vs's index ordering from the given
// signer addresses, for use populating Signers on a freshly-built
// certificate.
func SignerBitSet(vs ValidatorSet, addrs []Address) *bitset.BitSet {
	bs := bitset.New(uint(vs.Len()))
	for _, a := range addrs {
		if i := vs.IndexOf(a); i >= 0 {
			bs.Set(uint(i))
		}
	}
	return bs
}
