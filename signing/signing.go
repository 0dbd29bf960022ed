// Package signing defines the signing and hashing capability set the
// runtime is parametric over (spec.md §3 "parametric over signing,
// hashing..."; §9 notes cryptographic scheme internals are out of
// scope). Grounded on the teacher's gcrypto.PubKey interface shape
// (Address/Bytes/Verify) and tmconsensus's SignatureScheme/HashScheme
// parametrization taken by tmengine.New's With* options.
package signing

import (
	"golang.org/x/crypto/blake2b"

	"github.com/maestro-bft/maestro/types"
)

// Signer produces signatures over arbitrary sign-bytes on behalf of a
// single validator's key (spec.md §4.6 item 1, SignVote/SignProposal).
type Signer interface {
	PublicKey() types.PublicKey
	Sign(signBytes []byte) (types.Signature, error)
}

// Verifier checks a signature against a public key (spec.md §4.6 item 2,
// VerifySignature).
type Verifier interface {
	Verify(pub types.PublicKey, signBytes []byte, sig types.Signature) bool
}

// HashScheme computes content hashes: ValueId for a Value's canonical
// bytes, and the sign-bytes a Vote or Proposal is signed over (spec.md
// §3 ValueId, GLOSSARY "sign-bytes").
type HashScheme interface {
	ValueId(canonicalBytes []byte) types.ValueId
	VoteSignBytes(v types.Vote) []byte
	ProposalSignBytes(p types.Proposal) []byte
}

// Blake2bHashScheme is the default HashScheme, using blake2b-256 over a
// simple length-prefixed encoding of the fields being signed. It
// replaces the teacher's BLS/pairing-based hash-to-curve indirection,
// which is out of scope here (spec.md §1 Non-goals, §9): this repo is
// parametric over HashScheme, and a host needing a different scheme
// supplies its own implementation.
type Blake2bHashScheme struct{}

func (Blake2bHashScheme) ValueId(canonicalBytes []byte) types.ValueId {
	sum := blake2b.Sum256(canonicalBytes)
	return types.ValueId(sum[:])
}

func (Blake2bHashScheme) VoteSignBytes(v types.Vote) []byte {
	buf := make([]byte, 0, 32)
	buf = appendUint64(buf, uint64(v.Height))
	buf = appendUint64(buf, uint64(v.Round))
	buf = append(buf, byte(v.Type))
	if id, ok := v.Value.Value(); ok {
		buf = append(buf, 1)
		buf = append(buf, []byte(id)...)
	} else {
		buf = append(buf, 0)
	}
	sum := blake2b.Sum256(buf)
	return sum[:]
}

func (Blake2bHashScheme) ProposalSignBytes(p types.Proposal) []byte {
	buf := make([]byte, 0, 32)
	buf = appendUint64(buf, uint64(p.Height))
	buf = appendUint64(buf, uint64(p.Round))
	buf = appendUint64(buf, uint64(p.PolRound))
	buf = append(buf, []byte(p.Value.ID())...)
	sum := blake2b.Sum256(buf)
	return sum[:]
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(56-8*i)))
	}
	return buf
}
