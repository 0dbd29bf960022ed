package bfttest

import (
	"crypto/ed25519"

	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/types"
)

// PubKey wraps an ed25519 public key as a types.PublicKey, deriving its
// address from the raw key bytes (there is no separate address scheme
// to parametrize over here; spec.md leaves Address's encoding to the
// embedder).
type PubKey struct {
	Key ed25519.PublicKey
}

func (k PubKey) Address() types.Address { return types.Address(k.Key) }
func (k PubKey) Bytes() []byte          { return []byte(k.Key) }

// Signer signs with an in-memory ed25519 private key. Production
// deployments supply their own signing.Signer, e.g. backed by an HSM or
// a remote signer process; this exists purely so tests can stand up a
// working validator set without one.
type Signer struct {
	Priv ed25519.PrivateKey
}

func (s Signer) PublicKey() types.PublicKey {
	return PubKey{Key: s.Priv.Public().(ed25519.PublicKey)}
}

func (s Signer) Sign(signBytes []byte) (types.Signature, error) {
	return types.Signature(ed25519.Sign(s.Priv, signBytes)), nil
}

// Verifier checks ed25519 signatures produced by Signer, implementing
// signing.Verifier.
type Verifier struct{}

func (Verifier) Verify(pub types.PublicKey, signBytes []byte, sig types.Signature) bool {
	k, ok := pub.(PubKey)
	if !ok {
		return false
	}
	return ed25519.Verify(k.Key, signBytes, []byte(sig))
}

var _ signing.Signer = Signer{}
var _ signing.Verifier = Verifier{}
