package bfttest

import (
	"crypto/ed25519"

	"github.com/maestro-bft/maestro/types"
)

// PrivVal pairs a validator's public record with the Signer backing it,
// so test code can both present a ValidatorSet to the code under test
// and sign on that validator's behalf (grounded on tmconsensustest's
// PrivVal/PrivVals).
type PrivVal struct {
	Val    types.Validator
	Signer Signer
}

type PrivVals []PrivVal

func (vs PrivVals) Validators() []types.Validator {
	out := make([]types.Validator, len(vs))
	for i, v := range vs {
		out[i] = v.Val
	}
	return out
}

// DeterministicValidators returns n validators with deterministic
// ed25519 keys (first seed byte i+1, the rest zero) and voting power
// descending by index (100000-i), mirroring
// tmconsensustest.DeterministicValidatorsEd25519: reproducible across
// runs. ValidatorSet orders them by address, independently of the
// generation order.
func DeterministicValidators(n int) PrivVals {
	out := make(PrivVals, n)
	for i := range out {
		seed := make([]byte, ed25519.SeedSize)
		seed[0] = byte(i + 1)
		priv := ed25519.NewKeyFromSeed(seed)
		signer := Signer{Priv: priv}
		pub := signer.PublicKey().(PubKey)

		out[i] = PrivVal{
			Val: types.Validator{
				Address:     pub.Address(),
				PubKey:      pub,
				VotingPower: uint64(100_000 - i),
			},
			Signer: signer,
		}
	}
	return out
}
