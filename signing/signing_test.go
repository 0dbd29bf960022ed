package signing_test

import (
	"testing"

	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/types"
	"github.com/stretchr/testify/require"
)

func TestBlake2bHashSchemeDeterministic(t *testing.T) {
	hs := signing.Blake2bHashScheme{}

	v := types.Vote{Type: types.Prevote, Height: 1, Round: 0, Value: types.Val(types.ValueId("A")), Address: "v1"}
	b1 := hs.VoteSignBytes(v)
	b2 := hs.VoteSignBytes(v)
	require.Equal(t, b1, b2)

	other := v
	other.Value = types.Val(types.ValueId("B"))
	require.NotEqual(t, b1, hs.VoteSignBytes(other))
}

func TestBlake2bValueIdStable(t *testing.T) {
	hs := signing.Blake2bHashScheme{}
	require.Equal(t, hs.ValueId([]byte("hello")), hs.ValueId([]byte("hello")))
	require.NotEqual(t, hs.ValueId([]byte("hello")), hs.ValueId([]byte("world")))
}
