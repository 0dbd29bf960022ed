package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// genesisValidator is one validator's entry in a genesis file: its
// address and voting power are public; PrivKeyHex is included only
// because the bundled demo has no separate key-management story
// (spec.md §1 Non-goals excludes key custody), so genesis doubles as
// the demo's keyring.
type genesisValidator struct {
	Address     string `json:"address"`
	PubKeyHex   string `json:"pub_key_hex"`
	PrivKeyHex  string `json:"priv_key_hex"`
	VotingPower uint64 `json:"voting_power"`
}

// genesisFile is the on-disk shape `genesis` writes and `start` reads.
type genesisFile struct {
	Validators []genesisValidator `json:"validators"`
}

func genesisCmd() *cobra.Command {
	var out string
	var n int

	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Generate a genesis file with a deterministic validator set",
		Long: `genesis writes a JSON file describing a validator set: one ed25519
keypair per validator, with deterministic seeds so repeated invocations
with the same --validators count produce the same validator set (handy
for demos and tests, never for production, where key material must not
be reproducible from public information).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return fmt.Errorf("genesis: --validators must be at least 1, got %d", n)
			}

			g := genesisFile{Validators: make([]genesisValidator, n)}
			for i := 0; i < n; i++ {
				seed := make([]byte, ed25519.SeedSize)
				seed[0] = byte(i + 1)
				priv := ed25519.NewKeyFromSeed(seed)
				pub := priv.Public().(ed25519.PublicKey)

				g.Validators[i] = genesisValidator{
					Address:     hex.EncodeToString(pub),
					PubKeyHex:   hex.EncodeToString(pub),
					PrivKeyHex:  hex.EncodeToString(priv),
					VotingPower: uint64(100_000 - i),
				}
			}

			b, err := json.MarshalIndent(g, "", "  ")
			if err != nil {
				return fmt.Errorf("genesis: encoding: %w", err)
			}
			if err := os.WriteFile(out, b, 0o600); err != nil {
				return fmt.Errorf("genesis: writing %q: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d validators to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "genesis.json", "path to write the genesis file")
	cmd.Flags().IntVar(&n, "validators", 4, "number of validators to generate")
	return cmd
}

func loadGenesis(path string) (genesisFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return genesisFile{}, fmt.Errorf("loading genesis file %q: %w", path, err)
	}
	var g genesisFile
	if err := json.Unmarshal(b, &g); err != nil {
		return genesisFile{}, fmt.Errorf("parsing genesis file %q: %w", path, err)
	}
	if len(g.Validators) == 0 {
		return genesisFile{}, fmt.Errorf("genesis file %q has no validators", path)
	}
	return g, nil
}
