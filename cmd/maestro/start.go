package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestro-bft/maestro/runtime"
	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/votekeeper"
)

func startCmd() *cobra.Command {
	var genesisPath string
	var walDir string
	var heights uint64
	var fabMode bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run a local multi-validator demo network",
		Long: `start loads a genesis file and runs one in-process runtime per
validator, wired directly to each other instead of over a network
(spec.md excludes transport from the core's scope, same reason
SPEC_FULL.md's dropped-dependency list gives for leaving tmp2p out). It
is meant for demos and manual testing, not as a deployment topology: a
real deployment runs one validator per process, each with its own
Gossip implementation talking to the others over an actual transport.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemoNetwork(cmd, genesisPath, walDir, heights, fabMode)
		},
	}

	cmd.Flags().StringVar(&genesisPath, "genesis", "genesis.json", "path to the genesis file")
	cmd.Flags().StringVar(&walDir, "wal-dir", "./maestro-wal", "directory to hold each validator's WAL file")
	cmd.Flags().Uint64Var(&heights, "heights", 5, "number of heights to run before exiting (0 runs until interrupted)")
	cmd.Flags().BoolVar(&fabMode, "fab", false, "run in FaB (one-round) mode instead of Tendermint mode")
	return cmd
}

func runDemoNetwork(cmd *cobra.Command, genesisPath, walDir string, heights uint64, fabMode bool) error {
	log := slog.New(slog.NewTextHandler(cmd.OutOrStdout(), nil))

	g, err := loadGenesis(genesisPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return fmt.Errorf("start: creating WAL directory %q: %w", walDir, err)
	}

	validators := make([]types.Validator, len(g.Validators))
	signers := make([]signing.Signer, len(g.Validators))
	for i, gv := range g.Validators {
		priv, err := hex.DecodeString(gv.PrivKeyHex)
		if err != nil {
			return fmt.Errorf("start: decoding priv key for validator %d: %w", i, err)
		}
		signer := demoSigner{Priv: ed25519.PrivateKey(priv)}
		signers[i] = signer
		pub := signer.PublicKey().(demoPubKey)
		validators[i] = types.Validator{
			Address:     pub.Address(),
			PubKey:      pub,
			VotingPower: gv.VotingPower,
		}
	}
	vs := types.NewValidatorSet(validators)

	mode := votekeeper.Tendermint
	params := types.DefaultTendermintParams()
	if fabMode {
		mode = votekeeper.FaB
		params = types.DefaultFaBParams()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hosts := make([]*demoHost, len(validators))
	gossips := make([]*localGossip, len(validators))
	runtimes := make([]*runtime.Runtime, len(validators))
	wals := make([]*store.FileWALStore, len(validators))

	for i, v := range validators {
		host := newDemoHost(log.With("validator", i), vs)
		hosts[i] = host
		gossips[i] = &localGossip{self: v.Address}

		walPath := filepath.Join(walDir, fmt.Sprintf("validator-%d.wal.jsonl", i))
		wal, err := store.NewFileWALStore(walPath, demoValueCodec{})
		if err != nil {
			return fmt.Errorf("start: opening WAL for validator %d: %w", i, err)
		}
		wals[i] = wal
		defer wal.Close()

		rt, err := runtime.New(
			runtime.WithLogger(log.With("validator", i)),
			runtime.WithSigner(signers[i]),
			runtime.WithHashScheme(signing.Blake2bHashScheme{}),
			runtime.WithVerifier(demoVerifier{}),
			runtime.WithGossip(gossips[i]),
			runtime.WithHost(host),
			runtime.WithTimers(wallTimers{}),
			runtime.WithWAL(wal),
			runtime.WithDecisionStore(store.NewMemStore()),
			runtime.WithValidatorSetStore(store.NewMemStore()),
			runtime.WithThresholdParams(params),
			runtime.WithMode(mode),
			runtime.WithSelf(v.Address),
		)
		if err != nil {
			return fmt.Errorf("start: constructing runtime for validator %d: %w", i, err)
		}
		runtimes[i] = rt
	}

	// Now that every runtime exists, wire each validator's gossip to
	// broadcast to every other validator (and to itself, since a
	// proposer must also process its own proposal/prevote).
	for _, gs := range gossips {
		gs.peers = runtimes
	}

	for _, rt := range runtimes {
		go rt.Run(ctx)
	}

	// Send, not Handle: each runtime's own Run goroutine is the only one
	// allowed to call Handle, so kicking off height 1 has to go through
	// the actor's inbox like every other message.
	for _, rt := range runtimes {
		rt.Send(runtime.Msg{Kind: runtime.MsgStartHeight, Height: 1})
	}

	err = waitForDecidedOrErr(ctx, hosts[0], types.Height(heights))
	stop()
	for _, rt := range runtimes {
		rt.Wait()
	}
	return err
}

// waitForDecidedOrErr polls the first validator's demoHost until target
// has decided (0 meaning "never, wait for cancellation"), advancing past
// each newly-decided height as it appears.
func waitForDecidedOrErr(ctx context.Context, h *demoHost, target types.Height) error {
	seen := types.Height(0)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Either an interrupt (expected shutdown for --heights=0) or
			// the deadline from an outer caller; neither is a failure.
			return nil
		case <-ticker.C:
			for seen+1 <= target || target == 0 {
				if _, ok := h.DecidedHeight(seen + 1); !ok {
					break
				}
				seen++
			}
			if target != 0 && seen >= target {
				return nil
			}
		}
	}
}
