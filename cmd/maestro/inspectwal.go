package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
)

func inspectWALCmd() *cobra.Command {
	var height uint64

	cmd := &cobra.Command{
		Use:   "inspect-wal <wal-file>",
		Short: "Print the entries recorded in a validator's WAL file",
		Long: `inspect-wal opens a WAL file written by a running validator (see
start's --wal-dir) and prints every vote and proposal recorded in it, in
append order. Pass --height to filter to a single height; otherwise
every height still present in the file is printed (decided heights are
truncated from the WAL as part of normal operation, so only undecided
or not-yet-truncated heights will show up).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectWAL(cmd, args[0], height)
		},
	}

	cmd.Flags().Uint64Var(&height, "height", 0, "only print entries for this height (0 means all heights)")
	return cmd
}

func runInspectWAL(cmd *cobra.Command, path string, height uint64) error {
	ws, err := store.NewFileWALStore(path, demoValueCodec{})
	if err != nil {
		return err
	}
	defer ws.Close()

	entries, err := ws.LoadAll(context.Background())
	if err != nil {
		return fmt.Errorf("inspect-wal: reading %q: %w", path, err)
	}

	out := cmd.OutOrStdout()
	want := types.Height(height)
	for _, e := range entries {
		if want != 0 && e.Height != want {
			continue
		}
		switch {
		case e.Vote != nil:
			v := e.Vote.Vote
			valStr := "nil"
			if id, ok := v.Value.Value(); ok {
				valStr = hex.EncodeToString([]byte(id))
			}
			fmt.Fprintf(out, "height=%d round=%d vote type=%s address=%x value=%s\n",
				v.Height, v.Round, v.Type, v.Address, valStr)
		case e.Proposal != nil:
			p := e.Proposal.Proposal
			fmt.Fprintf(out, "height=%d round=%d proposal proposer=%x pol_round=%d value=%s\n",
				p.Height, p.Round, p.Proposer, p.PolRound, hex.EncodeToString([]byte(p.Value.ID())))
		}
	}
	return nil
}
