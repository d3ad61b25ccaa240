package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/ladder/internal/domain/types"
)

func newRangeCmd(g *globals) *cobra.Command {
	var (
		first, last int
		details     bool
	)
	cmd := &cobra.Command{
		Use:   "range SOURCE",
		Short: "Fetch a rank window from one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, entries, err := g.client().Range(cmd.Context(), args[0], first, last, details)
			if err != nil {
				return err
			}
			return printJSON(cmd, types.RangeResponse{Anchor: anchor, Entries: wire(entries)})
		},
	}
	cmd.Flags().IntVar(&first, "first", 1, "First rank, 1-based")
	cmd.Flags().IntVar(&last, "last", 0, "Last rank, inclusive; 0 reads to the end")
	cmd.Flags().BoolVar(&details, "details", false, "Resolve names and avatars")
	return cmd
}

func newTopCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the merged leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := g.client().Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire(entries))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of entries")
	return cmd
}

func newNextCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "next THRESHOLD",
		Short: "Show the next score to beat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("threshold: %w", err)
			}
			e, found, err := g.client().NextAbove(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			resp := types.NextAboveResponse{Threshold: threshold, Found: found}
			if found {
				entry := types.FromModel(e)
				resp.Entry = &entry
			}
			return printJSON(cmd, resp)
		},
	}
}

func newBestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "best",
		Short: "Show the requesting player's personal best",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, found, err := g.client().PersonalBest(cmd.Context())
			if err != nil {
				return err
			}
			resp := types.PersonalBestResponse{Found: found}
			if found {
				entry := types.FromModel(e)
				resp.Entry = &entry
			}
			return printJSON(cmd, resp)
		},
	}
}

func newMeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "me <source>",
		Short: "Show the requesting player's own rank and value on one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.client().PlayerScore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, types.FromModel(e))
		},
	}
}

func newRebuildCmd(g *globals) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Re-pull every source and merge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := g.client().Rebuild(cmd.Context(), wait)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Return once the merge is live")
	return cmd
}

func newSubmitCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "submit VALUE",
		Short: "Submit a score for the requesting player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("value: %w", err)
			}
			queued, err := g.client().Submit(cmd.Context(), value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued for %d sources\n", queued)
			return nil
		},
	}
}

func newSessionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "session PLAYER_ID",
		Short: "Switch the requesting player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.client().Session(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "authenticated as %s\n", args[0])
			return nil
		},
	}
}

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print service statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := g.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}
