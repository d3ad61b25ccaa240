package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ladder/internal/client"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/types"
)

const (
	defaultURL     = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
)

// globals bound to the persistent flags.
type globals struct {
	url     string
	timeout time.Duration
}

func (g *globals) client() *client.Client {
	return client.New(g.url, client.WithTimeout(g.timeout))
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "ladderctl",
		Short:        "Query and feed a ladder server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.url, "url", defaultURL, "Base URL of the service")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", defaultTimeout, "HTTP request timeout")

	root.AddCommand(
		newRangeCmd(g),
		newTopCmd(g),
		newNextCmd(g),
		newBestCmd(g),
		newMeCmd(g),
		newRebuildCmd(g),
		newSubmitCmd(g),
		newSessionCmd(g),
		newStatsCmd(g),
		newLoadCmd(g),
	)
	return root
}

// printJSON writes v indented to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func wire(in []model.ScoreEntry) []types.Entry {
	return types.FromModels(in)
}
