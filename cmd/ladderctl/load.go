package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ladder/internal/client"
)

// loadConfig drives a burst of concurrent score submissions.
type loadConfig struct {
	Submissions int
	Workers     int
	MinValue    int64
	MaxValue    int64
}

// loadStats summarises a load run.
type loadStats struct {
	Submitted int64
	Accepted  int64
	Rejected  int64
	Failed    int64
	Elapsed   time.Duration
}

func newLoadCmd(g *globals) *cobra.Command {
	cfg := loadConfig{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Submit many random scores concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Submissions < 1 || cfg.Workers < 1 || cfg.MaxValue < cfg.MinValue {
				return errors.New("count and workers must be positive and max >= min")
			}
			st := runLoad(cmd.Context(), g.client(), cfg)
			fmt.Fprintf(cmd.OutOrStdout(),
				"submitted %d in %s (accepted: %d, rejected: %d, failed: %d)\n",
				st.Submitted, st.Elapsed.Round(time.Millisecond), st.Accepted, st.Rejected, st.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Submissions, "count", 1000, "Number of scores to submit")
	cmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Number of concurrent workers")
	cmd.Flags().Int64Var(&cfg.MinValue, "min", 0, "Smallest random value")
	cmd.Flags().Int64Var(&cfg.MaxValue, "max", 10000, "Largest random value")
	return cmd
}

// runLoad submits cfg.Submissions random values. Per-request failures are
// counted, not returned.
func runLoad(ctx context.Context, c *client.Client, cfg loadConfig) loadStats {
	var (
		st    loadStats
		g     errgroup.Group
		start = time.Now()
	)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Submissions; i++ {
		if ctx.Err() != nil {
			break
		}
		value := cfg.MinValue + rand.Int64N(cfg.MaxValue-cfg.MinValue+1)
		g.Go(func() error {
			atomic.AddInt64(&st.Submitted, 1)
			_, err := c.Submit(ctx, value)
			var apiErr *client.APIError
			switch {
			case errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests:
				atomic.AddInt64(&st.Rejected, 1)
			case err != nil:
				atomic.AddInt64(&st.Failed, 1)
			default:
				atomic.AddInt64(&st.Accepted, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	st.Elapsed = time.Since(start)
	return st
}
