// Command replay exercises a framerank server with fixture requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/framerank/internal/domain/keypoint"
	"github.com/okian/framerank/internal/replay"
	"github.com/okian/framerank/pkg/logger"
)

// Version is the tool version.
const Version = "0.1.0"

const (
	defaultTimeout   = 60 * time.Second
	defaultSynthetic = 25
)

type options struct {
	fixtures  string
	synthetic int
	seed      uint64
	logFile   string
	verbose   bool

	baseURL  string
	workers  int
	repeat   int
	timeout  time.Duration
	progress bool

	out       string
	attention []float64
	posture   []float64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:           "replay",
		Short:         "Replay fixture frames against the dominance ranking engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var opts []logger.InitOption
			if o.logFile != "" {
				opts = append(opts, logger.WithFile(o.logFile))
			}
			if err := logger.Init(opts...); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			if o.verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&o.fixtures, "fixtures", "f", "", "JSON fixture file (default: synthetic fixtures)")
	pf.IntVarP(&o.synthetic, "synthetic", "n", defaultSynthetic, "Number of synthetic fixtures when no file is given")
	pf.Uint64Var(&o.seed, "seed", 1, "Seed for synthetic fixtures")
	pf.StringVar(&o.logFile, "log", "", "Also write logs to this file")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCmd(&o), newScoreCmd(&o), newGenerateCmd(&o))
	return root
}

func newRunCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Post fixtures concurrently to a running server and verify every response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(o)
			if err != nil {
				return err
			}
			cfg := replay.Config{
				BaseURL:  o.baseURL,
				Workers:  o.workers,
				Repeat:   o.repeat,
				Timeout:  o.timeout,
				Progress: o.progress,
			}
			sum, _, err := replay.Run(cmd.Context(), cfg, fixtures)
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d  ranked %d  empty %d  rejected %v  failed %d  violations %d  in %s\n",
				sum.Sent, sum.Ranked, sum.Empty, sum.Rejected, sum.Failed, sum.Violations, sum.Duration.Round(time.Millisecond))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.baseURL, "url", "u", "http://localhost:9080", "Base URL of the service")
	f.IntVarP(&o.workers, "workers", "w", runtime.NumCPU(), "Concurrent requests")
	f.IntVarP(&o.repeat, "repeat", "r", 1, "Times each fixture is sent")
	f.DurationVarP(&o.timeout, "timeout", "t", defaultTimeout, "HTTP request timeout")
	f.BoolVar(&o.progress, "progress", true, "Draw a progress bar")
	return cmd
}

func newScoreCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank fixtures offline from their detections only",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(o)
			if err != nil {
				return err
			}
			var opts []keypoint.Option
			if w, ok := weights(o.attention); ok {
				opts = append(opts, keypoint.WithAttentionWeights(w))
			}
			if w, ok := weights(o.posture); ok {
				opts = append(opts, keypoint.WithPostureWeights(w))
			}

			bad := 0
			out := cmd.OutOrStdout()
			for _, r := range replay.Score(cmd.Context(), fixtures, opts...) {
				if !r.Response.Success {
					fmt.Fprintf(out, "%s: %s %s\n", r.Fixture, r.Response.Code, r.Response.Error)
					continue
				}
				res := r.Response.Data
				fmt.Fprintf(out, "%s: tie=%t winner=%d\n", r.Fixture, res.IsTie, res.WinnerIndex)
				for _, p := range res.People {
					fmt.Fprintf(out, "  #%d %-10s %-7s %5.1f  [%3.0f %3.0f %3.0f %3.0f] %s\n",
						p.Rank, p.Label, p.Position, p.CompositeScore,
						p.Signals.SpatialPresence, p.Signals.PostureDominance,
						p.Signals.FacialIntensity, p.Signals.AttentionCapture, p.Source)
				}
				for _, v := range r.Violations {
					fmt.Fprintf(out, "  ! %s\n", v)
				}
				if len(r.Violations) > 0 {
					bad++
				}
			}
			if bad > 0 {
				return fmt.Errorf("%w: %d fixtures", replay.ErrViolations, bad)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64SliceVar(&o.attention, "attention-weights", nil, "Attention sub-weights: centeredness,facial,spatial")
	f.Float64SliceVar(&o.posture, "posture-weights", nil, "Posture sub-weights: expansion,spine,level")
	return cmd
}

func newGenerateCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic fixtures to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := replay.Synthetic(o.synthetic, o.seed)
			if err != nil {
				return err
			}
			if err := replay.SaveFixtures(o.out, fixtures); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d fixtures to %s\n", len(fixtures), o.out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.out, "output", "o", "fixtures.json", "Output file")
	return cmd
}

func loadFixtures(o *options) ([]replay.Fixture, error) {
	if o.fixtures != "" {
		return replay.LoadFixtures(o.fixtures)
	}
	return replay.Synthetic(o.synthetic, o.seed)
}

func weights(v []float64) (keypoint.Weights, bool) {
	if len(v) != 3 {
		return keypoint.Weights{}, false
	}
	return keypoint.Weights{A: v[0], B: v[1], C: v[2]}, true
}
