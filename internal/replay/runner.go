package replay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/okian/framerank/pkg/logger"
)

// ErrViolations is returned when at least one response broke a consistency rule.
var ErrViolations = errors.New("replay found inconsistent results")

const (
	countSettle = 2 * time.Second
	countPoll   = 50 * time.Millisecond
)

// Run sends every fixture cfg.Repeat times with cfg.Workers requests in
// flight and verifies each response.
func Run(ctx context.Context, cfg Config, fixtures []Fixture) (Summary, []Outcome, error) {
	log := logger.Named("replay")
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Repeat <= 0 {
		cfg.Repeat = 1
	}
	sum := Summary{Rejected: map[string]int{}}
	start := time.Now()
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("fixtures", len(fixtures)),
		logger.Int("repeat", cfg.Repeat),
		logger.Int("workers", cfg.Workers))

	if err := client.Health(ctx); err != nil {
		return sum, nil, err
	}
	before, err := client.Count(ctx)
	if err != nil {
		log.Warn(ctx, "scan count unavailable before replay", logger.Error(err))
	}
	sum.CountBefore = before

	total := len(fixtures) * cfg.Repeat
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("replaying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	outcomes := make([]Outcome, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range total {
		f := fixtures[i%len(fixtures)]
		g.Go(func() error {
			o := send(gctx, client, f)
			outcomes[i] = o
			if bar != nil {
				_ = bar.Add(1)
			}
			if len(o.Violations) > 0 {
				log.Warn(gctx, "inconsistent result",
					logger.String("fixture", o.Fixture),
					logger.Any("violations", o.Violations))
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	for _, o := range outcomes {
		tally(&sum, o)
	}
	if after, err := settledCount(ctx, client, before+int64(sum.Ranked)); err == nil {
		sum.CountAfter = after
		if after-before < int64(sum.Ranked) {
			log.Warn(ctx, "scan count advanced less than the number of ranked results",
				logger.Any("before", before), logger.Any("after", after), logger.Int("ranked", sum.Ranked))
		}
	}
	sum.Duration = time.Since(start)

	log.Info(ctx, "replay finished",
		logger.Int("sent", sum.Sent),
		logger.Int("ranked", sum.Ranked),
		logger.Int("empty", sum.Empty),
		logger.Any("rejected", sum.Rejected),
		logger.Int("failed", sum.Failed),
		logger.Int("violations", sum.Violations),
		logger.String("duration", sum.Duration.String()))

	if sum.Violations > 0 {
		return sum, outcomes, fmt.Errorf("%w: %d of %d responses", ErrViolations, sum.Violations, sum.Sent)
	}
	return sum, outcomes, nil
}

// settledCount polls /stats until it reaches want or countSettle passes. The
// server records scans in the background, so the last few may land late.
func settledCount(ctx context.Context, c *Client, want int64) (int64, error) {
	deadline := time.Now().Add(countSettle)
	for {
		n, err := c.Count(ctx)
		if err != nil || n >= want || time.Now().After(deadline) {
			return n, err
		}
		select {
		case <-ctx.Done():
			return n, nil
		case <-time.After(countPoll):
		}
	}
}

func send(ctx context.Context, c *Client, f Fixture) Outcome {
	start := time.Now()
	status, resp, err := c.Analyze(ctx, f.Request)
	o := Outcome{Fixture: f.Name, Status: status, Response: resp, Err: err, Latency: time.Since(start)}
	if err != nil {
		return o
	}
	switch {
	case resp.Success && status != http.StatusOK:
		o.Violations = append(o.Violations, fmt.Sprintf("success envelope with status %d", status))
	case !resp.Success && resp.Code == "":
		o.Violations = append(o.Violations, "failure envelope without a code")
	case !resp.Success && status == http.StatusOK:
		o.Violations = append(o.Violations, "failure envelope with status 200")
	}
	if resp.Success {
		o.Violations = append(o.Violations, Verify(resp.Data)...)
	}
	return o
}

func tally(sum *Summary, o Outcome) {
	sum.Sent++
	switch {
	case o.Err != nil:
		sum.Failed++
	case !o.Response.Success:
		sum.Rejected[string(o.Response.Code)]++
	case o.Response.Data != nil && len(o.Response.Data.People) == 0:
		sum.Empty++
	default:
		sum.Ranked++
	}
	if len(o.Violations) > 0 {
		sum.Violations++
	}
}
