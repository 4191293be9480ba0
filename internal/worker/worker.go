// Package worker runs batches of validation targets through a bounded
// concurrency pool with retry for transient transport failures.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feedlint/feedlint/internal/fetcher"
	"github.com/feedlint/feedlint/internal/validator"
)

// Config controls Pool behavior.
type Config struct {
	Concurrency int
	MaxAttempts int
	Backoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	return c
}

// ValidateFunc runs one target through the pipeline.
type ValidateFunc func(ctx context.Context, target string) (validator.Result, error)

// Outcome pairs a target with its final result. Err is the error of the
// last attempt when every attempt failed.
type Outcome struct {
	Target   string
	Result   validator.Result
	Err      error
	Attempts int
}

// Pool fans targets out over a fixed number of goroutines.
type Pool struct {
	run    ValidateFunc
	cfg    Config
	logger *zap.Logger
}

// New constructs a Pool.
func New(run ValidateFunc, cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{run: run, cfg: cfg.withDefaults(), logger: logger}
}

// Run validates every target and returns outcomes in input order. It
// blocks until all targets finish or the context is canceled; canceled
// targets report ctx.Err().
func (p *Pool) Run(ctx context.Context, targets []string) []Outcome {
	outcomes := make([]Outcome, len(targets))
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = Outcome{Target: target, Err: ctx.Err()}
				return
			}
			outcomes[i] = p.runWithRetry(ctx, target)
		}(i, target)
	}
	wg.Wait()
	return outcomes
}

func (p *Pool) runWithRetry(ctx context.Context, target string) Outcome {
	out := Outcome{Target: target}
	backoff := p.cfg.Backoff

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		res, err := p.run(ctx, target)
		out.Result, out.Err = res, err
		if err == nil || !retryable(err) || attempt == p.cfg.MaxAttempts {
			return out
		}
		p.logger.Debug("retrying target",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			out.Err = ctx.Err()
			return out
		}
		backoff *= 2
	}
	return out
}

// retryable reports whether a failure is plausibly transient. Protocol
// and policy failures (bad status, oversized bodies, certificates) are
// deterministic and retrying them wastes the remote's time.
func retryable(err error) bool {
	var failure *fetcher.Failure
	if !errors.As(err, &failure) {
		return false
	}
	switch failure.Kind {
	case fetcher.FailureTimeout, fetcher.FailureTransport:
		return true
	}
	return false
}
