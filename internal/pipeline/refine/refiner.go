package refine

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/lyralign/pkg/audio"
	"github.com/MrWong99/lyralign/pkg/types"
)

// DefaultStrategyTimeout bounds a single strategy invocation. A timeout is
// that strategy's failure mode, not a pipeline error.
const DefaultStrategyTimeout = 2 * time.Minute

// Refiner evaluates its strategy list in priority order until one
// succeeds. The raw transcript is the built-in terminal fallback, so
// Refine always returns a usable Result.
//
// Refiner is stateless with respect to prior runs and safe for concurrent
// use.
type Refiner struct {
	strategies []Strategy
	timeout    time.Duration
}

// Option is a functional option for configuring a Refiner.
type Option func(*Refiner)

// WithStrategyTimeout sets the per-strategy invocation timeout.
// Default: 2 minutes.
func WithStrategyTimeout(d time.Duration) Option {
	return func(r *Refiner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a Refiner that tries strategies in the given order before
// falling back to the raw transcript. A nil or empty list is valid and
// yields pure transcript passthrough.
func New(strategies []Strategy, opts ...Option) *Refiner {
	r := &Refiner{
		strategies: strategies,
		timeout:    DefaultStrategyTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Refine upgrades the transcript's timing using the first admissible,
// succeeding strategy.
//
// Strategy failures are recoverable by design: they are logged and the
// next strategy is tried. The recorded Reason reflects why the
// highest-priority (forced-aligner) strategy did not win — either its
// admission gate rejected the audio or its invocation failed — so a
// degraded run is never silently indistinguishable from a fully aligned
// one.
func (r *Refiner) Refine(ctx context.Context, info audio.Info, phrases []types.Phrase) Result {
	var reason types.FallbackReason

	for _, strat := range r.strategies {
		if ok, why := strat.Admit(info); !ok {
			slog.Info("refine: strategy not admitted",
				"strategy", strat.Name(), "reason", why,
				"duration_s", info.DurationSeconds)
			if reason == "" {
				reason = why
			}
			continue
		}

		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		spans, err := strat.Refine(sctx, info, phrases)
		cancel()
		if err != nil {
			slog.Warn("refine: strategy failed, trying next",
				"strategy", strat.Name(), "error", err)
			if reason == "" {
				reason = types.FallbackAlignerError
			}
			continue
		}

		res := Result{
			Spans:    spans,
			Tier:     strat.Tier(),
			Strategy: strat.Name(),
		}
		if res.Tier != types.TierAligned {
			res.Reason = reason
		}
		return res
	}

	// Terminal fallback: the transcript phrases unchanged. Cannot fail.
	return Result{
		Spans:    phrases,
		Tier:     types.TierTranscriptFallback,
		Reason:   reason,
		Strategy: "raw-transcript",
	}
}
