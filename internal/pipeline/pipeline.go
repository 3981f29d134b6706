// Package pipeline orchestrates a full alignment run: transcribe the
// audio, refine the timing, map spans onto the printed lyric lines, and
// render the LRC artifact.
//
// Stages within one run are strictly sequential — each stage's input is
// the previous stage's complete output — and cancellation is checked at
// stage boundaries. The two ML stages are wrapped in the result cache, so
// re-submission of byte-identical audio short-circuits them entirely and
// a run is idempotent per content identity.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/lyralign/internal/cache"
	"github.com/MrWong99/lyralign/internal/lrc"
	"github.com/MrWong99/lyralign/internal/observe"
	"github.com/MrWong99/lyralign/internal/pipeline/linemap"
	"github.com/MrWong99/lyralign/internal/pipeline/refine"
	"github.com/MrWong99/lyralign/pkg/audio"
	"github.com/MrWong99/lyralign/pkg/provider/asr"
	"github.com/MrWong99/lyralign/pkg/types"
)

// Fatal run errors. Everything else the pipeline absorbs or degrades.
var (
	// ErrEmptyLyrics: the request carried no usable lyric text.
	ErrEmptyLyrics = errors.New("pipeline: empty lyric text")

	// ErrTranscription: the ASR stage failed, leaving no timing source
	// at all.
	ErrTranscription = errors.New("pipeline: transcription failed")
)

// DefaultStageTimeout bounds a single ML stage invocation.
const DefaultStageTimeout = 10 * time.Minute

// Request describes one alignment run.
type Request struct {
	// AudioPath is the local path of the WAV recording.
	AudioPath string

	// Identity is the audio content identity. When empty it is computed
	// from the audio bytes.
	Identity string

	// Lyrics is the raw printed lyric text, one line per song line.
	Lyrics string

	// Language is the BCP-47 hint passed to both ML engines.
	Language string

	// BypassCache forces recomputation of every stage. Fresh results
	// are still written back to the cache.
	BypassCache bool
}

// Runner executes alignment runs. It is safe for concurrent use; distinct
// content identities may run in parallel, and the cache serialises
// concurrent computation of the same identity and stage.
type Runner struct {
	asr     asr.Provider
	refiner *refine.Refiner
	cache   *cache.Store
	metrics *observe.Metrics

	// mu guards the tunables below, which [Retune] may swap at runtime.
	mu           sync.RWMutex
	mapper       *linemap.Mapper
	stageTimeout time.Duration
	vad          bool
	promptLyrics bool
}

// Option is a functional option for configuring a Runner.
type Option func(*Runner)

// WithStageTimeout sets the per-ML-stage timeout. Default: 10 minutes.
// A stage timeout is that stage's failure mode, not a pipeline error.
func WithStageTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stageTimeout = d
		}
	}
}

// WithVAD enables voice-activity filtering during transcription.
func WithVAD(enabled bool) Option {
	return func(r *Runner) { r.vad = enabled }
}

// WithLyricsPrompt primes the ASR pass with the known lyric text. This
// biases recognition towards the expected vocabulary without ever
// substituting the lyrics for what was actually sung.
func WithLyricsPrompt(enabled bool) Option {
	return func(r *Runner) { r.promptLyrics = enabled }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner from its collaborators.
func New(asrProvider asr.Provider, refiner *refine.Refiner, mapper *linemap.Mapper, store *cache.Store, opts ...Option) *Runner {
	r := &Runner{
		asr:          asrProvider,
		refiner:      refiner,
		mapper:       mapper,
		cache:        store,
		stageTimeout: DefaultStageTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Retune swaps the hot-reloadable tunables on a live Runner. A nil mapper
// keeps the current one. In-flight runs finish with the settings they
// started with.
func (r *Runner) Retune(mapper *linemap.Mapper, opts ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mapper != nil {
		r.mapper = mapper
	}
	for _, o := range opts {
		o(r)
	}
}

// tuning returns a consistent snapshot of the runtime tunables.
func (r *Runner) tuning() (mapper *linemap.Mapper, stageTimeout time.Duration, vad, promptLyrics bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mapper, r.stageTimeout, r.vad, r.promptLyrics
}

// Run executes the full pipeline for req and returns the terminal run
// result. Only fatal conditions return an error: ASR failure, empty
// lyrics, unreadable or zero-length audio. Aligner-side degradation is
// reported through the result's Tier and Reason instead.
func (r *Runner) Run(ctx context.Context, req Request) (*types.RunResult, error) {
	started := time.Now()

	lines := types.ParseLyrics(req.Lyrics)
	if len(lines) == 0 {
		return nil, ErrEmptyLyrics
	}

	info, err := audio.Probe(req.AudioPath)
	if err != nil {
		return nil, err
	}

	identity := req.Identity
	if identity == "" {
		if identity, err = audio.ContentIdentity(req.AudioPath); err != nil {
			return nil, err
		}
	}

	r.metrics.ActiveRuns.Add(ctx, 1)
	defer r.metrics.ActiveRuns.Add(ctx, -1)

	log := slog.With("identity", identity, "audio", req.AudioPath)
	log.Info("pipeline run starting", "lines", len(lines), "duration_s", info.DurationSeconds)

	// --- Stage 1: transcribe ---
	phrases, err := r.transcribeStage(ctx, identity, info, req, lines)
	if err != nil {
		r.recordOutcome(ctx, "failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		r.recordOutcome(ctx, "failed")
		return nil, fmt.Errorf("pipeline: cancelled after transcription: %w", err)
	}

	// --- Stage 2: refine ---
	refined, err := r.refineStage(ctx, identity, info, req, phrases)
	if err != nil {
		// Only cache/serialisation plumbing can fail here; refinement
		// itself always degrades instead of erroring.
		r.recordOutcome(ctx, "failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		r.recordOutcome(ctx, "failed")
		return nil, fmt.Errorf("pipeline: cancelled after refinement: %w", err)
	}

	// --- Stage 3: map ---
	mapStart := time.Now()
	mapper, _, _, _ := r.tuning()
	aligned := mapper.Map(refined.Spans, lines)
	r.recordStage(ctx, string(types.StageMapped), "ok", time.Since(mapStart))

	// --- Stage 4: format ---
	text, count := lrc.Format(aligned)

	result := &types.RunResult{
		ContentIdentity: identity,
		LRC:             text,
		LineCount:       count,
		Tier:            refined.Tier,
		Reason:          refined.Reason,
		Strategy:        refined.Strategy,
		DurationSeconds: time.Since(started).Seconds(),
	}

	r.metrics.RefineStrategies.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", refined.Strategy),
		attribute.String("tier", string(refined.Tier)),
	))
	r.metrics.RunDuration.Record(ctx, result.DurationSeconds)
	r.recordOutcome(ctx, "completed")

	log.Info("pipeline run completed",
		"tier", result.Tier, "strategy", result.Strategy,
		"lines_out", result.LineCount, "duration_s", result.DurationSeconds)
	return result, nil
}

// transcribeStage runs (or replays) the ASR stage through the cache.
func (r *Runner) transcribeStage(ctx context.Context, identity string, info audio.Info, req Request, lines []types.LyricLine) ([]types.Phrase, error) {
	_, stageTimeout, vad, promptLyrics := r.tuning()
	data, hit, err := r.cache.Do(ctx, identity, types.StageTranscribed, req.BypassCache,
		func(ctx context.Context) ([]byte, error) {
			opts := asr.TranscribeOptions{
				Language: req.Language,
				VAD:      vad,
			}
			if promptLyrics {
				opts.Prompt = req.Lyrics
			}
			sctx, cancel := context.WithTimeout(ctx, stageTimeout)
			defer cancel()

			start := time.Now()
			phrases, err := r.asr.Transcribe(sctx, info.Path, opts)
			r.recordStage(ctx, string(types.StageTranscribed), statusOf(err), time.Since(start))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
			}
			return json.Marshal(phrases)
		})
	r.recordCacheLookup(ctx, types.StageTranscribed, hit)
	if err != nil {
		return nil, err
	}

	var phrases []types.Phrase
	if err := json.Unmarshal(data, &phrases); err != nil {
		return nil, fmt.Errorf("pipeline: decode cached transcript: %w", err)
	}
	return phrases, nil
}

// refineStage runs (or replays) the alignment-refinement stage through
// the cache.
func (r *Runner) refineStage(ctx context.Context, identity string, info audio.Info, req Request, phrases []types.Phrase) (*refine.Result, error) {
	data, hit, err := r.cache.Do(ctx, identity, types.StageAligned, req.BypassCache,
		func(ctx context.Context) ([]byte, error) {
			start := time.Now()
			res := r.refiner.Refine(ctx, info, phrases)
			r.recordStage(ctx, string(types.StageAligned), "ok", time.Since(start))
			return json.Marshal(res)
		})
	r.recordCacheLookup(ctx, types.StageAligned, hit)
	if err != nil {
		return nil, err
	}

	res := &refine.Result{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("pipeline: decode cached refinement: %w", err)
	}
	return res, nil
}

func (r *Runner) recordStage(ctx context.Context, stage, status string, elapsed time.Duration) {
	r.metrics.StageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

func (r *Runner) recordCacheLookup(ctx context.Context, stage types.RunStage, hit bool) {
	r.metrics.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.Bool("hit", hit),
	))
}

func (r *Runner) recordOutcome(ctx context.Context, outcome string) {
	r.metrics.RunsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
