package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lyralign/internal/catalog"
	"github.com/MrWong99/lyralign/internal/observe"
	"github.com/MrWong99/lyralign/internal/pipeline"
	"github.com/MrWong99/lyralign/pkg/audio"
	"github.com/MrWong99/lyralign/pkg/types"
)

// DefaultWorkers is the default worker pool size. Runs are model-bound,
// so a small pool suffices; raise it only with enough memory for several
// warm models.
const DefaultWorkers = 2

// DefaultQueueSize bounds the pending-job queue. Submissions beyond it
// are rejected rather than buffered without limit.
const DefaultQueueSize = 64

// ErrQueueFull is returned by Enqueue when the pending queue is at
// capacity.
var ErrQueueFull = errors.New("jobs: queue is full")

// PoolConfig configures a worker [Pool].
type PoolConfig struct {
	// Workers is the number of concurrent pipeline runs. Default: 2.
	Workers int

	// QueueSize bounds pending submissions. Default: 64.
	QueueSize int

	// OutputDir is where LRC artifacts are written, one file per content
	// identity.
	OutputDir string

	// Catalog, when non-nil, receives track and run records for every
	// completed run.
	Catalog *catalog.Store

	// Metrics is the metrics sink. Default: observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Pool consumes queued jobs with a fixed number of workers, each running
// the full alignment pipeline for one job at a time.
type Pool struct {
	runner  *pipeline.Runner
	store   *Store
	queue   chan string
	cfg     PoolConfig
	metrics *observe.Metrics
}

// NewPool creates a worker pool feeding store's jobs through runner.
func NewPool(runner *pipeline.Runner, store *Store, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Pool{
		runner:  runner,
		store:   store,
		queue:   make(chan string, cfg.QueueSize),
		cfg:     cfg,
		metrics: cfg.Metrics,
	}
}

// Enqueue creates a queued job for sub and hands it to the pool. Returns
// ErrQueueFull when the queue is at capacity.
func (p *Pool) Enqueue(ctx context.Context, sub Submission) (Job, error) {
	job := p.store.Create(sub)
	select {
	case p.queue <- job.ID:
		p.metrics.QueueDepth.Add(ctx, 1)
		return job, nil
	default:
		p.store.markFailed(job.ID, ErrQueueFull.Error())
		return Job{}, ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled and all
// in-flight jobs finish. Queued-but-unstarted jobs stay queued; a
// restarted process sees them as lost, which the client observes as a
// never-terminal job and resubmits.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			log := slog.With("worker", worker)
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case id := <-p.queue:
					p.metrics.QueueDepth.Add(ctx, -1)
					p.process(ctx, log, id)
				}
			}
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// process executes one job end to end.
func (p *Pool) process(ctx context.Context, log *slog.Logger, id string) {
	job, err := p.store.Get(id)
	if err != nil {
		log.Error("queued job vanished from store", "job_id", id)
		return
	}
	p.store.markProcessing(id)
	log.Info("job started", "job_id", id, "audio", job.Submission.AudioPath)

	result, err := p.runner.Run(ctx, pipeline.Request{
		AudioPath:   job.Submission.AudioPath,
		Lyrics:      job.Submission.Lyrics,
		Language:    job.Submission.Language,
		BypassCache: job.Submission.BypassCache,
	})
	if err != nil {
		p.store.markFailed(id, err.Error())
		log.Warn("job failed", "job_id", id, "error", err)
		return
	}

	outputPath, err := p.writeArtifact(result)
	if err != nil {
		p.store.markFailed(id, err.Error())
		log.Warn("job failed writing artifact", "job_id", id, "error", err)
		return
	}

	p.record(ctx, log, job, result)
	p.store.markCompleted(id, result, outputPath)
	log.Info("job completed",
		"job_id", id, "tier", result.Tier, "lines", result.LineCount, "output", outputPath)
}

// writeArtifact persists the LRC next to earlier runs of the same audio.
func (p *Pool) writeArtifact(result *types.RunResult) (string, error) {
	if p.cfg.OutputDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("jobs: create output dir: %w", err)
	}
	path := filepath.Join(p.cfg.OutputDir, result.ContentIdentity+".lrc")
	if err := os.WriteFile(path, []byte(result.LRC), 0o644); err != nil {
		return "", fmt.Errorf("jobs: write artifact: %w", err)
	}
	return path, nil
}

// record persists the track and run to the catalog. Catalog failures are
// logged, never fatal to the job.
func (p *Pool) record(ctx context.Context, log *slog.Logger, job Job, result *types.RunResult) {
	if p.cfg.Catalog == nil {
		return
	}

	info, err := audio.Probe(job.Submission.AudioPath)
	if err != nil {
		// The pipeline probed it moments ago; only a racing file removal
		// gets here.
		log.Warn("catalog probe failed", "error", err)
		return
	}

	track := &catalog.Track{
		Identity:        result.ContentIdentity,
		Title:           job.Submission.Title,
		Artist:          job.Submission.Artist,
		Lyrics:          job.Submission.Lyrics,
		DurationSeconds: info.DurationSeconds,
	}
	if err := p.cfg.Catalog.UpsertTrack(ctx, track); err != nil {
		log.Warn("catalog track upsert failed", "error", err)
		return
	}

	run := &catalog.Run{
		ID:              job.ID,
		TrackIdentity:   result.ContentIdentity,
		Tier:            result.Tier,
		Reason:          result.Reason,
		Strategy:        result.Strategy,
		LineCount:       result.LineCount,
		LRC:             result.LRC,
		DurationSeconds: result.DurationSeconds,
	}
	if err := p.cfg.Catalog.RecordRun(ctx, run); err != nil {
		log.Warn("catalog run insert failed", "error", err)
	}
}
