// Package catalog persists tracks and their alignment runs in PostgreSQL.
//
// The catalog is optional: the service runs fully without it, losing only
// the queryable history of past runs. Tracks are keyed by audio content
// identity, so a re-encoded or re-tagged upload of the same recording is
// a different track while byte-identical audio always hits the same row.
package catalog

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/lyralign/pkg/types"
)

// Schema is the SQL DDL for the catalog tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS tracks (
    identity         TEXT         PRIMARY KEY,
    title            TEXT         NOT NULL DEFAULT '',
    artist           TEXT         NOT NULL DEFAULT '',
    lyrics           TEXT         NOT NULL,
    duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tracks_artist_title ON tracks (artist, title);

CREATE TABLE IF NOT EXISTS alignment_runs (
    id               TEXT         PRIMARY KEY,
    track_identity   TEXT         NOT NULL REFERENCES tracks (identity) ON DELETE CASCADE,
    tier             TEXT         NOT NULL,
    reason           TEXT         NOT NULL DEFAULT '',
    strategy         TEXT         NOT NULL DEFAULT '',
    line_count       INTEGER      NOT NULL DEFAULT 0,
    lrc              TEXT         NOT NULL DEFAULT '',
    duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alignment_runs_track
    ON alignment_runs (track_identity, created_at DESC);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Track is one catalogued recording plus its printed lyric text.
type Track struct {
	// Identity is the audio content identity (hex SHA-256).
	Identity string

	// Title and Artist are display metadata, free-form.
	Title  string
	Artist string

	// Lyrics is the printed lyric text the track is aligned against.
	Lyrics string

	// DurationSeconds is the probed audio duration.
	DurationSeconds float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the track for persistence.
func (t *Track) Validate() error {
	var errs []error
	if _, err := hex.DecodeString(t.Identity); err != nil || len(t.Identity) != 64 {
		errs = append(errs, errors.New("identity must be a 64-char hex digest"))
	}
	if t.Lyrics == "" {
		errs = append(errs, errors.New("lyrics must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("catalog: invalid track: %w", errors.Join(errs...))
	}
	return nil
}

// Run is one completed alignment run for a track.
type Run struct {
	// ID is the run's UUID. Assigned by RecordRun when empty.
	ID string

	// TrackIdentity is the content identity of the aligned track.
	TrackIdentity string

	// Tier, Reason and Strategy mirror the run result metadata.
	Tier     types.TimingTier
	Reason   types.FallbackReason
	Strategy string

	// LineCount is the number of timestamped LRC lines.
	LineCount int

	// LRC is the produced artifact.
	LRC string

	// DurationSeconds is the wall-clock run duration.
	DurationSeconds float64

	CreatedAt time.Time
}

// Store is the PostgreSQL-backed catalog. Safe for concurrent use when
// the underlying DB is (pgxpool.Pool is).
type Store struct {
	db DB
}

// NewStore creates a Store over the given connection or pool. The caller
// is responsible for calling [Store.Migrate] before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Ping verifies catalog connectivity with a trivial query. Used by the
// readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("catalog: ping: %w", err)
	}
	return nil
}

// Migrate executes the [Schema] DDL. Idempotent, safe on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// UpsertTrack creates or replaces a track keyed by its content identity.
func (s *Store) UpsertTrack(ctx context.Context, track *Track) error {
	if err := track.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO tracks (identity, title, artist, lyrics, duration_seconds)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (identity) DO UPDATE SET
			title = EXCLUDED.title,
			artist = EXCLUDED.artist,
			lyrics = EXCLUDED.lyrics,
			duration_seconds = EXCLUDED.duration_seconds,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		track.Identity, track.Title, track.Artist, track.Lyrics, track.DurationSeconds,
	).Scan(&track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert track: %w", err)
	}
	return nil
}

// GetTrack retrieves a track by content identity. Returns (nil, nil) when
// no such track exists.
func (s *Store) GetTrack(ctx context.Context, identity string) (*Track, error) {
	const query = `
		SELECT identity, title, artist, lyrics, duration_seconds, created_at, updated_at
		FROM tracks
		WHERE identity = $1`

	var track Track
	err := s.db.QueryRow(ctx, query, identity).Scan(
		&track.Identity, &track.Title, &track.Artist, &track.Lyrics,
		&track.DurationSeconds, &track.CreatedAt, &track.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: get track %q: %w", identity, err)
	}
	return &track, nil
}

// RecordRun persists a completed run. A missing ID gets a fresh UUID.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.TrackIdentity == "" {
		return errors.New("catalog: run has no track identity")
	}
	if !run.Tier.IsValid() {
		return fmt.Errorf("catalog: run has invalid tier %q", run.Tier)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO alignment_runs (
			id, track_identity, tier, reason, strategy, line_count, lrc, duration_seconds
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		run.ID, run.TrackIdentity, string(run.Tier), string(run.Reason),
		run.Strategy, run.LineCount, run.LRC, run.DurationSeconds,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("catalog: record run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns (nil, nil) when not found.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	const query = `
		SELECT id, track_identity, tier, reason, strategy, line_count, lrc,
		       duration_seconds, created_at
		FROM alignment_runs
		WHERE id = $1`

	run, err := scanRun(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: get run %q: %w", id, err)
	}
	return run, nil
}

// ListRuns returns a track's runs, newest first. limit <= 0 means no
// limit.
func (s *Store) ListRuns(ctx context.Context, identity string, limit int) ([]Run, error) {
	const base = `
		SELECT id, track_identity, tier, reason, strategy, line_count, lrc,
		       duration_seconds, created_at
		FROM alignment_runs
		WHERE track_identity = $1
		ORDER BY created_at DESC`

	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.Query(ctx, base+` LIMIT $2`, identity, limit)
	} else {
		rows, err = s.db.Query(ctx, base, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: list runs scan: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	return runs, nil
}

// LatestLRC returns the most recent LRC artifact for a track. ok is false
// when the track has no recorded runs.
func (s *Store) LatestLRC(ctx context.Context, identity string) (lrc string, ok bool, err error) {
	const query = `
		SELECT lrc
		FROM alignment_runs
		WHERE track_identity = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err = s.db.QueryRow(ctx, query, identity).Scan(&lrc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("catalog: latest lrc %q: %w", identity, err)
	}
	return lrc, true, nil
}

// scanRun reads one alignment_runs row.
func scanRun(row pgx.Row) (*Run, error) {
	var (
		run          Run
		tier, reason string
	)
	err := row.Scan(
		&run.ID, &run.TrackIdentity, &tier, &reason, &run.Strategy,
		&run.LineCount, &run.LRC, &run.DurationSeconds, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Tier = types.TimingTier(tier)
	run.Reason = types.FallbackReason(reason)
	return &run, nil
}
