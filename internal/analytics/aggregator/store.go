// Package aggregator keeps a history of the service's aggregated analytics
// (outcomes, latencies, popular hosts and terms) in PostgreSQL. Analysis
// results themselves are never stored.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	insertSnapshot = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	pruneSnapshots = `DELETE FROM analytics_snapshots WHERE id NOT IN (
		SELECT id FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1)`
	selectSnapshots = `SELECT id, captured_at, data FROM analytics_snapshots
		ORDER BY captured_at DESC, id DESC LIMIT $1`
)

// Snapshot is one stored row.
type Snapshot struct {
	ID         int64                     `json:"id"`
	CapturedAt time.Time                 `json:"captured_at"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

type Store struct {
	client *postgres.Client
	retain int
	logger *slog.Logger
}

// NewStore returns a Store on client. When retain is positive every save
// prunes all but the newest retain snapshots.
func NewStore(client *postgres.Client, retain int) *Store {
	return &Store{
		client: client,
		retain: retain,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot inserts stats and applies the retention limit in the same
// transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}

	var pruned int64
	err = s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSnapshot, data, time.Now().UTC()); err != nil {
			return err
		}
		if s.retain <= 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx, pruneSnapshots, s.retain)
		if err != nil {
			return err
		}
		pruned, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Debug("analytics snapshot saved",
		"total_analyses", stats.TotalAnalyses,
		"total_terms_counted", stats.TotalTermsCounted,
		"pruned", pruned,
	)
	return nil
}

// LatestSnapshot returns the newest snapshot, or nil when none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	snapshots, err := s.ListSnapshots(ctx, 1)
	if err != nil || len(snapshots) == 0 {
		return nil, err
	}
	return &snapshots[0], nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows whose
// payload no longer decodes are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.client.DB.QueryContext(ctx, selectSnapshots, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		var (
			snap Snapshot
			data []byte
		)
		if err := rows.Scan(&snap.ID, &snap.CapturedAt, &data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "id", snap.ID, "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	return snapshots, nil
}

// Run saves a snapshot of src every interval until ctx is done, then saves
// a final one. Ticks on which nothing was analysed since the previous save
// are skipped.
func (s *Store) Run(ctx context.Context, src analytics.StatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic snapshots started", "interval", interval, "retain", s.retain)

	last := int64(-1)
	save := func(ctx context.Context, force bool) {
		stats := src.Stats()
		if !force && stats.TotalAnalyses == last {
			return
		}
		if err := s.SaveSnapshot(ctx, stats); err != nil {
			s.logger.Error("snapshot failed", "error", err)
			return
		}
		last = stats.TotalAnalyses
	}

	for {
		select {
		case <-ticker.C:
			save(ctx, false)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			save(final, true)
			cancel()
			return
		}
	}
}
