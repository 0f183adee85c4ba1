package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/store"
)

// Store is the sqlite-backed store.Store implementation.
type Store struct {
	db *DB
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an already-migrated DB as a store.Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// GetMetricDigest returns the station-level digest on record: the combined
// digest over every channel_id's recorded value digest for (date,
// metric_name, station), ordered by channel_id, or nil if no rows are
// recorded for that metric (spec §6 get_metric_digest).
func (s *Store) GetMetricDigest(ctx context.Context, date seismic.Date, metricName, station string) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, digest FROM metric_values
		WHERE date = ? AND metric_name = ? AND station = ?
		ORDER BY channel_id`,
		date.String(), metricName, station)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get metric digest: %w", err)
	}
	defer rows.Close()

	acc := seismic.NewDigestAccumulator()
	var n int
	for rows.Next() {
		var channelID string
		var digest []byte
		if err := rows.Scan(&channelID, &digest); err != nil {
			return nil, fmt.Errorf("sqlite: get metric digest: scan row: %w", err)
		}
		acc.WriteString(channelID)
		acc.WriteBytes(digest)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get metric digest: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return acc.Sum(), nil
}

// GetMetricValueDigest implements store.Store.
func (s *Store) GetMetricValueDigest(ctx context.Context, date seismic.Date, metricName, station, channelID string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT digest FROM metric_values
		WHERE date = ? AND metric_name = ? AND station = ? AND channel_id = ?`,
		date.String(), metricName, station, channelID)

	var digest []byte
	if err := row.Scan(&digest); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get metric value digest: %w", err)
	}
	return digest, nil
}

// InsertMetricData implements store.Store, upserting one row per channel.
func (s *Store) InsertMetricData(ctx context.Context, date seismic.Date, metricName, station string, rows []store.MetricRow) error {
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin tx: %w", err)
		}
		defer tx.Rollback()

		now := time.Now().UnixNano()
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO metric_values (date, metric_name, station, channel_id, value, digest, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (date, metric_name, station, channel_id)
				DO UPDATE SET value = excluded.value, digest = excluded.digest, updated_at = excluded.updated_at`,
				date.String(), metricName, station, r.ChannelID, r.Value, r.Digest, now)
			if err != nil {
				return fmt.Errorf("sqlite: insert metric row %s: %w", r.ChannelID, err)
			}
		}
		return tx.Commit()
	})
}

// SelectAll returns a line-delimited text dump of every row recorded
// between start and end, inclusive. The exact encoding is opaque to callers
// per spec §6; this adapter renders comma-separated fields, one row per
// line.
func (s *Store) SelectAll(ctx context.Context, start, end seismic.Date) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, metric_name, station, channel_id, value, digest
		FROM metric_values
		WHERE date >= ? AND date <= ?
		ORDER BY date, metric_name, station, channel_id`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: select all: %w", err)
	}
	defer rows.Close()

	var out []byte
	for rows.Next() {
		var date, metricName, station, channelID string
		var value float64
		var digest []byte
		if err := rows.Scan(&date, &metricName, &station, &channelID, &value, &digest); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		line := fmt.Sprintf("%s,%s,%s,%s,%g,%x\n", date, metricName, station, channelID, value, digest)
		out = append(out, line...)
	}
	return out, rows.Err()
}
