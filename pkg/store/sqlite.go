package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"netsentinel/pkg/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS samples(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	target_host TEXT NOT NULL,
	external_latency_ms REAL NOT NULL,
	jitter_ms REAL NOT NULL,
	packet_loss_pct REAL NOT NULL,
	gateway_latency_ms REAL NOT NULL,
	gateway_address TEXT NOT NULL DEFAULT '',
	dns_latency_ms REAL,
	status TEXT NOT NULL,
	forensic_trace TEXT NOT NULL DEFAULT '',
	download_mbps REAL NOT NULL DEFAULT 0,
	upload_mbps REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp);`

const sampleColumns = `id, timestamp, target_host, external_latency_ms, jitter_ms, packet_loss_pct,
	gateway_latency_ms, gateway_address, dns_latency_ms, status, forensic_trace, download_mbps, upload_mbps`

// SQLiteStore keeps samples in a local sqlite file. Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, sample *model.Sample) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var dns sql.NullFloat64
	if sample.DNSLatencyMs != nil {
		dns = sql.NullFloat64{Float64: *sample.DNSLatencyMs, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO samples(timestamp, target_host, external_latency_ms, jitter_ms,
		packet_loss_pct, gateway_latency_ms, gateway_address, dns_latency_ms, status, forensic_trace, download_mbps, upload_mbps)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		sample.Timestamp.UnixNano(), sample.TargetHost, sample.ExternalLatencyMs, sample.JitterMs,
		sample.PacketLossPct, sample.GatewayLatencyMs, sample.GatewayAddress, dns, string(sample.Status),
		sample.ForensicTrace, sample.DownloadMbps, sample.UploadMbps)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sample id: %w", err)
	}
	sample.ID = uint64(id)
	return nil
}

func (s *SQLiteStore) QueryRecent(ctx context.Context, limit int) ([]model.Sample, error) {
	if limit <= 0 {
		return []model.Sample{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT `+sampleColumns+` FROM samples ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	out := make([]model.Sample, 0, limit)
	for rows.Next() {
		var (
			sm     model.Sample
			ts     int64
			dns    sql.NullFloat64
			status string
		)
		if err := rows.Scan(&sm.ID, &ts, &sm.TargetHost, &sm.ExternalLatencyMs, &sm.JitterMs, &sm.PacketLossPct,
			&sm.GatewayLatencyMs, &sm.GatewayAddress, &dns, &status, &sm.ForensicTrace, &sm.DownloadMbps, &sm.UploadMbps); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sm.Timestamp = time.Unix(0, ts).UTC()
		if dns.Valid {
			v := dns.Float64
			sm.DNSLatencyMs = &v
		}
		if sm.Status, err = model.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("sample %d: %w", sm.ID, err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
