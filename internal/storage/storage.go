// Package storage persists fetched trajectories and archived scan results
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/EmmaVellard/SolarConflux/model"
)

// Store wraps SQLite-backed persistence for the trajectory cache and the
// scan archive.
type Store struct {
	DB *sql.DB
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Concurrent cache writes from the fetcher share one connection.
	db.SetMaxOpenConns(1)
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trajectories (
            body TEXT NOT NULL,
            grid_key TEXT NOT NULL,
            source TEXT,
            samples_json TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (body, grid_key)
        );`,
		`CREATE TABLE IF NOT EXISTS scans (
            scan_id TEXT PRIMARY KEY,
            bodies_json TEXT,
            modes_json TEXT,
            record_count INTEGER,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS alignment_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            scan_id TEXT NOT NULL,
            mode TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            bodies_json TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_alignment_records_scan_id ON alignment_records(scan_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// sampleRow is the compact on-disk form of a PositionSample.
type sampleRow struct {
	T   int64   `json:"t"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	R   float64 `json:"r"`
}

// SaveTrajectory stores or replaces the cached trajectory for body on gridKey.
func (s *Store) SaveTrajectory(ctx context.Context, body, gridKey, source string, traj model.Trajectory) error {
	rows := make([]sampleRow, len(traj))
	for i, p := range traj {
		rows[i] = sampleRow{T: p.Time.Unix(), Lon: p.Longitude, Lat: p.Latitude, R: p.DistanceKm}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO trajectories (body, grid_key, source, samples_json)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(body, grid_key) DO UPDATE SET source=excluded.source, samples_json=excluded.samples_json, created_at=CURRENT_TIMESTAMP`,
		body, gridKey, source, string(raw))
	return err
}

// LoadTrajectory returns the cached trajectory for body on gridKey.
func (s *Store) LoadTrajectory(ctx context.Context, body, gridKey string) (model.Trajectory, bool, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, `SELECT samples_json FROM trajectories WHERE body = ? AND grid_key = ?`, body, gridKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rows []sampleRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", body, err)
	}
	traj := make(model.Trajectory, len(rows))
	for i, r := range rows {
		traj[i] = model.PositionSample{Time: time.Unix(r.T, 0).UTC(), Longitude: r.Lon, Latitude: r.Lat, DistanceKm: r.R}
	}
	return traj, true, nil
}

// ScanRecord summarises one archived scan.
type ScanRecord struct {
	ScanID      string
	Bodies      []string
	Modes       []string
	RecordCount int
	CreatedAt   time.Time
}

// ArchiveScan stores the records of one scan in a single transaction.
func (s *Store) ArchiveScan(ctx context.Context, scanID string, bodies, modes []string, records []model.AlignmentRecord) error {
	bodiesJSON, err := json.Marshal(bodies)
	if err != nil {
		return err
	}
	modesJSON, err := json.Marshal(modes)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO scans (scan_id, bodies_json, modes_json, record_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		scanID, string(bodiesJSON), string(modesJSON), len(records), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert scan %s: %w", scanID, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO alignment_records (scan_id, mode, start_time, end_time, bodies_json) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		group, err := json.Marshal([]string(r.Group))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, scanID, string(r.Mode), r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339), string(group)); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	return tx.Commit()
}

// ScanRecords returns the archived records of scanID in insertion order.
func (s *Store) ScanRecords(ctx context.Context, scanID string) ([]model.AlignmentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT mode, start_time, end_time, bodies_json FROM alignment_records WHERE scan_id = ? ORDER BY id`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AlignmentRecord
	for rows.Next() {
		var (
			mode, start, end, group string
		)
		if err := rows.Scan(&mode, &start, &end, &group); err != nil {
			return nil, err
		}
		rec := model.AlignmentRecord{Mode: model.AlignmentMode(mode)}
		if rec.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, err
		}
		if rec.End, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, err
		}
		var names []string
		if err := json.Unmarshal([]byte(group), &names); err != nil {
			return nil, err
		}
		rec.Group = model.Group(names)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListScans returns archived scans, newest first.
func (s *Store) ListScans(ctx context.Context) ([]ScanRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT scan_id, bodies_json, modes_json, record_count, created_at FROM scans ORDER BY created_at DESC, scan_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var (
			rec                 ScanRecord
			bodies, modes, when string
		)
		if err := rows.Scan(&rec.ScanID, &bodies, &modes, &rec.RecordCount, &when); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(bodies), &rec.Bodies)
		_ = json.Unmarshal([]byte(modes), &rec.Modes)
		if t, err := time.Parse(time.RFC3339Nano, when); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
