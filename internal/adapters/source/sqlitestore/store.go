// Package sqlitestore keeps incident datasets in a SQLite file and serves
// them back as a registry source.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	slug        TEXT PRIMARY KEY,
	fidelity    TEXT NOT NULL,
	location    TEXT NOT NULL,
	has_counts  INTEGER NOT NULL,
	imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS incidents (
	slug         TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	constabulary TEXT NOT NULL,
	crime_type   TEXT NOT NULL,
	month        TEXT NOT NULL,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	count        INTEGER,
	PRIMARY KEY (slug, seq)
);
CREATE TABLE IF NOT EXISTS constabularies (
	seq  INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
`

// Store is a SQLite-backed dataset store.
type Store struct {
	db *sql.DB
}

var _ registry.Source = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name returns "sqlite".
func (s *Store) Name() string { return "sqlite" }

// SaveDataset replaces the dataset stored under key.Slug.
func (s *Store) SaveDataset(ctx context.Context, key registry.Key, ds *model.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM incidents WHERE slug = ?`, key.Slug); err != nil {
		return fmt.Errorf("delete incidents %s: %w", key.Slug, err)
	}
	hasCounts := 0
	if ds.HasCounts {
		hasCounts = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO datasets (slug, fidelity, location, has_counts) VALUES (?, ?, ?, ?)`,
		key.Slug, string(ds.Fidelity), key.Location, hasCounts,
	); err != nil {
		return fmt.Errorf("save dataset %s: %w", key.Slug, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO incidents
		(slug, seq, constabulary, crime_type, month, latitude, longitude, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range ds.Records {
		var count sql.NullInt64
		if r.HasCount {
			count = sql.NullInt64{Int64: int64(r.Count), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, key.Slug, i, r.Constabulary, r.CrimeType, r.Month,
			r.Latitude, r.Longitude, count); err != nil {
			return fmt.Errorf("insert incident %s/%d: %w", key.Slug, i, err)
		}
	}
	return tx.Commit()
}

// SaveConstabularies replaces the stored constabulary list.
func (s *Store) SaveConstabularies(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM constabularies`); err != nil {
		return fmt.Errorf("delete constabularies: %w", err)
	}
	for i, n := range names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO constabularies (seq, name) VALUES (?, ?)`, i, n); err != nil {
			return fmt.Errorf("insert constabulary %q: %w", n, err)
		}
	}
	return tx.Commit()
}

// LoadDataset returns the dataset stored under key.Slug, records in
// their original order.
func (s *Store) LoadDataset(ctx context.Context, key registry.Key) (*model.Dataset, error) {
	ds := &model.Dataset{Fidelity: key.Fidelity}
	var fidelity string
	var hasCounts int
	err := s.db.QueryRowContext(ctx,
		`SELECT fidelity, location, has_counts FROM datasets WHERE slug = ?`, key.Slug,
	).Scan(&fidelity, &ds.Location, &hasCounts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Slug)
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", key.Slug, err)
	}
	ds.HasCounts = hasCounts != 0
	if ds.Fidelity == "" {
		ds.Fidelity = model.Fidelity(fidelity)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT constabulary, crime_type, month, latitude, longitude, count
		FROM incidents WHERE slug = ? ORDER BY seq`, key.Slug)
	if err != nil {
		return nil, fmt.Errorf("query incidents %s: %w", key.Slug, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Record
		var count sql.NullInt64
		if err := rows.Scan(&r.Constabulary, &r.CrimeType, &r.Month, &r.Latitude, &r.Longitude, &count); err != nil {
			return nil, fmt.Errorf("scan incident %s: %w", key.Slug, err)
		}
		if count.Valid {
			r.Count, r.HasCount = int(count.Int64), true
		}
		ds.Records = append(ds.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents %s: %w", key.Slug, err)
	}
	return ds, nil
}

// LoadConstabularies returns the stored constabulary list.
func (s *Store) LoadConstabularies(ctx context.Context, _ registry.Key) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM constabularies ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query constabularies: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan constabulary: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: constabularies", ErrNotFound)
	}
	return names, nil
}
