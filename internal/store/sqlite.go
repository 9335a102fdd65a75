package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crime-atlas/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS builds (
	id          TEXT PRIMARY KEY,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	areas       INTEGER NOT NULL,
	incidents   INTEGER NOT NULL,
	venues      INTEGER NOT NULL,
	first_month TEXT,
	last_month  TEXT
);

CREATE TABLE IF NOT EXISTS areas (
	code        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	local_name  TEXT NOT NULL DEFAULT '',
	population  REAL NOT NULL DEFAULT 0,
	imd_score   REAL NOT NULL DEFAULT 0,
	income      REAL NOT NULL DEFAULT 0,
	employment  REAL NOT NULL DEFAULT 0,
	education   REAL NOT NULL DEFAULT 0,
	health      REAL NOT NULL DEFAULT 0,
	crime       REAL NOT NULL DEFAULT 0,
	no_deprivation INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS incidents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	crime_id   TEXT NOT NULL DEFAULT '',
	month      TEXT NOT NULL,
	category   TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL DEFAULT '',
	area_code  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS venues (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	area_code  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_incidents_month ON incidents(month);
CREATE INDEX IF NOT EXISTS idx_incidents_area_code ON incidents(area_code);
CREATE INDEX IF NOT EXISTS idx_builds_created_at ON builds(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return s.addColumn(ctx, "areas", "no_deprivation", "INTEGER NOT NULL DEFAULT 0")
}

// addColumn adds a column to stores created before it existed.
func (s *SQLiteStore) addColumn(ctx context.Context, table, column, decl string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return eris.Wrapf(err, "sqlite: inspect %s", table)
	}
	if n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return eris.Wrapf(err, "sqlite: add column %s.%s", table, column)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDataset(ctx context.Context, ds *model.Dataset) (*Build, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"incidents", "venues", "areas"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return nil, eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	if err := insertAreas(ctx, tx, ds.Areas); err != nil {
		return nil, err
	}
	if err := insertIncidents(ctx, tx, ds.Incidents); err != nil {
		return nil, err
	}
	if err := insertVenues(ctx, tx, ds.Venues); err != nil {
		return nil, err
	}

	b := &Build{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Areas:     len(ds.Areas),
		Incidents: len(ds.Incidents),
		Venues:    len(ds.Venues),
	}
	for i, inc := range ds.Incidents {
		m := inc.Month.Format(model.MonthLayout)
		if i == 0 || m < b.FirstMonth {
			b.FirstMonth = m
		}
		if m > b.LastMonth {
			b.LastMonth = m
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (id, created_at, areas, incidents, venues, first_month, last_month) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CreatedAt, b.Areas, b.Incidents, b.Venues, b.FirstMonth, b.LastMonth,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert build")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return b, nil
}

func insertAreas(ctx context.Context, tx *sql.Tx, areas []model.Area) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO areas (code, name, local_name, population, imd_score, income, employment, education, health, crime, no_deprivation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare areas")
	}
	defer stmt.Close() //nolint:errcheck

	for _, a := range areas {
		if _, err := stmt.ExecContext(ctx, a.Code, a.Name, a.LocalName, a.Population,
			a.IMDScore, a.Income, a.Employment, a.Education, a.Health, a.Crime, a.NoDeprivation); err != nil {
			return eris.Wrapf(err, "sqlite: insert area %s", a.Code)
		}
	}
	return nil
}

func insertIncidents(ctx context.Context, tx *sql.Tx, incidents []model.Incident) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO incidents (crime_id, month, category, latitude, longitude, location, outcome, area_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare incidents")
	}
	defer stmt.Close() //nolint:errcheck

	for _, inc := range incidents {
		if _, err := stmt.ExecContext(ctx, inc.ID, inc.Month.Format(model.MonthLayout), inc.Category,
			inc.Latitude, inc.Longitude, inc.Location, inc.Outcome, inc.AreaCode); err != nil {
			return eris.Wrap(err, "sqlite: insert incident")
		}
	}
	return nil
}

func insertVenues(ctx context.Context, tx *sql.Tx, venues []model.Venue) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO venues (name, type, latitude, longitude, area_code) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare venues")
	}
	defer stmt.Close() //nolint:errcheck

	for _, v := range venues {
		if _, err := stmt.ExecContext(ctx, v.Name, v.Type, v.Latitude, v.Longitude, v.AreaCode); err != nil {
			return eris.Wrap(err, "sqlite: insert venue")
		}
	}
	return nil
}

func (s *SQLiteStore) LoadDataset(ctx context.Context) (*model.Dataset, error) {
	ds := &model.Dataset{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, local_name, population, imd_score, income, employment, education, health, crime, no_deprivation
		 FROM areas ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query areas")
	}
	for rows.Next() {
		var a model.Area
		if err := rows.Scan(&a.Code, &a.Name, &a.LocalName, &a.Population,
			&a.IMDScore, &a.Income, &a.Employment, &a.Education, &a.Health, &a.Crime, &a.NoDeprivation); err != nil {
			_ = rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan area")
		}
		ds.Areas = append(ds.Areas, a)
	}
	if err := closeRows(rows, "areas"); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT crime_id, month, category, latitude, longitude, location, outcome, area_code
		 FROM incidents ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query incidents")
	}
	for rows.Next() {
		var inc model.Incident
		var month string
		if err := rows.Scan(&inc.ID, &month, &inc.Category, &inc.Latitude, &inc.Longitude,
			&inc.Location, &inc.Outcome, &inc.AreaCode); err != nil {
			_ = rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan incident")
		}
		t, err := time.Parse(model.MonthLayout, month)
		if err != nil {
			_ = rows.Close()
			return nil, eris.Wrapf(err, "sqlite: parse month %q", month)
		}
		inc.Month = t
		ds.Incidents = append(ds.Incidents, inc)
	}
	if err := closeRows(rows, "incidents"); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT name, type, latitude, longitude, area_code FROM venues ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query venues")
	}
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.Name, &v.Type, &v.Latitude, &v.Longitude, &v.AreaCode); err != nil {
			_ = rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan venue")
		}
		ds.Venues = append(ds.Venues, v)
	}
	if err := closeRows(rows, "venues"); err != nil {
		return nil, err
	}

	return ds, nil
}

func (s *SQLiteStore) LatestBuild(ctx context.Context) (*Build, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, areas, incidents, venues, first_month, last_month
		 FROM builds ORDER BY created_at DESC LIMIT 1`)

	var b Build
	var first, last sql.NullString
	err := row.Scan(&b.ID, &b.CreatedAt, &b.Areas, &b.Incidents, &b.Venues, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest build")
	}
	b.FirstMonth, b.LastMonth = first.String, last.String
	return &b, nil
}

func closeRows(rows *sql.Rows, what string) error {
	iterErr := rows.Err()
	closeErr := rows.Close()
	if iterErr != nil {
		return eris.Wrapf(iterErr, "sqlite: iterate %s", what)
	}
	return eris.Wrapf(closeErr, "sqlite: close %s rows", what)
}
