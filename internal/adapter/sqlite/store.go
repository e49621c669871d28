// Package sqlite stages a run's dataset in a SQLite database so repeated or
// partial runs can be merged by (state, date).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"

	_ "modernc.org/sqlite"
)

// Store upserts datasets into SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not set WAL mode", "error", err)
	}
	if _, err := db.Exec(schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) Close() error { return s.db.Close() }

// Load writes the dataset in one transaction. Monthly rows and CO2 months
// replace earlier rows with the same key; failures and the run summary are
// keyed by run id.
func (s *Store) Load(ctx context.Context, ds domain.Dataset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range domain.Tables {
		if err = upsertTable(ctx, tx, t, ds.Records); err != nil {
			return err
		}
	}
	if err = upsertCO2(ctx, tx, ds.CO2); err != nil {
		return err
	}
	if err = insertRun(ctx, tx, ds.Report, ds.Failures); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("sqlite staged", "records", len(ds.Records), "failures", len(ds.Failures))
	return nil
}

// CountRows returns the number of rows in a staging table.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "temperature", "rainfall", "humidity", "co2", "failures", "runs":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

func upsertTable(ctx context.Context, tx *sql.Tx, t domain.Table, records []domain.MonthlyRecord) error {
	cols := columnNames(t)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "state" || c == "date" {
			continue
		}
		updates = append(updates, c+"=excluded."+c)
	}
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s) ON CONFLICT(state, date) DO UPDATE SET %s",
		t.String(), strings.Join(cols, ","), placeholders, strings.Join(updates, ","))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, t.Values(r)...); err != nil {
			return fmt.Errorf("upsert %s %s %s: %w", t, r.State, r.Date.Format(time.DateOnly), err)
		}
	}
	return nil
}

func upsertCO2(ctx context.Context, tx *sql.Tx, records []domain.CO2Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO co2(year, month, ppm, growth_rate) VALUES(?,?,?,?)
		ON CONFLICT(year, month) DO UPDATE SET ppm=excluded.ppm, growth_rate=excluded.growth_rate`)
	if err != nil {
		return fmt.Errorf("prepare co2: %w", err)
	}
	defer stmt.Close()

	for _, c := range records {
		var growth any
		if c.GrowthRate != nil {
			growth = *c.GrowthRate
		}
		if _, err := stmt.ExecContext(ctx, c.Year, c.Month, c.PPM, growth); err != nil {
			return fmt.Errorf("upsert co2 %d-%02d: %w", c.Year, c.Month, err)
		}
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, r domain.RunReport, failures []domain.Failure) error {
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs(run_id, generated_at, period_start, period_end,
		states, states_completed, failed_chunks, interrupted, co2_records, co2_error) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.GeneratedAt.UTC().Format(time.RFC3339), r.Period.Start.Format(time.DateOnly),
		r.Period.End.Format(time.DateOnly), len(r.States), r.StatesCompleted, r.FailedChunks,
		r.Interrupted, r.CO2Records, r.CO2Error)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM failures WHERE run_id = ?`, r.RunID); err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO failures(run_id, state, zone, chunk, start_date, end_date,
		attempts, reason, permanent) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare failures: %w", err)
	}
	defer stmt.Close()

	for _, f := range failures {
		if _, err := stmt.ExecContext(ctx, r.RunID, f.State, f.Zone, f.Chunk.Index,
			f.Chunk.Range.Start.Format(time.DateOnly), f.Chunk.Range.End.Format(time.DateOnly),
			f.Attempts, f.Reason, f.Permanent); err != nil {
			return fmt.Errorf("insert failure %s chunk %d: %w", f.State, f.Chunk.Index, err)
		}
	}
	return nil
}

func columnNames(t domain.Table) []string {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = strings.ToLower(c.Name)
	}
	return names
}

func sqlType(k domain.ColumnKind) string {
	switch k {
	case domain.KindInt:
		return "INTEGER"
	case domain.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func schema() string {
	var b strings.Builder
	for _, t := range domain.Tables {
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t)
		for _, c := range t.Columns() {
			fmt.Fprintf(&b, "    %s %s,\n", strings.ToLower(c.Name), sqlType(c.Kind))
		}
		b.WriteString("    PRIMARY KEY (state, date)\n);\n")
	}
	b.WriteString(`CREATE TABLE IF NOT EXISTS co2 (
    year INTEGER,
    month INTEGER,
    ppm REAL,
    growth_rate REAL,
    PRIMARY KEY (year, month)
);
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    generated_at TEXT,
    period_start TEXT,
    period_end TEXT,
    states INTEGER,
    states_completed INTEGER,
    failed_chunks INTEGER,
    interrupted INTEGER,
    co2_records INTEGER,
    co2_error TEXT
);
CREATE TABLE IF NOT EXISTS failures (
    run_id TEXT,
    state TEXT,
    zone TEXT,
    chunk INTEGER,
    start_date TEXT,
    end_date TEXT,
    attempts INTEGER,
    reason TEXT,
    permanent INTEGER,
    PRIMARY KEY (run_id, state, chunk)
);
`)
	return b.String()
}
