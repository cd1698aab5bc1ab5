// Package sqlite archives fetched candle series in a local SQLite database
// (WAL mode) so they can be replayed through the loop offline.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradeloop/internal/model"
)

// Config configures the archive.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/candles.db"
}

// Archive implements model.CandleArchive.
type Archive struct {
	db *sql.DB
}

var _ model.CandleArchive = (*Archive)(nil)

// DB returns the underlying sql.DB for health checks.
func (a *Archive) DB() *sql.DB { return a.db }

// Open opens (or creates) the archive with WAL mode and schema.
func Open(cfg Config) (*Archive, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened archive at %s", cfg.DBPath)
	return &Archive{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			PRIMARY KEY (instrument, interval, ts)
		);
	`)
	return err
}

// SaveSeries upserts every candle of s in one transaction. Re-fetched
// candles overwrite the stored row (the newest candle may still be forming).
func (a *Archive) SaveSeries(ctx context.Context, s model.Series) error {
	if s.Len() == 0 {
		return nil
	}
	start := time.Now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (instrument, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range s.Candles {
		if _, err := stmt.ExecContext(ctx, s.Instrument, string(s.Interval), c.TS.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("sqlite insert %s@%d: %w", s.Instrument, c.TS.UnixMilli(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	log.Printf("[sqlite] archived %d %s/%s candles in %v", s.Len(), s.Instrument, s.Interval, time.Since(start))
	return nil
}

// LoadSeries reads all archived candles for instrument/interval in ascending
// timestamp order.
func (a *Archive) LoadSeries(ctx context.Context, instrument string, interval model.Interval) (model.Series, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE instrument = ? AND interval = ?
		ORDER BY ts ASC
	`, instrument, string(interval))
	if err != nil {
		return model.Series{}, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	s := model.Series{Instrument: instrument, Interval: interval}
	for rows.Next() {
		var c model.Candle
		var tsMillis int64
		if err := rows.Scan(&tsMillis, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return model.Series{}, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.UnixMilli(tsMillis).UTC()
		s.Candles = append(s.Candles, c)
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, err
	}
	return s, nil
}

// Count returns how many candles are archived for instrument/interval.
func (a *Archive) Count(ctx context.Context, instrument string, interval model.Interval) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candles WHERE instrument = ? AND interval = ?`,
		instrument, string(interval)).Scan(&n)
	return n, err
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
