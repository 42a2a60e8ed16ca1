package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/models"
)

// SQLiteStore implements BarStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ BarStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the bar archive at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", apperrors.ErrDatabaseError, err)
	}

	// Configure connection pool for concurrent scans
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing schema: %v", apperrors.ErrDatabaseError, err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	CREATE TABLE IF NOT EXISTS imports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		source TEXT,
		bars INTEGER NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bars_symbol_timeframe ON bars(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_bars_timestamp ON bars(timestamp);
	CREATE INDEX IF NOT EXISTS idx_imports_symbol ON imports(symbol, timeframe);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBars upserts bars keyed by symbol, timeframe and timestamp.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol, timeframe string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return apperrors.NewDataError("bars", symbol, "insert failed", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBars returns the bars in [from, to], oldest first.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, apperrors.NewDataError("bars", symbol, "query failed", err)
	}
	return scanBars(rows, symbol)
}

// LatestBars returns the newest n bars, oldest first. A non-positive n
// returns every stored bar.
func (s *SQLiteStore) LatestBars(ctx context.Context, symbol, timeframe string, n int) ([]models.Bar, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM bars
			WHERE symbol = ? AND timeframe = ?
			ORDER BY timestamp DESC
			LIMIT ?
		) ORDER BY timestamp ASC
	`, symbol, timeframe, n)
	if err != nil {
		return nil, apperrors.NewDataError("bars", symbol, "query failed", err)
	}
	return scanBars(rows, symbol)
}

func scanBars(rows *sql.Rows, symbol string) ([]models.Bar, error) {
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, apperrors.NewDataError("bars", symbol, "scan failed", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDataError("bars", symbol, "iteration failed", err)
	}
	return bars, nil
}

// Symbols lists the symbols with bars for timeframe, sorted.
func (s *SQLiteStore) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT symbol FROM bars WHERE timeframe = ? ORDER BY symbol
	`, timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: listing symbols: %v", apperrors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("%w: scanning symbol: %v", apperrors.ErrDatabaseError, err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// BarsFreshness returns the timestamp of the most recent bar.
func (s *SQLiteStore) BarsFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM bars WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, apperrors.NewDataError("bars", symbol, "freshness query failed", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return parseTimestamp(latest.String)
}

// RecordImport stores an import record.
func (s *SQLiteStore) RecordImport(ctx context.Context, imp Import) error {
	if imp.ImportedAt.IsZero() {
		imp.ImportedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO imports (symbol, timeframe, source, bars, imported_at)
		VALUES (?, ?, ?, ?, ?)
	`, imp.Symbol, imp.Timeframe, imp.Source, imp.Bars, imp.ImportedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: recording import: %v", apperrors.ErrDatabaseError, err)
	}
	return nil
}

// LastImport returns the most recent import for symbol and timeframe.
func (s *SQLiteStore) LastImport(ctx context.Context, symbol, timeframe string) (*Import, error) {
	imp := Import{Symbol: symbol, Timeframe: timeframe}
	var source sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT source, bars, imported_at FROM imports
		WHERE symbol = ? AND timeframe = ?
		ORDER BY imported_at DESC, id DESC
		LIMIT 1
	`, symbol, timeframe).Scan(&source, &imp.Bars, &imp.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewDataError("imports", symbol, "no import recorded", apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading import: %v", apperrors.ErrDatabaseError, err)
	}
	imp.Source = source.String
	imp.ImportedAt = imp.ImportedAt.UTC()
	return &imp, nil
}

// sqlite returns aggregates over DATETIME columns as text.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized timestamp %q", apperrors.ErrDatabaseError, s)
}
