// Package store provides bar persistence and import.
package store

import (
	"context"
	"time"

	"smc-signals/internal/models"
)

// BarStore defines the interface for bar persistence.
type BarStore interface {
	SaveBars(ctx context.Context, symbol, timeframe string, bars []models.Bar) error
	GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Bar, error)
	LatestBars(ctx context.Context, symbol, timeframe string, n int) ([]models.Bar, error)
	Symbols(ctx context.Context, timeframe string) ([]string, error)
	BarsFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)

	RecordImport(ctx context.Context, imp Import) error
	LastImport(ctx context.Context, symbol, timeframe string) (*Import, error)

	Close() error
}

// Import describes one completed bar import.
type Import struct {
	Symbol     string
	Timeframe  string
	Source     string
	Bars       int
	ImportedAt time.Time
}
