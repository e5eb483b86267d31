// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/mirror-bot/internal/storage/models"
)

// Storage persists the trade history. It is optional: the bot runs fully
// in-memory when no database is configured.
type Storage interface {
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, orderID string) (*models.Trade, error)
	ListTrades(ctx context.Context, mint string, limit, offset int) ([]*models.Trade, error)

	RunMigrations() error
	Close() error
}
