package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadySeen reports a claim on a url some earlier claim already recorded.
var ErrAlreadySeen = errors.New("url already in ledger")

// Ledger records every source url the pipeline has ever claimed.
type Ledger interface {
	HasSeen(ctx context.Context, url string) (bool, error)
	// MarkSeen is insert-if-absent. inserted is false when url was already present.
	MarkSeen(ctx context.Context, url string) (inserted bool, err error)
}

// SQLLedger keeps the ledger in the processed_urls table.
type SQLLedger struct {
	db *gorm.DB
}

func NewSQLLedger(db *gorm.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

func (l *SQLLedger) HasSeen(ctx context.Context, url string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("url = ?", url).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return n > 0, nil
}

func (l *SQLLedger) MarkSeen(ctx context.Context, url string) (bool, error) {
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.LedgerEntry{URL: url, ProcessedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("mark url seen: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
