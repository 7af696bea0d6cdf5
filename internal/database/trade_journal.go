package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"semidex-go/internal/models"
	"semidex-go/internal/swap"
)

// TradeJournal records trades in the trades table.
type TradeJournal struct {
	db *gorm.DB
}

var _ swap.Journal = (*TradeJournal)(nil)

// NewTradeJournal creates a TradeJournal on db.
func NewTradeJournal(db *gorm.DB) *TradeJournal {
	return &TradeJournal{db: db}
}

// RecordTrade stores a trade record.
func (j *TradeJournal) RecordTrade(ctx context.Context, rec swap.TradeRecord) error {
	trade := models.Trade{
		TradeID:      rec.ID,
		PairID:       uint64(rec.PairID),
		Caller:       rec.Caller.String(),
		Direction:    string(rec.Direction),
		InputToken:   rec.InputToken.String(),
		OutputToken:  rec.OutputToken.String(),
		InputAmount:  rec.InputAmount.String(),
		OutputAmount: rec.OutputAmount.String(),
		Status:       rec.Status,
		Error:        rec.Error,
		ExecutedAt:   rec.ExecutedAt,
	}
	if err := j.db.WithContext(ctx).Create(&trade).Error; err != nil {
		return fmt.Errorf("failed to save trade %s: %w", rec.ID, err)
	}
	return nil
}

// TradeFilter narrows ListTrades. Zero values match everything.
type TradeFilter struct {
	PairID *uint64
	Caller string
	Limit  int
}

// ListTrades returns trades, most recent first.
func (j *TradeJournal) ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	q := j.db.WithContext(ctx).Order("executed_at desc").Order("id desc")
	if filter.PairID != nil {
		q = q.Where("pair_id = ?", *filter.PairID)
	}
	if filter.Caller != "" {
		q = q.Where("caller = ?", filter.Caller)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var trades []models.Trade
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get trades from database: %w", err)
	}
	return trades, nil
}
