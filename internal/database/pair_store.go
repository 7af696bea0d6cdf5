package database

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"gorm.io/gorm"

	"semidex-go/internal/ledger"
	"semidex-go/internal/models"
	"semidex-go/internal/registry"
)

// PairStore persists registry pairs and NewPair events with gorm.
type PairStore struct {
	db *gorm.DB
}

var _ registry.Store = (*PairStore)(nil)

// NewPairStore creates a PairStore on db.
func NewPairStore(db *gorm.DB) *PairStore {
	return &PairStore{db: db}
}

// LoadPairs returns every stored pair ordered by ID.
func (s *PairStore) LoadPairs(ctx context.Context) ([]registry.Pair, error) {
	var rows []models.Pair
	if err := s.db.WithContext(ctx).Order("pair_id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("could not fetch pairs: %w", err)
	}

	pairs := make([]registry.Pair, 0, len(rows))
	for _, row := range rows {
		rate, err := parseAmount(row.RateAtoB)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", row.PairID, err)
		}
		pairs = append(pairs, registry.Pair{
			ID:       registry.PairID(row.PairID),
			TokenA:   ledger.Address(row.TokenA),
			TokenB:   ledger.Address(row.TokenB),
			RateAtoB: rate,
			ReserveA: ledger.Address(row.ReserveA),
			ReserveB: ledger.Address(row.ReserveB),
		})
	}
	return pairs, nil
}

// LoadEvents returns the NewPair audit log ordered by pair ID.
func (s *PairStore) LoadEvents(ctx context.Context) ([]registry.NewPairEvent, error) {
	var rows []models.PairEvent
	if err := s.db.WithContext(ctx).Order("pair_id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("could not fetch pair events: %w", err)
	}

	events := make([]registry.NewPairEvent, 0, len(rows))
	for _, row := range rows {
		rate, err := parseAmount(row.RateAtoB)
		if err != nil {
			return nil, fmt.Errorf("pair event %d: %w", row.PairID, err)
		}
		events = append(events, registry.NewPairEvent{
			PairID:   registry.PairID(row.PairID),
			TokenA:   ledger.Address(row.TokenA),
			TokenB:   ledger.Address(row.TokenB),
			RateAtoB: rate,
		})
	}
	return events, nil
}

// CreatePair stores the pair and its creation event in one transaction.
func (s *PairStore) CreatePair(ctx context.Context, pair registry.Pair, event registry.NewPairEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Pair{
			PairID:   uint64(pair.ID),
			TokenA:   pair.TokenA.String(),
			TokenB:   pair.TokenB.String(),
			RateAtoB: pair.RateAtoB.String(),
			ReserveA: pair.ReserveA.String(),
			ReserveB: pair.ReserveB.String(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create pair %d: %w", pair.ID, err)
		}

		ev := models.PairEvent{
			PairID:   uint64(event.PairID),
			TokenA:   event.TokenA.String(),
			TokenB:   event.TokenB.String(),
			RateAtoB: event.RateAtoB.String(),
		}
		if err := tx.Create(&ev).Error; err != nil {
			return fmt.Errorf("failed to record event for pair %d: %w", pair.ID, err)
		}
		return nil
	})
}

// SavePair overwrites the mutable columns of an existing pair.
func (s *PairStore) SavePair(ctx context.Context, pair registry.Pair) error {
	result := s.db.WithContext(ctx).
		Model(&models.Pair{}).
		Where("pair_id = ?", uint64(pair.ID)).
		Updates(map[string]interface{}{
			"token_a":     pair.TokenA.String(),
			"token_b":     pair.TokenB.String(),
			"rate_a_to_b": pair.RateAtoB.String(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save pair %d: %w", pair.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("pair %d is not stored: %w", pair.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

func parseAmount(raw string) (math.Int, error) {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return math.Int{}, fmt.Errorf("malformed amount %q", raw)
	}
	return v, nil
}
