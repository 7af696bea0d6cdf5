package models

import "gorm.io/gorm"

// Pair is the stored form of a registry pair. Removed pairs keep their row with
// empty token columns and a zero rate.
type Pair struct {
	gorm.Model
	PairID   uint64 `gorm:"uniqueIndex;not null"`
	TokenA   string `gorm:"column:token_a"`
	TokenB   string `gorm:"column:token_b"`
	RateAtoB string `gorm:"column:rate_a_to_b;not null"` // decimal integer
	ReserveA string `gorm:"column:reserve_a;not null"`
	ReserveB string `gorm:"column:reserve_b;not null"`
}
