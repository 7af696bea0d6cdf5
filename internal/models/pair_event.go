package models

import "gorm.io/gorm"

// PairEvent is the audit log of NewPair notifications.
type PairEvent struct {
	gorm.Model
	PairID   uint64 `gorm:"uniqueIndex;not null" json:"pair_id"`
	TokenA   string `gorm:"column:token_a" json:"token_a"`
	TokenB   string `gorm:"column:token_b" json:"token_b"`
	RateAtoB string `gorm:"column:rate_a_to_b;not null" json:"rate_a_to_b"`
}
