package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade represents a settled or failed trade in the journal.
type Trade struct {
	gorm.Model
	TradeID      string    `gorm:"uniqueIndex;not null" json:"trade_id"`
	PairID       uint64    `gorm:"index" json:"pair_id"`
	Caller       string    `gorm:"index" json:"caller"`
	Direction    string    `json:"direction"` // "a_to_b" or "b_to_a"
	InputToken   string    `json:"input_token"`
	OutputToken  string    `json:"output_token"`
	InputAmount  string    `json:"input_amount"`
	OutputAmount string    `json:"output_amount"`
	Status       string    `gorm:"index" json:"status"`
	Error        string    `json:"error,omitempty"`
	ExecutedAt   time.Time `gorm:"index" json:"executed_at"`
}
