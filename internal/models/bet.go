package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bet struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TxVersion  int64  `gorm:"type:bigint;not null;uniqueIndex:idx_bets_tx_key,priority:1"`
	EventIndex int64  `gorm:"type:bigint;not null;uniqueIndex:idx_bets_tx_key,priority:2"`

	UserAddress  string `gorm:"type:text;not null;index"`
	OwnerAddress string `gorm:"type:text;not null;index"`
	MarketID     string `gorm:"type:text;not null;index"`

	Amount  decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Outcome int64           `gorm:"type:bigint;not null"`

	BetAt     time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Bet) TableName() string {
	return "bets"
}
