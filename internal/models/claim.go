package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Claim struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TxVersion  int64  `gorm:"type:bigint;not null;uniqueIndex:idx_claims_tx_key,priority:1"`
	EventIndex int64  `gorm:"type:bigint;not null;uniqueIndex:idx_claims_tx_key,priority:2"`

	UserAddress string `gorm:"type:text;not null;index"`
	MarketID    string `gorm:"type:text;not null;index"`

	Payout    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Principal decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Won       bool            `gorm:"not null;default:false"`

	ClaimedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Claim) TableName() string {
	return "claims"
}

// Net is the signed payout minus returned principal. It is derived at read
// time rather than stored.
func (c Claim) Net() decimal.Decimal {
	return c.Payout.Sub(c.Principal)
}
