package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OwnerFee struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TxVersion  int64  `gorm:"type:bigint;not null;uniqueIndex:idx_owner_fees_tx_key,priority:1"`
	EventIndex int64  `gorm:"type:bigint;not null;uniqueIndex:idx_owner_fees_tx_key,priority:2"`

	OwnerAddress string `gorm:"type:text;not null;index"`
	MarketID     string `gorm:"type:text;not null;index"`

	Amount decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	WithdrawnAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (OwnerFee) TableName() string {
	return "owner_fees"
}
