package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Market kinds as emitted by the contract.
const (
	MarketKindBinary = "binary"
	MarketKindMulti  = "multi"
)

type Market struct {
	ID          string `gorm:"primaryKey;type:text"`
	Owner       string `gorm:"type:text;not null;index"`
	PriceFeedID string `gorm:"type:text;not null"`
	Kind        string `gorm:"type:text;not null;default:'binary'"`

	StrikePrice decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`

	BiddingEndsAt time.Time `gorm:"type:timestamptz;not null"`
	MaturesAt     time.Time `gorm:"type:timestamptz;not null"`

	// Resolution fields stay null until the first Resolve event and are
	// never overwritten afterwards.
	ResolvedOutcome *int64           `gorm:"type:bigint"`
	FinalPrice      *decimal.Decimal `gorm:"type:numeric(78,0)"`
	ResolvedAt      *time.Time       `gorm:"type:timestamptz"`

	TxVersion  int64          `gorm:"type:bigint;not null;index"`
	EventIndex int64          `gorm:"type:bigint;not null"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`
}

func (Market) TableName() string {
	return "markets"
}
