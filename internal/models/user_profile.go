package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserProfile is the denormalized per-address running state maintained by the
// profile aggregator. Totals are atomic units; TotalWinning is signed (sum of
// payout minus principal over all claims).
type UserProfile struct {
	Address string `gorm:"primaryKey;type:text"`

	TotalBet      decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	TotalWinning  decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	TotalOwnerFee decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`

	MarketsPlayed  int64 `gorm:"type:bigint;not null;default:0"`
	MarketsCreated int64 `gorm:"type:bigint;not null;default:0"`
	MarketsWon     int64 `gorm:"type:bigint;not null;default:0"`

	// LastVersion is the batch watermark the profile was last folded up to.
	LastVersion int64     `gorm:"type:bigint;not null;default:0"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
