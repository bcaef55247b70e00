package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leaderboard rows are fully replaced (upsert by key) on every snapshot run.
// Month keys are "YYYY-MM" in the snapshot timezone.

type LeaderboardMonthlyOwner struct {
	Month   string `gorm:"primaryKey;type:text"`
	Address string `gorm:"primaryKey;type:text"`

	Volume decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	Rank   int64           `gorm:"type:bigint;not null"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (LeaderboardMonthlyOwner) TableName() string {
	return "leaderboard_monthly_owners"
}

type LeaderboardMonthlyUser struct {
	Month   string `gorm:"primaryKey;type:text"`
	Address string `gorm:"primaryKey;type:text"`

	TotalBet     decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	TotalWinning decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`

	RankByWinning int64 `gorm:"type:bigint;not null"`
	RankByAmount  int64 `gorm:"type:bigint;not null"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (LeaderboardMonthlyUser) TableName() string {
	return "leaderboard_monthly_users"
}

type LeaderboardAlltimeUser struct {
	Address string `gorm:"primaryKey;type:text"`

	TotalBet     decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	TotalWinning decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`

	RankByWinning int64 `gorm:"type:bigint;not null"`
	RankByAmount  int64 `gorm:"type:bigint;not null"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (LeaderboardAlltimeUser) TableName() string {
	return "leaderboard_alltime_users"
}
