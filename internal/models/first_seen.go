package models

import "time"

// First-occurrence markers. One row per (actor, market) pair, inserted with
// ON CONFLICT DO NOTHING, carrying the transaction version at which the pair
// was first seen so counter deltas can be version-scoped like the cursor.

type OwnerMarketCreation struct {
	OwnerAddress string    `gorm:"primaryKey;type:text"`
	MarketID     string    `gorm:"primaryKey;type:text"`
	FirstVersion int64     `gorm:"type:bigint;not null;index"`
	FirstSeenAt  time.Time `gorm:"type:timestamptz;not null"`
}

func (OwnerMarketCreation) TableName() string {
	return "owner_market_creations"
}

type UserMarketParticipation struct {
	UserAddress  string    `gorm:"primaryKey;type:text"`
	MarketID     string    `gorm:"primaryKey;type:text"`
	FirstVersion int64     `gorm:"type:bigint;not null;index"`
	FirstSeenAt  time.Time `gorm:"type:timestamptz;not null"`
}

func (UserMarketParticipation) TableName() string {
	return "user_market_participations"
}

type UserMarketWin struct {
	UserAddress  string    `gorm:"primaryKey;type:text"`
	MarketID     string    `gorm:"primaryKey;type:text"`
	FirstVersion int64     `gorm:"type:bigint;not null;index"`
	FirstSeenAt  time.Time `gorm:"type:timestamptz;not null"`
}

func (UserMarketWin) TableName() string {
	return "user_market_wins"
}
