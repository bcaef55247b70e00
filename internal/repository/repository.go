package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"predictions/internal/models"
)

// ActorDelta is one actor's summed amount delta since a version watermark.
type ActorDelta struct {
	Address string
	Amount  decimal.Decimal
}

// ActorCount is one actor's first-occurrence count delta since a version
// watermark.
type ActorCount struct {
	Address string
	Count   int64
}

// ProfileDelta is the combined per-address increment applied to user_profiles
// in one batch. Monetary deltas add to the stored totals; they never replace
// them.
type ProfileDelta struct {
	Address      string
	BetDelta     decimal.Decimal
	WinningDelta decimal.Decimal
	FeeDelta     decimal.Decimal

	PlayedDelta  int64
	CreatedDelta int64
	WonDelta     int64

	LastVersion int64
}

// MarketStats aggregates one market's activity from the fact tables.
type MarketStats struct {
	MarketID      string          `json:"market_id"`
	UniqueBettors int64           `json:"unique_bettors"`
	BetCount      int64           `json:"bet_count"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	ClaimCount    int64           `json:"claim_count"`
	TotalPayout   decimal.Decimal `json:"total_payout"`
}

// UserBetRow is a bet joined with the metadata of the market it was placed in.
type UserBetRow struct {
	TxVersion       int64           `json:"tx_version"`
	EventIndex      int64           `json:"event_index"`
	MarketID        string          `json:"market_id"`
	Amount          decimal.Decimal `json:"amount"`
	Outcome         int64           `json:"outcome"`
	BetAt           time.Time       `json:"bet_at"`
	MarketKind      string          `json:"market_kind"`
	PriceFeedID     string          `json:"price_feed_id"`
	StrikePrice     decimal.Decimal `json:"strike_price"`
	ResolvedOutcome *int64          `json:"resolved_outcome"`
}

// UserClaimRow is a claim joined with market metadata. Net is payout minus
// principal, computed in the query.
type UserClaimRow struct {
	TxVersion   int64           `json:"tx_version"`
	EventIndex  int64           `json:"event_index"`
	MarketID    string          `json:"market_id"`
	Payout      decimal.Decimal `json:"payout"`
	Principal   decimal.Decimal `json:"principal"`
	Net         decimal.Decimal `json:"net"`
	Won         bool            `json:"won"`
	ClaimedAt   time.Time       `json:"claimed_at"`
	MarketKind  string          `json:"market_kind"`
	PriceFeedID string          `json:"price_feed_id"`
}

type ListPageParams struct {
	Limit  int
	Offset int
}

// Repository is the persistence surface of the indexer: transactional fact
// writes used inside the batch transaction (the *Tx methods), the profile
// aggregation queries, leaderboard rebuilds, and the read-only query facade.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Cursor.
	GetCursor(ctx context.Context, stream string) (*models.IndexerCursor, error)
	SaveCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.IndexerCursor) error

	// Fact writes. Inserts are keyed no-ops on conflict; ResolveMarketTx uses
	// set-if-null semantics so a second resolution never overwrites the first.
	InsertMarketTx(ctx context.Context, tx *gorm.DB, item *models.Market) error
	ResolveMarketTx(ctx context.Context, tx *gorm.DB, marketID string, outcome int64, finalPrice decimal.Decimal, resolvedAt time.Time) error
	InsertBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error
	InsertClaimTx(ctx context.Context, tx *gorm.DB, item *models.Claim) error
	InsertOwnerFeeTx(ctx context.Context, tx *gorm.DB, item *models.OwnerFee) error
	InsertOwnerMarketCreationTx(ctx context.Context, tx *gorm.DB, item *models.OwnerMarketCreation) error
	InsertUserMarketParticipationTx(ctx context.Context, tx *gorm.DB, item *models.UserMarketParticipation) error
	InsertUserMarketWinTx(ctx context.Context, tx *gorm.DB, item *models.UserMarketWin) error

	// Profile aggregation, scoped to rows past the version watermark.
	SumBetDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]ActorDelta, error)
	SumWinningDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]ActorDelta, error)
	SumOwnerFeeDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]ActorDelta, error)
	CountCreationDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]ActorCount, error)
	CountParticipationDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]ActorCount, error)
	CountWinDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]ActorCount, error)
	ApplyProfileDeltaTx(ctx context.Context, tx *gorm.DB, delta ProfileDelta) error

	// Leaderboard rebuilds; each call is one transaction.
	RebuildMonthlyOwnerLeaderboard(ctx context.Context, month string, from, to time.Time) error
	RebuildMonthlyUserLeaderboard(ctx context.Context, month string, from, to time.Time) error
	RebuildAlltimeUserLeaderboard(ctx context.Context) error

	// Read-only query facade.
	GetUserProfile(ctx context.Context, address string) (*models.UserProfile, error)
	GetMarket(ctx context.Context, id string) (*models.Market, error)
	ListMonthlyOwnerLeaderboard(ctx context.Context, month string, page ListPageParams) ([]models.LeaderboardMonthlyOwner, error)
	ListMonthlyUserLeaderboard(ctx context.Context, month string, page ListPageParams) ([]models.LeaderboardMonthlyUser, error)
	ListAlltimeUserLeaderboard(ctx context.Context, page ListPageParams) ([]models.LeaderboardAlltimeUser, error)
	ListUserBets(ctx context.Context, address string, page ListPageParams) ([]UserBetRow, error)
	CountUserBets(ctx context.Context, address string) (int64, error)
	ListUserClaims(ctx context.Context, address string, page ListPageParams) ([]UserClaimRow, error)
	CountUserClaims(ctx context.Context, address string) (int64, error)
	GetMarketStats(ctx context.Context, marketID string) (*MarketStats, error)
	ListRecentMarkets(ctx context.Context, page ListPageParams) ([]models.Market, error)
	ListMarketStats(ctx context.Context, marketIDs []string) ([]MarketStats, error)
}
