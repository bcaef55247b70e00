package gormrepository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"predictions/internal/models"
	"predictions/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- cursor ------------------------------------------------------------------

func (s *Store) GetCursor(ctx context.Context, stream string) (*models.IndexerCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var cursor models.IndexerCursor
	err := s.db.WithContext(ctx).First(&cursor, "stream = ?", stream).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (s *Store) SaveCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.IndexerCursor) error {
	if tx == nil || cursor == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stream"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_version", "last_success_at", "updated_at"}),
	}).Create(cursor).Error
}

// --- fact writes -------------------------------------------------------------

func (s *Store) InsertMarketTx(ctx context.Context, tx *gorm.DB, item *models.Market) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(item).Error
}

// ResolveMarketTx sets the resolution fields only if they are still null, so
// a replayed or duplicate resolve cannot overwrite an already-resolved market.
func (s *Store) ResolveMarketTx(ctx context.Context, tx *gorm.DB, marketID string, outcome int64, finalPrice decimal.Decimal, resolvedAt time.Time) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE markets
		 SET resolved_outcome = COALESCE(resolved_outcome, ?),
		     final_price = COALESCE(final_price, ?),
		     resolved_at = COALESCE(resolved_at, ?)
		 WHERE id = ?`,
		outcome, finalPrice, resolvedAt, marketID,
	).Error
}

func (s *Store) InsertBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_version"}, {Name: "event_index"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) InsertClaimTx(ctx context.Context, tx *gorm.DB, item *models.Claim) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_version"}, {Name: "event_index"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) InsertOwnerFeeTx(ctx context.Context, tx *gorm.DB, item *models.OwnerFee) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_version"}, {Name: "event_index"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) InsertOwnerMarketCreationTx(ctx context.Context, tx *gorm.DB, item *models.OwnerMarketCreation) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_address"}, {Name: "market_id"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) InsertUserMarketParticipationTx(ctx context.Context, tx *gorm.DB, item *models.UserMarketParticipation) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_address"}, {Name: "market_id"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) InsertUserMarketWinTx(ctx context.Context, tx *gorm.DB, item *models.UserMarketWin) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_address"}, {Name: "market_id"}},
		DoNothing: true,
	}).Create(item).Error
}

// --- profile aggregation -----------------------------------------------------

// Delta queries read the fact tables rather than the in-flight events, so a
// duplicate event that was dropped by ON CONFLICT can never be counted.

func (s *Store) SumBetDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorDelta, error) {
	return sumDeltas(ctx, tx,
		`SELECT user_address AS address, COALESCE(SUM(amount), 0) AS amount
		 FROM bets WHERE tx_version > ? GROUP BY user_address`, fromVersion)
}

func (s *Store) SumWinningDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorDelta, error) {
	return sumDeltas(ctx, tx,
		`SELECT user_address AS address, COALESCE(SUM(payout - principal), 0) AS amount
		 FROM claims WHERE tx_version > ? GROUP BY user_address`, fromVersion)
}

func (s *Store) SumOwnerFeeDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorDelta, error) {
	return sumDeltas(ctx, tx,
		`SELECT owner_address AS address, COALESCE(SUM(amount), 0) AS amount
		 FROM owner_fees WHERE tx_version > ? GROUP BY owner_address`, fromVersion)
}

func sumDeltas(ctx context.Context, tx *gorm.DB, query string, fromVersion int64) ([]repository.ActorDelta, error) {
	if tx == nil {
		return nil, nil
	}
	var out []repository.ActorDelta
	if err := tx.WithContext(ctx).Raw(query, fromVersion).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountCreationDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorCount, error) {
	return countDeltas(ctx, tx,
		`SELECT owner_address AS address, COUNT(*) AS count
		 FROM owner_market_creations WHERE first_version > ? GROUP BY owner_address`, fromVersion)
}

func (s *Store) CountParticipationDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorCount, error) {
	return countDeltas(ctx, tx,
		`SELECT user_address AS address, COUNT(*) AS count
		 FROM user_market_participations WHERE first_version > ? GROUP BY user_address`, fromVersion)
}

func (s *Store) CountWinDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorCount, error) {
	return countDeltas(ctx, tx,
		`SELECT user_address AS address, COUNT(*) AS count
		 FROM user_market_wins WHERE first_version > ? GROUP BY user_address`, fromVersion)
}

func countDeltas(ctx context.Context, tx *gorm.DB, query string, fromVersion int64) ([]repository.ActorCount, error) {
	if tx == nil {
		return nil, nil
	}
	var out []repository.ActorCount
	if err := tx.WithContext(ctx).Raw(query, fromVersion).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ApplyProfileDeltaTx(ctx context.Context, tx *gorm.DB, delta repository.ProfileDelta) error {
	if tx == nil || delta.Address == "" {
		return nil
	}
	row := &models.UserProfile{
		Address:        delta.Address,
		TotalBet:       delta.BetDelta,
		TotalWinning:   delta.WinningDelta,
		TotalOwnerFee:  delta.FeeDelta,
		MarketsPlayed:  delta.PlayedDelta,
		MarketsCreated: delta.CreatedDelta,
		MarketsWon:     delta.WonDelta,
		LastVersion:    delta.LastVersion,
		UpdatedAt:      time.Now().UTC(),
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_bet":       gorm.Expr("user_profiles.total_bet + EXCLUDED.total_bet"),
			"total_winning":   gorm.Expr("user_profiles.total_winning + EXCLUDED.total_winning"),
			"total_owner_fee": gorm.Expr("user_profiles.total_owner_fee + EXCLUDED.total_owner_fee"),
			"markets_played":  gorm.Expr("user_profiles.markets_played + EXCLUDED.markets_played"),
			"markets_created": gorm.Expr("user_profiles.markets_created + EXCLUDED.markets_created"),
			"markets_won":     gorm.Expr("user_profiles.markets_won + EXCLUDED.markets_won"),
			"last_version":    gorm.Expr("EXCLUDED.last_version"),
			"updated_at":      gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(row).Error
}

// --- leaderboard rebuilds ----------------------------------------------------

// The rank windows order by aggregate values only: rows tied on every value
// key are peers and share a rank (so volumes {300, 300, 100} rank 1, 1, 3).
// Address ascending is the deterministic row order, applied by the List
// queries, never part of the rank itself.

const monthlyOwnerLeaderboardSQL = `INSERT INTO leaderboard_monthly_owners (month, address, volume, rank, updated_at)
SELECT ?, owner_address, SUM(amount),
       RANK() OVER (ORDER BY SUM(amount) DESC),
       now()
FROM bets
WHERE bet_at >= ? AND bet_at < ?
GROUP BY owner_address
ON CONFLICT (month, address) DO UPDATE
SET volume = EXCLUDED.volume,
    rank = EXCLUDED.rank,
    updated_at = EXCLUDED.updated_at`

const monthlyUserLeaderboardSQL = `WITH b AS (
    SELECT user_address AS address, SUM(amount) AS total_bet
    FROM bets WHERE bet_at >= ? AND bet_at < ?
    GROUP BY user_address
), c AS (
    SELECT user_address AS address, SUM(payout - principal) AS total_winning
    FROM claims WHERE claimed_at >= ? AND claimed_at < ?
    GROUP BY user_address
), u AS (
    SELECT COALESCE(b.address, c.address) AS address,
           COALESCE(b.total_bet, 0) AS total_bet,
           COALESCE(c.total_winning, 0) AS total_winning
    FROM b FULL OUTER JOIN c ON b.address = c.address
)
INSERT INTO leaderboard_monthly_users
    (month, address, total_bet, total_winning, rank_by_winning, rank_by_amount, updated_at)
SELECT ?, address, total_bet, total_winning,
       RANK() OVER (ORDER BY total_winning DESC, total_bet DESC),
       RANK() OVER (ORDER BY total_bet DESC),
       now()
FROM u
ON CONFLICT (month, address) DO UPDATE
SET total_bet = EXCLUDED.total_bet,
    total_winning = EXCLUDED.total_winning,
    rank_by_winning = EXCLUDED.rank_by_winning,
    rank_by_amount = EXCLUDED.rank_by_amount,
    updated_at = EXCLUDED.updated_at`

const alltimeUserLeaderboardSQL = `INSERT INTO leaderboard_alltime_users
    (address, total_bet, total_winning, rank_by_winning, rank_by_amount, updated_at)
SELECT address, total_bet, total_winning,
       RANK() OVER (ORDER BY total_winning DESC, total_bet DESC),
       RANK() OVER (ORDER BY total_bet DESC),
       now()
FROM user_profiles
ON CONFLICT (address) DO UPDATE
SET total_bet = EXCLUDED.total_bet,
    total_winning = EXCLUDED.total_winning,
    rank_by_winning = EXCLUDED.rank_by_winning,
    rank_by_amount = EXCLUDED.rank_by_amount,
    updated_at = EXCLUDED.updated_at`

func (s *Store) RebuildMonthlyOwnerLeaderboard(ctx context.Context, month string, from, to time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Exec(monthlyOwnerLeaderboardSQL, month, from, to).Error
	})
}

func (s *Store) RebuildMonthlyUserLeaderboard(ctx context.Context, month string, from, to time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Exec(monthlyUserLeaderboardSQL, from, to, from, to, month).Error
	})
}

// RebuildAlltimeUserLeaderboard ranks from the already-aggregated profile
// totals instead of rescanning the fact tables.
func (s *Store) RebuildAlltimeUserLeaderboard(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Exec(alltimeUserLeaderboardSQL).Error
	})
}

// --- read-only queries -------------------------------------------------------

func (s *Store) GetUserProfile(ctx context.Context, address string) (*models.UserProfile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var profile models.UserProfile
	err := s.db.WithContext(ctx).First(&profile, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Store) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var market models.Market
	err := s.db.WithContext(ctx).First(&market, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &market, nil
}

func (s *Store) ListMonthlyOwnerLeaderboard(ctx context.Context, month string, page repository.ListPageParams) ([]models.LeaderboardMonthlyOwner, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.LeaderboardMonthlyOwner
	err := s.db.WithContext(ctx).
		Where("month = ?", month).
		Order("rank asc, address asc").
		Limit(normalizeLimit(page.Limit, 100)).
		Offset(normalizeOffset(page.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListMonthlyUserLeaderboard(ctx context.Context, month string, page repository.ListPageParams) ([]models.LeaderboardMonthlyUser, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.LeaderboardMonthlyUser
	err := s.db.WithContext(ctx).
		Where("month = ?", month).
		Order("rank_by_winning asc, address asc").
		Limit(normalizeLimit(page.Limit, 100)).
		Offset(normalizeOffset(page.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAlltimeUserLeaderboard(ctx context.Context, page repository.ListPageParams) ([]models.LeaderboardAlltimeUser, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.LeaderboardAlltimeUser
	err := s.db.WithContext(ctx).
		Order("rank_by_winning asc, address asc").
		Limit(normalizeLimit(page.Limit, 100)).
		Offset(normalizeOffset(page.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUserBets(ctx context.Context, address string, page repository.ListPageParams) ([]repository.UserBetRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.UserBetRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT b.tx_version, b.event_index, b.market_id, b.amount, b.outcome, b.bet_at,
		        m.kind AS market_kind, m.price_feed_id, m.strike_price, m.resolved_outcome
		 FROM bets b
		 JOIN markets m ON m.id = b.market_id
		 WHERE b.user_address = ?
		 ORDER BY b.tx_version DESC, b.event_index DESC
		 LIMIT ? OFFSET ?`,
		address, normalizeLimit(page.Limit, 50), normalizeOffset(page.Offset),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CountUserBets(ctx context.Context, address string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Bet{}).Where("user_address = ?", address).Count(&count).Error
	return count, err
}

func (s *Store) ListUserClaims(ctx context.Context, address string, page repository.ListPageParams) ([]repository.UserClaimRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.UserClaimRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.tx_version, c.event_index, c.market_id, c.payout, c.principal,
		        c.payout - c.principal AS net, c.won, c.claimed_at,
		        m.kind AS market_kind, m.price_feed_id
		 FROM claims c
		 JOIN markets m ON m.id = c.market_id
		 WHERE c.user_address = ?
		 ORDER BY c.tx_version DESC, c.event_index DESC
		 LIMIT ? OFFSET ?`,
		address, normalizeLimit(page.Limit, 50), normalizeOffset(page.Offset),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CountUserClaims(ctx context.Context, address string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Claim{}).Where("user_address = ?", address).Count(&count).Error
	return count, err
}

func (s *Store) GetMarketStats(ctx context.Context, marketID string) (*repository.MarketStats, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	stats, err := s.ListMarketStats(ctx, []string{marketID})
	if err != nil {
		return nil, err
	}
	for i := range stats {
		if stats[i].MarketID == marketID {
			return &stats[i], nil
		}
	}
	return &repository.MarketStats{
		MarketID:    marketID,
		TotalVolume: decimal.Zero,
		TotalPayout: decimal.Zero,
	}, nil
}

func (s *Store) ListMarketStats(ctx context.Context, marketIDs []string) ([]repository.MarketStats, error) {
	if s == nil || s.db == nil || len(marketIDs) == 0 {
		return nil, nil
	}
	var out []repository.MarketStats
	err := s.db.WithContext(ctx).Raw(
		`WITH b AS (
		     SELECT market_id,
		            COUNT(DISTINCT user_address) AS unique_bettors,
		            COUNT(*) AS bet_count,
		            SUM(amount) AS total_volume
		     FROM bets WHERE market_id IN ? GROUP BY market_id
		 ), c AS (
		     SELECT market_id,
		            COUNT(*) AS claim_count,
		            SUM(payout) AS total_payout
		     FROM claims WHERE market_id IN ? GROUP BY market_id
		 )
		 SELECT m.id AS market_id,
		        COALESCE(b.unique_bettors, 0) AS unique_bettors,
		        COALESCE(b.bet_count, 0) AS bet_count,
		        COALESCE(b.total_volume, 0) AS total_volume,
		        COALESCE(c.claim_count, 0) AS claim_count,
		        COALESCE(c.total_payout, 0) AS total_payout
		 FROM markets m
		 LEFT JOIN b ON b.market_id = m.id
		 LEFT JOIN c ON c.market_id = m.id
		 WHERE m.id IN ?`,
		marketIDs, marketIDs, marketIDs,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListRecentMarkets(ctx context.Context, page repository.ListPageParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Market
	err := s.db.WithContext(ctx).
		Order("tx_version desc, event_index desc").
		Limit(normalizeLimit(page.Limit, 50)).
		Offset(normalizeOffset(page.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
