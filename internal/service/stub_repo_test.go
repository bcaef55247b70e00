package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"predictions/internal/models"
	"predictions/internal/repository"
)

var errInjected = errors.New("injected failure")

type txKey struct {
	Version int64
	Index   int64
}

type pairKey struct {
	Actor  string
	Market string
}

type rebuildCall struct {
	Month string
	From  time.Time
	To    time.Time
}

// stubStore is an in-memory repository.Repository used by the service tests.
// InTx snapshots all state and restores it when fn fails, so the batch
// rollback invariant can be asserted without a database.
type stubStore struct {
	cursors        map[string]models.IndexerCursor
	markets        map[string]models.Market
	bets           map[txKey]models.Bet
	claims         map[txKey]models.Claim
	fees           map[txKey]models.OwnerFee
	creations      map[pairKey]models.OwnerMarketCreation
	participations map[pairKey]models.UserMarketParticipation
	wins           map[pairKey]models.UserMarketWin
	profiles       map[string]models.UserProfile

	appliedDeltas []repository.ProfileDelta

	monthlyOwnerRebuilds []rebuildCall
	monthlyUserRebuilds  []rebuildCall
	alltimeRebuilds      int

	// failAfterWrites injects an error once that many fact writes have
	// happened inside the current process lifetime; -1 disables.
	failAfterWrites int
	writes          int
}

func newStubStore() *stubStore {
	return &stubStore{
		cursors:         map[string]models.IndexerCursor{},
		markets:         map[string]models.Market{},
		bets:            map[txKey]models.Bet{},
		claims:          map[txKey]models.Claim{},
		fees:            map[txKey]models.OwnerFee{},
		creations:       map[pairKey]models.OwnerMarketCreation{},
		participations:  map[pairKey]models.UserMarketParticipation{},
		wins:            map[pairKey]models.UserMarketWin{},
		profiles:        map[string]models.UserProfile{},
		failAfterWrites: -1,
	}
}

func cursorAt(version int64) models.IndexerCursor {
	return models.IndexerCursor{Stream: "market_events", LastVersion: version}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *stubStore) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	cursors := copyMap(s.cursors)
	markets := copyMap(s.markets)
	bets := copyMap(s.bets)
	claims := copyMap(s.claims)
	fees := copyMap(s.fees)
	creations := copyMap(s.creations)
	participations := copyMap(s.participations)
	wins := copyMap(s.wins)
	profiles := copyMap(s.profiles)
	deltas := append([]repository.ProfileDelta(nil), s.appliedDeltas...)

	if err := fn(nil); err != nil {
		s.cursors = cursors
		s.markets = markets
		s.bets = bets
		s.claims = claims
		s.fees = fees
		s.creations = creations
		s.participations = participations
		s.wins = wins
		s.profiles = profiles
		s.appliedDeltas = deltas
		return err
	}
	return nil
}

func (s *stubStore) countWrite() error {
	s.writes++
	if s.failAfterWrites >= 0 && s.writes > s.failAfterWrites {
		return errInjected
	}
	return nil
}

func (s *stubStore) GetCursor(ctx context.Context, stream string) (*models.IndexerCursor, error) {
	c, ok := s.cursors[stream]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *stubStore) SaveCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.IndexerCursor) error {
	s.cursors[cursor.Stream] = *cursor
	return nil
}

func (s *stubStore) InsertMarketTx(ctx context.Context, tx *gorm.DB, item *models.Market) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	if _, ok := s.markets[item.ID]; ok {
		return nil
	}
	s.markets[item.ID] = *item
	return nil
}

func (s *stubStore) ResolveMarketTx(ctx context.Context, tx *gorm.DB, marketID string, outcome int64, finalPrice decimal.Decimal, resolvedAt time.Time) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	m, ok := s.markets[marketID]
	if !ok {
		return nil
	}
	if m.ResolvedOutcome == nil {
		m.ResolvedOutcome = &outcome
	}
	if m.FinalPrice == nil {
		p := finalPrice
		m.FinalPrice = &p
	}
	if m.ResolvedAt == nil {
		at := resolvedAt
		m.ResolvedAt = &at
	}
	s.markets[marketID] = m
	return nil
}

func (s *stubStore) InsertBetTx(ctx context.Context, tx *gorm.DB, item *models.Bet) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	key := txKey{item.TxVersion, item.EventIndex}
	if _, ok := s.bets[key]; ok {
		return nil
	}
	s.bets[key] = *item
	return nil
}

func (s *stubStore) InsertClaimTx(ctx context.Context, tx *gorm.DB, item *models.Claim) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	key := txKey{item.TxVersion, item.EventIndex}
	if _, ok := s.claims[key]; ok {
		return nil
	}
	s.claims[key] = *item
	return nil
}

func (s *stubStore) InsertOwnerFeeTx(ctx context.Context, tx *gorm.DB, item *models.OwnerFee) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	key := txKey{item.TxVersion, item.EventIndex}
	if _, ok := s.fees[key]; ok {
		return nil
	}
	s.fees[key] = *item
	return nil
}

func (s *stubStore) InsertOwnerMarketCreationTx(ctx context.Context, tx *gorm.DB, item *models.OwnerMarketCreation) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	key := pairKey{item.OwnerAddress, item.MarketID}
	if _, ok := s.creations[key]; ok {
		return nil
	}
	s.creations[key] = *item
	return nil
}

func (s *stubStore) InsertUserMarketParticipationTx(ctx context.Context, tx *gorm.DB, item *models.UserMarketParticipation) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	key := pairKey{item.UserAddress, item.MarketID}
	if _, ok := s.participations[key]; ok {
		return nil
	}
	s.participations[key] = *item
	return nil
}

func (s *stubStore) InsertUserMarketWinTx(ctx context.Context, tx *gorm.DB, item *models.UserMarketWin) error {
	if err := s.countWrite(); err != nil {
		return err
	}
	key := pairKey{item.UserAddress, item.MarketID}
	if _, ok := s.wins[key]; ok {
		return nil
	}
	s.wins[key] = *item
	return nil
}

func toDeltas(sums map[string]decimal.Decimal) []repository.ActorDelta {
	out := make([]repository.ActorDelta, 0, len(sums))
	for addr, amount := range sums {
		out = append(out, repository.ActorDelta{Address: addr, Amount: amount})
	}
	return out
}

func (s *stubStore) SumBetDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorDelta, error) {
	sums := map[string]decimal.Decimal{}
	for _, b := range s.bets {
		if b.TxVersion > fromVersion {
			sums[b.UserAddress] = sums[b.UserAddress].Add(b.Amount)
		}
	}
	return toDeltas(sums), nil
}

func (s *stubStore) SumWinningDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorDelta, error) {
	sums := map[string]decimal.Decimal{}
	for _, c := range s.claims {
		if c.TxVersion > fromVersion {
			sums[c.UserAddress] = sums[c.UserAddress].Add(c.Net())
		}
	}
	return toDeltas(sums), nil
}

func (s *stubStore) SumOwnerFeeDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorDelta, error) {
	sums := map[string]decimal.Decimal{}
	for _, f := range s.fees {
		if f.TxVersion > fromVersion {
			sums[f.OwnerAddress] = sums[f.OwnerAddress].Add(f.Amount)
		}
	}
	return toDeltas(sums), nil
}

func toCounts(counts map[string]int64) []repository.ActorCount {
	out := make([]repository.ActorCount, 0, len(counts))
	for addr, n := range counts {
		out = append(out, repository.ActorCount{Address: addr, Count: n})
	}
	return out
}

func (s *stubStore) CountCreationDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorCount, error) {
	counts := map[string]int64{}
	for _, c := range s.creations {
		if c.FirstVersion > fromVersion {
			counts[c.OwnerAddress]++
		}
	}
	return toCounts(counts), nil
}

func (s *stubStore) CountParticipationDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorCount, error) {
	counts := map[string]int64{}
	for _, p := range s.participations {
		if p.FirstVersion > fromVersion {
			counts[p.UserAddress]++
		}
	}
	return toCounts(counts), nil
}

func (s *stubStore) CountWinDeltasTx(ctx context.Context, tx *gorm.DB, fromVersion int64) ([]repository.ActorCount, error) {
	counts := map[string]int64{}
	for _, w := range s.wins {
		if w.FirstVersion > fromVersion {
			counts[w.UserAddress]++
		}
	}
	return toCounts(counts), nil
}

func (s *stubStore) ApplyProfileDeltaTx(ctx context.Context, tx *gorm.DB, delta repository.ProfileDelta) error {
	s.appliedDeltas = append(s.appliedDeltas, delta)
	p := s.profiles[delta.Address]
	p.Address = delta.Address
	p.TotalBet = p.TotalBet.Add(delta.BetDelta)
	p.TotalWinning = p.TotalWinning.Add(delta.WinningDelta)
	p.TotalOwnerFee = p.TotalOwnerFee.Add(delta.FeeDelta)
	p.MarketsPlayed += delta.PlayedDelta
	p.MarketsCreated += delta.CreatedDelta
	p.MarketsWon += delta.WonDelta
	p.LastVersion = delta.LastVersion
	s.profiles[delta.Address] = p
	return nil
}

func (s *stubStore) RebuildMonthlyOwnerLeaderboard(ctx context.Context, month string, from, to time.Time) error {
	s.monthlyOwnerRebuilds = append(s.monthlyOwnerRebuilds, rebuildCall{month, from, to})
	return nil
}

func (s *stubStore) RebuildMonthlyUserLeaderboard(ctx context.Context, month string, from, to time.Time) error {
	s.monthlyUserRebuilds = append(s.monthlyUserRebuilds, rebuildCall{month, from, to})
	return nil
}

func (s *stubStore) RebuildAlltimeUserLeaderboard(ctx context.Context) error {
	s.alltimeRebuilds++
	return nil
}

func (s *stubStore) GetUserProfile(ctx context.Context, address string) (*models.UserProfile, error) {
	p, ok := s.profiles[address]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *stubStore) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *stubStore) ListMonthlyOwnerLeaderboard(ctx context.Context, month string, page repository.ListPageParams) ([]models.LeaderboardMonthlyOwner, error) {
	return nil, nil
}

func (s *stubStore) ListMonthlyUserLeaderboard(ctx context.Context, month string, page repository.ListPageParams) ([]models.LeaderboardMonthlyUser, error) {
	return nil, nil
}

func (s *stubStore) ListAlltimeUserLeaderboard(ctx context.Context, page repository.ListPageParams) ([]models.LeaderboardAlltimeUser, error) {
	return nil, nil
}

func (s *stubStore) ListUserBets(ctx context.Context, address string, page repository.ListPageParams) ([]repository.UserBetRow, error) {
	return nil, nil
}

func (s *stubStore) CountUserBets(ctx context.Context, address string) (int64, error) {
	var n int64
	for _, b := range s.bets {
		if b.UserAddress == address {
			n++
		}
	}
	return n, nil
}

func (s *stubStore) ListUserClaims(ctx context.Context, address string, page repository.ListPageParams) ([]repository.UserClaimRow, error) {
	return nil, nil
}

func (s *stubStore) CountUserClaims(ctx context.Context, address string) (int64, error) {
	var n int64
	for _, c := range s.claims {
		if c.UserAddress == address {
			n++
		}
	}
	return n, nil
}

func (s *stubStore) GetMarketStats(ctx context.Context, marketID string) (*repository.MarketStats, error) {
	return &repository.MarketStats{MarketID: marketID}, nil
}

func (s *stubStore) ListRecentMarkets(ctx context.Context, page repository.ListPageParams) ([]models.Market, error) {
	return nil, nil
}

func (s *stubStore) ListMarketStats(ctx context.Context, marketIDs []string) ([]repository.MarketStats, error) {
	out := make([]repository.MarketStats, 0, len(marketIDs))
	for _, id := range marketIDs {
		out = append(out, repository.MarketStats{MarketID: id})
	}
	return out, nil
}
