package service

import (
	"context"

	"predictions/internal/models"
	"predictions/internal/repository"
)

// MarketQueryService is the read-only facade consumed by the external API
// layer. It never writes.
type MarketQueryService struct {
	Repo repository.Repository
}

type MarketWithStats struct {
	Market models.Market          `json:"market"`
	Stats  repository.MarketStats `json:"stats"`
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func (s *MarketQueryService) Profile(ctx context.Context, address string) (*models.UserProfile, error) {
	return s.Repo.GetUserProfile(ctx, address)
}

func (s *MarketQueryService) MonthlyOwnerLeaderboard(ctx context.Context, month string, page repository.ListPageParams) ([]models.LeaderboardMonthlyOwner, error) {
	return s.Repo.ListMonthlyOwnerLeaderboard(ctx, month, page)
}

func (s *MarketQueryService) MonthlyUserLeaderboard(ctx context.Context, month string, page repository.ListPageParams) ([]models.LeaderboardMonthlyUser, error) {
	return s.Repo.ListMonthlyUserLeaderboard(ctx, month, page)
}

func (s *MarketQueryService) AlltimeUserLeaderboard(ctx context.Context, page repository.ListPageParams) ([]models.LeaderboardAlltimeUser, error) {
	return s.Repo.ListAlltimeUserLeaderboard(ctx, page)
}

func (s *MarketQueryService) UserBets(ctx context.Context, address string, page repository.ListPageParams) (*Page[repository.UserBetRow], error) {
	items, err := s.Repo.ListUserBets(ctx, address, page)
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.CountUserBets(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Page[repository.UserBetRow]{Items: items, Total: total}, nil
}

func (s *MarketQueryService) UserClaims(ctx context.Context, address string, page repository.ListPageParams) (*Page[repository.UserClaimRow], error) {
	items, err := s.Repo.ListUserClaims(ctx, address, page)
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.CountUserClaims(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Page[repository.UserClaimRow]{Items: items, Total: total}, nil
}

func (s *MarketQueryService) MarketStats(ctx context.Context, marketID string) (*repository.MarketStats, error) {
	return s.Repo.GetMarketStats(ctx, marketID)
}

func (s *MarketQueryService) Market(ctx context.Context, id string) (*models.Market, error) {
	return s.Repo.GetMarket(ctx, id)
}

// RecentMarkets lists the most recently created markets together with their
// aggregate stats.
func (s *MarketQueryService) RecentMarkets(ctx context.Context, page repository.ListPageParams) ([]MarketWithStats, error) {
	markets, err := s.Repo.ListRecentMarkets(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
	}
	stats, err := s.Repo.ListMarketStats(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]repository.MarketStats, len(stats))
	for _, st := range stats {
		byID[st.MarketID] = st
	}

	out := make([]MarketWithStats, 0, len(markets))
	for _, m := range markets {
		st, ok := byID[m.ID]
		if !ok {
			st = repository.MarketStats{MarketID: m.ID}
		}
		out = append(out, MarketWithStats{Market: m, Stats: st})
	}
	return out, nil
}
