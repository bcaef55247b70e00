package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"predictions/internal/repository"
)

// LeaderboardSnapshotService recomputes the monthly and all-time rankings
// wholesale and upserts them. Each run is idempotent for its period; two runs
// for the same period must not overlap (scheduler responsibility).
type LeaderboardSnapshotService struct {
	Repo     repository.Repository
	Logger   *zap.Logger
	Location *time.Location
}

// RunCurrent recomputes the snapshot for the month containing now, plus the
// all-time rankings.
func (s *LeaderboardSnapshotService) RunCurrent(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	return s.RunForMonth(ctx, MonthKey(time.Now(), s.location()))
}

// RunForMonth recomputes one month's leaderboards and the all-time rankings.
// month is "YYYY-MM" interpreted in the configured timezone.
func (s *LeaderboardSnapshotService) RunForMonth(ctx context.Context, month string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	from, to, err := MonthWindow(month, s.location())
	if err != nil {
		return err
	}

	if err := s.Repo.RebuildMonthlyOwnerLeaderboard(ctx, month, from, to); err != nil {
		return fmt.Errorf("monthly owner leaderboard %s: %w", month, err)
	}
	if err := s.Repo.RebuildMonthlyUserLeaderboard(ctx, month, from, to); err != nil {
		return fmt.Errorf("monthly user leaderboard %s: %w", month, err)
	}
	if err := s.Repo.RebuildAlltimeUserLeaderboard(ctx); err != nil {
		return fmt.Errorf("alltime user leaderboard: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Info("leaderboard snapshot ok",
			zap.String("month", month),
			zap.Time("from", from),
			zap.Time("to", to))
	}
	return nil
}

func (s *LeaderboardSnapshotService) location() *time.Location {
	if s != nil && s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// MonthKey formats t as "YYYY-MM" in loc.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// MonthWindow returns the [from, to) bounds of a "YYYY-MM" month in loc.
func MonthWindow(month string, loc *time.Location) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0), nil
}
