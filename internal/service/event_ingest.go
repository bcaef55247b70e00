package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"predictions/internal/client/chainfeed"
	"predictions/internal/config"
	"predictions/internal/models"
	"predictions/internal/repository"
)

// EventSource is the upstream feed contract: version-ordered events of the
// given types strictly after afterVersion, bounded by limit.
type EventSource interface {
	FetchEvents(ctx context.Context, types []string, afterVersion int64, limit int) ([]chainfeed.Event, error)
}

// IngestService drives the polling loop: fetch a batch, apply it in one
// transaction together with the profile aggregation and the cursor advance,
// commit, repeat. On any failure the batch rolls back in full and the loop
// refetches from the unchanged cursor after a delay.
type IngestService struct {
	Repo       repository.Repository
	Feed       EventSource
	Aggregator *ProfileAggregator
	Logger     *zap.Logger
	Config     config.IndexerConfig
	Contract   config.ContractConfig
}

type loopState int

const (
	stateFetching loopState = iota
	stateApplying
	stateWaiting
	stateShuttingDown
)

// EventTypes lists the fully qualified type identifiers this indexer
// subscribes to.
func (s *IngestService) EventTypes() []string {
	names := []string{EventMarketCreated, EventBet, EventResolve, EventClaim, EventWithdrawFee}
	types := make([]string, 0, len(names))
	for _, n := range names {
		types = append(types, chainfeed.EventType(s.Contract.Address, s.Contract.Module, n))
	}
	return types
}

// Run executes the loop until ctx is cancelled. It returns ctx.Err() on
// shutdown; the in-flight batch transaction is always either committed or
// rolled back before returning.
func (s *IngestService) Run(ctx context.Context) error {
	if s == nil || s.Repo == nil || s.Feed == nil {
		return nil
	}

	cursor, err := s.loadCursor(ctx)
	if err != nil {
		return err
	}
	s.logInfo("indexer started",
		zap.String("stream", s.stream()),
		zap.Int64("cursor", cursor))

	types := s.EventTypes()
	state := stateFetching
	var batch []chainfeed.Event

	for {
		if ctx.Err() != nil {
			state = stateShuttingDown
		}
		switch state {
		case stateFetching:
			events, err := s.fetchBatch(ctx, types, cursor)
			switch {
			case err != nil:
				s.logWarn("event fetch failed", err, zap.Int64("cursor", cursor))
				state = stateWaiting
			case len(events) == 0:
				state = stateWaiting
			default:
				batch = events
				state = stateApplying
			}

		case stateApplying:
			next, err := s.applyBatch(ctx, cursor, batch)
			if err != nil {
				s.logWarn("batch apply failed, rolled back", err,
					zap.Int64("cursor", cursor),
					zap.Int("events", len(batch)))
				state = stateWaiting
				break
			}
			s.logInfo("batch committed",
				zap.Int64("from", cursor),
				zap.Int64("to", next),
				zap.Int("events", len(batch)))
			cursor = next
			batch = nil
			state = stateFetching

		case stateWaiting:
			if !sleepCtx(ctx, s.pollInterval()) {
				state = stateShuttingDown
				break
			}
			state = stateFetching

		case stateShuttingDown:
			s.logInfo("indexer stopped", zap.Int64("cursor", cursor))
			return ctx.Err()
		}
	}
}

// RunOnce fetches and applies at most one batch. Exposed for operational
// backfills and tests.
func (s *IngestService) RunOnce(ctx context.Context) (int, error) {
	cursor, err := s.loadCursor(ctx)
	if err != nil {
		return 0, err
	}
	events, err := s.fetchBatch(ctx, s.EventTypes(), cursor)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if _, err := s.applyBatch(ctx, cursor, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

func (s *IngestService) loadCursor(ctx context.Context) (int64, error) {
	cursor, err := s.Repo.GetCursor(ctx, s.stream())
	if err != nil {
		return 0, err
	}
	if cursor == nil {
		return 0, nil
	}
	return cursor.LastVersion, nil
}

// fetchBatch returns a batch that ends on a version boundary. The cursor is
// strictly-greater-than on refetch, so committing mid-version would lose that
// version's remaining events forever: a full page is trimmed back to its last
// complete version, and when a single version fills the whole page the limit
// is widened until the version fits.
func (s *IngestService) fetchBatch(ctx context.Context, types []string, cursor int64) ([]chainfeed.Event, error) {
	limit := s.batchSize()
	for {
		events, err := s.fetchWithRetry(ctx, types, cursor, limit)
		if err != nil || len(events) < limit {
			return events, err
		}
		if complete := splitCompleteVersions(events); len(complete) > 0 {
			return complete, nil
		}
		limit *= 2
	}
}

// splitCompleteVersions drops the trailing events of a full page that share
// its final transaction version, since that version may continue past the
// page boundary.
func splitCompleteVersions(batch []chainfeed.Event) []chainfeed.Event {
	last := batch[len(batch)-1].TxVersion
	i := len(batch)
	for i > 0 && batch[i-1].TxVersion == last {
		i--
	}
	return batch[:i]
}

func (s *IngestService) fetchWithRetry(ctx context.Context, types []string, cursor int64, limit int) ([]chainfeed.Event, error) {
	retries := s.Config.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, s.retryDelay()) {
				return nil, ctx.Err()
			}
		}
		events, err := s.Feed.FetchEvents(ctx, types, cursor, limit)
		if err == nil {
			return events, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// applyBatch runs every handler write, the profile aggregation, and the
// cursor advance inside a single transaction. Partial application is never
// visible: any error aborts the whole batch.
func (s *IngestService) applyBatch(ctx context.Context, fromVersion int64, batch []chainfeed.Event) (int64, error) {
	endVersion := batch[len(batch)-1].TxVersion
	now := time.Now().UTC()

	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, ev := range batch {
			if err := s.applyEvent(ctx, tx, ev); err != nil {
				return err
			}
		}
		if s.Aggregator != nil {
			if err := s.Aggregator.ApplyTx(ctx, tx, fromVersion, endVersion); err != nil {
				return err
			}
		}
		return s.Repo.SaveCursorTx(ctx, tx, &models.IndexerCursor{
			Stream:        s.stream(),
			LastVersion:   endVersion,
			LastSuccessAt: &now,
			UpdatedAt:     now,
		})
	})
	if err != nil {
		return fromVersion, err
	}
	return endVersion, nil
}

func (s *IngestService) stream() string {
	if s.Config.Stream == "" {
		return "market_events"
	}
	return s.Config.Stream
}

func (s *IngestService) batchSize() int {
	if s.Config.BatchSize <= 0 {
		return 100
	}
	return s.Config.BatchSize
}

func (s *IngestService) pollInterval() time.Duration {
	if s.Config.PollInterval <= 0 {
		return 5 * time.Second
	}
	return s.Config.PollInterval
}

func (s *IngestService) retryDelay() time.Duration {
	if s.Config.RetryDelay <= 0 {
		return 2 * time.Second
	}
	return s.Config.RetryDelay
}

// sleepCtx waits for d or until ctx is cancelled; it reports false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *IngestService) logInfo(msg string, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Info(msg, fields...)
}

func (s *IngestService) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
