package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"predictions/internal/client/chainfeed"
	"predictions/internal/models"
)

type eventHandler func(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error

// dispatchTable routes an event by the name segment of its type identifier,
// lowercased. Unknown types are not in the table and are skipped by the
// caller.
func (s *IngestService) dispatchTable() map[string]eventHandler {
	return map[string]eventHandler{
		strings.ToLower(EventMarketCreated): s.handleMarketCreated,
		strings.ToLower(EventBet):           s.handleBet,
		strings.ToLower(EventResolve):       s.handleResolve,
		strings.ToLower(EventClaim):         s.handleClaim,
		strings.ToLower(EventWithdrawFee):   s.handleWithdrawFee,
	}
}

func (s *IngestService) applyEvent(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error {
	name := strings.ToLower(chainfeed.EventName(ev.Type))
	handler, ok := s.dispatchTable()[name]
	if !ok {
		// Forward compatible: new upstream event kinds must not stall the
		// indexer.
		if s.Logger != nil {
			s.Logger.Debug("skipping unknown event type",
				zap.String("type", ev.Type),
				zap.Int64("tx_version", ev.TxVersion))
		}
		return nil
	}
	return handler(ctx, tx, ev)
}

func (s *IngestService) handleMarketCreated(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error {
	var p marketCreatedPayload
	if err := decodePayload(ev.Data, &p); err != nil {
		return err
	}

	market := &models.Market{
		ID:            p.MarketID,
		Owner:         p.Owner,
		PriceFeedID:   p.PriceFeedID,
		Kind:          marketKind(int64(p.NumOutcomes)),
		StrikePrice:   p.StrikePrice.Decimal(),
		BiddingEndsAt: p.BiddingEndsAt.Time(),
		MaturesAt:     p.MaturesAt.Time(),
		TxVersion:     ev.TxVersion,
		EventIndex:    ev.EventIndex,
		CreatedAt:     p.CreatedAt.Time(),
		RawJSON:       datatypes.JSON(ev.Data),
	}
	if err := s.Repo.InsertMarketTx(ctx, tx, market); err != nil {
		return err
	}
	return s.Repo.InsertOwnerMarketCreationTx(ctx, tx, &models.OwnerMarketCreation{
		OwnerAddress: p.Owner,
		MarketID:     p.MarketID,
		FirstVersion: ev.TxVersion,
		FirstSeenAt:  p.CreatedAt.Time(),
	})
}

func (s *IngestService) handleBet(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error {
	var p betPayload
	if err := decodePayload(ev.Data, &p); err != nil {
		return err
	}

	bet := &models.Bet{
		TxVersion:    ev.TxVersion,
		EventIndex:   ev.EventIndex,
		UserAddress:  p.User,
		OwnerAddress: p.Owner,
		MarketID:     p.MarketID,
		Amount:       p.Amount.Decimal(),
		Outcome:      int64(p.Outcome),
		BetAt:        p.BetAt.Time(),
	}
	if err := s.Repo.InsertBetTx(ctx, tx, bet); err != nil {
		return err
	}
	return s.Repo.InsertUserMarketParticipationTx(ctx, tx, &models.UserMarketParticipation{
		UserAddress:  p.User,
		MarketID:     p.MarketID,
		FirstVersion: ev.TxVersion,
		FirstSeenAt:  p.BetAt.Time(),
	})
}

func (s *IngestService) handleResolve(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error {
	var p resolvePayload
	if err := decodePayload(ev.Data, &p); err != nil {
		return err
	}
	return s.Repo.ResolveMarketTx(ctx, tx, p.MarketID, int64(p.Outcome), p.FinalPrice.Decimal(), p.ResolvedAt.Time())
}

func (s *IngestService) handleClaim(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error {
	var p claimPayload
	if err := decodePayload(ev.Data, &p); err != nil {
		return err
	}

	claim := &models.Claim{
		TxVersion:   ev.TxVersion,
		EventIndex:  ev.EventIndex,
		UserAddress: p.User,
		MarketID:    p.MarketID,
		Payout:      p.Payout.Decimal(),
		Principal:   p.Principal.Decimal(),
		Won:         p.Won,
		ClaimedAt:   p.ClaimedAt.Time(),
	}
	if err := s.Repo.InsertClaimTx(ctx, tx, claim); err != nil {
		return err
	}
	if claim.Net().Sign() <= 0 {
		return nil
	}
	return s.Repo.InsertUserMarketWinTx(ctx, tx, &models.UserMarketWin{
		UserAddress:  p.User,
		MarketID:     p.MarketID,
		FirstVersion: ev.TxVersion,
		FirstSeenAt:  p.ClaimedAt.Time(),
	})
}

func (s *IngestService) handleWithdrawFee(ctx context.Context, tx *gorm.DB, ev chainfeed.Event) error {
	var p withdrawFeePayload
	if err := decodePayload(ev.Data, &p); err != nil {
		return err
	}
	return s.Repo.InsertOwnerFeeTx(ctx, tx, &models.OwnerFee{
		TxVersion:    ev.TxVersion,
		EventIndex:   ev.EventIndex,
		OwnerAddress: p.Owner,
		MarketID:     p.MarketID,
		Amount:       p.Amount.Decimal(),
		WithdrawnAt:  p.WithdrawnAt.Time(),
	})
}

func marketKind(numOutcomes int64) string {
	if numOutcomes > 2 {
		return models.MarketKindMulti
	}
	return models.MarketKindBinary
}
