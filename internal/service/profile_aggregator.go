package service

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"predictions/internal/repository"
)

// ProfileAggregator folds fact-table rows into the denormalized user_profiles
// table. All deltas are version-scoped: only rows with a tx version (or first
// occurrence version) past fromVersion contribute, and the deltas are added to
// the stored totals, never recomputed from scratch. Running once per batch
// inside the batch transaction keeps the profiles exactly consistent with the
// committed facts.
type ProfileAggregator struct {
	Repo repository.Repository
}

func (a *ProfileAggregator) ApplyTx(ctx context.Context, tx *gorm.DB, fromVersion, toVersion int64) error {
	if a == nil || a.Repo == nil {
		return nil
	}

	deltas := map[string]*repository.ProfileDelta{}
	get := func(address string) *repository.ProfileDelta {
		if d, ok := deltas[address]; ok {
			return d
		}
		d := &repository.ProfileDelta{Address: address, LastVersion: toVersion}
		deltas[address] = d
		return d
	}

	bets, err := a.Repo.SumBetDeltasTx(ctx, tx, fromVersion)
	if err != nil {
		return err
	}
	for _, d := range bets {
		get(d.Address).BetDelta = d.Amount
	}

	winnings, err := a.Repo.SumWinningDeltasTx(ctx, tx, fromVersion)
	if err != nil {
		return err
	}
	for _, d := range winnings {
		get(d.Address).WinningDelta = d.Amount
	}

	fees, err := a.Repo.SumOwnerFeeDeltasTx(ctx, tx, fromVersion)
	if err != nil {
		return err
	}
	for _, d := range fees {
		get(d.Address).FeeDelta = d.Amount
	}

	played, err := a.Repo.CountParticipationDeltasTx(ctx, tx, fromVersion)
	if err != nil {
		return err
	}
	for _, c := range played {
		get(c.Address).PlayedDelta = c.Count
	}

	created, err := a.Repo.CountCreationDeltasTx(ctx, tx, fromVersion)
	if err != nil {
		return err
	}
	for _, c := range created {
		get(c.Address).CreatedDelta = c.Count
	}

	won, err := a.Repo.CountWinDeltasTx(ctx, tx, fromVersion)
	if err != nil {
		return err
	}
	for _, c := range won {
		get(c.Address).WonDelta = c.Count
	}

	// Stable apply order keeps row lock ordering deterministic.
	addresses := make([]string, 0, len(deltas))
	for addr := range deltas {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, addr := range addresses {
		if err := a.Repo.ApplyProfileDeltaTx(ctx, tx, *deltas[addr]); err != nil {
			return err
		}
	}
	return nil
}
