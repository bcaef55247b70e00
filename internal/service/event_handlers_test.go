package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"predictions/internal/client/chainfeed"
	"predictions/internal/config"
	"predictions/internal/models"
)

func newTestIngest(store *stubStore, feed EventSource) *IngestService {
	return &IngestService{
		Repo:       store,
		Feed:       feed,
		Aggregator: &ProfileAggregator{Repo: store},
		Logger:     zap.NewNop(),
		Config:     config.IndexerConfig{Stream: "market_events", BatchSize: 100, MaxRetries: 3},
		Contract:   config.ContractConfig{Address: "0x1", Module: "market"},
	}
}

func testEvent(name string, version, index int64, payload string) chainfeed.Event {
	return chainfeed.Event{
		Type:       chainfeed.EventType("0x1", "market", name),
		Data:       json.RawMessage(payload),
		TxVersion:  version,
		EventIndex: index,
	}
}

func marketCreatedEvent(version int64, marketID, owner string) chainfeed.Event {
	payload := fmt.Sprintf(`{
		"market_id": %q, "owner": %q, "price_feed_id": "0xfeed",
		"strike_price": "6500000000000", "num_outcomes": "2",
		"bidding_ends_at": "1756684800", "matures_at": "1756771200",
		"created_at": "1756598400"
	}`, marketID, owner)
	return testEvent(EventMarketCreated, version, 0, payload)
}

func betEvent(version, index int64, marketID, user, owner, amount string) chainfeed.Event {
	payload := fmt.Sprintf(`{
		"market_id": %q, "user": %q, "owner": %q,
		"amount": %q, "outcome": "1", "timestamp": "1756600000"
	}`, marketID, user, owner, amount)
	return testEvent(EventBet, version, index, payload)
}

func claimEvent(version int64, marketID, user, payout, principal string, won bool) chainfeed.Event {
	payload := fmt.Sprintf(`{
		"market_id": %q, "user": %q, "payout": %q, "principal": %q,
		"won": %t, "timestamp": "1756800000"
	}`, marketID, user, payout, principal, won)
	return testEvent(EventClaim, version, 0, payload)
}

func TestDispatchTableCoversAllEventNames(t *testing.T) {
	svc := newTestIngest(newStubStore(), nil)
	table := svc.dispatchTable()
	for _, name := range []string{EventMarketCreated, EventBet, EventResolve, EventClaim, EventWithdrawFee} {
		if _, ok := table[strings.ToLower(name)]; !ok {
			t.Errorf("no handler for %s", name)
		}
	}
	if len(table) != 5 {
		t.Fatalf("dispatch table has %d entries, want 5", len(table))
	}
}

func TestApplyEventDispatchIsCaseInsensitive(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)

	ev := marketCreatedEvent(10, "m1", "0xowner")
	ev.Type = chainfeed.EventType("0x1", "market", "marketcreatedevent")
	if err := svc.applyEvent(context.Background(), nil, ev); err != nil {
		t.Fatalf("applyEvent: %v", err)
	}
	if _, ok := store.markets["m1"]; !ok {
		t.Fatal("market not inserted for lowercased event name")
	}
}

func TestApplyEventSkipsUnknownType(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)

	ev := testEvent("PauseEvent", 10, 0, `{"whatever": true}`)
	if err := svc.applyEvent(context.Background(), nil, ev); err != nil {
		t.Fatalf("unknown event should be skipped, got %v", err)
	}
	if len(store.markets)+len(store.bets)+len(store.claims)+len(store.fees) != 0 {
		t.Fatal("unknown event wrote rows")
	}
}

func TestHandleMarketCreated(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)

	if err := svc.applyEvent(context.Background(), nil, marketCreatedEvent(10, "m1", "0xowner")); err != nil {
		t.Fatalf("applyEvent: %v", err)
	}

	m, ok := store.markets["m1"]
	if !ok {
		t.Fatal("market not inserted")
	}
	if m.Owner != "0xowner" || m.Kind != models.MarketKindBinary {
		t.Fatalf("unexpected market: %+v", m)
	}
	if m.TxVersion != 10 {
		t.Fatalf("market tx version = %d", m.TxVersion)
	}
	if m.ResolvedOutcome != nil {
		t.Fatal("new market already resolved")
	}
	if _, ok := store.creations[pairKey{"0xowner", "m1"}]; !ok {
		t.Fatal("creation marker missing")
	}
}

func TestHandleBetRecordsParticipation(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)
	ctx := context.Background()

	if err := svc.applyEvent(ctx, nil, betEvent(11, 0, "m1", "0xu1", "0xowner", "500000")); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if err := svc.applyEvent(ctx, nil, betEvent(12, 0, "m1", "0xu1", "0xowner", "250000")); err != nil {
		t.Fatalf("second bet: %v", err)
	}

	if len(store.bets) != 2 {
		t.Fatalf("bets = %d, want 2", len(store.bets))
	}
	// Same user, same market: the participation marker stays unique.
	if len(store.participations) != 1 {
		t.Fatalf("participations = %d, want 1", len(store.participations))
	}
	p := store.participations[pairKey{"0xu1", "m1"}]
	if p.FirstVersion != 11 {
		t.Fatalf("participation first version = %d, want 11", p.FirstVersion)
	}
}

func TestHandleResolveSetsOutcomeOnce(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)
	ctx := context.Background()

	if err := svc.applyEvent(ctx, nil, marketCreatedEvent(10, "m1", "0xowner")); err != nil {
		t.Fatalf("create: %v", err)
	}
	resolve := func(outcome, price string, version int64) chainfeed.Event {
		payload := fmt.Sprintf(`{"market_id": "m1", "outcome": %q, "final_price": %q, "timestamp": "1756800000"}`, outcome, price)
		return testEvent(EventResolve, version, 0, payload)
	}
	if err := svc.applyEvent(ctx, nil, resolve("1", "6600000000000", 20)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.applyEvent(ctx, nil, resolve("0", "1", 21)); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	m := store.markets["m1"]
	if m.ResolvedOutcome == nil || *m.ResolvedOutcome != 1 {
		t.Fatalf("resolved outcome = %v, want 1", m.ResolvedOutcome)
	}
	if m.FinalPrice == nil || m.FinalPrice.String() != "6600000000000" {
		t.Fatalf("final price = %v, want first resolution kept", m.FinalPrice)
	}
}

func TestHandleClaimWinMarker(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)
	ctx := context.Background()

	// Net positive: marker recorded.
	if err := svc.applyEvent(ctx, nil, claimEvent(30, "m1", "0xu1", "900000", "500000", true)); err != nil {
		t.Fatalf("winning claim: %v", err)
	}
	if _, ok := store.wins[pairKey{"0xu1", "m1"}]; !ok {
		t.Fatal("win marker missing for net-positive claim")
	}

	// Refund (payout == principal): no marker even when the flag says won.
	if err := svc.applyEvent(ctx, nil, claimEvent(31, "m2", "0xu2", "500000", "500000", true)); err != nil {
		t.Fatalf("refund claim: %v", err)
	}
	if _, ok := store.wins[pairKey{"0xu2", "m2"}]; ok {
		t.Fatal("win marker recorded for zero-net claim")
	}

	// Losing claim: row stored, no marker.
	if err := svc.applyEvent(ctx, nil, claimEvent(32, "m3", "0xu3", "0", "500000", false)); err != nil {
		t.Fatalf("losing claim: %v", err)
	}
	if len(store.claims) != 3 {
		t.Fatalf("claims = %d, want 3", len(store.claims))
	}
	if len(store.wins) != 1 {
		t.Fatalf("win markers = %d, want 1", len(store.wins))
	}
}

func TestHandleWithdrawFee(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)

	payload := `{"market_id": "m1", "owner": "0xowner", "amount": "120000", "timestamp": "1756900000"}`
	if err := svc.applyEvent(context.Background(), nil, testEvent(EventWithdrawFee, 40, 0, payload)); err != nil {
		t.Fatalf("withdraw fee: %v", err)
	}
	fee, ok := store.fees[txKey{40, 0}]
	if !ok {
		t.Fatal("fee row missing")
	}
	if fee.OwnerAddress != "0xowner" || fee.Amount.String() != "120000" {
		t.Fatalf("unexpected fee row: %+v", fee)
	}
}

func TestHandleEventMalformedPayload(t *testing.T) {
	store := newStubStore()
	svc := newTestIngest(store, nil)

	ev := testEvent(EventBet, 10, 0, `{"amount": "not-a-number"}`)
	if err := svc.applyEvent(context.Background(), nil, ev); err == nil {
		t.Fatal("malformed payload accepted")
	}
	if len(store.bets) != 0 {
		t.Fatal("malformed payload wrote a row")
	}
}

func TestMarketKind(t *testing.T) {
	if marketKind(2) != models.MarketKindBinary {
		t.Fatal("2 outcomes should be binary")
	}
	if marketKind(0) != models.MarketKindBinary {
		t.Fatal("missing outcome count should default to binary")
	}
	if marketKind(3) != models.MarketKindMulti {
		t.Fatal("3 outcomes should be multi")
	}
}
