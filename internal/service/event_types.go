package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Contract event names. The feed identifies events by
// "<address>::<module>::<name>"; these are the name segments.
const (
	EventMarketCreated = "MarketCreatedEvent"
	EventBet           = "BetEvent"
	EventResolve       = "ResolveEvent"
	EventClaim         = "ClaimEvent"
	EventWithdrawFee   = "WithdrawFeeEvent"
)

// u64 decodes a JSON number that the chain serializes as a string ("42").
// Plain JSON numbers are accepted too.
type u64 int64

func (u *u64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %q: %w", s, err)
	}
	*u = u64(v)
	return nil
}

// bigAmount decodes a string-encoded integer of up to 128 bits into an exact
// decimal. Fractional values are rejected; amounts are atomic units.
type bigAmount decimal.Decimal

func (a *bigAmount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*a = bigAmount(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < 0 {
		return fmt.Errorf("amount %q is not an integer", s)
	}
	*a = bigAmount(d)
	return nil
}

func (a bigAmount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

// unixSec decodes a string-encoded unix timestamp in seconds.
type unixSec time.Time

func (t *unixSec) UnmarshalJSON(b []byte) error {
	var sec u64
	if err := sec.UnmarshalJSON(b); err != nil {
		return err
	}
	*t = unixSec(time.Unix(int64(sec), 0).UTC())
	return nil
}

func (t unixSec) Time() time.Time {
	return time.Time(t)
}

type marketCreatedPayload struct {
	MarketID      string    `json:"market_id"`
	Owner         string    `json:"owner"`
	PriceFeedID   string    `json:"price_feed_id"`
	StrikePrice   bigAmount `json:"strike_price"`
	NumOutcomes   u64       `json:"num_outcomes"`
	BiddingEndsAt unixSec   `json:"bidding_ends_at"`
	MaturesAt     unixSec   `json:"matures_at"`
	CreatedAt     unixSec   `json:"created_at"`
}

type betPayload struct {
	MarketID string    `json:"market_id"`
	User     string    `json:"user"`
	Owner    string    `json:"owner"`
	Amount   bigAmount `json:"amount"`
	Outcome  u64       `json:"outcome"`
	BetAt    unixSec   `json:"timestamp"`
}

type resolvePayload struct {
	MarketID   string    `json:"market_id"`
	Outcome    u64       `json:"outcome"`
	FinalPrice bigAmount `json:"final_price"`
	ResolvedAt unixSec   `json:"timestamp"`
}

type claimPayload struct {
	MarketID  string    `json:"market_id"`
	User      string    `json:"user"`
	Payout    bigAmount `json:"payout"`
	Principal bigAmount `json:"principal"`
	Won       bool      `json:"won"`
	ClaimedAt unixSec   `json:"timestamp"`
}

type withdrawFeePayload struct {
	MarketID    string    `json:"market_id"`
	Owner       string    `json:"owner"`
	Amount      bigAmount `json:"amount"`
	WithdrawnAt unixSec   `json:"timestamp"`
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty event payload")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
