package chainfeed

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one row of the upstream event log: the fully qualified type
// identifier, the JSON payload, and the (transaction version, event index)
// pair that uniquely keys the emission.
type Event struct {
	Type       string          `json:"indexed_type"`
	Data       json.RawMessage `json:"data"`
	TxVersion  int64           `json:"transaction_version"`
	EventIndex int64           `json:"event_index"`
}

// EventType builds the fully qualified identifier the feed indexes events by.
func EventType(address, module, name string) string {
	return fmt.Sprintf("%s::%s::%s", address, module, name)
}

// EventName returns the trailing name segment of a fully qualified type
// identifier, e.g. "BetEvent" for "0xabc::market::BetEvent".
func EventName(eventType string) string {
	idx := strings.LastIndex(eventType, "::")
	if idx < 0 {
		return eventType
	}
	return eventType[idx+2:]
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type eventsResponse struct {
	Data struct {
		Events []Event `json:"events"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}
