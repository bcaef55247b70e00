package chainfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client queries the upstream event-log service: a paginated, type-filtered,
// version-ordered GraphQL feed.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feed API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, url, apiKey string) *Client {
	return &Client{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

const eventsQuery = `query MarketEvents($types: [String!]!, $after: bigint!, $limit: Int!) {
  events(
    where: {indexed_type: {_in: $types}, transaction_version: {_gt: $after}}
    order_by: [{transaction_version: asc}, {event_index: asc}]
    limit: $limit
  ) {
    indexed_type
    data
    transaction_version
    event_index
  }
}`

// FetchEvents returns up to limit events of the given types with
// transaction_version strictly greater than afterVersion, ordered by
// (transaction_version, event_index) ascending. An empty slice means the
// consumer is caught up; it is not an error.
func (c *Client) FetchEvents(ctx context.Context, types []string, afterVersion int64, limit int) ([]Event, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one event type is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	body, err := c.doRequest(ctx, graphqlRequest{
		Query: eventsQuery,
		Variables: map[string]any{
			"types": types,
			"after": afterVersion,
			"limit": limit,
		},
	})
	if err != nil {
		return nil, err
	}

	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("feed query failed: %s", resp.Errors[0].Message)
	}
	return resp.Data.Events, nil
}

func (c *Client) doRequest(ctx context.Context, payload graphqlRequest) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode feed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
