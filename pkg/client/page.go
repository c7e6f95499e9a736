package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/btoron/ofs-go/pkg/pagination"
)

// collection is the OFS paginated response envelope.
type collection struct {
	Items        []json.RawMessage `json:"items"`
	TotalResults int               `json:"totalResults"`
	Offset       int               `json:"offset"`
	Limit        int               `json:"limit"`
}

// GetJSON performs a GET request and decodes the JSON response into v.
// Non-2xx statuses are returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, v any) error {
	resp, err := c.Get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    msg,
		}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FetchPage retrieves one page of a collection endpoint. It satisfies the
// page-request contract used by the pagination fetcher: items plus the
// server-reported total.
func (c *Client) FetchPage(ctx context.Context, endpoint string, query url.Values, offset, limit int) (pagination.Page[json.RawMessage], error) {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var col collection
	if err := c.GetJSON(ctx, endpoint, q, &col); err != nil {
		return pagination.Page[json.RawMessage]{}, fmt.Errorf("fetch page at offset %d: %w", offset, err)
	}

	return pagination.Page[json.RawMessage]{
		Items:      col.Items,
		TotalCount: col.TotalResults,
	}, nil
}

// Pages returns a PageFunc bound to one collection endpoint and base query.
func (c *Client) Pages(endpoint string, query url.Values) pagination.PageFunc[json.RawMessage] {
	return func(ctx context.Context, offset, limit int) (pagination.Page[json.RawMessage], error) {
		return c.FetchPage(ctx, endpoint, query, offset, limit)
	}
}
