// Package expo is a thin HTTP client for the Expo push API: batch
// submit plus deferred receipt lookup. Only the two endpoints the
// dispatcher needs are covered.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production push API root.
const DefaultBaseURL = "https://exp.host/--/api/v2"

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient builds a provider client. baseURL falls back to the
// production API; accessToken may be empty for unauthenticated use.
func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sendResponse struct {
	Data []Ticket `json:"data"`
}

type receiptsRequest struct {
	IDs []string `json:"ids"`
}

type receiptsResponse struct {
	Data map[string]Receipt `json:"data"`
}

// SendMessages submits one batch of push messages and returns one
// ticket per message, in submission order. The caller is responsible
// for keeping the total token count within MaxMessagesPerRequest.
func (c *Client) SendMessages(ctx context.Context, msgs []PushMessage) ([]Ticket, error) {
	var out sendResponse
	if err := c.post(ctx, "/push/send", msgs, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetReceipts fetches delivery receipts for previously returned ticket
// ids. Receipts not yet available are simply absent from the result.
func (c *Client) GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	var out receiptsResponse
	if err := c.post(ctx, "/push/getReceipts", receiptsRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("expo: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("expo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("expo: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("expo: %s returned %d: %s", path, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("expo: decode %s response: %w", path, err)
	}
	return nil
}
