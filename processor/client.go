// Package processor is the read-only client for the external payment
// processor. The processor's ledger is the authoritative record; this
// client only ever fetches snapshots, never writes.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/money"
	"bitbucket.org/storyfount/finance_backend/utils"
)

type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
	pageSize  int
}

// NewClient reads PROCESSOR_API_BASE_URL, PROCESSOR_API_KEY,
// PROCESSOR_API_KEY_HEADER and PROCESSOR_RATE_LIMIT_PER_MIN from env.
func NewClient() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("PROCESSOR_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.processor.example.com"
	}
	apiKey := strings.TrimSpace(os.Getenv("PROCESSOR_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("processor api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("PROCESSOR_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "Authorization"
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("PROCESSOR_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	pageSize := 100
	if v := strings.TrimSpace(os.Getenv("PROCESSOR_PAGE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
		pageSize:  pageSize,
	}, nil
}

type subscriptionRow struct {
	ID          string      `json:"id"`
	CustomerId  string      `json:"customer_id"`
	AmountCents json.Number `json:"amount_cents"`
	Status      string      `json:"status"`
}

type listResponse struct {
	Data       []subscriptionRow `json:"data"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

type balanceResponse struct {
	AvailableCents json.Number `json:"available_cents"`
	PendingCents   json.Number `json:"pending_cents"`
}

// ListSubscriptions pages through the processor's full subscription
// snapshot. Any transport or decode failure is wrapped retryable: the
// caller owns backoff, the core performs no retries.
func (c *Client) ListSubscriptions(ctx context.Context) ([]finance.ProcessorSubscription, error) {
	var all []finance.ProcessorSubscription
	cursor := ""
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		page, err := c.getList(ctx, "/v1/subscriptions", params)
		if err != nil {
			return nil, utils.Retryable("processor list subscriptions", err)
		}
		for _, row := range page.Data {
			amount, err := row.AmountCents.Int64()
			if err != nil || amount < 0 {
				return nil, fmt.Errorf("processor returned bad amount %q for customer %s", row.AmountCents, row.CustomerId)
			}
			all = append(all, finance.ProcessorSubscription{
				CustomerId:  row.CustomerId,
				AmountCents: money.Cents(amount),
				Status:      row.Status,
			})
		}
		if page.NextCursor == "" || (page.HasMore != nil && !*page.HasMore) {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetBalance fetches the processor-held platform balance.
func (c *Client) GetBalance(ctx context.Context) (finance.ProcessorBalance, error) {
	body, err := c.get(ctx, "/v1/balance", nil)
	if err != nil {
		return finance.ProcessorBalance{}, utils.Retryable("processor get balance", err)
	}
	var parsed balanceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return finance.ProcessorBalance{}, utils.Retryable("processor get balance", err)
	}
	available, err := parsed.AvailableCents.Int64()
	if err != nil {
		return finance.ProcessorBalance{}, fmt.Errorf("processor returned bad available balance %q", parsed.AvailableCents)
	}
	pending, err := parsed.PendingCents.Int64()
	if err != nil {
		return finance.ProcessorBalance{}, fmt.Errorf("processor returned bad pending balance %q", parsed.PendingCents)
	}
	return finance.ProcessorBalance{
		AvailableCents: money.Cents(available),
		PendingCents:   money.Cents(pending),
	}, nil
}

func (c *Client) getList(ctx context.Context, path string, params url.Values) (listResponse, error) {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return listResponse{}, err
	}
	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return listResponse{}, err
	}
	return parsed, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKeyHdr == "Authorization" {
		req.Header.Set(c.apiKeyHdr, "Bearer "+c.apiKey)
	} else {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("processor api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
