// Package payout talks to the xRocket Pay transfer API used for automated
// withdrawals.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// transferNamespace scopes the deterministic transfer ids.
var transferNamespace = uuid.MustParse("6f2b6a0e-3c57-4d0c-9a53-0d4b2f1e7c11")

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TransferID derives the idempotency key for a withdrawal request so that
// a retried payout can never be executed twice by the provider.
func TransferID(requestID uint) string {
	return uuid.NewSHA1(transferNamespace, []byte("withdrawal-"+strconv.FormatUint(uint64(requestID), 10))).String()
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Rocket-Pay-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api error: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	return respBody, nil
}

// Transfer sends amount of currency to a Telegram user.
func (c *Client) Transfer(ctx context.Context, requestID uint, userID int64, currency string, amount decimal.Decimal) (*Transfer, error) {
	reqBody := TransferRequest{
		TgUserID:    userID,
		Currency:    currency,
		Amount:      json.Number(amount.String()),
		TransferID:  TransferID(requestID),
		Description: fmt.Sprintf("Withdrawal #%d", requestID),
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/app/transfer", reqBody)
	if err != nil {
		return nil, err
	}

	var out APIResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("transfer rejected: %s", out.Message)
	}

	return out.Data, nil
}
