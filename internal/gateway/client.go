// Package gateway wraps the payment provider's transaction-by-reference
// endpoint behind a typed client.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotConfigured means no API key was provided; callers must not
	// attempt lookups until configuration is fixed.
	ErrNotConfigured = errors.New("gateway api key not configured")

	// ErrUnavailable covers transport failures and provider 5xx. The
	// caller skips the record this cycle; it is not a decision.
	ErrUnavailable = errors.New("gateway unavailable")
)

// Status is the provider's verdict on a client reference.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusDeclined   Status = "declined"
	// StatusUnknown means the provider has not observed the reference
	// yet; the withdrawal must be left unchanged.
	StatusUnknown Status = "unknown"
)

// Result is a decoded lookup response.
type Result struct {
	Status        Status
	ProviderRef   string
	FailureReason string
	FailedAt      *time.Time
}

// IsFailure reports whether the provider rejected the payment.
// Declined and failed are handled identically downstream.
func (r Result) IsFailure() bool {
	return r.Status == StatusFailed || r.Status == StatusDeclined
}

type envelope struct {
	Status bool `json:"status"`
	Data   struct {
		Status               string `json:"status"`
		TransactionReference string `json:"transactionReference"`
		ReasonForFailure     string `json:"reasonForFailure"`
		FailedAt             string `json:"failedAt"`
	} `json:"data"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client holds an API key.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Lookup fetches the provider's view of a client reference.
func (c *Client) Lookup(ctx context.Context, clientReference string) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/transaction-by-reference/%s", c.baseURL, clientReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
	}
	// 404 means the provider has not observed the reference.
	if resp.StatusCode == http.StatusNotFound {
		return &Result{Status: StatusUnknown}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway lookup failed with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if !env.Status {
		return &Result{Status: StatusUnknown}, nil
	}

	result := &Result{
		Status:        mapStatus(env.Data.Status),
		ProviderRef:   env.Data.TransactionReference,
		FailureReason: env.Data.ReasonForFailure,
	}
	if env.Data.FailedAt != "" {
		if t, err := time.Parse(time.RFC3339, env.Data.FailedAt); err == nil {
			result.FailedAt = &t
		}
	}
	return result, nil
}

// mapStatus maps the provider's inner status to ours. Anything we do
// not recognize is unknown, which leaves the withdrawal untouched.
func mapStatus(s string) Status {
	switch Status(s) {
	case StatusSuccessful, StatusProcessing, StatusFailed, StatusDeclined:
		return Status(s)
	default:
		return StatusUnknown
	}
}
