package toolroomsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Toolroom HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Item represents the API item model.
type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
	Status     string `json:"status"`
}

// Request represents a borrow or calibration request.
type Request struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	ItemID      string `json:"item_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	RequestDate string `json:"request_date"`
}

// Rental represents a loan spawned by an approved borrow request.
type Rental struct {
	ID               string  `json:"id"`
	RequestID        string  `json:"request_id"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	ActualReturnDate *string `json:"actual_return_date,omitempty"`
	FineCents        *int64  `json:"fine_cents,omitempty"`
	Status           string  `json:"status"`
}

// Calibration represents a calibration spawned by an approved request.
type Calibration struct {
	ID              string  `json:"id"`
	RequestID       string  `json:"request_id"`
	CalibrationDate string  `json:"calibration_date"`
	Result          *string `json:"result,omitempty"`
	CertificateURL  *string `json:"certificate_url,omitempty"`
	Status          string  `json:"status"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SubmitRequest submits a borrow or calibration request for an item.
func (c *Client) SubmitRequest(ctx context.Context, itemID, reqType, reason string) (Request, error) {
	body := map[string]any{
		"item_id": itemID,
		"type":    reqType,
		"reason":  reason,
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests", body, &resp)
	return resp, err
}

// Decide approves or rejects a pending request. Outcome is "approve" or "reject".
func (c *Client) Decide(ctx context.Context, requestID, outcome string) (Request, error) {
	body := map[string]any{"outcome": outcome}
	var resp Request
	endpoint := fmt.Sprintf("v0/requests/%s/decision", url.PathEscape(requestID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Return closes out a rental.
func (c *Client) Return(ctx context.Context, rentalID string) (Rental, error) {
	var resp Rental
	endpoint := fmt.Sprintf("v0/rentals/%s/return", url.PathEscape(rentalID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// CompleteCalibration finishes a scheduled calibration.
func (c *Client) CompleteCalibration(ctx context.Context, calibrationID, result string, failed bool) (Calibration, error) {
	body := map[string]any{
		"result": result,
		"failed": failed,
	}
	var resp Calibration
	endpoint := fmt.Sprintf("v0/calibrations/%s/complete", url.PathEscape(calibrationID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetItem fetches an item by id.
func (c *Client) GetItem(ctx context.Context, itemID string) (Item, error) {
	var resp Item
	endpoint := fmt.Sprintf("v0/items/%s", url.PathEscape(itemID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListItems returns items, optionally filtered by status.
func (c *Client) ListItems(ctx context.Context, status string) ([]Item, error) {
	endpoint := "v0/items"
	if status != "" {
		endpoint = fmt.Sprintf("%s?status=%s", endpoint, url.QueryEscape(status))
	}
	var resp []Item
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
