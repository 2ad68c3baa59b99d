// Package ingest is the agent-side client of the tracking ingestion
// endpoint. It carries the courier's bearer credential; callers fall back to
// direct store writes when a report fails.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/curbfleet/dispatch/internal/telemetry"
)

// ErrIdentityMismatch is returned when the endpoint rejects the report
// because the credential identity does not match the submitted courier id.
var ErrIdentityMismatch = errors.New("credential identity does not match courier id")

type reportPayload struct {
	CourierID    string  `json:"courier_id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	JobID        *string `json:"job_id,omitempty"`
	BatteryLevel *int    `json:"battery_level,omitempty"`
	IsCharging   *bool   `json:"is_charging,omitempty"`
}

// Config wires a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client posts position reports to the tracking service.
type Client struct {
	baseURL string
	token   string
	session *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		session: &http.Client{Timeout: timeout},
	}
}

// Report submits one position sample. Retry is left to the caller's throttle
// cycle; a failed report is replaced by the next gate opening.
func (c *Client) Report(ctx context.Context, r telemetry.Report) error {
	payload := reportPayload{
		CourierID:    r.CourierID,
		Latitude:     r.Lat,
		Longitude:    r.Lng,
		JobID:        r.JobID,
		BatteryLevel: r.BatteryLevel,
		IsCharging:   r.Charging,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/tracking", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.session.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return ErrIdentityMismatch
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("report rejected with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
