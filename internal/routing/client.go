// Package routing talks to the external directions and geocoding provider.
// It implements the route-synchronizer ports over a Directions-style JSON
// API with retry on transient failures.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/curbfleet/dispatch/internal/geo"
	"github.com/curbfleet/dispatch/internal/routesync"
)

// ErrNoRoute is returned when the provider finds no route or no geocode
// match.
var ErrNoRoute = errors.New("no route found")

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Config wires a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client calls the directions/geocoding provider. It satisfies both the
// DirectionsProvider and Geocoder ports.
type Client struct {
	baseURL string
	apiKey  string
	session *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		session: &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429/5xx responses)
// with exponential backoff while respecting context cancellation.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 4
	backoff := 200 * time.Millisecond

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Text  string `json:"text"`
				Value int    `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text  string `json:"text"`
				Value int    `json:"value"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route fetches a driving route from origin to destination.
func (c *Client) Route(ctx context.Context, origin, destination geo.Point) (routesync.Plan, error) {
	endpoint := c.baseURL + "/directions/json"

	makeReq := func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
		q.Set("destination", fmt.Sprintf("%f,%f", destination.Lat, destination.Lng))
		q.Set("mode", "driving")
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	}

	resp, err := c.doWithRetry(ctx, makeReq)
	if err != nil {
		return routesync.Plan{}, fmt.Errorf("fetch directions: %w", err)
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return routesync.Plan{}, fmt.Errorf("decode directions response: %w", err)
	}

	if decoded.Status != "OK" || len(decoded.Routes) == 0 || len(decoded.Routes[0].Legs) == 0 {
		return routesync.Plan{}, fmt.Errorf("%w: provider status %q", ErrNoRoute, decoded.Status)
	}

	route := decoded.Routes[0]
	leg := route.Legs[0]

	return routesync.Plan{
		EncodedPath:     route.OverviewPolyline.Points,
		DistanceMeters:  leg.Distance.Value,
		DistanceText:    leg.Distance.Text,
		DurationSeconds: leg.Duration.Value,
		DurationText:    leg.Duration.Text,
		ComputedAt:      time.Now(),
	}, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Point, error) {
	endpoint := c.baseURL + "/geocode/json"

	makeReq := func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("address", address)
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	}

	resp, err := c.doWithRetry(ctx, makeReq)
	if err != nil {
		return geo.Point{}, fmt.Errorf("fetch geocode: %w", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return geo.Point{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return geo.Point{}, fmt.Errorf("%w: no geocode results for %q", ErrNoRoute, address)
	}

	loc := decoded.Results[0].Geometry.Location
	return geo.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
