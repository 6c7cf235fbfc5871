// Package geocode resolves free-text addresses and coordinates against Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/pkg/config"
)

// Result is a best-effort lookup outcome. OK is false whenever nothing usable came back.
type Result struct {
	OK         bool    `json:"ok"`
	Address    string  `json:"address,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
	Importance float64 `json:"importance,omitempty"`
}

// Client talks to a Nominatim compatible endpoint.
type Client struct {
	baseURL       string
	userAgent     string
	minImportance float64
	http          *http.Client
	logger        *zap.Logger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.GeocodingConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:     cfg.UserAgent,
		minImportance: cfg.MinImportance,
		http:          &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
	Error       string  `json:"error"`
}

// Search geocodes a free-text address. Low-importance matches are discarded.
func (c *Client) Search(ctx context.Context, address string) (Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}, nil
	}
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("addressdetails", "0")

	var places []place
	if !c.get(ctx, "/search", q, &places) || len(places) == 0 {
		return Result{}, nil
	}
	res, ok := places[0].toResult()
	if !ok || res.Importance < c.minImportance {
		return Result{}, nil
	}
	return res, nil
}

// Reverse resolves coordinates into a display address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Result, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Result{}, nil
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "jsonv2")

	var p place
	if !c.get(ctx, "/reverse", q, &p) || p.Error != "" {
		return Result{}, nil
	}
	res, ok := p.toResult()
	if !ok {
		return Result{}, nil
	}
	return res, nil
}

func (p place) toResult() (Result, bool) {
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lon, errLon := strconv.ParseFloat(p.Lon, 64)
	if errLat != nil || errLon != nil {
		return Result{}, false
	}
	return Result{OK: true, Address: p.DisplayName, Lat: lat, Lon: lon, Importance: p.Importance}, true
}

// get performs the request and decodes into out; any failure is logged and reported as false.
func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode()), nil)
	if err != nil {
		c.logger.Warn("geocode request build failed", zap.Error(err))
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("geocode request failed", zap.String("path", path), zap.Error(err))
		return false
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("geocode unexpected status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("geocode decode failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}
