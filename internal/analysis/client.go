package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"alphaearth-desktop/internal/cache"
	"alphaearth-desktop/internal/measure"
	"alphaearth-desktop/internal/ratelimit"
	"alphaearth-desktop/internal/viz"
)

// DatasetID is the AlphaEarth annual satellite embedding collection
const DatasetID = "GOOGLE/SATELLITE_EMBEDDING/V1/ANNUAL"

// Provider names the analysis service in rate limit bookkeeping
const Provider = "analysis"

var (
	ErrInvalidRequest = errors.New("invalid change area request")
	ErrRateLimited    = errors.New("analysis service rate limited")
	ErrRemote         = errors.New("analysis service error")
)

// Config configures the remote analysis service
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the remote embedding analysis service
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.ResultCache
	limiter    *ratelimit.Handler
}

// NewClient creates a client. cache and limiter are optional.
func NewClient(cfg Config, results *cache.ResultCache, limiter *ratelimit.Handler) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      results,
		limiter:    limiter,
	}
}

// IsReady reports whether a service endpoint is configured
func (c *Client) IsReady() bool {
	return c.baseURL != ""
}

type changeAreaRequest struct {
	Dataset   string            `json:"dataset"`
	Geometry  *geojson.Geometry `json:"geometry"`
	Year1     int               `json:"year1"`
	Year2     int               `json:"year2"`
	Threshold float64           `json:"threshold"`
}

type changeAreaResponse struct {
	AreaKm2 *float64 `json:"areaKm2"`
	Error   string   `json:"error,omitempty"`
}

// CalculateChangeArea returns the area in km² inside the polygon where the
// similarity between the two years' embeddings is below the threshold.
func (c *Client) CalculateChangeArea(ctx context.Context, req measure.Request) (float64, error) {
	if !c.IsReady() {
		return 0, fmt.Errorf("analysis service URL not configured: %w", measure.ErrClientUnavailable)
	}
	if err := validate(req); err != nil {
		return 0, err
	}

	key := cache.Key(req.Polygon.WKT(), req.YearA, req.YearB, req.SimilarityThreshold)
	if c.cache != nil {
		if area, ok := c.cache.Get(key); ok {
			log.Printf("[Analysis] Cache hit for %s", req.ID)
			return area, nil
		}
	}

	if c.limiter != nil && c.limiter.IsRateLimited(Provider) {
		return 0, ErrRateLimited
	}

	area, err := c.post(ctx, req)
	if err != nil {
		return 0, err
	}

	if c.cache != nil {
		c.cache.Put(key, area)
	}
	return area, nil
}

func validate(req measure.Request) error {
	if req.Polygon.IsZero() {
		return fmt.Errorf("%w: empty polygon", ErrInvalidRequest)
	}
	if err := viz.ValidateYear(req.YearA); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := viz.ValidateYear(req.YearB); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.SimilarityThreshold <= 0 || req.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: threshold %g must be in (0, 1]", ErrInvalidRequest, req.SimilarityThreshold)
	}
	return nil
}

func (c *Client) post(ctx context.Context, req measure.Request) (float64, error) {
	body := changeAreaRequest{
		Dataset:   DatasetID,
		Geometry:  geojson.NewGeometry(req.Polygon.Orb()),
		Year1:     req.YearA,
		Year2:     req.YearB,
		Threshold: req.SimilarityThreshold,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/change-area", bytes.NewReader(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if c.limiter != nil && c.limiter.CheckStatus(Provider, resp.StatusCode) {
		return 0, fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusServiceUnavailable:
		return 0, fmt.Errorf("analysis service returned %s: %w", resp.Status, measure.ErrClientUnavailable)
	default:
		msg := readErrorMessage(resp.Body)
		return 0, fmt.Errorf("%w: %s: %s", ErrRemote, resp.Status, msg)
	}

	var result changeAreaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return 0, fmt.Errorf("%w: %s", ErrRemote, result.Error)
	}
	if result.AreaKm2 == nil {
		return 0, fmt.Errorf("%w: response has no areaKm2", ErrRemote)
	}

	return *result.AreaKm2, nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload changeAreaResponse
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
