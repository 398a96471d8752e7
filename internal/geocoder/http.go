package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/metrics"
	"golang.org/x/time/rate"
)

// HTTPClient talks to the municipal geocoding REST service.
type HTTPClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.RoutingMetrics
}

type addressResponse struct {
	Status  string          `json:"status"`
	Results []addressResult `json:"results"`
}

type addressResult struct {
	StreetName        string  `json:"street_name"`
	NumberingType     string  `json:"numbering_type"`
	NeighborhoodID    string  `json:"neighborhood_id"`
	NeighborhoodName  string  `json:"neighborhood_name"`
	StatisticalSector string  `json:"statistical_sector"`
	XEtrs89           float64 `json:"x_etrs89"`
	YEtrs89           float64 `json:"y_etrs89"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	DistrictCode      string  `json:"district_code"`
}

type zoneResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

func NewHTTPClient(cfg config.GeocoderConfig, m *metrics.RoutingMetrics) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
	}
}

func (c *HTTPClient) ResolveAddress(ctx context.Context, addr Address) (*AddressInfo, error) {
	q := url.Values{}
	q.Set("street", NormalizeStreet(addr.Street))
	q.Set("number", addr.Number)
	if addr.Letter != "" {
		q.Set("letter", strings.ToUpper(addr.Letter))
	}

	var resp addressResponse
	if err := c.get(ctx, "address", "/address?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		c.observe("address", "not_found")
		return nil, notFound("no match for %q %q (status %s)", addr.Street, addr.Number, resp.Status)
	}
	c.observe("address", "ok")

	r := resp.Results[0]
	info := &AddressInfo{
		Street:            r.StreetName,
		NumberingType:     r.NumberingType,
		NeighborhoodID:    r.NeighborhoodID,
		Neighborhood:      r.NeighborhoodName,
		StatisticalSector: r.StatisticalSector,
		XCoordinate:       r.XEtrs89,
		YCoordinate:       r.YEtrs89,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
	}
	if code, err := strconv.ParseUint(strings.TrimSpace(r.DistrictCode), 10, 32); err == nil {
		info.DistrictID = uint(code)
	}
	return info, nil
}

func (c *HTTPClient) ResolvePolygonCode(ctx context.Context, zone string, info *AddressInfo) (string, error) {
	if info == nil {
		return "", notFound("no coordinates to locate zone %s", zone)
	}
	q := url.Values{}
	q.Set("type", zone)
	q.Set("x", strconv.FormatFloat(info.XCoordinate, 'f', 2, 64))
	q.Set("y", strconv.FormatFloat(info.YCoordinate, 'f', 2, 64))

	var resp zoneResponse
	if err := c.get(ctx, "zone", "/zone?"+q.Encode(), &resp); err != nil {
		return "", err
	}
	if resp.Status != "OK" {
		c.observe("zone", "not_found")
		return "", notFound("zone %s lookup returned status %s", zone, resp.Status)
	}
	c.observe("zone", "ok")
	return strings.TrimSpace(resp.Code), nil
}

func (c *HTTPClient) get(ctx context.Context, op, path string, dest interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(reqCtx); err != nil {
		c.observe(op, "error")
		return notFound("rate limiter: %v", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.observe(op, "error")
		return notFound("creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "error")
		return notFound("geocoder request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.observe(op, "error")
		return notFound("geocoder returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		c.observe(op, "error")
		return notFound("decoding %s response: %v", op, err)
	}
	return nil
}

func (c *HTTPClient) observe(op, outcome string) {
	if c.metrics != nil {
		c.metrics.GeocoderRequests.WithLabelValues(op, outcome).Inc()
	}
}

func (c *HTTPClient) String() string {
	return fmt.Sprintf("http geocoder (%s)", c.baseURL)
}
