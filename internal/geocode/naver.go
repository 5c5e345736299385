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

	"github.com/coumap/crawler/internal/metrics"
)

const naverLocalURL = "https://openapi.naver.com/v1/search/local.json"

// naverCoordScale converts the API's KATECH-scaled integers to WGS84 degrees.
const naverCoordScale = 1e-7

// NaverProvider queries the Naver local search API.
type NaverProvider struct {
	clientID     string
	clientSecret string
	searchURL    string
	httpClient   *http.Client
	delay        time.Duration
}

// NewNaverProvider creates a Naver provider. Every call blocks for delay
// after it returns, to respect the per-key rate limit.
func NewNaverProvider(clientID, clientSecret string, timeout, delay time.Duration) (*NaverProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("naver: client id and secret are required")
	}
	return &NaverProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		searchURL:    naverLocalURL,
		httpClient:   &http.Client{Timeout: timeout},
		delay:        delay,
	}, nil
}

func (p *NaverProvider) Name() string { return "naver" }

type naverResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Address     string `json:"address"`
		RoadAddress string `json:"roadAddress"`
		MapX        string `json:"mapx"`
		MapY        string `json:"mapy"`
	} `json:"items"`
}

// QueryByKeyword resolves a free-text query via local search.
func (p *NaverProvider) QueryByKeyword(ctx context.Context, query string) (Result, error) {
	defer rateLimit(ctx, p.delay)

	params := url.Values{
		"query":   {query},
		"display": {"1"},
		"start":   {"1"},
		"sort":    {"comment"},
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("naver: create request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", p.clientID)
	req.Header.Set("X-Naver-Client-Secret", p.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "error").Inc()
		return Result{}, fmt.Errorf("naver: call: %w", err)
	}
	defer resp.Body.Close()
	metrics.GeocodeLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "error").Inc()
		return Result{}, fmt.Errorf("naver: http %d", resp.StatusCode)
	}

	var body naverResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "error").Inc()
		return Result{}, fmt.Errorf("naver: decode response: %w", err)
	}

	if len(body.Items) == 0 {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "miss").Inc()
		return Result{}, nil
	}

	item := body.Items[0]
	if item.MapX == "" || item.MapY == "" {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "miss").Inc()
		return Result{}, nil
	}

	mapx, err := strconv.ParseFloat(item.MapX, 64)
	if err != nil {
		return Result{}, fmt.Errorf("naver: parse mapx %q: %w", item.MapX, err)
	}
	mapy, err := strconv.ParseFloat(item.MapY, 64)
	if err != nil {
		return Result{}, fmt.Errorf("naver: parse mapy %q: %w", item.MapY, err)
	}

	metrics.GeocodeCalls.WithLabelValues(p.Name(), "hit").Inc()
	return Result{
		Found:       true,
		Latitude:    mapy * naverCoordScale,
		Longitude:   mapx * naverCoordScale,
		PlaceName:   stripBoldTags(item.Title),
		LotAddress:  strings.TrimSpace(item.Address),
		RoadAddress: strings.TrimSpace(item.RoadAddress),
	}, nil
}

// QueryByAddress has no dedicated Naver endpoint; keyword search covers it.
func (p *NaverProvider) QueryByAddress(ctx context.Context, addr string) (Result, error) {
	return p.QueryByKeyword(ctx, addr)
}

func stripBoldTags(s string) string {
	s = strings.ReplaceAll(s, "<b>", "")
	return strings.ReplaceAll(s, "</b>", "")
}
