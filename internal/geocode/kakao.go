package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coumap/crawler/internal/metrics"
)

const (
	kakaoKeywordURL = "https://dapi.kakao.com/v2/local/search/keyword.json"
	kakaoAddressURL = "https://dapi.kakao.com/v2/local/search/address.json"
)

// KakaoProvider queries the Kakao local search API.
type KakaoProvider struct {
	apiKey     string
	keywordURL string
	addressURL string
	httpClient *http.Client
	delay      time.Duration
}

// NewKakaoProvider creates a Kakao provider. Every call blocks for delay
// after it returns, to respect the per-key rate limit.
func NewKakaoProvider(apiKey string, timeout, delay time.Duration) (*KakaoProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("kakao: api key is required")
	}
	return &KakaoProvider{
		apiKey:     apiKey,
		keywordURL: kakaoKeywordURL,
		addressURL: kakaoAddressURL,
		httpClient: &http.Client{Timeout: timeout},
		delay:      delay,
	}, nil
}

func (p *KakaoProvider) Name() string { return "kakao" }

type kakaoResponse struct {
	Documents []struct {
		X               string `json:"x"`
		Y               string `json:"y"`
		PlaceName       string `json:"place_name"`
		AddressName     string `json:"address_name"`
		RoadAddressName string `json:"road_address_name"`
	} `json:"documents"`
}

// QueryByKeyword resolves a free-text query via keyword search.
func (p *KakaoProvider) QueryByKeyword(ctx context.Context, query string) (Result, error) {
	params := url.Values{
		"query": {query},
		"size":  {"1"},
		"sort":  {"accuracy"},
	}
	return p.get(ctx, p.keywordURL, params)
}

// QueryByAddress resolves an address via the geocoding endpoint.
func (p *KakaoProvider) QueryByAddress(ctx context.Context, addr string) (Result, error) {
	params := url.Values{"query": {addr}}
	return p.get(ctx, p.addressURL, params)
}

func (p *KakaoProvider) get(ctx context.Context, endpoint string, params url.Values) (Result, error) {
	defer rateLimit(ctx, p.delay)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("kakao: create request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "error").Inc()
		return Result{}, fmt.Errorf("kakao: call: %w", err)
	}
	defer resp.Body.Close()
	metrics.GeocodeLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "error").Inc()
		return Result{}, fmt.Errorf("kakao: http %d", resp.StatusCode)
	}

	var body kakaoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "error").Inc()
		return Result{}, fmt.Errorf("kakao: decode response: %w", err)
	}

	if len(body.Documents) == 0 {
		metrics.GeocodeCalls.WithLabelValues(p.Name(), "miss").Inc()
		return Result{}, nil
	}

	doc := body.Documents[0]
	lat, err := strconv.ParseFloat(doc.Y, 64)
	if err != nil {
		return Result{}, fmt.Errorf("kakao: parse latitude %q: %w", doc.Y, err)
	}
	lon, err := strconv.ParseFloat(doc.X, 64)
	if err != nil {
		return Result{}, fmt.Errorf("kakao: parse longitude %q: %w", doc.X, err)
	}

	metrics.GeocodeCalls.WithLabelValues(p.Name(), "hit").Inc()
	return Result{
		Found:       true,
		Latitude:    lat,
		Longitude:   lon,
		PlaceName:   doc.PlaceName,
		LotAddress:  doc.AddressName,
		RoadAddress: doc.RoadAddressName,
	}, nil
}

// rateLimit blocks for the provider's fixed inter-call delay, bailing early
// only when the context is cancelled.
func rateLimit(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
