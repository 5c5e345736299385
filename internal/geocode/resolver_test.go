package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeProvider struct {
	name    string
	results map[string]Result // query → result
	errs    map[string]error  // query → transport error
	calls   []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) QueryByKeyword(ctx context.Context, query string) (Result, error) {
	f.calls = append(f.calls, query)
	if err, ok := f.errs[query]; ok {
		return Result{}, err
	}
	if res, ok := f.results[query]; ok {
		return res, nil
	}
	return Result{}, nil
}

func (f *fakeProvider) QueryByAddress(ctx context.Context, addr string) (Result, error) {
	return f.QueryByKeyword(ctx, addr)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolvePrimaryHit(t *testing.T) {
	primary := &fakeProvider{
		name: "naver",
		results: map[string]Result{
			"스타벅스 서울 강남구 역삼동 1": {
				Found:       true,
				Latitude:    37.5,
				Longitude:   127.03,
				PlaceName:   "스타벅스 역삼점",
				LotAddress:  "서울 강남구 역삼동 1",
				RoadAddress: "서울 강남구 테헤란로 10",
			},
		},
	}
	secondary := &fakeProvider{name: "kakao"}

	r := NewResolver(primary, secondary, TownMatchStrict, testLogger())
	res := r.Resolve(context.Background(), "스타벅스", "카페", "서울 강남구 역삼동 1")

	if !res.Found {
		t.Fatalf("Resolve not found, trace: %s", res.QueryTrace)
	}
	if res.Source != SourcePrimary || res.Provider != "naver" {
		t.Errorf("source = %s/%s, want primary/naver", res.Source, res.Provider)
	}
	if res.FinalAddress != "서울 강남구 테헤란로 10" {
		t.Errorf("FinalAddress = %q, want road address", res.FinalAddress)
	}
	if len(secondary.calls) != 0 {
		t.Errorf("secondary was called %d times before primary exhausted", len(secondary.calls))
	}
}

// Corporate prefix is stripped, the primary exhausts all scenarios, and the
// secondary matches the bare-name scenario with a consistent lot address.
func TestResolveSecondaryFallback(t *testing.T) {
	primary := &fakeProvider{name: "naver"}
	secondary := &fakeProvider{
		name: "kakao",
		results: map[string]Result{
			"스타벅스": {
				Found:      true,
				Latitude:   37.49,
				Longitude:  127.03,
				LotAddress: "서울 강남구 역삼동",
			},
		},
	}

	r := NewResolver(primary, secondary, TownMatchStrict, testLogger())
	res := r.Resolve(context.Background(), "(주)스타벅스", "카페", "서울 강남구 역삼동 1")

	if !res.Found {
		t.Fatalf("Resolve not found, trace: %s", res.QueryTrace)
	}
	if res.Source != SourceSecondary || res.Provider != "kakao" {
		t.Errorf("source = %s/%s, want secondary/kakao", res.Source, res.Provider)
	}
	if res.FinalAddress != "서울 강남구 역삼동" {
		t.Errorf("FinalAddress = %q, want lot address fallback", res.FinalAddress)
	}

	// Fallback order is fixed: every primary scenario precedes any secondary call.
	wantScenarios := BuildScenarios("스타벅스", CleanAddress("서울 강남구 역삼동 1"))
	if len(primary.calls) != len(wantScenarios) {
		t.Errorf("primary saw %d scenarios, want %d", len(primary.calls), len(wantScenarios))
	}
}

func TestResolveValidationRejectsWrongCity(t *testing.T) {
	hit := Result{
		Found:      true,
		Latitude:   37.5,
		Longitude:  127.0,
		LotAddress: "서울 서초구 서초동 100",
	}
	primary := &fakeProvider{
		name: "naver",
		results: map[string]Result{
			"스타벅스 서울 강남구 역삼동 1": hit,
			"스타벅스 서울 강남구 역삼동":   hit,
			"스타벅스 서울 강남구":       hit,
			"스타벅스 서울":           hit,
			"스타벅스":              hit,
		},
	}

	r := NewResolver(primary, nil, TownMatchStrict, testLogger())
	res := r.Resolve(context.Background(), "스타벅스", "카페", "서울 강남구 역삼동 1")

	if res.Found {
		t.Fatal("Resolve accepted a result in the wrong city")
	}
	if res.Source != SourceNone {
		t.Errorf("source = %s, want none", res.Source)
	}
}

func TestResolveTownMatchModes(t *testing.T) {
	hit := Result{
		Found:      true,
		Latitude:   37.5,
		Longitude:  127.0,
		LotAddress: "서울 강남구 대치동 500",
	}
	newPrimary := func() *fakeProvider {
		return &fakeProvider{
			name:    "naver",
			results: map[string]Result{"스타벅스 서울 강남구 역삼동 1": hit},
		}
	}

	strict := NewResolver(newPrimary(), nil, TownMatchStrict, testLogger())
	if res := strict.Resolve(context.Background(), "스타벅스", "카페", "서울 강남구 역삼동 1"); res.Found {
		t.Error("strict mode accepted a town mismatch")
	}

	lenient := NewResolver(newPrimary(), nil, TownMatchLenient, testLogger())
	if res := lenient.Resolve(context.Background(), "스타벅스", "카페", "서울 강남구 역삼동 1"); !res.Found {
		t.Error("lenient mode rejected a lot-address town mismatch")
	}
}

func TestResolveNumberedTownFuzzyMatch(t *testing.T) {
	primary := &fakeProvider{
		name: "naver",
		results: map[string]Result{
			"우성정육점 서울 강남구 개포1동 25": {
				Found:      true,
				Latitude:   37.48,
				Longitude:  127.06,
				LotAddress: "서울 강남구 개포동 25",
			},
		},
	}

	r := NewResolver(primary, nil, TownMatchStrict, testLogger())
	res := r.Resolve(context.Background(), "우성정육점", "정육점", "서울 강남구 개포1동 25")

	if !res.Found {
		t.Fatalf("digit-stripped town match rejected, trace: %s", res.QueryTrace)
	}
}

func TestResolveTransportErrorAdvancesScenario(t *testing.T) {
	primary := &fakeProvider{
		name: "naver",
		errs: map[string]error{
			"스타벅스 서울 강남구 역삼동 1": errors.New("connection reset"),
		},
		results: map[string]Result{
			"스타벅스 서울 강남구 역삼동": {
				Found:      true,
				Latitude:   37.5,
				Longitude:  127.03,
				LotAddress: "서울 강남구 역삼동 1",
			},
		},
	}

	r := NewResolver(primary, nil, TownMatchStrict, testLogger())
	res := r.Resolve(context.Background(), "스타벅스", "카페", "서울 강남구 역삼동 1")

	if !res.Found {
		t.Fatalf("transport error aborted the scenario loop, trace: %s", res.QueryTrace)
	}
	if len(primary.calls) != 2 {
		t.Errorf("primary called %d times, want 2", len(primary.calls))
	}
}

func TestResolveExhaustedTraceCoversBothProviders(t *testing.T) {
	primary := &fakeProvider{name: "naver"}
	secondary := &fakeProvider{name: "kakao"}

	r := NewResolver(primary, secondary, TownMatchStrict, testLogger())
	res := r.Resolve(context.Background(), "없는가게", "기타", "서울 강남구 개포동 999")

	if res.Found {
		t.Fatal("Resolve found a result from empty providers")
	}
	if !strings.Contains(res.QueryTrace, "naver:") || !strings.Contains(res.QueryTrace, "kakao:") {
		t.Errorf("trace missing provider attempts: %s", res.QueryTrace)
	}
	if len(primary.calls) == 0 || len(secondary.calls) == 0 {
		t.Error("both providers should have been attempted")
	}
}
