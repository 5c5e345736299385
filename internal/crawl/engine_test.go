package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coumap/crawler/internal/core/domain"
	"github.com/coumap/crawler/internal/geocode"
	"github.com/coumap/crawler/internal/infra/storage/memory"
)

// fakePage emulates the widget page's region filter and result globals.
type fakePage struct {
	provinces []domain.RegionOption
	districts map[string][]domain.RegionOption
	dongs     map[string][]domain.RegionOption
	listings  map[string][]domain.Listing // keyed by dong label

	selectedProvince string
	selectedDistrict string
	selectedDong     string

	reopens    int
	searches   int
	sliceCalls int

	searchErr error
}

type fakeSession struct {
	page  *fakePage
	quits int
}

var (
	setArea2Re = regexp.MustCompile(`setArea2\("([^"]*)"\)`)
	setArea3Re = regexp.MustCompile(`setArea3\("([^"]*)"\)`)
	dongIdxRe  = regexp.MustCompile(`tabs\[(\d+)\]`)
	sliceRe    = regexp.MustCompile(`var start = (\d+);`)
	countRe    = regexp.MustCompile(`start \+ (\d+),`)
)

func (s *fakeSession) Navigate(url string) error { return nil }
func (s *fakeSession) CurrentURL() (string, error) {
	return "https://example.test/widget", nil
}
func (s *fakeSession) Title() (string, error) { return "widget", nil }
func (s *fakeSession) Quit() error {
	s.quits++
	return nil
}

func (s *fakeSession) RunScript(script string, out any) error {
	v, err := s.eval(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *fakeSession) eval(script string) (any, error) {
	p := s.page
	switch {
	case strings.Contains(script, "agreePopup"):
		return "no_popup", nil
	case strings.Contains(script, "radiusRdo2"):
		return "conditions_set", nil
	case strings.Contains(script, "'reopened'"):
		p.reopens++
		return "reopened", nil
	case strings.Contains(script, `a[href="#filterPopup"]`):
		return "filter_opened", nil
	case strings.Contains(script, "Array.from(sel.options)"):
		return p.provinces, nil
	case strings.Contains(script, "setArea2("):
		p.selectedProvince = setArea2Re.FindStringSubmatch(script)[1]
		return "province_selected", nil
	case strings.Contains(script, "setArea3("):
		p.selectedDistrict = setArea3Re.FindStringSubmatch(script)[1]
		return "district_selected", nil
	case strings.Contains(script, "#areaDepth2 li a"):
		return p.districts[p.selectedProvince], nil
	case strings.Contains(script, "#areaDepth3 li a"):
		return p.dongs[p.selectedDistrict], nil
	case strings.Contains(script, "dong_selected:"):
		idx, _ := strconv.Atoi(dongIdxRe.FindStringSubmatch(script)[1])
		dongs := p.dongs[p.selectedDistrict]
		if idx >= len(dongs) {
			return "dong_selection_failed", nil
		}
		p.selectedDong = dongs[idx].Label
		return "dong_selected:" + p.selectedDong, nil
	case strings.Contains(script, "area_selection_completed"):
		return "area_selection_completed", nil
	case strings.Contains(script, "doSearch"):
		if p.searchErr != nil {
			return nil, p.searchErr
		}
		p.searches++
		return "search_executed", nil
	case strings.Contains(script, "data-comma"):
		return len(p.listings[p.selectedDong]), nil
	case strings.Contains(script, "var start ="):
		p.sliceCalls++
		start, _ := strconv.Atoi(sliceRe.FindStringSubmatch(script)[1])
		count, _ := strconv.Atoi(countRe.FindStringSubmatch(script)[1])
		all := p.listings[p.selectedDong]
		end := start + count
		if end > len(all) {
			end = len(all)
		}
		if start >= len(all) {
			return []domain.Listing{}, nil
		}
		return all[start:end], nil
	case strings.Contains(script, "seen[key]"):
		var out []domain.Listing
		seen := make(map[string]bool)
		for _, l := range p.listings[p.selectedDong] {
			key := l.Name + "|" + l.Address
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, l)
		}
		return out, nil
	case strings.Contains(script, "window.gc"):
		return "ok", nil
	case strings.Contains(script, "readyState"):
		return "complete", nil
	}
	return nil, fmt.Errorf("unexpected script: %.60s", script)
}

// stubResolver resolves by merchant name from a fixed table; unknown names
// fail with a canned trace.
type stubResolver struct {
	results map[string]geocode.Resolution
}

func (r *stubResolver) Resolve(ctx context.Context, name, category, addr string) geocode.Resolution {
	if res, ok := r.results[name]; ok {
		return res
	}
	return geocode.Resolution{
		Found:      false,
		Source:     geocode.SourceNone,
		QueryTrace: "kakao:" + name + " → naver:" + name,
	}
}

type captureSink struct {
	got []*domain.FailedLookup
}

func (c *captureSink) AddAll(ctx context.Context, lookups []*domain.FailedLookup) error {
	c.got = append(c.got, lookups...)
	return nil
}

type capturePositions struct {
	positions []string
}

func (c *capturePositions) Save(ctx context.Context, province, district, town string, stats domain.RunStats) error {
	c.positions = append(c.positions, province+"/"+district+"/"+town)
	return nil
}

type engineFixture struct {
	page    *fakePage
	engine  *Engine
	stores  *memory.StoreRepo
	sink    *captureSink
	saves   *capturePositions
	session *fakeSession
}

func newEngineFixture(page *fakePage, resolver CoordinateResolver, cfg EngineConfig) *engineFixture {
	session := &fakeSession{page: page}
	exec := NewExecutor(session, nil, ExecutorConfig{RecoveryEnabled: false}, testLogger())
	widget := NewWidget(exec, WidgetConfig{
		EntryURL:    "https://example.test/widget",
		SettlePause: time.Nanosecond,
		ResultPause: time.Nanosecond,
		SlicePause:  time.Nanosecond,
	}, testLogger())

	stores := memory.NewStoreRepo()
	sink := &captureSink{}
	saves := &capturePositions{}
	cfg.BatchPause = time.Nanosecond

	engine := NewEngine(EngineDeps{
		Widget:     widget,
		Executor:   exec,
		Resolver:   resolver,
		Regions:    memory.NewRegionRepo(),
		Categories: memory.NewCategoryRepo(),
		Stores:     stores,
		Failed:     sink,
		Checkpoint: saves,
	}, cfg, testLogger())

	return &engineFixture{page: page, engine: engine, stores: stores, sink: sink, saves: saves, session: session}
}

func seoulPage() *fakePage {
	return &fakePage{
		provinces: []domain.RegionOption{{Value: "11", Label: "서울", Index: 1}},
		districts: map[string][]domain.RegionOption{
			"11": {{Value: "1101", Label: "강남구", Index: 0}},
		},
		dongs: map[string][]domain.RegionOption{
			"1101": {{Label: "개포동", Index: 0}, {Label: "역삼동", Index: 1}},
		},
		listings: map[string][]domain.Listing{},
	}
}

func TestEngineRunSingleLeaf(t *testing.T) {
	page := seoulPage()
	page.listings["개포동"] = []domain.Listing{
		{Name: "스타벅스", Address: "서울 강남구 개포동 12", Category: "카페"},
		{Name: "스타벅스 개포점", Address: "서울 강남구 개포동 12-1", Category: "카페"},
		{Name: "무명분식", Address: "서울 강남구 개포동 34", Category: "음식점"},
	}

	hit := geocode.Resolution{
		Found:        true,
		Source:       geocode.SourcePrimary,
		Provider:     "kakao",
		Latitude:     37.48,
		Longitude:    127.06,
		PlaceName:    "스타벅스 개포점",
		FinalAddress: "서울특별시 강남구 개포로 123",
	}
	resolver := &stubResolver{results: map[string]geocode.Resolution{
		"스타벅스":     hit,
		"스타벅스 개포점": hit,
	}}

	fx := newEngineFixture(page, resolver, EngineConfig{
		Province: "서울", District: "강남구", Dong: "개포동",
	})

	stats, err := fx.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.RegionsCrawled != 1 {
		t.Errorf("RegionsCrawled = %d, want 1 (targeted leaf ends the run)", stats.RegionsCrawled)
	}
	if stats.TotalFound != 3 {
		t.Errorf("TotalFound = %d, want 3", stats.TotalFound)
	}
	if stats.TotalSaved != 1 {
		t.Errorf("TotalSaved = %d, want 1", stats.TotalSaved)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1 (same resolved triple twice)", stats.Duplicates)
	}
	if stats.PrimarySuccess != 2 {
		t.Errorf("PrimarySuccess = %d, want 2", stats.PrimarySuccess)
	}
	if stats.APIFailed != 1 {
		t.Errorf("APIFailed = %d, want 1", stats.APIFailed)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}

	stored := fx.stores.All()
	if len(stored) != 1 {
		t.Fatalf("stored %d stores, want 1", len(stored))
	}
	got := stored[0]
	if got.Name != "스타벅스 개포점" || got.Address != "서울특별시 강남구 개포로 123" {
		t.Errorf("stored (%q, %q), provider result should win over the listing", got.Name, got.Address)
	}
	if !got.HasCoordinates() {
		t.Error("stored store has no coordinates")
	}

	if len(fx.sink.got) != 1 {
		t.Fatalf("recorded %d failed lookups, want 1", len(fx.sink.got))
	}
	fl := fx.sink.got[0]
	if fl.StoreName != "무명분식" {
		t.Errorf("failed lookup for %q, want 무명분식", fl.StoreName)
	}
	if fl.RegionInfo != "서울특별시 강남구 개포동" {
		t.Errorf("RegionInfo = %q", fl.RegionInfo)
	}
	if fl.SearchAttempts == "" {
		t.Error("failed lookup carries no query trace")
	}

	if len(fx.saves.positions) != 1 || fx.saves.positions[0] != "서울/강남구/개포동" {
		t.Errorf("checkpoints = %v", fx.saves.positions)
	}
}

func TestEngineFullSweepReopensBetweenSiblings(t *testing.T) {
	page := seoulPage()

	fx := newEngineFixture(page, &stubResolver{}, EngineConfig{})

	stats, err := fx.engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.RegionsCrawled != 2 {
		t.Errorf("RegionsCrawled = %d, want 2", stats.RegionsCrawled)
	}
	if page.searches != 2 {
		t.Errorf("searches = %d, want 2", page.searches)
	}
	if page.reopens != 1 {
		t.Errorf("reopens = %d, want 1 (between the two dong siblings)", page.reopens)
	}
	if len(fx.saves.positions) != 2 {
		t.Errorf("checkpoints = %v, want one per leaf", fx.saves.positions)
	}
}

func TestEngineExtractPagination(t *testing.T) {
	cases := []struct {
		count      int
		sliceCalls int
	}{
		{0, 0},
		{1, 0},
		{199, 0},
		{200, 0},
		{500, 0},
		{501, 3},
		{1000, 5},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("count_%d", c.count), func(t *testing.T) {
			page := seoulPage()
			page.selectedDong = "개포동"
			listings := make([]domain.Listing, c.count)
			for i := range listings {
				listings[i] = domain.Listing{
					Name:    fmt.Sprintf("가게%d", i),
					Address: fmt.Sprintf("서울 강남구 개포동 %d", i+1),
				}
			}
			page.listings["개포동"] = listings

			fx := newEngineFixture(page, &stubResolver{}, EngineConfig{})

			got, err := fx.engine.extract(context.Background())
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if len(got) != c.count {
				t.Errorf("extracted %d listings, want %d", len(got), c.count)
			}
			if page.sliceCalls != c.sliceCalls {
				t.Errorf("slice calls = %d, want %d", page.sliceCalls, c.sliceCalls)
			}
		})
	}
}

func TestEngineSessionFatalAborts(t *testing.T) {
	page := seoulPage()
	page.searchErr = fmt.Errorf("chrome not reachable")

	fx := newEngineFixture(page, &stubResolver{}, EngineConfig{})

	stats, err := fx.engine.Run(context.Background())
	if err == nil {
		t.Fatal("exhausted session-fatal error did not propagate")
	}
	if !IsSessionFatal(err) {
		t.Errorf("propagated error %v is not session-fatal", err)
	}
	if stats == nil {
		t.Fatal("run returned no statistics")
	}
	if stats.RegionsCrawled != 0 {
		t.Errorf("RegionsCrawled = %d, want 0", stats.RegionsCrawled)
	}
}

func TestEngineCancelledBetweenLeaves(t *testing.T) {
	page := seoulPage()

	fx := newEngineFixture(page, &stubResolver{}, EngineConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.engine.Run(ctx)
	if err == nil {
		t.Fatal("cancelled run returned nil error")
	}
}
