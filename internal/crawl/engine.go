package crawl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/coumap/crawler/internal/address"
	"github.com/coumap/crawler/internal/core/domain"
	"github.com/coumap/crawler/internal/geocode"
	"github.com/coumap/crawler/internal/infra/storage"
	"github.com/coumap/crawler/internal/metrics"
)

const (
	// paginationThreshold switches extraction to indexed slices when the
	// page reports more results than this.
	paginationThreshold = 500
	// sliceSize is the number of listings pulled per paginated call.
	sliceSize = 200
	// persistBatchSize bounds how many listings go through geocoding and
	// persistence before a pause.
	persistBatchSize = 50
)

// CoordinateResolver looks up coordinates for one merchant.
type CoordinateResolver interface {
	Resolve(ctx context.Context, name, category, addr string) geocode.Resolution
}

// FailedSink durably stores failed-geocode records, deduplicating by
// (store name, address).
type FailedSink interface {
	AddAll(ctx context.Context, lookups []*domain.FailedLookup) error
}

// Checkpointer records the current traversal position so an aborted run can
// be inspected and resumed at region granularity.
type Checkpointer interface {
	Save(ctx context.Context, province, district, town string, stats domain.RunStats) error
}

// EngineConfig configures one traversal run.
type EngineConfig struct {
	// Province, District, Dong are optional substring filters per level.
	// All empty means a full nationwide sweep; a set Dong filter ends the
	// run as soon as the matching leaf is done.
	Province string
	District string
	Dong     string
	// BatchPause is the wait between persistence batches.
	BatchPause time.Duration
}

// EngineDeps are the engine's collaborators. Failed and Checkpoint are
// optional.
type EngineDeps struct {
	Widget     *Widget
	Executor   *Executor
	Resolver   CoordinateResolver
	Regions    storage.RegionRepository
	Categories storage.CategoryRepository
	Stores     storage.StoreRepository
	Failed     FailedSink
	Checkpoint Checkpointer
}

// Engine walks Province → District → Dong through the widget, extracts the
// listings of each leaf and routes them through geocoding and persistence.
// All session interaction is strictly sequential; there is one engine per
// session and no internal concurrency.
type Engine struct {
	deps     EngineDeps
	cfg      EngineConfig
	log      *slog.Logger
	failures []*domain.FailedLookup
}

// NewEngine builds a traversal engine.
func NewEngine(deps EngineDeps, cfg EngineConfig, log *slog.Logger) *Engine {
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = time.Second
	}
	return &Engine{deps: deps, cfg: cfg, log: log}
}

// Run executes the traversal and always returns statistics, even after a
// partial failure. Only session-fatal errors that exhausted recovery, and
// cancellation, come back as non-nil errors; everything else is absorbed
// into the counters.
func (e *Engine) Run(ctx context.Context) (*domain.RunStats, error) {
	stats := &domain.RunStats{}

	err := e.traverse(ctx, stats)

	stats.RecoveryAttempts = e.deps.Executor.Recoveries()
	e.flushFailures()

	return stats, err
}

func (e *Engine) traverse(ctx context.Context, stats *domain.RunStats) error {
	if err := e.deps.Widget.OpenSite(ctx); err != nil {
		return e.absorb(err, stats, "open site")
	}

	provinces, err := e.deps.Widget.Provinces(ctx)
	if err != nil {
		return e.absorb(err, stats, "list provinces")
	}
	if len(provinces) == 0 {
		e.log.Warn("no provinces listed by the widget")
		return nil
	}

	for pi, province := range provinces {
		if e.cfg.Province != "" && !strings.Contains(province.Label, e.cfg.Province) {
			continue
		}
		e.log.Info("crawling province", "province", province.Label)

		if err := e.crawlProvince(ctx, province, stats); err != nil {
			return err
		}
		if e.cfg.Province != "" {
			return nil
		}
		if pi < len(provinces)-1 {
			if err := e.deps.Widget.ReopenAreaSelection(ctx); err != nil {
				return e.absorb(err, stats, "reopen area selection")
			}
		}
	}
	return nil
}

func (e *Engine) crawlProvince(ctx context.Context, province domain.RegionOption, stats *domain.RunStats) error {
	districts, err := e.deps.Widget.Districts(ctx, province.Value)
	if err != nil {
		return e.absorb(err, stats, "list districts")
	}

	for di, district := range districts {
		if e.cfg.District != "" && !strings.Contains(district.Label, e.cfg.District) {
			continue
		}
		e.log.Info("crawling district", "province", province.Label, "district", district.Label)

		if err := e.crawlDistrict(ctx, province, district, stats); err != nil {
			return err
		}
		if e.cfg.District != "" {
			return nil
		}
		if di < len(districts)-1 {
			if err := e.reselect(ctx, province.Value, ""); err != nil {
				return e.absorb(err, stats, "reselect province")
			}
		}
	}
	return nil
}

func (e *Engine) crawlDistrict(ctx context.Context, province, district domain.RegionOption, stats *domain.RunStats) error {
	dongs, err := e.deps.Widget.Dongs(ctx, district.Value)
	if err != nil {
		return e.absorb(err, stats, "list dongs")
	}

	for gi, dong := range dongs {
		// Cancellation is coarse-grained: between leaves only.
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.cfg.Dong != "" && !strings.Contains(dong.Label, e.cfg.Dong) {
			continue
		}

		e.checkpoint(ctx, province.Label, district.Label, dong.Label, stats)
		if err := e.crawlLeaf(ctx, province, district, dong, stats); err != nil {
			return err
		}
		if e.cfg.Dong != "" {
			return nil
		}
		if gi < len(dongs)-1 {
			if err := e.reselect(ctx, province.Value, district.Value); err != nil {
				return e.absorb(err, stats, "reselect district")
			}
		}
	}
	return nil
}

func (e *Engine) crawlLeaf(ctx context.Context, province, district, dong domain.RegionOption, stats *domain.RunStats) error {
	label, err := e.deps.Widget.SelectDongAndSearch(ctx, dong.Index)
	if err != nil {
		return e.absorb(err, stats, "select dong and search")
	}
	e.log.Info("crawling dong", "province", province.Label, "district", district.Label, "dong", label)

	listings, err := e.extract(ctx)
	if err != nil {
		return e.absorb(err, stats, "extract listings")
	}

	stats.RegionsCrawled++
	stats.TotalFound += len(listings)
	metrics.RegionsCrawled.Inc()
	metrics.ListingsFound.Add(float64(len(listings)))

	if len(listings) == 0 {
		e.log.Info("no merchants in dong", "dong", label)
		return nil
	}
	e.log.Info("merchants found", "dong", label, "count", len(listings))

	return e.persist(ctx, listings, stats)
}

// reselect reapplies ancestor selections after the filter UI has been
// reopened. An empty districtValue stops at the province level.
func (e *Engine) reselect(ctx context.Context, provinceValue, districtValue string) error {
	if err := e.deps.Widget.ReopenAreaSelection(ctx); err != nil {
		return err
	}
	if _, err := e.deps.Widget.Districts(ctx, provinceValue); err != nil {
		return err
	}
	if districtValue != "" {
		if _, err := e.deps.Widget.Dongs(ctx, districtValue); err != nil {
			return err
		}
	}
	return nil
}

// extract pulls the leaf's listings: one direct call with in-page dedup, or
// indexed slices when the page reports a large result set.
func (e *Engine) extract(ctx context.Context) ([]domain.Listing, error) {
	count, err := e.deps.Widget.CountListings(ctx)
	if err != nil {
		return nil, err
	}
	if count <= paginationThreshold {
		return e.deps.Widget.ExtractListings(ctx)
	}

	e.log.Info("large result set, extracting in slices", "count", count, "slice", sliceSize)

	var out []domain.Listing
	seen := make(map[string]struct{}, count)
	for start := 0; start < count; start += sliceSize {
		slice, err := e.deps.Widget.ExtractSlice(ctx, start, sliceSize)
		if err != nil {
			return nil, err
		}
		for _, l := range slice {
			key := l.Name + "|" + l.Address
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, l)
		}
		if start+sliceSize < count {
			if err := sleep(ctx, e.deps.Widget.cfg.SlicePause); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// persist routes listings through geocoding and storage in bounded batches.
func (e *Engine) persist(ctx context.Context, listings []domain.Listing, stats *domain.RunStats) error {
	for start := 0; start < len(listings); start += persistBatchSize {
		end := start + persistBatchSize
		if end > len(listings) {
			end = len(listings)
		}
		batch := listings[start:end]
		metrics.DBBatchSize.Observe(float64(len(batch)))

		var bs domain.BatchStats
		for _, listing := range batch {
			if err := ctx.Err(); err != nil {
				stats.AddBatch(bs)
				return err
			}
			e.saveListing(ctx, listing, &bs)
		}
		stats.AddBatch(bs)

		e.log.Info("batch persisted",
			"from", start+1, "to", end, "of", len(listings),
			"saved", bs.Saved, "duplicates", bs.Duplicates, "api_failed", bs.APIFailed)

		if end < len(listings) {
			if err := sleep(ctx, e.cfg.BatchPause); err != nil {
				return err
			}
			if err := e.deps.Widget.ReclaimMemory(ctx); err != nil {
				e.log.Debug("memory reclamation hint failed", "error", err)
			}
		}
	}
	return nil
}

// saveListing runs the per-merchant pipeline: validate, parse the address,
// resolve the region, geocode, then deduplicate and insert. Failures never
// abort the batch; they land in counters and the failed-lookup list.
func (e *Engine) saveListing(ctx context.Context, listing domain.Listing, bs *domain.BatchStats) {
	name := strings.TrimSpace(listing.Name)
	addr := strings.TrimSpace(listing.Address)
	categoryName := strings.TrimSpace(listing.Category)
	if categoryName == "" {
		categoryName = "기타"
	}
	if name == "" || addr == "" {
		bs.Skipped++
		return
	}

	parsed := address.Parse(addr)
	if parsed.Province == "" || parsed.City == "" {
		e.log.Warn("address missing province or city", "name", name, "address", addr)
		bs.Skipped++
		return
	}

	region, err := e.deps.Regions.GetOrCreate(ctx, parsed.Province, parsed.City, parsed.Town)
	if err != nil {
		e.log.Error("region lookup failed", "name", name, "error", err)
		bs.Errors++
		return
	}

	res := e.deps.Resolver.Resolve(ctx, name, categoryName, addr)
	if !res.Found {
		e.log.Warn("geocoding failed", "name", name, "address", addr)
		bs.APIFailed++
		e.failures = append(e.failures, &domain.FailedLookup{
			StoreName:      name,
			Address:        addr,
			Category:       categoryName,
			Phone:          listing.Phone,
			Distance:       listing.Distance,
			SearchAttempts: res.QueryTrace,
			RegionInfo:     region.FullName(),
			ErrorReason:    "no validated geocoding result",
			Timestamp:      time.Now(),
		})
		return
	}
	switch res.Source {
	case geocode.SourcePrimary:
		bs.PrimarySuccess++
	case geocode.SourceSecondary:
		bs.SecondarySuccess++
	}

	// The provider's name and address win over the listing's.
	finalName := res.PlaceName
	if finalName == "" {
		finalName = name
	}
	finalAddr := res.FinalAddress
	if finalAddr == "" {
		finalAddr = addr
	}

	exists, err := e.deps.Stores.Exists(ctx, finalName, finalAddr, region.ID)
	if err != nil {
		e.log.Error("store existence check failed", "name", finalName, "error", err)
		bs.Errors++
		return
	}
	if exists {
		e.log.Debug("store already present", "name", finalName)
		bs.Duplicates++
		bs.Skipped++
		return
	}

	category, err := e.deps.Categories.GetOrCreate(ctx, strings.ToUpper(categoryName), categoryName)
	if err != nil {
		e.log.Error("category lookup failed", "name", finalName, "error", err)
		bs.Errors++
		return
	}

	lat, lon := res.Latitude, res.Longitude
	store := &domain.Store{
		Name:         finalName,
		Address:      finalAddr,
		Latitude:     &lat,
		Longitude:    &lon,
		CategoryID:   category.ID,
		RegionID:     region.ID,
		CategoryName: categoryName,
		IsFranchise:  true,
		BusinessDays: "월~일",
	}
	if err := e.deps.Stores.Create(ctx, store); err != nil {
		e.log.Error("store insert failed", "name", finalName, "error", err)
		bs.Errors++
		return
	}
	bs.Saved++
	metrics.StoresSaved.Inc()
}

// absorb classifies a traversal error: session-fatal errors and cancellation
// abort the run, everything else is counted and swallowed.
func (e *Engine) absorb(err error, stats *domain.RunStats, desc string) error {
	if err == nil {
		return nil
	}
	if IsSessionFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.log.Error("traversal step failed", "step", desc, "error", err)
	stats.Errors++
	return nil
}

func (e *Engine) checkpoint(ctx context.Context, province, district, town string, stats *domain.RunStats) {
	if e.deps.Checkpoint == nil {
		return
	}
	if err := e.deps.Checkpoint.Save(ctx, province, district, town, *stats); err != nil {
		e.log.Debug("checkpoint save failed", "error", err)
	}
}

// flushFailures pushes accumulated failed lookups to the sink. Runs on a
// fresh context so a canceled run still gets its failures recorded.
func (e *Engine) flushFailures() {
	if e.deps.Failed == nil || len(e.failures) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.deps.Failed.AddAll(ctx, e.failures); err != nil {
		e.log.Error("failed-lookup flush failed", "count", len(e.failures), "error", err)
		return
	}
	e.log.Info("failed lookups recorded", "count", len(e.failures))
	e.failures = nil
}
