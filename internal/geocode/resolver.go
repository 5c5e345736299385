package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coumap/crawler/internal/address"
)

// Source identifies which provider produced a resolution.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceNone      Source = "none"
)

// TownMatch selects how strictly town-level validation treats a mismatch.
type TownMatch string

const (
	// TownMatchStrict rejects results whose town differs from the source
	// address beyond trailing numbering.
	TownMatchStrict TownMatch = "strict"
	// TownMatchLenient accepts a town mismatch on lot-address comparison,
	// logging a warning.
	TownMatchLenient TownMatch = "lenient"
)

// Resolution is the outcome of resolving one merchant.
type Resolution struct {
	Found        bool
	Source       Source
	Provider     string
	Latitude     float64
	Longitude    float64
	PlaceName    string
	FinalAddress string
	QueryTrace   string
}

// Resolver runs the query-narrowing search against a primary provider and
// falls back to a secondary one. Scenario calls are strictly sequential;
// transport errors and validation mismatches advance the scenario loop and
// are never retried.
type Resolver struct {
	primary   Provider
	secondary Provider
	townMatch TownMatch
	log       *slog.Logger
}

// NewResolver builds a resolver. secondary may be nil when only one provider
// is configured.
func NewResolver(primary, secondary Provider, townMatch TownMatch, log *slog.Logger) *Resolver {
	if townMatch == "" {
		townMatch = TownMatchStrict
	}
	return &Resolver{primary: primary, secondary: secondary, townMatch: townMatch, log: log}
}

// Resolve looks up coordinates for a merchant. The secondary provider is
// consulted only after every scenario against the primary has been
// exhausted. A not-found resolution carries the full query trace of both
// providers for diagnostics.
func (r *Resolver) Resolve(ctx context.Context, name, category, addr string) Resolution {
	cleanName := CleanName(name)
	scenarios := BuildScenarios(cleanName, CleanAddress(addr))

	r.log.Debug("resolving merchant",
		"name", cleanName, "category", category, "scenarios", len(scenarios))

	var trace []string

	if res, ok := r.search(ctx, r.primary, scenarios, addr, &trace); ok {
		res.Source = SourcePrimary
		return res
	}
	if r.secondary != nil {
		if res, ok := r.search(ctx, r.secondary, scenarios, addr, &trace); ok {
			res.Source = SourceSecondary
			return res
		}
	}

	return Resolution{
		Found:      false,
		Source:     SourceNone,
		QueryTrace: strings.Join(trace, " → "),
	}
}

func (r *Resolver) search(ctx context.Context, p Provider, scenarios []string, origAddr string, trace *[]string) (Resolution, bool) {
	if p == nil {
		return Resolution{}, false
	}

	for _, query := range scenarios {
		if ctx.Err() != nil {
			return Resolution{}, false
		}
		*trace = append(*trace, p.Name()+":"+query)

		res, err := p.QueryByKeyword(ctx, query)
		if err != nil {
			// Treated as a miss for this scenario; the loop advances.
			r.log.Debug("geocode call failed", "provider", p.Name(), "query", query, "error", err)
			continue
		}
		if !res.Found {
			continue
		}
		if !r.validate(origAddr, res.CompareAddress()) {
			r.log.Debug("geocode result rejected by address validation",
				"provider", p.Name(), "query", query, "candidate", res.CompareAddress())
			continue
		}

		return Resolution{
			Found:        true,
			Provider:     p.Name(),
			Latitude:     res.Latitude,
			Longitude:    res.Longitude,
			PlaceName:    res.PlaceName,
			FinalAddress: res.FinalAddress(),
			QueryTrace:   strings.Join(*trace, " → "),
		}, true
	}
	return Resolution{}, false
}

// validate checks that a candidate address is consistent with the source
// listing address: province and city must match exactly, towns must match
// exactly or up to trailing numbering. In lenient mode a remaining town
// mismatch is accepted because the comparison runs against lot addresses.
func (r *Resolver) validate(origAddr, candidateAddr string) bool {
	if candidateAddr == "" {
		return false
	}

	orig := address.Parse(origAddr)
	cand := address.Parse(candidateAddr)

	if orig.Province != cand.Province {
		return false
	}
	if orig.City != cand.City {
		return false
	}

	if orig.Town != "" && cand.Town != "" && orig.Town != cand.Town {
		if address.SimilarTown(orig.Town, cand.Town) {
			return true
		}
		if r.townMatch == TownMatchLenient {
			r.log.Warn("town mismatch accepted under lenient lot-address validation",
				"listing", orig.Town, "candidate", cand.Town)
			return true
		}
		return false
	}
	return true
}
