package ephemeris

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"cosmichub-sync/astro"
	"cosmichub-sync/cache"
)

// MomentSpec fully specifies the moment and reference location positions
// are wanted for.
type MomentSpec struct {
	Year      int
	Month     int
	Day       int
	Hour      int
	Minute    int
	Latitude  float64
	Longitude float64
	Timezone  string
	Location  string
}

// CurrentSkyMoment builds the moment spec for "current sky" transits: the
// given instant in UTC at the geographic origin.
func CurrentSkyMoment(now time.Time) MomentSpec {
	now = now.UTC()
	return MomentSpec{
		Year:     now.Year(),
		Month:    int(now.Month()),
		Day:      now.Day(),
		Hour:     now.Hour(),
		Minute:   now.Minute(),
		Timezone: "UTC",
		Location: "Greenwich",
	}
}

// ProgressedMoment derives the secondary-progression moment for a birth on
// the day-for-a-year convention: elapsed age in 365.25-day years, floored
// to whole days, advances the birth date by that many days. Pure.
func ProgressedMoment(birth BirthParams, now time.Time) MomentSpec {
	birthTime := time.Date(birth.Year, time.Month(birth.Month), birth.Day, birth.Hour, birth.Minute, 0, 0, time.UTC)
	ageYears := now.UTC().Sub(birthTime).Hours() / 24 / 365.25
	days := int(math.Floor(ageYears))
	progressed := birthTime.AddDate(0, 0, days)

	return MomentSpec{
		Year:      progressed.Year(),
		Month:     int(progressed.Month()),
		Day:       progressed.Day(),
		Hour:      progressed.Hour(),
		Minute:    progressed.Minute(),
		Latitude:  birth.Latitude,
		Longitude: birth.Longitude,
		Timezone:  birth.Timezone,
		Location:  birth.Location,
	}
}

func (m MomentSpec) birthParams() BirthParams {
	return BirthParams{
		Year: m.Year, Month: m.Month, Day: m.Day, Hour: m.Hour, Minute: m.Minute,
		Latitude: m.Latitude, Longitude: m.Longitude,
		Timezone: m.Timezone, Location: m.Location,
	}
}

func (m MomentSpec) cacheKey() string {
	return fmt.Sprintf("positions:%04d%02d%02d%02d%02d:%.2f:%.2f",
		m.Year, m.Month, m.Day, m.Hour, m.Minute, m.Latitude, m.Longitude)
}

// Fetcher obtains planetary position snapshots for arbitrary moments. It is
// tolerant: it never returns an error and always produces a complete planet
// map, degrading to the neutral state on collaborator failure.
type Fetcher struct {
	calc     Calculator
	redis    *cache.RedisClient
	local    *gocache.Cache
	cacheTTL time.Duration
}

// NewFetcher creates a fetcher. The Redis client may be nil, in which case
// only the in-process cache is used.
func NewFetcher(calc Calculator, redis *cache.RedisClient, cacheTTL time.Duration) *Fetcher {
	if cacheTTL <= 0 {
		cacheTTL = 90 * time.Second
	}
	return &Fetcher{
		calc:     calc,
		redis:    redis,
		local:    gocache.New(cacheTTL, 5*time.Minute),
		cacheTTL: cacheTTL,
	}
}

// FetchPositions returns the planetary positions for the moment. On any
// collaborator failure it logs and returns the complete neutral map so
// snapshot comparisons downstream never operate on a partial map.
func (f *Fetcher) FetchPositions(ctx context.Context, moment MomentSpec) astro.PlanetMap {
	positions, err := f.FetchPositionsStrict(ctx, moment)
	if err != nil {
		log.Printf("⚠️  Position fetch failed for %s, using neutral data: %v", moment.cacheKey(), err)
		return astro.NeutralPlanetMap()
	}
	return positions
}

// FetchPositionsStrict is the fallible variant for callers that must know a
// refresh went stale rather than silently receive neutral data. Cache hits
// still serve during an outage; only a cache miss surfaces the calculator
// error.
func (f *Fetcher) FetchPositionsStrict(ctx context.Context, moment MomentSpec) (astro.PlanetMap, error) {
	key := moment.cacheKey()

	if f.redis != nil {
		if m, err := f.redis.GetPlanetMap(ctx, key); err == nil && len(m) > 0 {
			return m.Complete(), nil
		}
	}
	if cached, ok := f.local.Get(key); ok {
		if m, ok := cached.(astro.PlanetMap); ok {
			return m.Clone().Complete(), nil
		}
	}

	chart, err := f.calc.CalculateChart(ctx, moment.birthParams())
	if err != nil {
		return nil, fmt.Errorf("calculate positions for %s: %w", key, err)
	}

	positions := chart.Planets.Clone().Complete()

	if f.redis != nil {
		if err := f.redis.SetPlanetMap(ctx, key, positions, f.cacheTTL); err != nil {
			log.Printf("⚠️  Failed to cache positions in Redis: %v", err)
		}
	}
	f.local.Set(key, positions.Clone(), f.cacheTTL)

	return positions, nil
}
