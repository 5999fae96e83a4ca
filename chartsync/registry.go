package chartsync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"cosmichub-sync/astro"
	"cosmichub-sync/database"
	"cosmichub-sync/ephemeris"
	"cosmichub-sync/events"
)

// Config tunes registry timing. Zero values fall back to defaults.
type Config struct {
	// GlobalRefreshInterval is the light transit broadcast period.
	GlobalRefreshInterval time.Duration
	// DefaultUpdateInterval applies when a chart registers without one.
	DefaultUpdateInterval time.Duration
	// ProgressionRefreshAge is how stale LastUpdate must be before a
	// refresh also recomputes progressions.
	ProgressionRefreshAge time.Duration
	// Now is injectable for tests.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.GlobalRefreshInterval <= 0 {
		c.GlobalRefreshInterval = time.Minute
	}
	if c.DefaultUpdateInterval <= 0 {
		c.DefaultUpdateInterval = time.Hour
	}
	if c.ProgressionRefreshAge <= 0 {
		c.ProgressionRefreshAge = 24 * time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Registry owns the registered charts. It is the single writer of every
// ChartSyncRecord; snapshot maps are replaced whole, never patched, so a
// reader racing a refresh observes either the old or the new map, never a
// half-updated one. Construct one per application and pass it by reference;
// there is no package-level instance.
type Registry struct {
	cfg     Config
	bus     *events.Bus
	fetcher *ephemeris.Fetcher
	calc    ephemeris.Calculator
	repo    *database.SyncRepository // optional journal; nil disables

	mu         sync.Mutex
	charts     map[ChartID]*ChartSyncRecord
	chartStops map[ChartID]chan struct{}
	pending    map[ChartID]PendingUpdate
	retries    map[ChartID]int
	online     bool
	destroyed  bool
	started    bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates a registry. The repository may be nil to disable the
// aspect event journal.
func NewRegistry(bus *events.Bus, fetcher *ephemeris.Fetcher, calc ephemeris.Calculator, repo *database.SyncRepository, cfg Config) *Registry {
	return &Registry{
		cfg:        cfg.withDefaults(),
		bus:        bus,
		fetcher:    fetcher,
		calc:       calc,
		repo:       repo,
		charts:     make(map[ChartID]*ChartSyncRecord),
		chartStops: make(map[ChartID]chan struct{}),
		pending:    make(map[ChartID]PendingUpdate),
		retries:    make(map[ChartID]int),
		online:     true,
		stop:       make(chan struct{}),
	}
}

// Bus exposes the registry's event bus for subscribers.
func (r *Registry) Bus() *events.Bus {
	return r.bus
}

// Start launches the global transit broadcast loop.
func (r *Registry) Start() {
	r.mu.Lock()
	if r.started || r.destroyed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.runGlobalLoop()
	log.Printf("🌌 Chart sync registry started (global refresh every %v)", r.cfg.GlobalRefreshInterval)
}

// RegisterChart validates the id, fetches the natal chart from the
// calculation service, optionally loads initial transit and progression
// snapshots, schedules the per-chart refresh timer and emits
// chart-registered followed by chart-synced.
//
// Registration fails only for a blank id or structurally invalid natal data
// (missing planets); transit and progression snapshots degrade to neutral
// data instead of failing. Registering an id that already exists replaces
// the previous record: its timer stops and its pending marker is dropped.
func (r *Registry) RegisterChart(ctx context.Context, id ChartID, birth ephemeris.BirthParams, settings Settings) (ChartSyncRecord, error) {
	if err := id.Validate(); err != nil {
		return ChartSyncRecord{}, err
	}

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ChartSyncRecord{}, fmt.Errorf("registry destroyed")
	}
	r.mu.Unlock()

	natal, err := r.calc.CalculateChart(ctx, birth)
	if err != nil {
		return ChartSyncRecord{}, fmt.Errorf("natal chart calculation for %s failed: %w", id, err)
	}
	if err := natal.Validate(); err != nil {
		return ChartSyncRecord{}, fmt.Errorf("natal chart for %s: %w", id, err)
	}

	if settings.UpdateIntervalMinutes <= 0 {
		settings.UpdateIntervalMinutes = int(r.cfg.DefaultUpdateInterval / time.Minute)
	}

	now := r.cfg.Now()
	record := &ChartSyncRecord{
		ID:         id,
		Birth:      birth,
		Current:    natal,
		LastUpdate: now,
		Settings:   settings,
	}

	// Initial snapshots use the tolerant fetcher: a failure here degrades
	// to neutral data rather than rejecting the registration.
	if settings.EnableTransitUpdates {
		record.TransitData = r.fetcher.FetchPositions(ctx, ephemeris.CurrentSkyMoment(now))
	}
	if settings.EnableProgressionTracking {
		record.ProgressionData = r.fetcher.FetchPositions(ctx, ephemeris.ProgressedMoment(birth, now))
	}

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ChartSyncRecord{}, fmt.Errorf("registry destroyed")
	}
	if _, exists := r.charts[id]; exists {
		log.Printf("🔁 Chart %s re-registered, replacing previous record", id)
		r.stopChartLoopLocked(id)
		delete(r.pending, id)
		delete(r.retries, id)
	}
	r.charts[id] = record
	if settings.tracking() {
		stopCh := make(chan struct{})
		r.chartStops[id] = stopCh
		r.wg.Add(1)
		go r.runChartLoop(id, time.Duration(settings.UpdateIntervalMinutes)*time.Minute, stopCh)
	}
	snapshot := record.snapshot()
	r.mu.Unlock()

	log.Printf("✅ Chart %s registered (interval %dm, transits=%v, progressions=%v)",
		id, settings.UpdateIntervalMinutes, settings.EnableTransitUpdates, settings.EnableProgressionTracking)

	r.bus.Emit(events.ChartRegistered, ChartRegisteredPayload{Chart: snapshot})
	r.bus.Emit(events.ChartSynced, ChartSyncedPayload{ChartID: id, At: now})

	return snapshot, nil
}

// UnregisterChart stops the chart's timer and removes the record and any
// pending marker. Idempotent: unknown ids are a no-op.
func (r *Registry) UnregisterChart(id ChartID) {
	r.mu.Lock()
	if _, ok := r.charts[id]; !ok {
		r.mu.Unlock()
		return
	}
	r.stopChartLoopLocked(id)
	delete(r.charts, id)
	delete(r.pending, id)
	delete(r.retries, id)
	r.mu.Unlock()

	log.Printf("🗑️  Chart %s unregistered", id)
	r.bus.Emit(events.ChartUnregistered, ChartUnregisteredPayload{ChartID: id})
}

// GetChart returns a defensive copy of one record.
func (r *Registry) GetChart(id ChartID) (ChartSyncRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.charts[id]
	if !ok {
		return ChartSyncRecord{}, false
	}
	return rec.snapshot(), true
}

// GetAllCharts returns defensive copies of every registered record, sorted
// by id.
func (r *Registry) GetAllCharts() []ChartSyncRecord {
	r.mu.Lock()
	out := make([]ChartSyncRecord, 0, len(r.charts))
	for _, rec := range r.charts {
		out = append(out, rec.snapshot())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingUpdates returns the queued offline markers, sorted by chart id.
func (r *Registry) PendingUpdates() []PendingUpdate {
	r.mu.Lock()
	out := make([]PendingUpdate, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ChartID < out[j].ChartID })
	return out
}

// GetUpcomingAspects is declared for API completeness and not yet
// implemented; it always returns an empty set. The id goes unused, and
// unvalidated, until forecasting lands.
func (r *Registry) GetUpcomingAspects(_ ChartID) []astro.AspectEvent {
	return nil
}

// Online reports current connectivity as the registry sees it.
func (r *Registry) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// SetOnline records a connectivity transition. Going offline emits
// connection-lost and nothing else; existing timers keep firing and
// short-circuit into the pending queue. Coming online emits
// connection-restored and replays every pending chart through the full
// refresh path; a chart leaves the pending set only when its replay
// succeeds.
func (r *Registry) SetOnline(online bool) {
	r.mu.Lock()
	if r.online == online || r.destroyed {
		r.mu.Unlock()
		return
	}
	r.online = online
	var replay []ChartID
	if online {
		for id := range r.pending {
			replay = append(replay, id)
		}
		sort.Slice(replay, func(i, j int) bool { return replay[i] < replay[j] })
	}
	r.mu.Unlock()

	now := r.cfg.Now()
	if !online {
		log.Println("📡 Connection lost, queueing further chart updates")
		r.bus.Emit(events.ConnectionLost, ConnectionPayload{At: now})
		return
	}

	log.Printf("📡 Connection restored, replaying %d pending update(s)", len(replay))
	r.bus.Emit(events.ConnectionRestored, ConnectionPayload{At: now})
	for _, id := range replay {
		r.RefreshChart(id)
	}
}

// RefreshChart forces one chart through the scheduled refresh path. Errors
// never escape: they become sync-error events, and the chart retries on its
// next tick.
func (r *Registry) RefreshChart(id ChartID) {
	if err := r.refreshChart(context.Background(), id); err != nil {
		r.mu.Lock()
		r.retries[id]++
		retry := r.retries[id]
		r.mu.Unlock()

		syncErr := &ChartSyncError{
			ChartID:    id,
			Code:       CodeUpdateFailed,
			Message:    err.Error(),
			Timestamp:  r.cfg.Now(),
			RetryCount: retry,
		}
		log.Printf("⚠️  %v", syncErr)
		r.bus.Emit(events.SyncError, syncErr)
	}
}

// RefreshAllCharts forces every chart through its refresh path
// concurrently, ignoring individual failures, then emits
// all-charts-refreshed.
func (r *Registry) RefreshAllCharts() {
	r.mu.Lock()
	ids := make([]ChartID, 0, len(r.charts))
	for id := range r.charts {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id ChartID) {
			defer wg.Done()
			r.RefreshChart(id)
		}(id)
	}
	wg.Wait()

	r.bus.Emit(events.AllChartsRefreshed, AllChartsRefreshedPayload{Charts: len(ids), At: r.cfg.Now()})
}

// Destroy stops the global timer and all per-chart timers, clears all
// state and removes every event listener. Safe to call multiple times.
func (r *Registry) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	for id := range r.chartStops {
		r.stopChartLoopLocked(id)
	}
	r.charts = make(map[ChartID]*ChartSyncRecord)
	r.pending = make(map[ChartID]PendingUpdate)
	r.retries = make(map[ChartID]int)
	r.mu.Unlock()

	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
	r.bus.Close()
	log.Println("🛑 Chart sync registry destroyed")
}

// stopChartLoopLocked closes a chart's loop channel. Caller holds r.mu.
func (r *Registry) stopChartLoopLocked(id ChartID) {
	if stopCh, ok := r.chartStops[id]; ok {
		close(stopCh)
		delete(r.chartStops, id)
	}
}

func (r *Registry) runChartLoop(id ChartID, interval time.Duration, stopCh chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RefreshChart(id)
		case <-stopCh:
			return
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) runGlobalLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.GlobalRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.BroadcastTransits()
		case <-r.stop:
			return
		}
	}
}

// BroadcastTransits is the light global refresh: one fetch of the current
// sky applied to every registered chart as a whole-map replacement, with no
// aspect detection, no progression check and no offline queuing. Skipped
// entirely while offline.
func (r *Registry) BroadcastTransits() {
	r.mu.Lock()
	online := r.online
	count := len(r.charts)
	r.mu.Unlock()
	if !online || count == 0 {
		return
	}

	now := r.cfg.Now()
	positions := r.fetcher.FetchPositions(context.Background(), ephemeris.CurrentSkyMoment(now))

	r.mu.Lock()
	touched := make([]ChartID, 0, len(r.charts))
	for id, rec := range r.charts {
		rec.TransitData = positions.Clone()
		touched = append(touched, id)
	}
	r.mu.Unlock()

	sort.Slice(touched, func(i, j int) bool { return touched[i] < touched[j] })
	for _, id := range touched {
		r.bus.Emit(events.TransitUpdate, TransitUpdatePayload{ChartID: id, At: now})
	}
}

// refreshChart is the full scheduled refresh path for one chart. Transits
// and aspect detection run only when the chart enabled transit updates; a
// transit fetch failure is returned so the caller can report it and the
// pending marker, if any, survives for the next replay.
func (r *Registry) refreshChart(ctx context.Context, id ChartID) error {
	r.mu.Lock()
	rec, ok := r.charts[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if !r.online {
		// Overwrites any prior marker for the same chart.
		r.pending[id] = PendingUpdate{ChartID: id, QueuedAt: r.cfg.Now()}
		r.mu.Unlock()
		log.Printf("📡 Offline: queued update for chart %s", id)
		return nil
	}
	birth := rec.Birth
	settings := rec.Settings
	natal := rec.Current
	prev := rec.TransitData
	lastUpdate := rec.LastUpdate
	r.mu.Unlock()

	// The fetches are the only suspension points; everything below them holds
	// no reference into the record until the existence re-check passes.
	now := r.cfg.Now()
	var (
		transits astro.PlanetMap
		detected []astro.AspectEvent
	)
	if settings.EnableTransitUpdates {
		var err error
		transits, err = r.fetcher.FetchPositionsStrict(ctx, ephemeris.CurrentSkyMoment(now))
		if err != nil {
			return fmt.Errorf("transit fetch for %s: %w", id, err)
		}
		detected = astro.DetectAspectChanges(natal, prev, transits, now)
	}

	var progression astro.PlanetMap
	if settings.EnableProgressionTracking && now.Sub(lastUpdate) >= r.cfg.ProgressionRefreshAge {
		progression = r.fetcher.FetchPositions(ctx, ephemeris.ProgressedMoment(birth, now))
	}

	r.mu.Lock()
	current, ok := r.charts[id]
	if !ok || current != rec {
		// Unregistered or replaced while the fetch was in flight; discard.
		r.mu.Unlock()
		return nil
	}
	if transits != nil {
		rec.TransitData = transits
	}
	if progression != nil {
		rec.ProgressionData = progression
	}
	rec.LastUpdate = now
	delete(r.pending, id)
	delete(r.retries, id)
	r.mu.Unlock()

	if settings.EnableAspectAlerts {
		for _, ev := range detected {
			payload := AspectAlertPayload{ChartID: id, Event: ev}
			r.bus.Emit(events.AspectAlert, payload)
			r.bus.Emit(events.AspectEvent, payload)
			if r.repo != nil {
				if err := r.repo.SaveAspectEvent(string(id), now, ev); err != nil {
					log.Printf("⚠️  Failed to journal aspect event for %s: %v", id, err)
				}
			}
		}
	}

	r.bus.Emit(events.ChartUpdate, ChartUpdatePayload{ChartID: id, LastUpdate: now, AspectEvents: len(detected)})
	return nil
}
