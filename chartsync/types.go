// Package chartsync owns the set of registered charts and keeps them in
// sync with the current sky: per-chart refresh timers, a global transit
// broadcast timer, offline queuing with replay on reconnect, and event
// emission through the registry's bus.
package chartsync

import (
	"fmt"
	"strings"
	"time"

	"cosmichub-sync/astro"
	"cosmichub-sync/ephemeris"
)

// ChartID is the registry's primary key. Opaque, non-empty.
type ChartID string

// ErrInvalidChartID rejects blank chart identifiers at registration.
var ErrInvalidChartID = fmt.Errorf("chart id must not be blank")

// Validate checks the id is non-blank.
func (id ChartID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrInvalidChartID
	}
	return nil
}

// Settings controls how one chart is kept in sync.
type Settings struct {
	UpdateIntervalMinutes     int  `json:"updateInterval"`
	EnableTransitUpdates      bool `json:"enableTransitUpdates"`
	EnableAspectAlerts        bool `json:"enableAspectAlerts"`
	EnableProgressionTracking bool `json:"enableProgressionTracking"`
}

func (s Settings) tracking() bool {
	return s.EnableTransitUpdates || s.EnableProgressionTracking
}

// ChartSyncRecord is the mutable synchronization state for one registered
// chart. Only the registry mutates it, and always by whole-value
// replacement of the snapshot maps.
type ChartSyncRecord struct {
	ID              ChartID               `json:"id"`
	Birth           ephemeris.BirthParams `json:"birth"`
	Current         astro.NatalChart      `json:"currentData"`
	LastUpdate      time.Time             `json:"lastUpdate"`
	TransitData     astro.PlanetMap       `json:"transitData,omitempty"`
	ProgressionData astro.PlanetMap       `json:"progressionData,omitempty"`
	Settings        Settings              `json:"settings"`
}

// snapshot returns a defensive copy for handing outside the registry.
func (r *ChartSyncRecord) snapshot() ChartSyncRecord {
	out := *r
	if r.TransitData != nil {
		out.TransitData = r.TransitData.Clone()
	}
	if r.ProgressionData != nil {
		out.ProgressionData = r.ProgressionData.Clone()
	}
	return out
}

// PendingUpdate marks a refresh that was attempted while offline, to be
// replayed on reconnection.
type PendingUpdate struct {
	ChartID  ChartID   `json:"chartId"`
	QueuedAt time.Time `json:"queuedAt"`
}

// Event payloads delivered through the bus.

// ChartRegisteredPayload accompanies chart-registered.
type ChartRegisteredPayload struct {
	Chart ChartSyncRecord `json:"chart"`
}

// ChartSyncedPayload accompanies chart-synced once initial data is ready.
type ChartSyncedPayload struct {
	ChartID ChartID   `json:"chartId"`
	At      time.Time `json:"at"`
}

// ChartUpdatePayload accompanies chart-update after a full refresh.
type ChartUpdatePayload struct {
	ChartID      ChartID   `json:"chartId"`
	LastUpdate   time.Time `json:"lastUpdate"`
	AspectEvents int       `json:"aspectEvents"`
}

// ChartUnregisteredPayload accompanies chart-unregistered.
type ChartUnregisteredPayload struct {
	ChartID ChartID `json:"chartId"`
}

// TransitUpdatePayload accompanies transit-update after the global
// broadcast touches a chart.
type TransitUpdatePayload struct {
	ChartID ChartID   `json:"chartId"`
	At      time.Time `json:"at"`
}

// AspectAlertPayload accompanies aspect-alert and aspect-event.
type AspectAlertPayload struct {
	ChartID ChartID           `json:"chartId"`
	Event   astro.AspectEvent `json:"event"`
}

// ConnectionPayload accompanies connection-lost and connection-restored.
type ConnectionPayload struct {
	At time.Time `json:"at"`
}

// AllChartsRefreshedPayload accompanies all-charts-refreshed.
type AllChartsRefreshedPayload struct {
	Charts int       `json:"charts"`
	At     time.Time `json:"at"`
}
