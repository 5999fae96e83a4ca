// Package notifications bridges bus events into queued user notifications.
// Delivery mechanics (push, email) live outside this system; the bridge's
// responsibility ends at a filtered, logged queue.
package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"cosmichub-sync/cache"
	"cosmichub-sync/chartsync"
	"cosmichub-sync/database"
	"cosmichub-sync/events"
)

const (
	// KindAspectAlert marks a notification born from an aspect transition.
	KindAspectAlert = "aspect-alert"
	// KindChartReady marks a notification that a chart finished its
	// initial sync.
	KindChartReady = "chart-ready"

	routesCacheKey = "active_notification_routes"
	queueSize      = 256
)

// Notification is one queued user notification.
type Notification struct {
	ID        string    `json:"id"`
	ChartID   string    `json:"chartId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bridge subscribes to aspect-alert and chart-synced events and turns them
// into queued notifications, filtered by the configured routes.
type Bridge struct {
	repo  *database.SyncRepository // optional; nil disables persistence
	redis *cache.RedisClient       // optional route cache

	queue        chan Notification
	unsubscribes []func()
}

// NewBridge creates a bridge. Both dependencies may be nil; the bridge then
// queues and logs without persistence or route filtering.
func NewBridge(repo *database.SyncRepository, redis *cache.RedisClient) *Bridge {
	return &Bridge{
		repo:  repo,
		redis: redis,
		queue: make(chan Notification, queueSize),
	}
}

// Attach subscribes the bridge to the registry's bus.
func (b *Bridge) Attach(bus *events.Bus) {
	b.unsubscribes = append(b.unsubscribes,
		bus.Subscribe(events.AspectAlert, b.onAspectAlert),
		bus.Subscribe(events.ChartSynced, b.onChartSynced),
	)
}

// Detach removes the bridge's subscriptions.
func (b *Bridge) Detach() {
	for _, unsub := range b.unsubscribes {
		unsub()
	}
	b.unsubscribes = nil
}

// Run drains the queue until the context is cancelled, writing each
// notification to the delivery log best-effort.
func (b *Bridge) Run(ctx context.Context) {
	log.Println("🔔 Notification bridge started")
	for {
		select {
		case <-ctx.Done():
			log.Println("🔔 Notification bridge stopped")
			return
		case n := <-b.queue:
			b.logDelivery(n)
		}
	}
}

// Queued reports how many notifications are waiting.
func (b *Bridge) Queued() int {
	return len(b.queue)
}

// Dequeue pops one notification without blocking. Exposed for consumers
// that drain the queue themselves instead of Run.
func (b *Bridge) Dequeue() (Notification, bool) {
	select {
	case n := <-b.queue:
		return n, true
	default:
		return Notification{}, false
	}
}

func (b *Bridge) onAspectAlert(payload any) {
	alert, ok := payload.(chartsync.AspectAlertPayload)
	if !ok {
		return
	}

	n := Notification{
		ID:      uuid.NewString(),
		ChartID: string(alert.ChartID),
		Kind:    KindAspectAlert,
		Title:   fmt.Sprintf("Transit %s %s natal %s", alert.Event.TransitPlanet, alert.Event.Kind, alert.Event.NatalPlanet),
		Body: fmt.Sprintf("🔔 ASPECT %s! Transit %s %s natal %s | Orb: %.2f° | %s | exact %s",
			alert.Event.Type,
			alert.Event.TransitPlanet,
			alert.Event.Kind,
			alert.Event.NatalPlanet,
			alert.Event.Orb,
			alert.Event.Strength,
			alert.Event.ExactAt.Format("2006-01-02 15:04 MST"),
		),
		CreatedAt: time.Now(),
	}

	if !b.shouldSend(n, string(alert.Event.Strength)) {
		return
	}
	b.enqueue(n)
}

func (b *Bridge) onChartSynced(payload any) {
	synced, ok := payload.(chartsync.ChartSyncedPayload)
	if !ok {
		return
	}

	n := Notification{
		ID:        uuid.NewString(),
		ChartID:   string(synced.ChartID),
		Kind:      KindChartReady,
		Title:     "Chart ready",
		Body:      fmt.Sprintf("✨ Chart %s is synced and live", synced.ChartID),
		CreatedAt: time.Now(),
	}

	if !b.shouldSend(n, "") {
		return
	}
	b.enqueue(n)
}

func (b *Bridge) enqueue(n Notification) {
	select {
	case b.queue <- n:
	default:
		// Queue full: drop rather than block the emitting goroutine.
		log.Printf("⚠️  Notification queue full, dropping %s for chart %s", n.Kind, n.ChartID)
	}
}

// shouldSend applies the active routes. A chart passes when any enabled
// route matches it; with no routes configured everything passes.
func (b *Bridge) shouldSend(n Notification, strength string) bool {
	routes := b.activeRoutes()
	if len(routes) == 0 {
		return true
	}

	for _, route := range routes {
		if route.ChartID != "" && route.ChartID != n.ChartID {
			continue
		}
		if n.Kind == KindAspectAlert && !strengthAtLeast(strength, route.MinStrength) {
			continue
		}
		return true
	}
	return false
}

// strengthAtLeast orders strong > medium > weak; an empty minimum accepts
// everything.
func strengthAtLeast(got, min string) bool {
	rank := map[string]int{"weak": 0, "medium": 1, "strong": 2}
	if min == "" {
		return true
	}
	return rank[got] >= rank[min]
}

func (b *Bridge) activeRoutes() []database.NotificationRoute {
	if b.repo == nil {
		return nil
	}

	ctx := context.Background()
	if b.redis != nil {
		var cached []database.NotificationRoute
		if err := b.redis.Get(ctx, routesCacheKey, &cached); err == nil {
			return cached
		}
	}

	routes, err := b.repo.ActiveRoutes()
	if err != nil {
		log.Printf("⚠️  Failed to load notification routes: %v", err)
		return nil
	}

	if b.redis != nil {
		_ = b.redis.Set(ctx, routesCacheKey, routes, time.Hour)
	}
	return routes
}

// RefreshRoutes invalidates the cached route set.
func (b *Bridge) RefreshRoutes() {
	if b.redis != nil {
		_ = b.redis.Delete(context.Background(), routesCacheKey)
		log.Println("🔄 Notification route cache invalidated")
	}
}

func (b *Bridge) logDelivery(n Notification) {
	if b.repo == nil {
		log.Printf("🔔 %s", n.Body)
		return
	}

	entry := &database.NotificationLogRecord{
		NotificationID: n.ID,
		ChartID:        n.ChartID,
		Kind:           n.Kind,
		Title:          n.Title,
		Body:           n.Body,
		Status:         "QUEUED",
		QueuedAt:       n.CreatedAt,
	}
	if err := b.repo.SaveNotificationLog(entry); err != nil {
		log.Printf("⚠️  Failed to save notification log: %v", err)
	}
}
