package database

import (
	"fmt"
	"time"

	"cosmichub-sync/astro"
)

// SyncRepository handles database operations for the sync engine ledgers.
type SyncRepository struct {
	db *Database
}

// NewSyncRepository creates a new repository.
func NewSyncRepository(db *Database) *SyncRepository {
	return &SyncRepository{db: db}
}

// InitSchema performs auto-migration for the ledger tables.
func (r *SyncRepository) InitSchema() error {
	if err := r.db.db.AutoMigrate(
		&AspectEventRecord{},
		&NotificationLogRecord{},
		&NotificationRoute{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// SaveAspectEvent journals one detected aspect transition.
func (r *SyncRepository) SaveAspectEvent(chartID string, detectedAt time.Time, ev astro.AspectEvent) error {
	record := AspectEventRecord{
		ChartID:       chartID,
		DetectedAt:    detectedAt,
		Transition:    string(ev.Type),
		TransitPlanet: string(ev.TransitPlanet),
		NatalPlanet:   string(ev.NatalPlanet),
		Aspect:        string(ev.Kind),
		Orb:           ev.Orb,
		ExactAt:       ev.ExactAt,
		Strength:      string(ev.Strength),
	}
	return r.db.db.Create(&record).Error
}

// RecentAspectEvents returns the latest journal entries for one chart.
func (r *SyncRepository) RecentAspectEvents(chartID string, limit int) ([]AspectEventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []AspectEventRecord
	err := r.db.db.
		Where("chart_id = ?", chartID).
		Order("detected_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// SaveNotificationLog records one queued notification.
func (r *SyncRepository) SaveNotificationLog(entry *NotificationLogRecord) error {
	return r.db.db.Create(entry).Error
}

// MarkNotificationDelivered updates a log entry after the queue drains it.
func (r *SyncRepository) MarkNotificationDelivered(notificationID string, deliveredAt time.Time) error {
	return r.db.db.
		Model(&NotificationLogRecord{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]interface{}{"status": "DELIVERED", "delivered_at": deliveredAt}).Error
}

// ActiveRoutes returns all enabled notification routes.
func (r *SyncRepository) ActiveRoutes() ([]NotificationRoute, error) {
	var routes []NotificationRoute
	err := r.db.db.Where("enabled = ?", true).Find(&routes).Error
	return routes, err
}

// CreateRoute stores a new notification route.
func (r *SyncRepository) CreateRoute(route *NotificationRoute) error {
	return r.db.db.Create(route).Error
}
