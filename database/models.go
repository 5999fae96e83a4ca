package database

import "time"

// AspectEventRecord is one journaled aspect transition.
type AspectEventRecord struct {
	ID            uint      `gorm:"primaryKey"`
	ChartID       string    `gorm:"size:64;index:idx_aspect_events_chart"`
	DetectedAt    time.Time `gorm:"index"`
	Transition    string    `gorm:"size:16"` // forming | separating
	TransitPlanet string    `gorm:"size:16"`
	NatalPlanet   string    `gorm:"size:16"`
	Aspect        string    `gorm:"size:24"`
	Orb           float64
	ExactAt       time.Time
	Strength      string `gorm:"size:8"`
}

// TableName overrides the default pluralization.
func (AspectEventRecord) TableName() string { return "aspect_events" }

// NotificationLogRecord tracks one queued notification and its outcome.
type NotificationLogRecord struct {
	ID             uint   `gorm:"primaryKey"`
	NotificationID string `gorm:"size:36;index"`
	ChartID        string `gorm:"size:64;index"`
	Kind           string `gorm:"size:24"` // aspect-alert | chart-ready
	Title          string `gorm:"size:128"`
	Body           string
	Status         string `gorm:"size:16"` // QUEUED | DELIVERED | DROPPED
	QueuedAt       time.Time
	DeliveredAt    *time.Time
	ErrorMessage   string
}

func (NotificationLogRecord) TableName() string { return "notification_logs" }

// NotificationRoute is a per-user routing rule for queued notifications.
// An empty ChartID matches every chart.
type NotificationRoute struct {
	ID          uint   `gorm:"primaryKey"`
	ChartID     string `gorm:"size:64"`
	MinStrength string `gorm:"size:8"` // weakest strength still delivered
	Enabled     bool   `gorm:"index"`
	CreatedAt   time.Time
}

func (NotificationRoute) TableName() string { return "notification_routes" }
