// model.go this code defines the data model for the application
package datastore

import "time"

// Violation is one stored upstream investigation record. The primary key
// is the upstream _id; rows are immutable once inserted.
type Violation struct {
	ID                int64  `gorm:"primaryKey;autoIncrement:false"`
	CasefileNumber    string `gorm:"index:idx_violations_casefile"`
	Address           string
	ParcelID          string    `gorm:"index:idx_violations_parcel"`
	Status            string    `gorm:"type:varchar(32)"`
	InvestigationDate time.Time `gorm:"index:idx_violations_date"`
	Description       string    `gorm:"type:text"`
	CodeSection       string
	SpecInstructions  string `gorm:"type:text"`
	Outcome           string `gorm:"type:text"`
	Findings          string `gorm:"type:text"`
	CreatedAt         time.Time
}

// Checkpoint is the single row of run state: last check bookkeeping,
// feature toggles, notification destinations and the cross-run lease.
type Checkpoint struct {
	ID             uint `gorm:"primaryKey"`
	LastCheckedAt  time.Time
	LastNewCount   int
	ChecksEnabled  bool
	EmailEnabled   bool
	EmailTo        string
	SMSEnabled     bool
	SMSTo          string
	PushEnabled    bool
	LeaseOwner     string     `gorm:"type:varchar(36)"`
	LeaseExpiresAt *time.Time // nil when the lease is free
	UpdatedAt      time.Time
}

// WatchedLocation is an address/parcel pair the system tracks. Managed by
// the admin surface; the pipeline only reads these.
type WatchedLocation struct {
	ID        uint   `gorm:"primaryKey"`
	Address   string `gorm:"index"`
	ParcelID  string `gorm:"uniqueIndex"`
	CreatedAt time.Time
}

// Device is a registered push target. Only devices with an explicit
// delivery permission and a recognized platform are notified.
type Device struct {
	ID             uint   `gorm:"primaryKey"`
	Token          string `gorm:"uniqueIndex"`
	Platform       string `gorm:"type:varchar(16)"` // "ios" is the only recognized value
	PushPermission bool
	CreatedAt      time.Time
}
