package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PowerEntry is one immutable logged consumption delta against a device.
// UserID is denormalized from the owning device at insert time so history
// queries can filter without a join. Rows are append-only.
type PowerEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	DeviceID      string          `gorm:"column:device_id;type:text;not null;index"`
	PowerConsumed decimal.Decimal `gorm:"column:power_consumed;type:numeric(18,6);not null"`
	Timestamp     time.Time       `gorm:"column:timestamp;not null;index:idx_power_entries_ts"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
