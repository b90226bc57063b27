package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Device is a metered appliance owned by exactly one user. DeviceID is the
// externally visible token handed to clients; ID stays internal. DeviceName
// is unique per owner, not globally.
type Device struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceID      string          `gorm:"column:device_id;type:text;not null;uniqueIndex"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:idx_devices_user_name"`
	DeviceName    string          `gorm:"column:device_name;not null;uniqueIndex:idx_devices_user_name"`
	PowerConsumed decimal.Decimal `gorm:"column:power_consumed;type:numeric(18,6);not null"`
	Timestamp     time.Time       `gorm:"column:timestamp;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
