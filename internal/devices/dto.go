package devices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gridpoint/energy-backend/pkg/db/models"
)

// DeviceDTO is the API-facing device shape, keyed by the external token.
type DeviceDTO struct {
	DeviceID      string          `json:"deviceId"`
	UserID        uuid.UUID       `json:"userId"`
	DeviceName    string          `json:"deviceName"`
	PowerConsumed decimal.Decimal `json:"powerConsumed"`
	Timestamp     time.Time       `json:"timestamp"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toDeviceDTO(device *models.Device) *DeviceDTO {
	if device == nil {
		return nil
	}
	return &DeviceDTO{
		DeviceID:      device.DeviceID,
		UserID:        device.UserID,
		DeviceName:    device.DeviceName,
		PowerConsumed: device.PowerConsumed,
		Timestamp:     device.Timestamp,
		CreatedAt:     device.CreatedAt,
		UpdatedAt:     device.UpdatedAt,
	}
}

func toDeviceDTOs(devices []models.Device) []DeviceDTO {
	out := make([]DeviceDTO, 0, len(devices))
	for i := range devices {
		out = append(out, *toDeviceDTO(&devices[i]))
	}
	return out
}

// PowerEntryDTO is one logged consumption delta.
type PowerEntryDTO struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	DeviceID      string          `json:"deviceId"`
	PowerConsumed decimal.Decimal `json:"powerConsumed"`
	Timestamp     time.Time       `json:"timestamp"`
}

func toPowerEntryDTO(entry *models.PowerEntry) *PowerEntryDTO {
	if entry == nil {
		return nil
	}
	return &PowerEntryDTO{
		ID:            entry.ID,
		UserID:        entry.UserID,
		DeviceID:      entry.DeviceID,
		PowerConsumed: entry.PowerConsumed,
		Timestamp:     entry.Timestamp,
	}
}

// HistoryPage is one page of consumption history plus the cursor for the next.
type HistoryPage struct {
	Entries    []PowerEntryDTO `json:"entries"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// DeviceTotalDTO reports the store-side SUM over a device's entries. Recorded
// distinguishes "no entries exist" from a genuine zero total.
type DeviceTotalDTO struct {
	DeviceID           string           `json:"deviceId"`
	TotalPowerConsumed *decimal.Decimal `json:"totalPowerConsumed,omitempty"`
	Recorded           bool             `json:"-"`
}
