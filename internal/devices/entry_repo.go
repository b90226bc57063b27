package devices

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gridpoint/energy-backend/pkg/db/models"
	"github.com/gridpoint/energy-backend/pkg/pagination"
)

// EntryRepository handles the append-only power entry log.
type EntryRepository struct {
	db *gorm.DB
}

// NewEntryRepository binds a GORM DB to power entry operations.
func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// CreateWithTx appends an entry using the provided transaction.
func (r *EntryRepository) CreateWithTx(tx *gorm.DB, entry *models.PowerEntry) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(entry).Error
}

type listEntriesParams struct {
	UserID   *uuid.UUID
	DeviceID *string
	Limit    int
	Cursor   *pagination.Cursor
}

// List returns entries most recent first, applying the optional filters and
// keyset cursor.
func (r *EntryRepository) List(ctx context.Context, params listEntriesParams) ([]models.PowerEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.PowerEntry{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.DeviceID != nil {
		query = query.Where("device_id = ?", *params.DeviceID)
	}
	if params.Cursor != nil {
		query = query.Where("(timestamp, id) < (?, ?)", params.Cursor.Timestamp, params.Cursor.ID)
	}

	var entries []models.PowerEntry
	if err := query.Order("timestamp DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		next := entries[normalized]
		entries = entries[:normalized]
		return entries, &pagination.Cursor{Timestamp: next.Timestamp, ID: next.ID}, nil
	}
	return entries, nil, nil
}

type deviceTotalRow struct {
	DeviceID string          `gorm:"column:device_id"`
	Total    decimal.Decimal `gorm:"column:total"`
}

// SumByDevice delegates the grouped SUM to the store. The bool result is
// false when no entries exist for the device.
func (r *EntryRepository) SumByDevice(ctx context.Context, deviceID string) (decimal.Decimal, bool, error) {
	var rows []deviceTotalRow
	err := r.db.WithContext(ctx).
		Model(&models.PowerEntry{}).
		Select("device_id, SUM(power_consumed) AS total").
		Where("device_id = ?", deviceID).
		Group("device_id").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(rows) == 0 {
		return decimal.Zero, false, nil
	}
	return rows[0].Total, true, nil
}
