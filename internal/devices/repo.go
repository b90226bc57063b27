package devices

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gridpoint/energy-backend/pkg/db/models"
)

// Repository handles device persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to device operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new device row.
func (r *Repository) Create(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

// FindByUser returns the user's devices in insertion order.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error) {
	var devices []models.Device
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// FindByUserAndDeviceID loads a device by the compound (owner, token) key.
func (r *Repository) FindByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// FindByDeviceID loads a device by its external token alone.
func (r *Repository) FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// NameTaken reports whether the user already owns a device with the given
// name, excluding the device identified by excludeDeviceID (pass "" on
// create).
func (r *Repository) NameTaken(ctx context.Context, userID uuid.UUID, deviceName, excludeDeviceID string) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("user_id = ? AND device_name = ?", userID, deviceName)
	if excludeDeviceID != "" {
		query = query.Where("device_id <> ?", excludeDeviceID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateName renames the device scoped to its owner. Returns the number of
// affected rows so callers can distinguish a miss from a no-op.
func (r *Repository) UpdateName(ctx context.Context, userID uuid.UUID, deviceID, deviceName string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		UpdateColumn("device_name", deviceName)
	return result.RowsAffected, result.Error
}

// Delete removes the device scoped to its owner.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, deviceID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&models.Device{})
	return result.RowsAffected, result.Error
}

// IncrementPowerWithTx adds delta to the device's running total using the
// provided transaction.
func (r *Repository) IncrementPowerWithTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Device{}).
		Where("id = ?", id).
		UpdateColumn("power_consumed", gorm.Expr("power_consumed + ?", delta)).Error
}
