package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gridpoint/energy-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/pagination"
	"github.com/gridpoint/energy-backend/pkg/security"
)

const deviceTokenBytes = 16

type deviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	FindByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error)
	FindByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (*models.Device, error)
	FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	NameTaken(ctx context.Context, userID uuid.UUID, deviceName, excludeDeviceID string) (bool, error)
	UpdateName(ctx context.Context, userID uuid.UUID, deviceID, deviceName string) (int64, error)
	Delete(ctx context.Context, userID uuid.UUID, deviceID string) (int64, error)
	IncrementPowerWithTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error
}

type entryRepository interface {
	CreateWithTx(tx *gorm.DB, entry *models.PowerEntry) error
	List(ctx context.Context, params listEntriesParams) ([]models.PowerEntry, *pagination.Cursor, error)
	SumByDevice(ctx context.Context, deviceID string) (decimal.Decimal, bool, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddDeviceInput captures the request fields for device registration.
type AddDeviceInput struct {
	DeviceName    string
	PowerConsumed *decimal.Decimal
}

// LogEnergyInput is one consumption delta keyed by the device token.
type LogEnergyInput struct {
	DeviceID      string
	PowerConsumed decimal.Decimal
	Timestamp     *time.Time
}

// HistoryQuery filters and paginates the consumption log.
type HistoryQuery struct {
	UserID   *uuid.UUID
	DeviceID *string
	Page     pagination.Params
}

// Service exposes device and energy log operations.
type Service interface {
	AddDevice(ctx context.Context, userID uuid.UUID, input AddDeviceInput) (*DeviceDTO, error)
	ListDevices(ctx context.Context, userID uuid.UUID) ([]DeviceDTO, error)
	GetDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*DeviceDTO, error)
	UpdateDevice(ctx context.Context, userID uuid.UUID, deviceID, deviceName string) (*DeviceDTO, error)
	DeleteDevice(ctx context.Context, userID uuid.UUID, deviceID string) error
	LogEnergy(ctx context.Context, input LogEnergyInput) (*PowerEntryDTO, error)
	History(ctx context.Context, query HistoryQuery) (*HistoryPage, error)
	TotalByDevice(ctx context.Context, deviceID string) (*DeviceTotalDTO, error)
}

type service struct {
	repo    deviceRepository
	entries entryRepository
	users   userFinder
	tx      txRunner
}

// NewService builds a device service with the provided dependencies.
func NewService(repo deviceRepository, entries entryRepository, users userFinder, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("device repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("entry repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{
		repo:    repo,
		entries: entries,
		users:   users,
		tx:      tx,
	}, nil
}

func (s *service) AddDevice(ctx context.Context, userID uuid.UUID, input AddDeviceInput) (*DeviceDTO, error) {
	name := strings.TrimSpace(input.DeviceName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deviceName is required")
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, classifyUserLookup(err)
	}

	taken, err := s.repo.NameTaken(ctx, userID, name, "")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check device name")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "device name already in use")
	}

	token, err := security.GenerateDeviceToken(deviceTokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate device token")
	}

	initial := decimal.Zero
	if input.PowerConsumed != nil {
		initial = *input.PowerConsumed
	}
	if initial.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "powerConsumed must not be negative")
	}

	device := &models.Device{
		DeviceID:      token,
		UserID:        userID,
		DeviceName:    name,
		PowerConsumed: initial,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, device); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create device")
	}

	return toDeviceDTO(device), nil
}

func (s *service) ListDevices(ctx context.Context, userID uuid.UUID) ([]DeviceDTO, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, classifyUserLookup(err)
	}

	devices, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list devices")
	}
	return toDeviceDTOs(devices), nil
}

func (s *service) GetDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*DeviceDTO, error) {
	device, err := s.repo.FindByUserAndDeviceID(ctx, userID, deviceID)
	if err != nil {
		return nil, classifyDeviceLookup(err)
	}
	return toDeviceDTO(device), nil
}

func (s *service) UpdateDevice(ctx context.Context, userID uuid.UUID, deviceID, deviceName string) (*DeviceDTO, error) {
	name := strings.TrimSpace(deviceName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deviceName is required")
	}

	if _, err := s.repo.FindByUserAndDeviceID(ctx, userID, deviceID); err != nil {
		return nil, classifyDeviceLookup(err)
	}

	// Renames re-check uniqueness against the owner's other devices.
	taken, err := s.repo.NameTaken(ctx, userID, name, deviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check device name")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "device name already in use")
	}

	rows, err := s.repo.UpdateName(ctx, userID, deviceID, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update device")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}

	device, err := s.repo.FindByUserAndDeviceID(ctx, userID, deviceID)
	if err != nil {
		return nil, classifyDeviceLookup(err)
	}
	return toDeviceDTO(device), nil
}

func (s *service) DeleteDevice(ctx context.Context, userID uuid.UUID, deviceID string) error {
	rows, err := s.repo.Delete(ctx, userID, deviceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete device")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}
	return nil
}

func (s *service) LogEnergy(ctx context.Context, input LogEnergyInput) (*PowerEntryDTO, error) {
	if strings.TrimSpace(input.DeviceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deviceId is required")
	}
	// Any delta is accepted; negative entries decrement the running total.

	device, err := s.repo.FindByDeviceID(ctx, input.DeviceID)
	if err != nil {
		return nil, classifyDeviceLookup(err)
	}

	at := time.Now().UTC()
	if input.Timestamp != nil {
		at = input.Timestamp.UTC()
	}

	entry := &models.PowerEntry{
		UserID:        device.UserID,
		DeviceID:      device.DeviceID,
		PowerConsumed: input.PowerConsumed,
		Timestamp:     at,
	}

	// The running total on the device row and the log entry move together.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.IncrementPowerWithTx(tx, device.ID, input.PowerConsumed); err != nil {
			return err
		}
		return s.entries.CreateWithTx(tx, entry)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "log energy consumption")
	}

	return toPowerEntryDTO(entry), nil
}

func (s *service) History(ctx context.Context, query HistoryQuery) (*HistoryPage, error) {
	cursor, err := pagination.ParseCursor(query.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	entries, next, err := s.entries.List(ctx, listEntriesParams{
		UserID:   query.UserID,
		DeviceID: query.DeviceID,
		Limit:    query.Page.Limit,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list power entries")
	}

	page := &HistoryPage{Entries: make([]PowerEntryDTO, 0, len(entries))}
	for i := range entries {
		page.Entries = append(page.Entries, *toPowerEntryDTO(&entries[i]))
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) TotalByDevice(ctx context.Context, deviceID string) (*DeviceTotalDTO, error) {
	device, err := s.repo.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, classifyDeviceLookup(err)
	}

	total, recorded, err := s.entries.SumByDevice(ctx, device.DeviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum power entries")
	}

	dto := &DeviceTotalDTO{DeviceID: device.DeviceID, Recorded: recorded}
	if recorded {
		dto.TotalPowerConsumed = &total
	}
	return dto, nil
}

func classifyUserLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
}

func classifyDeviceLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load device")
}
