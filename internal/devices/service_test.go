package devices

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gridpoint/energy-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/pagination"
)

type stubDeviceRepo struct {
	devices map[string]*models.Device

	createErr error
	findErr   error
	nameTaken bool

	updateRows int64
	deleteRows int64
}

func newStubDeviceRepo(devices ...*models.Device) *stubDeviceRepo {
	repo := &stubDeviceRepo{devices: map[string]*models.Device{}}
	for _, d := range devices {
		repo.devices[d.DeviceID] = d
	}
	return repo
}

func (s *stubDeviceRepo) Create(_ context.Context, device *models.Device) error {
	if s.createErr != nil {
		return s.createErr
	}
	device.ID = uuid.New()
	s.devices[device.DeviceID] = device
	return nil
}

func (s *stubDeviceRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]models.Device, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []models.Device
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *stubDeviceRepo) FindByUserAndDeviceID(_ context.Context, userID uuid.UUID, deviceID string) (*models.Device, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	d, ok := s.devices[deviceID]
	if !ok || d.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (s *stubDeviceRepo) FindByDeviceID(_ context.Context, deviceID string) (*models.Device, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (s *stubDeviceRepo) NameTaken(_ context.Context, _ uuid.UUID, _, _ string) (bool, error) {
	return s.nameTaken, nil
}

func (s *stubDeviceRepo) UpdateName(_ context.Context, userID uuid.UUID, deviceID, deviceName string) (int64, error) {
	if d, ok := s.devices[deviceID]; ok && d.UserID == userID {
		d.DeviceName = deviceName
	}
	return s.updateRows, nil
}

func (s *stubDeviceRepo) Delete(_ context.Context, _ uuid.UUID, deviceID string) (int64, error) {
	if s.deleteRows > 0 {
		delete(s.devices, deviceID)
	}
	return s.deleteRows, nil
}

func (s *stubDeviceRepo) IncrementPowerWithTx(_ *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	for _, d := range s.devices {
		if d.ID == id {
			d.PowerConsumed = d.PowerConsumed.Add(delta)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubEntryRepo struct {
	entries []models.PowerEntry
	next    *pagination.Cursor
	listErr error

	total    decimal.Decimal
	recorded bool
	sumErr   error
}

func (s *stubEntryRepo) CreateWithTx(_ *gorm.DB, entry *models.PowerEntry) error {
	entry.ID = uuid.New()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubEntryRepo) List(_ context.Context, params listEntriesParams) ([]models.PowerEntry, *pagination.Cursor, error) {
	if s.listErr != nil {
		return nil, nil, s.listErr
	}
	return s.entries, s.next, nil
}

func (s *stubEntryRepo) SumByDevice(_ context.Context, _ string) (decimal.Decimal, bool, error) {
	if s.sumErr != nil {
		return decimal.Zero, false, s.sumErr
	}
	return s.total, s.recorded, nil
}

type stubUserFinder struct {
	user *models.User
}

func (s stubUserFinder) FindByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubTxRunner struct {
	err error
}

func (s stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	if s.err != nil {
		return s.err
	}
	return fn(&gorm.DB{})
}

func baseDevice(userID uuid.UUID) *models.Device {
	return &models.Device{
		ID:            uuid.New(),
		DeviceID:      "dev_0011223344556677",
		UserID:        userID,
		DeviceName:    "Heat Pump",
		PowerConsumed: decimal.Zero,
		Timestamp:     time.Now().UTC(),
	}
}

func newTestService(t *testing.T, repo deviceRepository, entries entryRepository, users userFinder, tx txRunner) Service {
	t.Helper()
	svc, err := NewService(repo, entries, users, tx)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	repo := newStubDeviceRepo()
	entries := &stubEntryRepo{}
	users := stubUserFinder{user: &models.User{ID: uuid.New()}}

	if _, err := NewService(nil, entries, users, stubTxRunner{}); err == nil {
		t.Fatal("expected error creating service without device repo")
	}
	if _, err := NewService(repo, nil, users, stubTxRunner{}); err == nil {
		t.Fatal("expected error creating service without entry repo")
	}
	if _, err := NewService(repo, entries, nil, stubTxRunner{}); err == nil {
		t.Fatal("expected error creating service without user finder")
	}
	if _, err := NewService(repo, entries, users, nil); err == nil {
		t.Fatal("expected error creating service without tx runner")
	}
}

func TestServiceAddDevice(t *testing.T) {
	userID := uuid.New()
	repo := newStubDeviceRepo()
	svc := newTestService(t, repo, &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	dto, err := svc.AddDevice(context.Background(), userID, AddDeviceInput{DeviceName: "Heat Pump"})
	if err != nil {
		t.Fatalf("add device: %v", err)
	}
	if dto.DeviceName != "Heat Pump" {
		t.Fatalf("expected device name set, got %q", dto.DeviceName)
	}
	if !strings.HasPrefix(dto.DeviceID, "dev_") {
		t.Fatalf("expected token with dev_ prefix, got %q", dto.DeviceID)
	}
	if dto.UserID != userID {
		t.Fatalf("expected owner %s got %s", userID, dto.UserID)
	}
	if !dto.PowerConsumed.Equal(decimal.Zero) {
		t.Fatalf("expected zero initial consumption, got %s", dto.PowerConsumed)
	}
}

func TestServiceAddDeviceUserNotFound(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{}, stubTxRunner{})

	_, gotErr := svc.AddDevice(context.Background(), uuid.New(), AddDeviceInput{DeviceName: "Heat Pump"})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}

func TestServiceAddDeviceNameConflict(t *testing.T) {
	userID := uuid.New()
	repo := newStubDeviceRepo()
	repo.nameTaken = true
	svc := newTestService(t, repo, &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	_, gotErr := svc.AddDevice(context.Background(), userID, AddDeviceInput{DeviceName: "Heat Pump"})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", gotErr)
	}
}

func TestServiceAddDeviceValidation(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	_, gotErr := svc.AddDevice(context.Background(), uuid.New(), AddDeviceInput{DeviceName: "   "})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", gotErr)
	}

	negative := decimal.NewFromInt(-1)
	_, gotErr = svc.AddDevice(context.Background(), uuid.New(), AddDeviceInput{DeviceName: "Heat Pump", PowerConsumed: &negative})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for negative consumption, got %v", gotErr)
	}
}

func TestServiceGetDevice(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	svc := newTestService(t, newStubDeviceRepo(device), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	dto, err := svc.GetDevice(context.Background(), userID, device.DeviceID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if dto.DeviceID != device.DeviceID {
		t.Fatalf("expected device %s got %s", device.DeviceID, dto.DeviceID)
	}
}

func TestServiceGetDeviceWrongOwner(t *testing.T) {
	device := baseDevice(uuid.New())
	svc := newTestService(t, newStubDeviceRepo(device), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	_, gotErr := svc.GetDevice(context.Background(), uuid.New(), device.DeviceID)
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}

func TestServiceUpdateDevice(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	repo := newStubDeviceRepo(device)
	repo.updateRows = 1
	svc := newTestService(t, repo, &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	dto, err := svc.UpdateDevice(context.Background(), userID, device.DeviceID, "Boiler")
	if err != nil {
		t.Fatalf("update device: %v", err)
	}
	if dto.DeviceName != "Boiler" {
		t.Fatalf("expected renamed device, got %q", dto.DeviceName)
	}
}

func TestServiceUpdateDeviceNameConflict(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	repo := newStubDeviceRepo(device)
	repo.nameTaken = true
	svc := newTestService(t, repo, &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	_, gotErr := svc.UpdateDevice(context.Background(), userID, device.DeviceID, "Boiler")
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", gotErr)
	}
}

func TestServiceDeleteDevice(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	repo := newStubDeviceRepo(device)
	repo.deleteRows = 1
	svc := newTestService(t, repo, &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	if err := svc.DeleteDevice(context.Background(), userID, device.DeviceID); err != nil {
		t.Fatalf("delete device: %v", err)
	}

	_, gotErr := svc.GetDevice(context.Background(), userID, device.DeviceID)
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found after delete, got %v", gotErr)
	}
}

func TestServiceDeleteDeviceNotFound(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	gotErr := svc.DeleteDevice(context.Background(), uuid.New(), "dev_missing")
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}

func TestServiceLogEnergyAccumulates(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	repo := newStubDeviceRepo(device)
	entries := &stubEntryRepo{}
	svc := newTestService(t, repo, entries, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	first, err := svc.LogEnergy(context.Background(), LogEnergyInput{DeviceID: device.DeviceID, PowerConsumed: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("log energy: %v", err)
	}
	if first.UserID != userID {
		t.Fatalf("expected entry owner %s got %s", userID, first.UserID)
	}

	if _, err := svc.LogEnergy(context.Background(), LogEnergyInput{DeviceID: device.DeviceID, PowerConsumed: decimal.NewFromInt(5)}); err != nil {
		t.Fatalf("log energy: %v", err)
	}

	if !device.PowerConsumed.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected running total 15 got %s", device.PowerConsumed)
	}
	if len(entries.entries) != 2 {
		t.Fatalf("expected 2 log entries got %d", len(entries.entries))
	}
}

func TestServiceLogEnergyValidation(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	_, gotErr := svc.LogEnergy(context.Background(), LogEnergyInput{PowerConsumed: decimal.NewFromInt(1)})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing device id, got %v", gotErr)
	}
}

func TestServiceLogEnergyNegativeDeltaDecrements(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	device.PowerConsumed = decimal.NewFromInt(10)
	entries := &stubEntryRepo{}
	svc := newTestService(t, newStubDeviceRepo(device), entries, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	entry, err := svc.LogEnergy(context.Background(), LogEnergyInput{DeviceID: device.DeviceID, PowerConsumed: decimal.NewFromInt(-4)})
	if err != nil {
		t.Fatalf("log energy: %v", err)
	}
	if !entry.PowerConsumed.Equal(decimal.NewFromInt(-4)) {
		t.Fatalf("expected entry delta -4 got %s", entry.PowerConsumed)
	}
	if !device.PowerConsumed.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected running total 6 got %s", device.PowerConsumed)
	}
	if len(entries.entries) != 1 {
		t.Fatalf("expected 1 log entry got %d", len(entries.entries))
	}
}

func TestServiceLogEnergyDeviceNotFound(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	_, gotErr := svc.LogEnergy(context.Background(), LogEnergyInput{DeviceID: "dev_missing", PowerConsumed: decimal.NewFromInt(1)})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}

func TestServiceLogEnergyTxFailure(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	svc := newTestService(t, newStubDeviceRepo(device), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{err: gorm.ErrInvalidTransaction})

	_, gotErr := svc.LogEnergy(context.Background(), LogEnergyInput{DeviceID: device.DeviceID, PowerConsumed: decimal.NewFromInt(1)})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", gotErr)
	}
}

func TestServiceHistory(t *testing.T) {
	now := time.Now().UTC()
	entries := &stubEntryRepo{
		entries: []models.PowerEntry{
			{ID: uuid.New(), DeviceID: "dev_a", PowerConsumed: decimal.NewFromInt(5), Timestamp: now},
			{ID: uuid.New(), DeviceID: "dev_a", PowerConsumed: decimal.NewFromInt(3), Timestamp: now.Add(-time.Minute)},
		},
		next: &pagination.Cursor{Timestamp: now.Add(-time.Minute), ID: uuid.New()},
	}
	svc := newTestService(t, newStubDeviceRepo(), entries, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	page, err := svc.History(context.Background(), HistoryQuery{Page: pagination.Params{Limit: 2}})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 entries got %d", len(page.Entries))
	}
	if page.NextCursor == "" {
		t.Fatal("expected next cursor")
	}
	if _, err := pagination.ParseCursor(page.NextCursor); err != nil {
		t.Fatalf("expected parseable cursor: %v", err)
	}
}

func TestServiceHistoryInvalidCursor(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	_, gotErr := svc.History(context.Background(), HistoryQuery{Page: pagination.Params{Cursor: "not base64!!"}})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", gotErr)
	}
}

func TestServiceTotalByDevice(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	entries := &stubEntryRepo{total: decimal.NewFromInt(42), recorded: true}
	svc := newTestService(t, newStubDeviceRepo(device), entries, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	dto, err := svc.TotalByDevice(context.Background(), device.DeviceID)
	if err != nil {
		t.Fatalf("total by device: %v", err)
	}
	if !dto.Recorded {
		t.Fatal("expected recorded total")
	}
	if dto.TotalPowerConsumed == nil || !dto.TotalPowerConsumed.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("expected total 42 got %v", dto.TotalPowerConsumed)
	}
}

func TestServiceTotalByDeviceNoEntries(t *testing.T) {
	userID := uuid.New()
	device := baseDevice(userID)
	svc := newTestService(t, newStubDeviceRepo(device), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: userID}}, stubTxRunner{})

	dto, err := svc.TotalByDevice(context.Background(), device.DeviceID)
	if err != nil {
		t.Fatalf("total by device: %v", err)
	}
	if dto.Recorded {
		t.Fatal("expected no recorded entries")
	}
	if dto.TotalPowerConsumed != nil {
		t.Fatalf("expected nil total, got %v", dto.TotalPowerConsumed)
	}
}

func TestServiceTotalByDeviceNotFound(t *testing.T) {
	svc := newTestService(t, newStubDeviceRepo(), &stubEntryRepo{}, stubUserFinder{user: &models.User{ID: uuid.New()}}, stubTxRunner{})

	_, gotErr := svc.TotalByDevice(context.Background(), "dev_missing")
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}
