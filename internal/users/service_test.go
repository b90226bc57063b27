package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gridpoint/energy-backend/pkg/config"
	"github.com/gridpoint/energy-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

type stubUserRepo struct {
	user         *models.User
	userByEmail  *models.User
	createErr    error
	findErr      error
	findEmailErr error
	updateErr    error

	created      *CreateUserDTO
	updatedID    uuid.UUID
	updatedLimit decimal.Decimal
}

func (s *stubUserRepo) Create(_ context.Context, dto CreateUserDTO) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &dto
	user := dto.ToModel()
	user.ID = uuid.New()
	return user, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	if s.findEmailErr != nil {
		return nil, s.findEmailErr
	}
	if s.userByEmail == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.userByEmail, nil
}

func (s *stubUserRepo) UpdatePowerLimit(_ context.Context, id uuid.UUID, limit decimal.Decimal) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedID = id
	s.updatedLimit = limit
	return nil
}

type stubDeviceLister struct {
	devices []models.Device
	err     error
}

func (s stubDeviceLister) FindByUser(_ context.Context, _ uuid.UUID) ([]models.Device, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.devices, nil
}

func baseUser(limit int64) *models.User {
	return &models.User{
		ID:         uuid.New(),
		Name:       "Grid User",
		Email:      "grid@example.com",
		PowerLimit: decimal.NewFromInt(limit),
	}
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(nil, stubDeviceLister{}, testPasswordConfig())
	if err == nil {
		t.Fatal("expected error creating service without repo")
	}
}

func TestNewServiceRequiresDeviceLister(t *testing.T) {
	_, err := NewService(&stubUserRepo{}, nil, testPasswordConfig())
	if err == nil {
		t.Fatal("expected error creating service without device lister")
	}
}

func TestServiceCreateDefaultsPowerLimit(t *testing.T) {
	repo := &stubUserRepo{}
	svc, err := NewService(repo, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	dto, err := svc.Create(context.Background(), CreateUserInput{
		Name:     "Grid User",
		Email:    "grid@example.com",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !dto.PowerLimit.Equal(DefaultPowerLimit) {
		t.Fatalf("expected default limit %s got %s", DefaultPowerLimit, dto.PowerLimit)
	}
	if repo.created == nil {
		t.Fatal("expected repo create call")
	}
	if repo.created.PasswordHash == "" || repo.created.PasswordHash == "hunter22" {
		t.Fatalf("expected hashed password, got %q", repo.created.PasswordHash)
	}
	ok, err := security.VerifyPassword("hunter22", repo.created.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected hash to verify, ok=%v err=%v", ok, err)
	}
}

func TestServiceCreateExplicitPowerLimit(t *testing.T) {
	repo := &stubUserRepo{}
	svc, err := NewService(repo, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	limit := decimal.NewFromInt(250)
	dto, err := svc.Create(context.Background(), CreateUserInput{
		Name:       "Grid User",
		Email:      "grid@example.com",
		Password:   "hunter22",
		PowerLimit: &limit,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !dto.PowerLimit.Equal(limit) {
		t.Fatalf("expected limit %s got %s", limit, dto.PowerLimit)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	svc, err := NewService(&stubUserRepo{}, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []CreateUserInput{
		{Email: "grid@example.com", Password: "x"},
		{Name: "Grid", Password: "x"},
		{Name: "Grid", Email: "grid@example.com"},
		{Name: "Grid", Email: "not-an-email", Password: "x"},
	}
	for _, input := range cases {
		_, gotErr := svc.Create(context.Background(), input)
		if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v, got %v", input, gotErr)
		}
	}
}

func TestServiceCreateDuplicateEmail(t *testing.T) {
	repo := &stubUserRepo{
		createErr: errors.New(`duplicate key value violates unique constraint "users_email_key"`),
	}
	svc, err := NewService(repo, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, gotErr := svc.Create(context.Background(), CreateUserInput{
		Name:     "Grid User",
		Email:    "grid@example.com",
		Password: "hunter22",
	})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", gotErr)
	}
}

func TestServiceCreateDuplicateEmailPreCheck(t *testing.T) {
	repo := &stubUserRepo{userByEmail: baseUser(1000)}
	svc, err := NewService(repo, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, gotErr := svc.Create(context.Background(), CreateUserInput{
		Name:     "Grid User",
		Email:    "grid@example.com",
		Password: "hunter22",
	})
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", gotErr)
	}
	if repo.created != nil {
		t.Fatal("expected no insert attempt for a known-taken email")
	}
}

func TestServiceSetPowerLimit(t *testing.T) {
	user := baseUser(1000)
	repo := &stubUserRepo{user: user}
	svc, err := NewService(repo, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	limit := decimal.NewFromInt(500)
	got, err := svc.SetPowerLimit(context.Background(), user.ID, limit)
	if err != nil {
		t.Fatalf("set power limit: %v", err)
	}
	if !got.Equal(limit) {
		t.Fatalf("expected limit %s got %s", limit, got)
	}
	if !repo.updatedLimit.Equal(limit) {
		t.Fatalf("expected repo update with %s got %s", limit, repo.updatedLimit)
	}
}

func TestServiceSetPowerLimitUserNotFound(t *testing.T) {
	svc, err := NewService(&stubUserRepo{}, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, gotErr := svc.SetPowerLimit(context.Background(), uuid.New(), decimal.NewFromInt(500))
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}

func TestServiceCheckPowerConsumptionOverLimit(t *testing.T) {
	user := baseUser(100)
	devices := stubDeviceLister{devices: []models.Device{
		{PowerConsumed: decimal.NewFromInt(60)},
		{PowerConsumed: decimal.NewFromInt(41)},
	}}
	svc, err := NewService(&stubUserRepo{user: user}, devices, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	check, err := svc.CheckPowerConsumption(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("check power consumption: %v", err)
	}
	if !check.OverLimit {
		t.Fatal("expected over limit")
	}
	if !check.TotalPowerConsumed.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("expected total 101 got %s", check.TotalPowerConsumed)
	}
	if !strings.HasPrefix(check.Message, "Alert!") {
		t.Fatalf("expected alert message, got %q", check.Message)
	}
}

func TestServiceCheckPowerConsumptionAtLimit(t *testing.T) {
	user := baseUser(100)
	devices := stubDeviceLister{devices: []models.Device{
		{PowerConsumed: decimal.NewFromInt(100)},
	}}
	svc, err := NewService(&stubUserRepo{user: user}, devices, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	check, err := svc.CheckPowerConsumption(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("check power consumption: %v", err)
	}
	if check.OverLimit {
		t.Fatal("expected within limit at exact ceiling")
	}
	if !strings.HasPrefix(check.Message, "Within limit:") {
		t.Fatalf("expected within-limit message, got %q", check.Message)
	}
}

func TestServiceCheckPowerConsumptionNoDevices(t *testing.T) {
	user := baseUser(100)
	svc, err := NewService(&stubUserRepo{user: user}, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	check, err := svc.CheckPowerConsumption(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("check power consumption: %v", err)
	}
	if check.OverLimit {
		t.Fatal("expected within limit with no devices")
	}
	if !check.TotalPowerConsumed.Equal(decimal.Zero) {
		t.Fatalf("expected zero total got %s", check.TotalPowerConsumed)
	}
}

func TestServiceCheckPowerConsumptionUserNotFound(t *testing.T) {
	svc, err := NewService(&stubUserRepo{}, stubDeviceLister{}, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, gotErr := svc.CheckPowerConsumption(context.Background(), uuid.New())
	if typed := pkgerrors.As(gotErr); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", gotErr)
	}
}
