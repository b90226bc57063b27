package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gridpoint/energy-backend/pkg/config"
	"github.com/gridpoint/energy-backend/pkg/db"
	"github.com/gridpoint/energy-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/security"
)

// DefaultPowerLimit applies when a new user does not supply a ceiling.
var DefaultPowerLimit = decimal.NewFromInt(1000)

type userRepository interface {
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePowerLimit(ctx context.Context, id uuid.UUID, limit decimal.Decimal) error
}

type deviceLister interface {
	FindByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error)
}

// CreateUserInput captures the request fields for user creation.
type CreateUserInput struct {
	Name       string
	Email      string
	Password   string
	PowerLimit *decimal.Decimal
}

// Service exposes user operations.
type Service interface {
	Create(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	SetPowerLimit(ctx context.Context, userID uuid.UUID, limit decimal.Decimal) (decimal.Decimal, error)
	CheckPowerConsumption(ctx context.Context, userID uuid.UUID) (*PowerCheckDTO, error)
}

type service struct {
	repo        userRepository
	devices     deviceLister
	passwordCfg config.PasswordConfig
}

// NewService builds a user service with the provided repositories.
func NewService(repo userRepository, devices deviceLister, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if devices == nil {
		return nil, fmt.Errorf("device lister required")
	}
	return &service{
		repo:        repo,
		devices:     devices,
		passwordCfg: passwordCfg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	}

	if existing, err := s.repo.FindByEmail(ctx, email); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	limit := DefaultPowerLimit
	if input.PowerLimit != nil {
		limit = *input.PowerLimit
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.repo.Create(ctx, CreateUserDTO{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		PowerLimit:   limit,
	})
	if err != nil {
		// Concurrent registrations can still slip past the pre-check.
		if db.IsUniqueViolation(err, "users_email_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	return toUserDTO(user), nil
}

func (s *service) SetPowerLimit(ctx context.Context, userID uuid.UUID, limit decimal.Decimal) (decimal.Decimal, error) {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return decimal.Zero, classifyUserLookup(err)
	}

	if err := s.repo.UpdatePowerLimit(ctx, userID, limit); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update power limit")
	}

	return limit, nil
}

func (s *service) CheckPowerConsumption(ctx context.Context, userID uuid.UUID) (*PowerCheckDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, classifyUserLookup(err)
	}

	devices, err := s.devices.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list user devices")
	}

	// In-memory fold over the resolved devices, deliberately not a store
	// aggregation: the running totals live on the device rows.
	total := decimal.Zero
	for _, device := range devices {
		total = total.Add(device.PowerConsumed)
	}

	over := total.GreaterThan(user.PowerLimit)
	msg := fmt.Sprintf("Within limit: %s <= %s", total, user.PowerLimit)
	if over {
		msg = fmt.Sprintf("Alert! Total power consumption exceeded: %s > %s", total, user.PowerLimit)
	}

	return &PowerCheckDTO{
		Message:            msg,
		TotalPowerConsumed: total,
		PowerLimit:         user.PowerLimit,
		OverLimit:          over,
	}, nil
}

func classifyUserLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
}
