package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gridpoint/energy-backend/pkg/db/models"
)

// CreateUserDTO carries the persisted fields for a new user row.
type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
	PowerLimit   decimal.Decimal
}

// ToModel maps the DTO onto a fresh user model.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		PowerLimit:   d.PowerLimit,
	}
}

// UserDTO is the API-facing user shape. The password hash never leaves the
// service layer.
type UserDTO struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	PowerLimit decimal.Decimal `json:"powerLimit"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func toUserDTO(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	return &UserDTO{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		PowerLimit: user.PowerLimit,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

// PowerCheckDTO reports a user's aggregate consumption against their ceiling.
type PowerCheckDTO struct {
	Message            string          `json:"message"`
	TotalPowerConsumed decimal.Decimal `json:"totalPowerConsumed"`
	PowerLimit         decimal.Decimal `json:"powerLimit"`
	OverLimit          bool            `json:"overLimit"`
}
