package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gridpoint/energy-backend/api/responses"
	"github.com/gridpoint/energy-backend/api/validators"
	"github.com/gridpoint/energy-backend/internal/users"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/logger"
)

type createUserRequest struct {
	Name       string           `json:"name" validate:"required"`
	Email      string           `json:"email" validate:"required,email"`
	Password   string           `json:"password" validate:"required,min=8"`
	PowerLimit *decimal.Decimal `json:"powerLimit,omitempty"`
}

// UserCreate registers a new account. The power ceiling falls back to the
// platform default when omitted.
func UserCreate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var payload createUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Create(r.Context(), users.CreateUserInput{
			Name:       payload.Name,
			Email:      payload.Email,
			Password:   payload.Password,
			PowerLimit: payload.PowerLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

type setPowerLimitRequest struct {
	PowerLimit *decimal.Decimal `json:"powerLimit" validate:"required"`
}

// UserSetPowerLimit overwrites the user's consumption ceiling.
func UserSetPowerLimit(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setPowerLimitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := svc.SetPowerLimit(r.Context(), userID, *payload.PowerLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := struct {
			UserID     uuid.UUID       `json:"userId"`
			PowerLimit decimal.Decimal `json:"powerLimit"`
		}{
			UserID:     userID,
			PowerLimit: limit,
		}
		responses.WriteSuccess(w, resp)
	}
}

// UserPowerCheck compares the user's aggregate consumption against their
// ceiling.
func UserPowerCheck(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		check, err := svc.CheckPowerConsumption(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, check)
	}
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}
