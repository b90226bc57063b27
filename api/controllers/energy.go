package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridpoint/energy-backend/api/responses"
	"github.com/gridpoint/energy-backend/api/validators"
	"github.com/gridpoint/energy-backend/internal/devices"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/logger"
	"github.com/gridpoint/energy-backend/pkg/pagination"
)

const noConsumptionMessage = "No power consumption recorded for this device"

type logEnergyRequest struct {
	DeviceID      string          `json:"deviceId" validate:"required"`
	PowerConsumed decimal.Decimal `json:"powerConsumed"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
}

// EnergyLog appends one consumption delta and bumps the device's running
// total.
func EnergyLog(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		var payload logEnergyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.LogEnergy(r.Context(), devices.LogEnergyInput{
			DeviceID:      payload.DeviceID,
			PowerConsumed: payload.PowerConsumed,
			Timestamp:     payload.Timestamp,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// EnergyHistory returns the consumption log newest first, optionally filtered
// by owner or device.
func EnergyHistory(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := validators.ParseQueryUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), devices.HistoryQuery{
			UserID:   userID,
			DeviceID: validators.ParseQueryString(r, "deviceId"),
			Page: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// DeviceTotalPower reports the store-side SUM over a device's log entries.
func DeviceTotalPower(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		deviceID, err := parseDeviceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		total, err := svc.TotalByDevice(r.Context(), deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := struct {
			DeviceID           string           `json:"deviceId"`
			TotalPowerConsumed *decimal.Decimal `json:"totalPowerConsumed,omitempty"`
			Message            string           `json:"message,omitempty"`
		}{
			DeviceID:           total.DeviceID,
			TotalPowerConsumed: total.TotalPowerConsumed,
		}
		if !total.Recorded {
			resp.Message = noConsumptionMessage
		}

		responses.WriteSuccess(w, resp)
	}
}
