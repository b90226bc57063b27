package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gridpoint/energy-backend/api/responses"
	"github.com/gridpoint/energy-backend/api/validators"
	"github.com/gridpoint/energy-backend/internal/devices"
	pkgerrors "github.com/gridpoint/energy-backend/pkg/errors"
	"github.com/gridpoint/energy-backend/pkg/logger"
)

type addDeviceRequest struct {
	DeviceName    string           `json:"deviceName" validate:"required,min=1"`
	PowerConsumed *decimal.Decimal `json:"powerConsumed" validate:"required"`
}

// DeviceAdd registers a new device under the user and returns its token.
func DeviceAdd(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addDeviceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		device, err := svc.AddDevice(r.Context(), userID, devices.AddDeviceInput{
			DeviceName:    payload.DeviceName,
			PowerConsumed: payload.PowerConsumed,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, device)
	}
}

// DeviceList returns every device the user owns.
func DeviceList(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListDevices(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// DeviceGet fetches a single device scoped to its owner.
func DeviceGet(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID, err := parseDeviceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		device, err := svc.GetDevice(r.Context(), userID, deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, device)
	}
}

type updateDeviceRequest struct {
	DeviceName string `json:"deviceName" validate:"required,min=1"`
}

// DeviceUpdate renames the device.
func DeviceUpdate(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID, err := parseDeviceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateDeviceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		device, err := svc.UpdateDevice(r.Context(), userID, deviceID, payload.DeviceName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, device)
	}
}

// DeviceDelete removes the device from the user's roster.
func DeviceDelete(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		userID, err := parseUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID, err := parseDeviceID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteDevice(r.Context(), userID, deviceID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func parseDeviceID(r *http.Request) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "deviceId"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "device id is required")
	}
	return raw, nil
}
