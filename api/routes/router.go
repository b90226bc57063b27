package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridpoint/energy-backend/api/controllers"
	"github.com/gridpoint/energy-backend/api/middleware"
	"github.com/gridpoint/energy-backend/internal/devices"
	"github.com/gridpoint/energy-backend/internal/users"
	"github.com/gridpoint/energy-backend/pkg/config"
	"github.com/gridpoint/energy-backend/pkg/db"
	"github.com/gridpoint/energy-backend/pkg/logger"
	"github.com/gridpoint/energy-backend/pkg/metrics"
	"github.com/gridpoint/energy-backend/pkg/redis"
)

// Dependencies carries everything the router needs to serve requests.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Registry      *prometheus.Registry
	HTTPMetrics   *metrics.HTTPMetrics
	UserService   users.Service
	DeviceService devices.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var redisPinger redis.Pinger
	var idempotencyStore redis.IdempotencyStore
	if deps.Redis != nil {
		redisPinger = deps.Redis
		idempotencyStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Metrics(deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", controllers.UserCreate(deps.UserService, logg))
			r.Route("/{userId}", func(r chi.Router) {
				r.Put("/power-limit", controllers.UserSetPowerLimit(deps.UserService, logg))
				r.Get("/power-check", controllers.UserPowerCheck(deps.UserService, logg))
				r.Route("/devices", func(r chi.Router) {
					r.Post("/", controllers.DeviceAdd(deps.DeviceService, logg))
					r.Get("/", controllers.DeviceList(deps.DeviceService, logg))
					r.Get("/{deviceId}", controllers.DeviceGet(deps.DeviceService, logg))
					r.Put("/{deviceId}", controllers.DeviceUpdate(deps.DeviceService, logg))
					r.Delete("/{deviceId}", controllers.DeviceDelete(deps.DeviceService, logg))
				})
			})
		})

		r.Route("/energy", func(r chi.Router) {
			r.Post("/", controllers.EnergyLog(deps.DeviceService, logg))
			r.Get("/history", controllers.EnergyHistory(deps.DeviceService, logg))
		})

		r.Get("/devices/{deviceId}/total-power", controllers.DeviceTotalPower(deps.DeviceService, logg))
	})

	return r
}
