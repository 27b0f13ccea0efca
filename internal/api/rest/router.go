// Package rest exposes the Engine as an HTTP control surface: a
// chi.Mux with request-id/access-log middleware, a versioned API
// prefix, and a websocket mount for the event push-stream.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/engine"
)

// API wires chi handlers to an Engine. It is intentionally thin: every
// handler in handlers.go delegates straight to an Engine method or one
// of its component accessors (Store, Alerts, Broadcaster).
type API struct {
	engine *engine.Engine
	logger *zap.SugaredLogger
}

// NewAPI builds the handler set.
func NewAPI(eng *engine.Engine, logger *zap.SugaredLogger) *API {
	return &API{engine: eng, logger: logger}
}

// NewRouter builds the full HTTP handler: CORS, request-id, access
// logging, the versioned REST control surface, and the websocket
// push-stream mount.
func NewRouter(eng *engine.Engine, logger *zap.SugaredLogger, wsHandler http.Handler) http.Handler {
	a := NewAPI(eng, logger)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/health", a.health)

	if wsHandler != nil {
		r.Get("/ws", wsHandler.ServeHTTP)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/devices", func(dr chi.Router) {
			dr.Get("/", a.listDevices)
			dr.Post("/", a.addDevice)
			dr.Get("/{id}", a.getDevice)
			dr.Put("/{id}", a.updateDevice)
			dr.Delete("/{id}", a.deleteDevice)
			dr.Post("/{id}/test", a.testConnectivity)
			dr.Post("/{id}/collect", a.collectNow)
		})

		api.Route("/metrics", func(mr chi.Router) {
			mr.Get("/overview", a.metricsOverview)
			mr.Get("/top-usage", a.metricsTopUsage)
			mr.Get("/{id}", a.metricsForDevice)
			mr.Get("/{id}/history", a.metricsHistory)
			mr.Get("/{id}/aggregated", a.metricsAggregated)
			mr.Get("/{id}/realtime", a.metricsRealtime)
		})

		api.Route("/alerts", func(ar chi.Router) {
			ar.Get("/", a.listAlerts)
			ar.Get("/stats", a.alertStats)
			ar.Get("/{id}", a.getAlert)
			ar.Post("/{id}/ack", a.ackAlert)
			ar.Post("/{id}/resolve", a.resolveAlert)
			ar.Delete("/{id}", a.deleteAlert)
			ar.Post("/bulk/ack", a.bulkAckAlerts)
			ar.Post("/bulk/resolve", a.bulkResolveAlerts)
		})

		api.Route("/scan", func(sr chi.Router) {
			sr.Post("/start", a.startScan)
			sr.Post("/stop", a.stopScan)
			sr.Get("/status", a.scanStatus)
			sr.Get("/history", a.scanHistory)
			sr.Get("/validate", a.validateRange)
			sr.Get("/presets", a.scanPresets)
			sr.Post("/ping", a.pingHost)
			sr.Post("/ports", a.portScanHost)
		})

		api.Route("/config", func(cr chi.Router) {
			cr.Get("/", a.getConfig)
			cr.Put("/", a.setConfig)
		})

		api.Post("/monitoring/start", a.startMonitoring)
		api.Post("/monitoring/stop", a.stopMonitoring)
		api.Post("/maintenance", a.maintenance)
	})

	return r
}
