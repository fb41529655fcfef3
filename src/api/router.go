// Package api is the simulator's HTTP surface: control commands, snapshots, history, saved
// configurations, the mentor and a websocket snapshot stream.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/configstore"
	"github.com/ryansname/boilersim/src/mentor"
	"github.com/ryansname/boilersim/src/metrics"
	"github.com/ryansname/boilersim/src/sim"
)

// RiskSource returns the latest anomaly evaluation
type RiskSource interface {
	Risk() anomaly.State
}

// Deps are the components the handlers operate on. Metrics and Hub may be nil.
type Deps struct {
	Sim     *sim.Simulation
	Configs configstore.Store
	Mentor  *mentor.Advisor
	Risk    RiskSource
	Hub     *Hub
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type handler struct {
	Deps
}

func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handler{Deps: deps}
	r := mux.NewRouter()

	route := func(path string, fn http.HandlerFunc, methods ...string) {
		r.Handle(path, deps.Metrics.WrapHandler(path, fn)).Methods(methods...)
	}

	route("/health", h.health, http.MethodGet)
	route("/api/state", h.state, http.MethodGet)
	route("/api/commands", h.command, http.MethodPost)
	route("/api/zones/{id:[1-3]}", h.zone, http.MethodPost)
	route("/api/soot-blow", h.sootBlow, http.MethodPost)
	route("/api/reset", h.reset, http.MethodPost)
	route("/api/recording", h.recording, http.MethodPost)
	route("/api/export.csv", h.exportCSV, http.MethodGet)
	route("/api/history", h.history, http.MethodGet)
	route("/api/history/import", h.importHistory, http.MethodPost)
	route("/api/history/stats", h.historyStats, http.MethodGet)
	route("/api/anomalies", h.anomalies, http.MethodGet)
	route("/api/configs", h.listConfigs, http.MethodGet)
	route("/api/configs", h.saveConfig, http.MethodPost)
	route("/api/configs/{id}", h.getConfig, http.MethodGet)
	route("/api/configs/{id}", h.deleteConfig, http.MethodDelete)
	route("/api/configs/{id}/apply", h.applyConfig, http.MethodPost)
	route("/api/mentor/ask", h.ask, http.MethodPost)
	route("/api/mentor/analyze", h.analyze, http.MethodPost)
	route("/api/dashboard/sankey", h.sankey, http.MethodGet)
	if deps.Hub != nil {
		r.Handle("/ws", deps.Hub).Methods(http.MethodGet)
	}
	r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	r.Use(logRequests(deps.Logger))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zapRecoveryLogger{deps.Logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(r))
}

type zapRecoveryLogger struct {
	log *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...any) {
	l.log.Error("Recovered from HTTP handler panic", zap.Any("panic", v))
}

func logRequests(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
