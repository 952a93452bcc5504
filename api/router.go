// Package api exposes the optimizer over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/yaswanthhh/ev-charge-optimizer/core/logger"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/core/optimizer"
	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
	infralogger "github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
)

// Service is the set of operations served by the API.
type Service interface {
	Optimize(req model.OptimizationRequest) (model.OptimizeOutput, error)
	EncodeProfile(req optimizer.ProfileRequest) (ocpp.SetChargingProfile, error)
	DispatchProfile(ctx context.Context, req optimizer.DispatchRequest) (model.DispatchOutcome, error)
	SaveRun(ctx context.Context, input, output json.RawMessage) (runs.Saved, error)
	GetRun(ctx context.Context, id int64) (runs.Record, error)
	RunAndDispatch(ctx context.Context, req model.OptimizationRequest) (model.RunResult, error)
}

// Options configures the optional parts of the router.
type Options struct {
	// AuthToken protects the routes that send commands or write runs.
	AuthToken string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Stations serves GET /ocpp/{chargerId} when set.
	Stations http.Handler
	// Connected lists the connected station ids for GET /stations when set.
	Connected func() []string
	Logger    logger.Logger
}

// NewRouter returns the HTTP handler of the service.
func NewRouter(svc Service, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = infralogger.NopLogger{}
	}
	h := &handlers{svc: svc, log: log}
	mux := http.NewServeMux()

	route := func(pattern string, next http.Handler) {
		mux.Handle(pattern, recoverPanics(log, logRequests(log, next)))
	}
	protected := func(pattern string, next http.HandlerFunc) {
		route(pattern, requireToken(opts.AuthToken, next))
	}

	route("GET /health", http.HandlerFunc(h.health))
	route("POST /optimize", http.HandlerFunc(h.optimize))
	route("POST /ocpp/profile", http.HandlerFunc(h.profile))
	protected("POST /dispatch", h.dispatch)
	protected("POST /runs", h.createRun)
	route("GET /runs/{id}", http.HandlerFunc(h.getRun))
	protected("POST /run-and-dispatch", h.runAndDispatch)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.Connected != nil {
		route("GET /stations", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			ids := opts.Connected()
			if ids == nil {
				ids = []string{}
			}
			writeJSON(w, http.StatusOK, map[string][]string{"stations": ids})
		}))
	}
	if opts.Stations != nil {
		// the upgrade needs the raw ResponseWriter, so no request logging here
		mux.Handle("GET /ocpp/{chargerId}", recoverPanics(log, opts.Stations))
	}
	return mux
}
