// Package api exposes a loaded FittedModel over HTTP for querying
// processes. The model is immutable, so handlers are pure reads and safe
// under arbitrary concurrency.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal"
	"fundcast/internal/errors"
	"fundcast/internal/predict"
)

// Server serves survival and quantile queries against one fitted model.
type Server struct {
	router *chi.Mux
	model  model.FittedModel
	logger *internal.Logger
}

// NewServer creates a query server over a validated model.
func NewServer(m model.FittedModel, logger *internal.Logger) (*Server, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "refusing to serve invalid model")
	}

	s := &Server{
		router: chi.NewRouter(),
		model:  m,
		logger: logger,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/survival", s.handleSurvival)
		r.Get("/quantile", s.handleQuantile)
		r.Get("/model", s.handleModel)
	})
	return s, nil
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server on the given port.
func (s *Server) ListenAndServe(port string) error {
	s.logger.Info("query server listening on :%s", port)
	return http.ListenAndServe(":"+port, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSurvival answers GET /v1/survival?target=...&goal=...&platform=...
func (s *Server) handleSurvival(w http.ResponseWriter, r *http.Request) {
	target, err := floatParam(r, "target")
	if err != nil {
		s.writeError(w, err)
		return
	}
	goal, err := floatParam(r, "goal")
	if err != nil {
		s.writeError(w, err)
		return
	}
	platform := campaign.Platform(r.URL.Query().Get("platform"))

	probability, err := predict.Survival(target, goal, platform, s.model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target":      target,
		"goal":        goal,
		"platform":    platform,
		"probability": probability,
	})
}

// handleQuantile answers GET /v1/quantile?p=...&goal=...&platform=...&outcome=...
func (s *Server) handleQuantile(w http.ResponseWriter, r *http.Request) {
	p, err := floatParam(r, "p")
	if err != nil {
		s.writeError(w, err)
		return
	}
	goal, err := floatParam(r, "goal")
	if err != nil {
		s.writeError(w, err)
		return
	}
	platform := campaign.Platform(r.URL.Query().Get("platform"))
	outcome := campaign.Outcome(r.URL.Query().Get("outcome"))

	raised, err := predict.Quantile(p, goal, platform, outcome, s.model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"p":          p,
		"goal":       goal,
		"platform":   platform,
		"outcome":    outcome,
		"raised_usd": raised,
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.model)
}

// writeError maps query-stage errors to HTTP statuses. InvalidQuery is the
// caller's fault; anything else is ours.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.IsInvalidQuery(err) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("query failed: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.InvalidQuery("missing parameter " + name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.InvalidQuery("parameter " + name + " must be a number")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
