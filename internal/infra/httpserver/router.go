package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	appchat "github.com/voiceops-ai/callground/internal/application/chat"
	apppipeline "github.com/voiceops-ai/callground/internal/application/pipeline"
	appreport "github.com/voiceops-ai/callground/internal/application/report"
	appseed "github.com/voiceops-ai/callground/internal/application/seed"
	domai "github.com/voiceops-ai/callground/internal/domain/ai"
	"github.com/voiceops-ai/callground/internal/domain/audit"
	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
	"github.com/voiceops-ai/callground/internal/middleware"
)

type Router struct {
	pipeline *apppipeline.Service
	chat     *appchat.Service
	seed     *appseed.Service
	report   *appreport.Service // nil when object storage is disabled
	calls    domain.Repository
	audit    audit.Trail // nil when auditing is disabled
	seedDir  string
	log      *logrus.Logger
}

func NewRouter(
	pipeline *apppipeline.Service,
	chat *appchat.Service,
	seed *appseed.Service,
	report *appreport.Service,
	calls domain.Repository,
	trail audit.Trail,
	seedDir string,
	health http.HandlerFunc,
	log *logrus.Logger,
) http.Handler {
	r := &Router{
		pipeline: pipeline,
		chat:     chat,
		seed:     seed,
		report:   report,
		calls:    calls,
		audit:    trail,
		seedDir:  seedDir,
		log:      log,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.RateLimitMiddleware(60, 1))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	if health != nil {
		mux.Get("/health", health)
	} else {
		mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
	}

	mux.Route("/api/v1", func(rt chi.Router) {
		rt.Post("/analyze-call", r.wrap(r.handleAnalyzeCall))
		rt.Post("/chat", r.wrap(r.handleChat))
		rt.Get("/calls/{call_id}", r.wrap(r.handleGetCall))
		rt.Patch("/calls/{call_id}/status", r.wrap(r.handleUpdateStatus))
		rt.Get("/calls/{call_id}/audit", r.wrap(r.handleAuditTrail))
		rt.Get("/calls/{call_id}/report", r.wrap(r.handleReport))
		rt.Post("/knowledge/seed", r.wrap(r.handleSeed))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var vErr *errs.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": vErr.Fields,
			})
			return
		}
		if errors.Is(err, errs.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, errs.ErrKnowledgeEmpty) {
			http.Error(w, "knowledge base is empty, seed it first", http.StatusServiceUnavailable)
			return
		}
		if errors.Is(err, domai.ErrQuotaExceeded) {
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			return
		}
		var dErr *errs.DependencyError
		if errors.As(err, &dErr) {
			r.log.WithError(dErr).Error("dependency failure")
			http.Error(w, dErr.Error(), http.StatusInternalServerError)
			return
		}
		r.log.WithError(err).Error("unhandled error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// POST /api/v1/analyze-call
func (r *Router) handleAnalyzeCall(w http.ResponseWriter, req *http.Request) error {
	var payload domain.SignalPayload
	if err := decodeBody(req, &payload); err != nil {
		return err
	}

	result, err := r.pipeline.Analyze(req.Context(), &payload)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/chat
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) error {
	var body appchat.Request
	if err := decodeBody(req, &body); err != nil {
		return err
	}

	resp, err := r.chat.Ask(req.Context(), &body)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/calls/{call_id}
func (r *Router) handleGetCall(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.calls.Get(req.Context(), domain.CallID(chi.URLParam(req, "call_id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// PATCH /api/v1/calls/{call_id}/status
func (r *Router) handleUpdateStatus(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Status domain.Status `json:"status"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if !domain.ValidStatus(body.Status) {
		v := errs.NewValidationError()
		v.Add("status", "must be one of: open, in_review, escalated, resolved")
		return v
	}

	id := domain.CallID(chi.URLParam(req, "call_id"))
	if err := r.calls.UpdateStatus(req.Context(), id, body.Status); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"call_id": id, "status": body.Status})
}

// GET /api/v1/calls/{call_id}/audit
func (r *Router) handleAuditTrail(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.calls.Get(req.Context(), domain.CallID(chi.URLParam(req, "call_id")))
	if err != nil {
		return err
	}
	if r.audit == nil || rec.AuditThreadID == "" {
		return errs.ErrNotFound
	}

	trail, err := r.audit.Fetch(req.Context(), rec.AuditThreadID)
	if err != nil {
		return &errs.DependencyError{Op: "audit service", Err: err}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(trail))
	return nil
}

// GET /api/v1/calls/{call_id}/report
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	if r.report == nil {
		http.Error(w, "report storage is not configured", http.StatusServiceUnavailable)
		return nil
	}

	url, err := r.report.Export(req.Context(), domain.CallID(chi.URLParam(req, "call_id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"report_url": url})
}

// POST /api/v1/knowledge/seed
func (r *Router) handleSeed(w http.ResponseWriter, req *http.Request) error {
	result, err := r.seed.SeedDir(req.Context(), r.seedDir)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

func decodeBody(req *http.Request, out any) error {
	if err := json.NewDecoder(req.Body).Decode(out); err != nil {
		v := errs.NewValidationError()
		v.Add("body", "malformed JSON: "+err.Error())
		return v
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
