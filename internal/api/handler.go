package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/veriscript-health/clarity/internal/domain"
	"github.com/veriscript-health/clarity/internal/engine"
	"github.com/veriscript-health/clarity/internal/policy"
	"github.com/veriscript-health/clarity/internal/zipstate"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	engine     *engine.Engine
	policies   *policy.Store
	zip        *zipstate.Service
	policyPath string
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, policies *policy.Store, zip *zipstate.Service, policyPath, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		engine:     eng,
		policies:   policies,
		zip:        zip,
		policyPath: policyPath,
		version:    version,
	}
}

// ClassifyRequest is the request body for POST /classify.
type ClassifyRequest struct {
	Profile domain.Profile `json:"profile"`
	Email   string         `json:"email,omitempty"`
}

// ClassifyResponse is the response for POST /classify.
type ClassifyResponse struct {
	SubmissionID string               `json:"submissionId,omitempty"`
	Status       domain.Tier          `json:"status"`
	Reason       string               `json:"reason"`
	Pricing      *domain.PricingModel `json:"pricing,omitempty"`
	PricingNote  string               `json:"pricingNote,omitempty"`
	Metadata     struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Classify handles POST /classify requests.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	// Parse request
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate required fields
	if req.Profile.Carrier == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile.carrier is required",
		})
		return
	}
	if req.Profile.State == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile.state is required",
		})
		return
	}
	if req.Profile.BMI <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile.bmi must be positive",
		})
		return
	}
	if req.Profile.Medication == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile.medication is required",
		})
		return
	}

	cfg := h.policies.Current()

	// Classify
	verdict := h.engine.Classify(&req.Profile, cfg, time.Now().UTC())

	// Per-minute throughput counter for operational visibility
	if h.cache != nil {
		if count, err := h.cache.IncrementCounter(ctx, "classify", time.Minute); err == nil {
			slog.Debug("classify rate", "count_this_minute", count)
		}
	}

	resp := ClassifyResponse{
		Status:      verdict.Status,
		Reason:      verdict.Reason,
		Pricing:     verdict.Pricing,
		PricingNote: pricingNote(&req.Profile, verdict, cfg),
	}

	// A contact email makes this a lead: persist it and hand it to the
	// export pipeline.
	if req.Email != "" {
		sub := &domain.Submission{
			ID:        uuid.New().String(),
			Contact:   domain.Contact{Email: req.Email},
			Profile:   req.Profile,
			Verdict:   verdict,
			TraceID:   traceID,
			CreatedAt: time.Now().UTC(),
		}

		if h.repo != nil {
			if err := h.repo.SaveSubmission(ctx, sub); err != nil {
				slog.Error("failed to save submission", "error", err)
			}
		}

		if h.bus != nil {
			payload, _ := json.Marshal(sub)
			if err := h.bus.Publish(ctx, domain.TopicVerdictIssued, payload); err != nil {
				slog.Error("failed to publish verdict", "submission_id", sub.ID, "error", err)
			}
		}

		resp.SubmissionID = sub.ID
	}

	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// pricingNote picks the accumulator/regulatory warning for a verdict.
func pricingNote(p *domain.Profile, v domain.Verdict, cfg *domain.PolicyConfiguration) string {
	if cfg == nil {
		return ""
	}
	if strings.Contains(strings.ToLower(p.Medication), "compound") {
		return cfg.PricingIntelligence.CompoundingWarning
	}
	if v.Status == domain.TierApproveLikely {
		return cfg.PricingIntelligence.SavingsCardWarning
	}
	return ""
}

// SafetyCheckRequest is the request body for POST /safety-check.
type SafetyCheckRequest struct {
	BMI float64 `json:"bmi"`
}

// SafetyCheck handles POST /safety-check requests.
func (h *Handler) SafetyCheck(w http.ResponseWriter, r *http.Request) {
	var req SafetyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result := engine.CheckSafety(req.BMI, h.policies.Current())
	writeJSON(w, http.StatusOK, result)
}

// MemberIDRequest is the request body for POST /member-id/validate.
type MemberIDRequest struct {
	Carrier  string `json:"carrier"`
	MemberID string `json:"memberId"`
	State    string `json:"state,omitempty"`
}

// ValidateMemberID handles POST /member-id/validate requests.
func (h *Handler) ValidateMemberID(w http.ResponseWriter, r *http.Request) {
	var req MemberIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Carrier == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "carrier is required",
		})
		return
	}

	result := engine.ValidateMemberID(req.Carrier, req.MemberID, req.State, h.policies.Current())
	writeJSON(w, http.StatusOK, result)
}

// ResolveCarrierRequest is the request body for POST /carrier/resolve.
type ResolveCarrierRequest struct {
	Carrier    string            `json:"carrier"`
	FreeText   string            `json:"freeText,omitempty"`
	PlanSource domain.PlanSource `json:"planSource,omitempty"`
}

// ResolveCarrier handles POST /carrier/resolve requests.
func (h *Handler) ResolveCarrier(w http.ResponseWriter, r *http.Request) {
	var req ResolveCarrierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Carrier == "" {
		req.Carrier = domain.CarrierOther
	}

	resolved := engine.ResolveCarrier(req.Carrier, req.FreeText, req.PlanSource)
	writeJSON(w, http.StatusOK, map[string]string{
		"carrier": resolved,
	})
}

// ResolveZIP handles GET /zip/{zip} requests.
func (h *Handler) ResolveZIP(w http.ResponseWriter, r *http.Request) {
	zip := chi.URLParam(r, "zip")

	if h.zip == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "zip resolution not available",
		})
		return
	}

	state, err := h.zip.Resolve(r.Context(), zip)
	if err != nil {
		switch {
		case errors.Is(err, zipstate.ErrInvalidZIP):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "zip must be 5 digits",
			})
		case errors.Is(err, zipstate.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "zip code not found",
			})
		default:
			slog.Error("zip resolution failed", "zip", zip, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": "zip lookup failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"zip":   zip,
		"state": state,
	})
}

// GetSubmission retrieves a submission by ID.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID := chi.URLParam(r, "id")

	if subID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "submission id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	sub, err := h.repo.GetSubmission(ctx, subID)
	if err != nil {
		slog.Error("failed to get submission", "id", subID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "submission not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// ListSubmissions returns the most recent submissions.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	subs, err := h.repo.ListRecentSubmissions(ctx, limit)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list submissions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"count":       len(subs),
	})
}

// GetPolicy returns the active policy configuration.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	cfg := h.policies.Current()
	if cfg == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no policy configuration loaded",
		})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// ReloadPolicyRequest is the request body for POST /policy/reload.
type ReloadPolicyRequest struct {
	// Source selects where to reload from: "repository", "file", or
	// "embedded". Empty picks repository when available, then file,
	// then the embedded default.
	Source string `json:"source,omitempty"`
}

// ReloadPolicy swaps in a fresh policy document without a restart.
func (h *Handler) ReloadPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReloadPolicyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	source := req.Source
	if source == "" {
		switch {
		case h.repo != nil:
			source = "repository"
		case h.policyPath != "":
			source = "file"
		default:
			source = "embedded"
		}
	}

	year := policy.CurrentYear()

	var warnings []string
	var err error
	switch source {
	case "repository":
		if h.repo == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "repository not available",
			})
			return
		}
		warnings, err = h.policies.LoadFromRepository(ctx, h.repo, year, h.engine)
	case "file":
		if h.policyPath == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "no policy file configured",
			})
			return
		}
		warnings, err = h.policies.LoadFile(h.policyPath, year, h.engine)
	case "embedded":
		warnings, err = h.policies.LoadEmbedded(year, h.engine)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "source must be repository, file, or embedded",
		})
		return
	}

	if err != nil {
		slog.Error("policy reload failed", "source", source, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "policy reload failed: " + err.Error(),
		})
		return
	}

	slog.Info("policy reloaded", "source", source, "warnings", len(warnings))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "policy reloaded successfully",
		"source":   source,
		"warnings": warnings,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
// The engine is unusable until a policy snapshot is published.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.policies.Current() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
