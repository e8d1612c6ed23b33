package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/adshield/fraudguard/internal/models"
	"github.com/adshield/fraudguard/internal/repository"
	"github.com/adshield/fraudguard/internal/service"
	"github.com/go-chi/chi/v5"
)

// AdminHandler serves the JWT-protected operations surface: override
// list management, reputation cache inspection, and daily aggregates.
type AdminHandler struct {
	overrides repository.OverrideRepository
	audit     repository.AuditRepository
	resolver  *service.Resolver
}

func NewAdminHandler(overrides repository.OverrideRepository, audit repository.AuditRepository, resolver *service.Resolver) *AdminHandler {
	return &AdminHandler{overrides: overrides, audit: audit, resolver: resolver}
}

type addOverrideRequest struct {
	IP   string `json:"ip"`
	Type string `json:"type"` // "allow" | "deny"
	Note string `json:"note,omitempty"`
}

// requireStore rejects override/stats calls when no database was
// configured, instead of panicking on a nil repository.
func (h *AdminHandler) requireStore(w http.ResponseWriter) bool {
	if h.overrides == nil || h.audit == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "persistence not configured")
		return false
	}
	return true
}

func (h *AdminHandler) AddOverride(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	var req addOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !service.ValidIP(req.IP) {
		writeJSONError(w, http.StatusBadRequest, "invalid IP address")
		return
	}
	kind := models.OverrideType(req.Type)
	if kind != models.OverrideAllow && kind != models.OverrideDeny {
		writeJSONError(w, http.StatusBadRequest, "type must be allow or deny")
		return
	}

	if err := h.overrides.AddEntry(r.Context(), req.IP, kind, req.Note); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Cached reputation for this IP is now stale relative to the
	// override; drop it so the next check sees the new state everywhere.
	h.resolver.InvalidateIP(req.IP)

	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *AdminHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	ip := chi.URLParam(r, "ip")
	if !service.ValidIP(ip) {
		writeJSONError(w, http.StatusBadRequest, "invalid IP address")
		return
	}

	err := h.overrides.RemoveEntry(r.Context(), ip)
	switch {
	case err == repository.ErrNotFound:
		writeJSONError(w, http.StatusNotFound, "no override for this IP")
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *AdminHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	kind := models.OverrideType(r.URL.Query().Get("type"))
	if kind != models.OverrideAllow && kind != models.OverrideDeny {
		writeJSONError(w, http.StatusBadRequest, "type query must be allow or deny")
		return
	}

	entries, err := h.overrides.ListEntries(r.Context(), kind, 500)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []models.OverrideEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resolver.CacheStats())
}

func (h *AdminHandler) CacheCleanup(w http.ResponseWriter, r *http.Request) {
	evicted := h.resolver.CleanupCache()
	writeJSON(w, http.StatusOK, map[string]int{"evicted": evicted})
}

func (h *AdminHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	day := time.Now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	stats, err := h.audit.DailyStats(r.Context(), day)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
