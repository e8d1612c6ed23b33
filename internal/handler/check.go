package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adshield/fraudguard/internal/metrics"
	"github.com/adshield/fraudguard/internal/middleware"
	"github.com/adshield/fraudguard/internal/models"
	"github.com/adshield/fraudguard/internal/service"
	"github.com/adshield/fraudguard/internal/ua"
	"github.com/google/uuid"
)

// CheckHandler serves the public classification endpoint.
type CheckHandler struct {
	engine   *service.Engine
	metrics  *metrics.Metrics
	deadline time.Duration
}

func NewCheckHandler(engine *service.Engine, m *metrics.Metrics, deadline time.Duration) *CheckHandler {
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	return &CheckHandler{engine: engine, metrics: m, deadline: deadline}
}

// Check handles POST /v1/check. Malformed payloads fail closed as a
// client error; everything past decoding fails open, so classification
// never surfaces as a transport error to the caller.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.CheckResponse{
			Success:   false,
			Error:     "invalid request body",
			RequestID: requestID,
		})
		return
	}
	if err := validateCheckRequest(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.CheckResponse{
			Success:   false,
			Error:     err.Error(),
			RequestID: requestID,
		})
		return
	}

	// Fill collector gaps from the user agent, then derive the IP from
	// forwarding headers when the payload omits it.
	ua.Normalize(&req.Fingerprint)
	if req.IP == "" {
		req.IP = middleware.ClientIPFromContext(r.Context())
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline)
	defer cancel()

	res := h.engine.Classify(ctx, requestID, &req)
	if h.metrics != nil {
		h.metrics.ObserveCheck(string(res.Classification))
	}

	writeJSON(w, http.StatusOK, models.CheckResponse{
		Success:   true,
		Result:    res,
		RequestID: requestID,
	})
}

func validateCheckRequest(req *models.CheckRequest) error {
	switch req.Fingerprint.Device.Type {
	case "", models.DeviceDesktop, models.DeviceMobile, models.DeviceTablet,
		models.DeviceBot, models.DeviceUnknown:
	default:
		return fmt.Errorf("unknown device type %q", req.Fingerprint.Device.Type)
	}

	b := req.Behavior
	for name, v := range map[string]int{
		"mouseMoves":   b.MouseMoves,
		"mouseClicks":  b.MouseClicks,
		"touchEvents":  b.TouchEvents,
		"touchTaps":    b.TouchTaps,
		"scrollEvents": b.ScrollEvents,
		"keyPresses":   b.KeyPresses,
	} {
		if v < 0 {
			return fmt.Errorf("negative %s count", name)
		}
	}
	if b.ActiveTimeMs < 0 || b.TotalTimeMs < 0 {
		return fmt.Errorf("negative observation time")
	}
	return nil
}
