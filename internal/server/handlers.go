package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smart-sustain/sustain-cli/internal/dashboard"
	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/provider"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
	"github.com/smart-sustain/sustain-cli/internal/store"
)

const maxBodyBytes = 1 << 20

// writeJSON sends a 500 error body when v cannot be encoded.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Dashboard.Collect(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type domainInfo struct {
	Domain string  `json:"domain"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

func (s *Server) handleDomains(w http.ResponseWriter, _ *http.Request) {
	weights := s.deps.Dashboard.Scorer().Weights()
	out := make([]domainInfo, 0, len(s.deps.Dashboard.Domains()))
	for _, d := range s.deps.Dashboard.Domains() {
		out = append(out, domainInfo{Domain: d, Label: s.deps.Dashboard.Label(d), Weight: weights[d]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDomainDetail(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	detail, err := s.deps.Dashboard.Detail(r.Context(), domain)
	if err != nil {
		var perr *provider.ProviderError
		switch {
		case errors.Is(err, dashboard.ErrUnknownDomain):
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown domain %q", domain))
		case errors.As(err, &perr):
			writeError(w, http.StatusServiceUnavailable, perr.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Label string `json:"label"`
		*provider.Detail
	}{Label: s.deps.Dashboard.Label(domain), Detail: detail})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshots == nil {
		writeError(w, http.StatusNotImplemented, "snapshot history is not configured")
		return
	}
	limit := store.DefaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	snaps, err := s.deps.Snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		zap.L().Error("server: list snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshots == nil {
		writeError(w, http.StatusNotImplemented, "snapshot history is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	snap, err := s.deps.Snapshots.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("snapshot %q not found", id))
			return
		}
		zap.L().Error("server: get snapshot", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		writeError(w, http.StatusNotImplemented, "status is not configured")
		return
	}
	st, err := s.deps.Status.Collect(r.Context())
	if err != nil {
		zap.L().Error("server: collect status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type compositeRequest struct {
	Scores  map[string]float64 `json:"scores"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

type compositeResponse struct {
	Composite   float64 `json:"composite"`
	WeightsHash string  `json:"weights_hash"`
}

func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	var req compositeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	for k, v := range req.Weights {
		if v < 0 || !finite(v) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("weight %s must be a finite value >= 0", k))
			return
		}
	}

	scorer := s.deps.Dashboard.Scorer()
	override := scoring.Weights(req.Weights)
	resp := compositeResponse{Composite: scorer.ScoreWith(req.Scores, override)}
	if !finite(resp.Composite) {
		writeError(w, http.StatusUnprocessableEntity, "composite is not a finite number; scores or weights are too large")
		return
	}
	if len(override) > 0 {
		resp.WeightsHash = scoring.WeightsHash(override)
	} else {
		resp.WeightsHash = scorer.Hash()
	}
	writeJSON(w, http.StatusOK, resp)
}

type normalizeRequest struct {
	Value   *float64  `json:"value,omitempty"`
	Min     *float64  `json:"min,omitempty"`
	Max     *float64  `json:"max,omitempty"`
	Reverse bool      `json:"reverse,omitempty"`
	Clamp   bool      `json:"clamp,omitempty"`
	Series  []float64 `json:"series,omitempty"`
	Low     *float64  `json:"low,omitempty"`
	High    *float64  `json:"high,omitempty"`
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Series != nil {
		low, high := 0.0, 100.0
		if req.Low != nil {
			low = *req.Low
		}
		if req.High != nil {
			high = *req.High
		}
		scores := scoring.NormalizeSeries(req.Series, low, high)
		for _, v := range scores {
			if !finite(v) {
				writeError(w, http.StatusUnprocessableEntity, "normalized series is not finite; range is too large")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string][]float64{"scores": scores})
		return
	}

	if req.Value == nil || req.Min == nil || req.Max == nil {
		writeError(w, http.StatusBadRequest, "value, min and max are required unless series is given")
		return
	}
	score := scoring.Normalize(*req.Value, *req.Min, *req.Max, req.Reverse)
	if req.Clamp {
		score = scoring.ClampScore(score)
	}
	if !finite(score) {
		writeError(w, http.StatusUnprocessableEntity, "normalized value is not finite; range is too large")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"score": score})
}
