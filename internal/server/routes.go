package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/strategist/internal/selector"
	"github.com/lazypower/strategist/internal/store"
	"github.com/lazypower/strategist/internal/strategy"
)

// maxRecordsLimit caps GET /api/records.
const maxRecordsLimit = 500

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": s.engine.All(),
	})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	c := s.engine.GetStrategyForApp(appID)
	if c == nil {
		writeError(w, http.StatusNotFound, "no strategy for "+appID)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if s.engine.GetStrategyForApp(appID) == nil {
		writeError(w, http.StatusNotFound, "no strategy for "+appID)
		return
	}

	var pref strategy.Preference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if pref.PreferredTier != "" && !pref.PreferredTier.Valid() {
		writeError(w, http.StatusBadRequest, "invalid preferredTier "+string(pref.PreferredTier))
		return
	}
	if pref.RiskTolerance != "" && !pref.RiskTolerance.Valid() {
		writeError(w, http.StatusBadRequest, "invalid riskTolerance "+string(pref.RiskTolerance))
		return
	}

	s.engine.UpdatePersonalPreference(r.Context(), appID, pref)
	writeJSON(w, http.StatusOK, s.engine.GetStrategyForApp(appID))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	switch layer := chi.URLParam(r, "layer"); layer {
	case "learned":
		s.engine.RefreshLearned(r.Context())
	case "personal":
		s.engine.RefreshPersonal(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "unknown layer "+layer+", want learned or personal")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

type selectRequest struct {
	Machine strategy.MachineProfile `json:"machine"`
	Context strategy.RuntimeContext `json:"context"`
	AppID   string                  `json:"appId,omitempty"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.fillConservativePeriod(r, &req.Machine)

	var (
		sel *strategy.Selected
		err error
	)
	if req.AppID != "" {
		if s.engine == nil {
			writeError(w, http.StatusServiceUnavailable, "engine not configured")
			return
		}
		c := s.engine.GetStrategyForApp(req.AppID)
		if c == nil {
			writeError(w, http.StatusNotFound, "no strategy for "+req.AppID)
			return
		}
		sel, err = s.selector.SelectForApp(c, req.Machine, req.Context)
	} else {
		sel, err = s.selector.Select(req.Machine, req.Context)
	}
	if errors.Is(err, selector.ErrNoStrategy) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

type machineRequest struct {
	Machine strategy.MachineProfile `json:"machine"`
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	var req machineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"levels": s.selector.AvailableLevels(req.Machine),
	})
}

func (s *Server) handleCompatibility(w http.ResponseWriter, r *http.Request) {
	var req machineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.fillConservativePeriod(r, &req.Machine)
	writeJSON(w, http.StatusOK, map[string]any{
		"compatibility":      s.selector.Compatibility(req.Machine),
		"monitoring":         s.selector.MonitoringConfig(req.Machine),
		"conservativePeriod": s.selector.IsInConservativePeriod(req.Machine),
	})
}

// fillConservativePeriod loads the stored period when the caller sent none,
// starting one if the machine reports an OS upgrade.
func (s *Server) fillConservativePeriod(r *http.Request, m *strategy.MachineProfile) {
	if m.ConservativePeriod != nil {
		return
	}
	p, err := s.db.MachinePeriod(r.Context(), s.now(), m.UpgradeDetected, s.conservativeDays)
	if err != nil {
		s.log.Warn().Err(err).Msg("load conservative period")
		return
	}
	m.ConservativePeriod = p
}

func (s *Server) handleStartConservativePeriod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive")
		return
	}
	p, err := s.db.StartConservativePeriod(r.Context(), s.now(), req.Days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Int("days", req.Days).Time("end", p.EndDate).Msg("conservative period started")
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	var rec strategy.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if rec.AppID == "" {
		writeError(w, http.StatusBadRequest, "appId required")
		return
	}
	if !rec.Strategy.Valid() {
		writeError(w, http.StatusBadRequest, "invalid strategy "+string(rec.Strategy))
		return
	}

	enriched := s.filter.Evaluate(rec)
	if enriched == nil {
		writeJSON(w, http.StatusOK, map[string]any{"accepted": false})
		return
	}

	// Sink failures never fail the submitter.
	id, err := s.db.WriteRecord(r.Context(), enriched)
	if err != nil {
		s.log.Warn().Err(err).Str("app", rec.AppID).Msg("write learning record")
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"accepted": true,
		"id":       id,
		"record":   enriched,
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecordsLimit)
	}

	recs, err := s.db.RecentRecords(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []store.StoredRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	if s.engine != nil {
		out["engine"] = s.engine.Stats()
	}
	if s.filter != nil {
		out["filter"] = s.filter.Stats()
	}
	if n, err := s.db.CountRecords(r.Context()); err == nil {
		out["records"] = n
	} else {
		s.log.Warn().Err(err).Msg("count records")
	}
	writeJSON(w, http.StatusOK, out)
}
