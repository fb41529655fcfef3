package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/configstore"
	"github.com/ryansname/boilersim/src/history"
	"github.com/ryansname/boilersim/src/mentor"
	"github.com/ryansname/boilersim/src/sankey"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 64 << 20
	maxImageBody  = 32 << 20
)

// writeJSON answers 500 when v cannot be encoded
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (h *handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// fail maps an error to a status: missing configs are 404, bad input 400, the rest 500
func (h *handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, configstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, configstore.ErrEmptyName):
		h.badRequest(w, err.Error())
	default:
		h.Logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (h *handler) risk() anomaly.State {
	if h.Risk == nil {
		return anomaly.State{RiskLevel: anomaly.RiskNormal}
	}
	return h.Risk.Risk()
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ts": time.Now().UTC()})
}

func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sim.Snapshot())
}

type commandRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h *handler) command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	result, err := h.Sim.ApplyCommand(req.Name, req.Value)
	h.Metrics.Command(req.Name, err)
	if err != nil {
		// every command error is a bad name or value
		h.badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name, "value": result})
}

type valueRequest struct {
	Value float64 `json:"value"`
}

func (h *handler) zone(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Sim.UpdateZone(id, req.Value))
}

func (h *handler) sootBlow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"fouling": h.Sim.SootBlow()})
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	h.Sim.Reset()
	writeJSON(w, http.StatusOK, h.Sim.Snapshot())
}

func (h *handler) recording(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if req.Enabled {
		h.Sim.StartRecording()
	} else {
		h.Sim.StopRecording()
	}
	snap := h.Sim.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"recording": snap.Recording, "ticks": snap.RecordedTicks})
}

func (h *handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"boilersim_%d.csv\"", time.Now().Unix()))
	if err := history.WriteTickCSV(w, h.Sim.Records()); err != nil {
		h.Logger.Error("Failed to write tick export", zap.Error(err))
	}
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	points := h.Sim.History().Points()

	q := r.URL.Query()
	if v := q.Get("exclude_stops"); v != "" {
		exclude, err := strconv.ParseBool(v)
		if err != nil {
			h.badRequest(w, "exclude_stops must be a boolean")
			return
		}
		if exclude {
			points = history.FilterTechnicalStops(points)
		}
	}

	target := history.DefaultSampleTarget
	if v := q.Get("sample"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.badRequest(w, "sample must be a non-negative integer")
			return
		}
		target = n
	}
	if target > 0 {
		points = history.Sample(points, target)
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": len(points), "points": points})
}

func (h *handler) importHistory(w http.ResponseWriter, r *http.Request) {
	points, err := history.ParsePCVue(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	log := h.Sim.History()
	log.Replace(points)
	h.Logger.Info("History imported", zap.Int("rows", len(points)), zap.Int("kept", log.Len()))
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(points), "kept": log.Len()})
}

type historyStats struct {
	Analysis    history.Analysis     `json:"analysis"`
	Percentiles history.Percentiles  `json:"percentiles"`
	Daily       []history.DaySummary `json:"daily"`
}

func (h *handler) historyStats(w http.ResponseWriter, r *http.Request) {
	points := h.Sim.History().Points()
	writeJSON(w, http.StatusOK, historyStats{
		Analysis:    history.Analyze(points),
		Percentiles: history.TimeWeightedPercentiles(points),
		Daily:       history.DailySummary(points),
	})
}

func (h *handler) anomalies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.risk())
}

func (h *handler) listConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Configs.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

type saveConfigRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Zones       *combustion.Zones    `json:"zones"`
	Mix         *combustion.WasteMix `json:"mix"`
}

// saveConfig stores the given zones and mix, or the live ones when omitted
func (h *handler) saveConfig(w http.ResponseWriter, r *http.Request) {
	var req saveConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	snap := h.Sim.Snapshot()
	zones, mix := snap.Zones, snap.Mix
	if req.Zones != nil {
		zones = *req.Zones
	}
	if req.Mix != nil {
		mix = *req.Mix
	}

	cfg, err := h.Configs.Save(r.Context(), req.Name, req.Description, zones, mix)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handler) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.Configs.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) applyConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.Sim.ApplyConfig(cfg.Zones, cfg.Mix)
	writeJSON(w, http.StatusOK, h.Sim.Snapshot())
}

type askRequest struct {
	Question string `json:"question"`
	Learning bool   `json:"learning"`
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if req.Question == "" {
		h.badRequest(w, "question is required")
		return
	}

	answer := h.Mentor.Ask(r.Context(), req.Question, mentor.ContextFrom(h.Sim.Snapshot(), h.risk()), req.Learning)
	h.Metrics.MentorAnswer(answer.Fallback)
	writeJSON(w, http.StatusOK, answer)
}

type analyzeRequest struct {
	Images []mentor.Image `json:"images"`
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImageBody)).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	answer := h.Mentor.AnalyzeImages(r.Context(), req.Images)
	h.Metrics.MentorAnswer(answer.Fallback)
	writeJSON(w, http.StatusOK, answer)
}

func (h *handler) sankey(w http.ResponseWriter, r *http.Request) {
	out, err := sankey.Generate()
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if r.URL.Query().Get("part") == "templates" {
		_, _ = io.WriteString(w, out.Templates)
		return
	}
	_, _ = io.WriteString(w, out.SankeyConfig)
}
