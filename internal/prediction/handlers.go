package prediction

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldcast/fieldcast/internal/display"
	"github.com/fieldcast/fieldcast/internal/forecast"
	"github.com/fieldcast/fieldcast/internal/httpapi"
	"github.com/fieldcast/fieldcast/internal/policy"
	"github.com/fieldcast/fieldcast/pkg/analytics"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/generate", Handler: m.handleGenerate},
		{Method: "POST", Path: "/generate/{group_id}", Handler: m.handleGenerateAll},
		{Method: "GET", Path: "/forecasts", Handler: m.handleListForecasts},
		{Method: "GET", Path: "/forecasts/{group_id}", Handler: m.handleGroupForecasts},
		{Method: "GET", Path: "/forecasts/{group_id}/latest", Handler: m.handleLatestForecast},
		{Method: "DELETE", Path: "/forecasts/item/{id}", Handler: m.handleDeleteForecast},
		{Method: "DELETE", Path: "/forecasts/{group_id}", Handler: m.handleDeleteGroupForecasts},
		{Method: "GET", Path: "/steps/{group_id}", Handler: m.handleSteps},
		{Method: "GET", Path: "/policies", Handler: m.handlePolicies},
	}
}

// GenerateInput is the body of POST /generate.
type GenerateInput struct {
	GroupID       string `json:"group_id"`
	Activity      string `json:"activity" example:"perbaikan_kwh"`
	PredictedDate string `json:"predicted_date,omitempty" example:"2025-02-03"`
}

// GenerateResponse is the body returned by POST /generate.
type GenerateResponse struct {
	Forecast *analytics.ForecastRecord `json:"forecast"`
	Steps    []analytics.StepRow       `json:"steps"`
}

// DeleteResponse reports how many forecasts were removed.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// PolicyEntry is one override row of the policy table.
type PolicyEntry struct {
	Group    string          `json:"group"`
	Activity models.Activity `json:"activity"`
	Policy   policy.Summary  `json:"policy"`
}

// PoliciesResponse is the body of GET /policies.
type PoliciesResponse struct {
	Default   policy.Summary            `json:"default"`
	Presets   map[string]policy.Summary `json:"presets"`
	Overrides []PolicyEntry             `json:"overrides"`
}

// handleGenerate computes and stores the forecast for one group and activity.
func (m *Module) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in GenerateInput
	if err := httpapi.DecodeJSON(w, r, &in); err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	if in.GroupID == "" {
		httpapi.BadRequest(w, r, "group_id is required")
		return
	}
	activity, err := models.ParseActivity(in.Activity)
	if err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	date, err := parseDate(in.PredictedDate)
	if err != nil {
		httpapi.BadRequest(w, r, "predicted_date must be YYYY-MM-DD")
		return
	}

	rec, steps, err := m.Generate(r.Context(), GenerateRequest{
		GroupID:       in.GroupID,
		Activity:      activity,
		PredictedDate: date,
	})
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	rows := make([]analytics.StepRow, len(steps))
	for i, s := range steps {
		rows[i] = stepRow(s)
	}
	httpapi.WriteJSON(w, http.StatusCreated, GenerateResponse{Forecast: rec, Steps: rows})
}

// handleGenerateAll generates forecasts for every activity of a group. The
// optional "date" query parameter pins the target date.
func (m *Module) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpapi.BadRequest(w, r, "date must be YYYY-MM-DD")
		return
	}
	recs, err := m.GenerateAll(r.Context(), r.PathValue("group_id"), date)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, withDisplay(recs))
}

// handleListForecasts returns stored forecasts across all groups.
func (m *Module) handleListForecasts(w http.ResponseWriter, r *http.Request) {
	m.listForecasts(w, r, "")
}

// handleGroupForecasts returns the stored forecasts of a group.
func (m *Module) handleGroupForecasts(w http.ResponseWriter, r *http.Request) {
	m.listForecasts(w, r, r.PathValue("group_id"))
}

func (m *Module) listForecasts(w http.ResponseWriter, r *http.Request, groupID string) {
	if m.store == nil {
		m.writeErr(w, r, ErrNoStore)
		return
	}
	recs, err := m.store.ListForecasts(r.Context(), groupID, httpapi.ParseLimit(r, m.cfg.DefaultLimit))
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, withDisplay(recs))
}

// handleLatestForecast returns the most recent forecast of a group for the
// activity given in the "activity" query parameter.
func (m *Module) handleLatestForecast(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		m.writeErr(w, r, ErrNoStore)
		return
	}
	activity, err := models.ParseActivity(r.URL.Query().Get("activity"))
	if err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	rec, err := m.store.LatestForecast(r.Context(), r.PathValue("group_id"), activity)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	rec.Display = display.Duration(rec.PredictedHours)
	httpapi.WriteJSON(w, http.StatusOK, rec)
}

// handleDeleteForecast removes one stored forecast.
func (m *Module) handleDeleteForecast(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		m.writeErr(w, r, ErrNoStore)
		return
	}
	if err := m.store.DeleteForecast(r.Context(), r.PathValue("id")); err != nil {
		m.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteGroupForecasts removes every stored forecast of a group.
func (m *Module) handleDeleteGroupForecasts(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		m.writeErr(w, r, ErrNoStore)
		return
	}
	n, err := m.store.DeleteGroupForecasts(r.Context(), r.PathValue("group_id"))
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// handleSteps returns the audit table of a forecast computation without
// storing anything.
func (m *Module) handleSteps(w http.ResponseWriter, r *http.Request) {
	activity, err := models.ParseActivity(r.URL.Query().Get("activity"))
	if err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	report, err := m.Steps(r.Context(), r.PathValue("group_id"), activity)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}

// handlePolicies returns the resolved policy table.
func (m *Module) handlePolicies(w http.ResponseWriter, _ *http.Request) {
	resp := PoliciesResponse{
		Default:   m.policies.Default().Summarize(),
		Presets:   make(map[string]policy.Summary),
		Overrides: []PolicyEntry{},
	}
	for _, name := range m.policies.Presets() {
		p, _ := m.policies.Preset(name)
		resp.Presets[name] = p.Summarize()
	}
	for _, e := range m.policies.Entries() {
		resp.Overrides = append(resp.Overrides, PolicyEntry{
			Group:    e.Key.Group,
			Activity: e.Key.Activity,
			Policy:   e.Policy.Summarize(),
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (m *Module) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		httpapi.Error(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, roles.ErrGroupNotFound), errors.Is(err, ErrForecastNotFound):
		httpapi.NotFound(w, r, err.Error())
	case errors.Is(err, models.ErrUnknownActivity):
		httpapi.BadRequest(w, r, err.Error())
	case errors.Is(err, ErrNoStore), errors.Is(err, ErrNoHistoryProvider), errors.Is(err, ErrNoScheduler):
		httpapi.Error(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		m.logger.Error("prediction request failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpapi.InternalError(w, r)
	}
}

func withDisplay(recs []analytics.ForecastRecord) []analytics.ForecastRecord {
	if recs == nil {
		return []analytics.ForecastRecord{}
	}
	for i := range recs {
		recs[i].Display = display.Duration(recs[i].PredictedHours)
	}
	return recs
}

// parseDate parses an optional YYYY-MM-DD value; empty input yields the
// zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(models.DateLayout, s)
}
