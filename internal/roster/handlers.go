package roster

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fieldcast/fieldcast/internal/httpapi"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/fieldcast/fieldcast/pkg/roles"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/groups", Handler: m.handleListGroups},
		{Method: "POST", Path: "/groups", Handler: m.handleCreateGroup},
		{Method: "GET", Path: "/groups/{id}", Handler: m.handleGetGroup},
		{Method: "GET", Path: "/groups/{id}/next-date", Handler: m.handleNextDate},
		{Method: "GET", Path: "/groups/{id}/history", Handler: m.handleHistory},
		{Method: "GET", Path: "/reports", Handler: m.handleListReports},
		{Method: "POST", Path: "/reports", Handler: m.handleCreateReport},
	}
}

// NextDateResponse is the body of GET /groups/{id}/next-date.
type NextDateResponse struct {
	GroupID string `json:"group_id"`
	Date    string `json:"date" example:"2025-01-07"`
}

// HistoryResponse is the body of GET /groups/{id}/history.
type HistoryResponse struct {
	GroupID      string              `json:"group_id"`
	Activity     models.Activity     `json:"activity"`
	Observations []roles.Observation `json:"observations"`
}

// handleListGroups returns all work groups in rotation order.
func (m *Module) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := m.Groups(r.Context())
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.WorkGroup{}
	}
	httpapi.WriteJSON(w, http.StatusOK, groups)
}

// handleCreateGroup creates a work group.
func (m *Module) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in GroupInput
	if err := httpapi.DecodeJSON(w, r, &in); err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	g, err := m.CreateGroup(r.Context(), in)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, g)
}

// handleGetGroup returns a single work group.
func (m *Module) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := m.Group(r.Context(), r.PathValue("id"))
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, g)
}

// handleNextDate returns the group's next work date. The optional "from"
// query parameter (YYYY-MM-DD) is used when no report exists yet.
func (m *Module) handleNextDate(w http.ResponseWriter, r *http.Request) {
	from := m.now()
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			httpapi.BadRequest(w, r, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	id := r.PathValue("id")
	date, err := m.NextWorkDate(r.Context(), id, from)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, NextDateResponse{
		GroupID: id,
		Date:    date.Format(models.DateLayout),
	})
}

// handleHistory returns the observations a forecast for this group and
// activity would be computed from.
func (m *Module) handleHistory(w http.ResponseWriter, r *http.Request) {
	activity, err := models.ParseActivity(r.URL.Query().Get("activity"))
	if err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	id := r.PathValue("id")
	if _, err := m.Group(r.Context(), id); err != nil {
		m.writeErr(w, r, err)
		return
	}
	obs, err := m.History(r.Context(), id, activity)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	if obs == nil {
		obs = []roles.Observation{}
	}
	httpapi.WriteJSON(w, http.StatusOK, HistoryResponse{
		GroupID:      id,
		Activity:     activity,
		Observations: obs,
	})
}

// handleListReports returns reports newest first, filtered by the optional
// group_id and activity query parameters.
func (m *Module) handleListReports(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		m.writeErr(w, r, ErrNoStore)
		return
	}
	q := r.URL.Query()
	f := ReportFilter{
		GroupID: q.Get("group_id"),
		Limit:   httpapi.ParseLimit(r, m.cfg.DefaultLimit),
	}
	if raw := strings.TrimSpace(q.Get("activity")); raw != "" {
		a, err := models.ParseActivity(raw)
		if err != nil {
			httpapi.BadRequest(w, r, err.Error())
			return
		}
		f.Activity = a
	}
	reports, err := m.store.ListReports(r.Context(), f)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	httpapi.WriteJSON(w, http.StatusOK, reports)
}

// handleCreateReport files a work report.
func (m *Module) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var in ReportInput
	if err := httpapi.DecodeJSON(w, r, &in); err != nil {
		httpapi.BadRequest(w, r, err.Error())
		return
	}
	rep, err := m.CreateReport(r.Context(), in)
	if err != nil {
		m.writeErr(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, rep)
}

func (m *Module) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		httpapi.NotFound(w, r, err.Error())
	case errors.Is(err, ErrInvalidReport), errors.Is(err, ErrInvalidGroup):
		httpapi.BadRequest(w, r, err.Error())
	case errors.Is(err, ErrDuplicateGroup):
		httpapi.Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoStore):
		httpapi.Error(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		m.logger.Error("roster request failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpapi.InternalError(w, r)
	}
}
