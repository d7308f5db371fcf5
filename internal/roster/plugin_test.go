package roster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieldcast/fieldcast/internal/event"
	"github.com/fieldcast/fieldcast/internal/store"
	"github.com/fieldcast/fieldcast/internal/testutil"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/fieldcast/fieldcast/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestModule(t *testing.T, bus plugin.EventBus) *Module {
	t.Helper()
	db, err := store.New(store.MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := New()
	m.now = func() time.Time { return fixedNow }
	err = m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Store:  db,
		Bus:    bus,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return m
}

func mustGroup(t *testing.T, m *Module, name string) *models.WorkGroup {
	t.Helper()
	g, err := m.CreateGroup(context.Background(), GroupInput{Name: name})
	if err != nil {
		t.Fatalf("CreateGroup(%q) error = %v", name, err)
	}
	return g
}

func mustInsert(t *testing.T, m *Module, r models.Report) {
	t.Helper()
	if err := m.store.InsertReport(context.Background(), &r); err != nil {
		t.Fatalf("InsertReport() error = %v", err)
	}
}

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func TestValidateConfig(t *testing.T) {
	m := New()
	m.cfg = DefaultConfig()
	if err := m.ValidateConfig(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	m.cfg.RotationDays = 0
	if err := m.ValidateConfig(); err == nil {
		t.Error("ValidateConfig() accepted rotation_days 0")
	}
}

func TestCreateGroup(t *testing.T) {
	m := newTestModule(t, nil)

	g := mustGroup(t, m, "  Kelompok 1 ")
	if g.Name != "Kelompok 1" || g.ID == "" {
		t.Errorf("CreateGroup() = %+v", g)
	}

	_, err := m.CreateGroup(context.Background(), GroupInput{Name: "Kelompok 1"})
	if !errors.Is(err, ErrDuplicateGroup) {
		t.Errorf("duplicate name error = %v, want ErrDuplicateGroup", err)
	}
	_, err = m.CreateGroup(context.Background(), GroupInput{Name: " "})
	if !errors.Is(err, ErrInvalidGroup) {
		t.Errorf("blank name error = %v, want ErrInvalidGroup", err)
	}

	got, err := m.Group(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if got.Name != g.Name {
		t.Errorf("Group().Name = %q, want %q", got.Name, g.Name)
	}
	if _, err := m.Group(context.Background(), "missing"); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Group(missing) error = %v, want ErrGroupNotFound", err)
	}
}

func TestCreateReport(t *testing.T) {
	m := newTestModule(t, nil)
	g := mustGroup(t, m, "Kelompok 1")

	tests := []struct {
		name         string
		in           ReportInput
		wantActivity models.Activity
		wantHours    float64
		wantStart    string
	}{
		{
			name:         "derives duration from times",
			in:           ReportInput{GroupID: g.ID, Date: "2025-01-06", StartTime: "08:15", EndTime: "08:40", Activity: "perbaikan_kwh"},
			wantActivity: models.ActivityMeterRepair,
			wantHours:    0.416667,
			wantStart:    "08:15:00",
		},
		{
			name:         "overnight",
			in:           ReportInput{GroupID: g.ID, Date: "2025-01-06", StartTime: "23:30", EndTime: "00:15:00", Activity: "Pemeriksaan Gardu"},
			wantActivity: models.ActivitySubstationCheck,
			wantHours:    0.75,
			wantStart:    "23:30:00",
		},
		{
			name:         "explicit duration",
			in:           ReportInput{GroupID: g.ID, Date: "2025-01-07", Activity: "pemeliharaan_pengkabelan", DurationHours: ptr(1.25)},
			wantActivity: models.ActivityConnectionRepair,
			wantHours:    1.25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := m.CreateReport(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("CreateReport() error = %v", err)
			}
			if r.Activity != tt.wantActivity {
				t.Errorf("Activity = %q, want %q", r.Activity, tt.wantActivity)
			}
			if r.DurationHours != tt.wantHours {
				t.Errorf("DurationHours = %v, want %v", r.DurationHours, tt.wantHours)
			}
			if r.StartTime != tt.wantStart {
				t.Errorf("StartTime = %q, want %q", r.StartTime, tt.wantStart)
			}
		})
	}
}

func TestCreateReport_Invalid(t *testing.T) {
	m := newTestModule(t, nil)
	g := mustGroup(t, m, "Kelompok 1")

	tests := []struct {
		name    string
		in      ReportInput
		wantErr error
	}{
		{"missing group", ReportInput{Date: "2025-01-06", Activity: "perbaikan_kwh", DurationHours: ptr(1)}, ErrInvalidReport},
		{"unknown activity", ReportInput{GroupID: g.ID, Date: "2025-01-06", Activity: "menyapu", DurationHours: ptr(1)}, models.ErrUnknownActivity},
		{"bad date", ReportInput{GroupID: g.ID, Date: "06/01/2025", Activity: "perbaikan_kwh", DurationHours: ptr(1)}, ErrInvalidReport},
		{"only start time", ReportInput{GroupID: g.ID, Date: "2025-01-06", StartTime: "08:00", Activity: "perbaikan_kwh"}, ErrInvalidReport},
		{"bad clock", ReportInput{GroupID: g.ID, Date: "2025-01-06", StartTime: "8h", EndTime: "09:00", Activity: "perbaikan_kwh"}, models.ErrInvalidClock},
		{"no duration", ReportInput{GroupID: g.ID, Date: "2025-01-06", Activity: "perbaikan_kwh"}, ErrInvalidReport},
		{"negative duration", ReportInput{GroupID: g.ID, Date: "2025-01-06", Activity: "perbaikan_kwh", DurationHours: ptr(-1)}, ErrInvalidReport},
		{"unknown group", ReportInput{GroupID: "nope", Date: "2025-01-06", Activity: "perbaikan_kwh", DurationHours: ptr(1)}, ErrGroupNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateReport(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateReport() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateReport_PublishesEvent(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	m := newTestModule(t, bus)
	g := mustGroup(t, m, "Kelompok 1")

	var (
		mu  sync.Mutex
		got []models.Report
	)
	bus.Subscribe(TopicReportCreated, func(_ context.Context, e plugin.Event) {
		mu.Lock()
		defer mu.Unlock()
		if r, ok := e.Payload.(models.Report); ok {
			got = append(got, r)
		}
	})

	r, err := m.CreateReport(context.Background(), ReportInput{
		GroupID: g.ID, Date: "2025-01-06", Activity: "perbaikan_kwh", DurationHours: ptr(0.5),
	})
	if err != nil {
		t.Fatalf("CreateReport() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bus.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].ID != r.ID {
		t.Fatalf("received %+v, want report %s", got, r.ID)
	}
}

func TestHistory(t *testing.T) {
	m := newTestModule(t, nil)
	g := mustGroup(t, m, "Kelompok 1")
	other := mustGroup(t, m, "Kelompok 2")

	meter := testutil.WithActivity(models.ActivityMeterRepair)
	mustInsert(t, m, testutil.NewReport(g.ID, meter, testutil.WithDate(day("2025-01-08")), testutil.WithDuration(0.3)))
	mustInsert(t, m, testutil.NewReport(g.ID, meter, testutil.WithDate(day("2025-01-06")), testutil.WithDuration(0.5)))
	mustInsert(t, m, testutil.NewReport(g.ID, meter, testutil.WithDate(day("2025-01-07")), testutil.WithDuration(0)))
	mustInsert(t, m, testutil.NewReport(g.ID, meter, testutil.WithDate(day("2025-01-06")),
		testutil.WithTimes("13:00:00", "13:24:00"), testutil.WithDuration(0.4)))
	mustInsert(t, m, testutil.NewReport(g.ID, testutil.WithActivity(models.ActivitySubstationCheck), testutil.WithDuration(2)))
	mustInsert(t, m, testutil.NewReport(other.ID, meter, testutil.WithDuration(9)))

	obs, err := m.History(context.Background(), g.ID, models.ActivityMeterRepair)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []float64{0.5, 0.4, 0.3}
	if len(obs) != len(want) {
		t.Fatalf("History() len = %d, want %d: %+v", len(obs), len(want), obs)
	}
	for i, o := range obs {
		if o.Hours != want[i] {
			t.Errorf("obs[%d].Hours = %v, want %v", i, o.Hours, want[i])
		}
	}
	if !obs[0].Date.Equal(day("2025-01-06")) {
		t.Errorf("obs[0].Date = %v", obs[0].Date)
	}
}

func TestNextWorkDate_Store(t *testing.T) {
	m := newTestModule(t, nil)
	k2 := mustGroup(t, m, "Kelompok 2")
	k1 := mustGroup(t, m, "Kelompok 1")
	k3 := mustGroup(t, m, "Kelompok 3")

	got, err := m.NextWorkDate(context.Background(), k2.ID, fixedNow)
	if err != nil {
		t.Fatalf("NextWorkDate() error = %v", err)
	}
	if want := day("2025-03-01"); !got.Equal(want) {
		t.Errorf("without reports = %v, want %v", got, want)
	}

	mustInsert(t, m, testutil.NewReport(k1.ID, testutil.WithDate(day("2025-01-05"))))
	mustInsert(t, m, testutil.NewReport(k3.ID, testutil.WithDate(day("2025-01-10"))))

	tests := []struct {
		group string
		want  string
	}{
		{k1.ID, "2025-01-11"},
		{k2.ID, "2025-01-12"},
		{k3.ID, "2025-01-13"},
	}
	for _, tt := range tests {
		got, err := m.NextWorkDate(context.Background(), tt.group, fixedNow)
		if err != nil {
			t.Fatalf("NextWorkDate(%s) error = %v", tt.group, err)
		}
		if got.Format(models.DateLayout) != tt.want {
			t.Errorf("NextWorkDate(%s) = %s, want %s", tt.group, got.Format(models.DateLayout), tt.want)
		}
	}
}

func TestNoStore(t *testing.T) {
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := m.Groups(context.Background()); !errors.Is(err, ErrNoStore) {
		t.Errorf("Groups() error = %v, want ErrNoStore", err)
	}
	if h := m.Health(context.Background()); h.Status != "degraded" {
		t.Errorf("Health().Status = %q, want degraded", h.Status)
	}

	req := httptest.NewRequest(http.MethodGet, "/groups", http.NoBody)
	w := httptest.NewRecorder()
	m.handleListGroups(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleCreateReport(t *testing.T) {
	m := newTestModule(t, nil)
	g := mustGroup(t, m, "Kelompok 1")

	body := `{"group_id":"` + g.ID + `","date":"2025-01-06","start_time":"08:15","end_time":"08:40","activity":"Perbaikan Meteran"}`
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	m.handleCreateReport(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var got models.Report
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.DurationHours != 0.416667 {
		t.Errorf("DurationHours = %v, want 0.416667", got.DurationHours)
	}
}

func TestHandleCreateReport_BadRequest(t *testing.T) {
	m := newTestModule(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(`{"activity":"menyapu"}`))
	w := httptest.NewRecorder()
	m.handleCreateReport(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
}

func TestHandleGetGroup_NotFound(t *testing.T) {
	m := newTestModule(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/groups/missing", http.NoBody)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()
	m.handleGetGroup(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleNextDate(t *testing.T) {
	m := newTestModule(t, nil)
	g := mustGroup(t, m, "Kelompok 1")

	req := httptest.NewRequest(http.MethodGet, "/groups/"+g.ID+"/next-date?from=2025-04-02", http.NoBody)
	req.SetPathValue("id", g.ID)
	w := httptest.NewRecorder()
	m.handleNextDate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got NextDateResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Date != "2025-04-02" {
		t.Errorf("Date = %q, want 2025-04-02", got.Date)
	}

	req = httptest.NewRequest(http.MethodGet, "/groups/"+g.ID+"/next-date?from=yesterday", http.NoBody)
	req.SetPathValue("id", g.ID)
	w = httptest.NewRecorder()
	m.handleNextDate(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad from: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleListReports_Empty(t *testing.T) {
	m := newTestModule(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/reports?activity=perbaikan_kwh", http.NoBody)
	w := httptest.NewRecorder()
	m.handleListReports(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestHandleHistory(t *testing.T) {
	m := newTestModule(t, nil)
	g := mustGroup(t, m, "Kelompok 1")
	mustInsert(t, m, testutil.NewReport(g.ID, testutil.WithDuration(0.25)))

	req := httptest.NewRequest(http.MethodGet, "/groups/"+g.ID+"/history?activity=perbaikan_kwh", http.NoBody)
	req.SetPathValue("id", g.ID)
	w := httptest.NewRecorder()
	m.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got HistoryResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Observations) != 1 || got.Observations[0].Hours != 0.25 {
		t.Errorf("Observations = %+v", got.Observations)
	}
}

func ptr(v float64) *float64 { return &v }
