package registry

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldcast/fieldcast/pkg/plugin"
	"go.uber.org/zap"
)

type testPlugin struct {
	info     plugin.PluginInfo
	initErr  error
	startErr error
	stopErr  error

	panicOn string // "init", "start" or "stop"
	stopFor time.Duration

	stopped *[]string
	mu      *sync.Mutex
	stops   atomic.Int32
}

func newTestPlugin(name string, deps ...string) *testPlugin {
	return &testPlugin{
		info: plugin.PluginInfo{
			Name:         name,
			Version:      "1.0.0",
			Dependencies: deps,
			APIVersion:   plugin.APIVersionCurrent,
		},
	}
}

func (p *testPlugin) Info() plugin.PluginInfo { return p.info }

func (p *testPlugin) Init(_ context.Context, _ plugin.Dependencies) error {
	if p.panicOn == "init" {
		panic("init exploded")
	}
	return p.initErr
}

func (p *testPlugin) Start(_ context.Context) error {
	if p.panicOn == "start" {
		panic("start exploded")
	}
	return p.startErr
}

func (p *testPlugin) Stop(ctx context.Context) error {
	p.stops.Add(1)
	if p.panicOn == "stop" {
		panic("stop exploded")
	}
	if p.stopFor > 0 {
		select {
		case <-time.After(p.stopFor):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.stopped != nil {
		p.mu.Lock()
		*p.stopped = append(*p.stopped, p.info.Name)
		p.mu.Unlock()
	}
	return p.stopErr
}

type httpPlugin struct {
	*testPlugin
	routes []plugin.Route
}

func (p *httpPlugin) Routes() []plugin.Route { return p.routes }

type subscriberPlugin struct {
	*testPlugin
	subs []plugin.Subscription
}

func (p *subscriberPlugin) Subscriptions() []plugin.Subscription { return p.subs }

type healthPlugin struct {
	*testPlugin
	status string
}

func (p *healthPlugin) Health(context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{Status: p.status}
}

type invalidPlugin struct {
	*testPlugin
}

func (p *invalidPlugin) ValidateConfig() error { return errors.New("bad config") }

// recordingBus records Subscribe and unsubscribe calls.
type recordingBus struct {
	mu      sync.Mutex
	topics  []string
	removed int
}

func (b *recordingBus) Publish(context.Context, plugin.Event) error { return nil }
func (b *recordingBus) PublishAsync(context.Context, plugin.Event)  {}
func (b *recordingBus) SubscribeAll(plugin.EventHandler) func()     { return func() {} }
func (b *recordingBus) Subscribe(topic string, _ plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return func() {
		b.mu.Lock()
		b.removed++
		b.mu.Unlock()
	}
}

func testDeps(bus plugin.EventBus) func(string) plugin.Dependencies {
	return func(name string) plugin.Dependencies {
		return plugin.Dependencies{Logger: zap.NewNop().Named(name), Bus: bus}
	}
}

func setup(t *testing.T, plugins ...plugin.Plugin) *Registry {
	t.Helper()
	reg := New(zap.NewNop())
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p.Info().Name, err)
		}
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}
	return reg
}

func names(ps []plugin.Plugin) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Info().Name
	}
	return out
}

func TestRegister(t *testing.T) {
	reg := New(zap.NewNop())
	if err := reg.Register(newTestPlugin("roster")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(newTestPlugin("roster")); err == nil {
		t.Error("duplicate Register succeeded")
	}
	if err := reg.Register(newTestPlugin("")); err == nil {
		t.Error("empty name Register succeeded")
	}
}

func TestValidate_Order(t *testing.T) {
	reg := setup(t,
		newTestPlugin("prediction", "roster"),
		newTestPlugin("roster"),
		newTestPlugin("audit"),
	)
	want := []string{"audit", "roster", "prediction"}
	if got := names(reg.All()); !reflect.DeepEqual(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}
}

func TestValidate_Failures(t *testing.T) {
	required := func(p *testPlugin) *testPlugin { p.info.Required = true; return p }
	apiVersion := func(p *testPlugin, v int) *testPlugin { p.info.APIVersion = v; return p }

	tests := []struct {
		name         string
		plugins      []plugin.Plugin
		wantErr      string
		wantDisabled []string
	}{
		{
			name:    "cycle",
			plugins: []plugin.Plugin{newTestPlugin("a", "b"), newTestPlugin("b", "a")},
			wantErr: "cycle",
		},
		{
			name:    "required missing dependency",
			plugins: []plugin.Plugin{required(newTestPlugin("prediction", "roster"))},
			wantErr: "not registered",
		},
		{
			name:         "optional missing dependency",
			plugins:      []plugin.Plugin{newTestPlugin("prediction", "roster")},
			wantDisabled: []string{"prediction"},
		},
		{
			name:         "api too old",
			plugins:      []plugin.Plugin{apiVersion(newTestPlugin("old"), 0)},
			wantDisabled: []string{"old"},
		},
		{
			name:         "api too new",
			plugins:      []plugin.Plugin{apiVersion(newTestPlugin("new"), plugin.APIVersionCurrent+1)},
			wantDisabled: []string{"new"},
		},
		{
			name: "cascade",
			plugins: []plugin.Plugin{
				apiVersion(newTestPlugin("roster"), 0),
				newTestPlugin("prediction", "roster"),
				newTestPlugin("report", "prediction"),
			},
			wantDisabled: []string{"roster", "prediction", "report"},
		},
		{
			name: "cascade into required",
			plugins: []plugin.Plugin{
				apiVersion(newTestPlugin("roster"), 0),
				required(newTestPlugin("prediction", "roster")),
			},
			wantErr: "disabled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(zap.NewNop())
			for _, p := range tt.plugins {
				_ = reg.Register(p)
			}
			err := reg.Validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			for _, name := range tt.wantDisabled {
				if !reg.IsDisabled(name) {
					t.Errorf("%s not disabled", name)
				}
			}
		})
	}
}

func TestInitAll(t *testing.T) {
	failing := newTestPlugin("failing")
	failing.initErr = errors.New("boom")
	panicking := newTestPlugin("panicking")
	panicking.panicOn = "init"
	invalid := &invalidPlugin{newTestPlugin("invalid")}
	ok := newTestPlugin("ok")

	reg := setup(t, failing, panicking, invalid, ok)
	if err := reg.InitAll(context.Background(), testDeps(nil)); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	for _, name := range []string{"failing", "panicking", "invalid"} {
		if !reg.IsDisabled(name) {
			t.Errorf("%s not disabled", name)
		}
	}
	if reg.IsDisabled("ok") {
		t.Error("ok plugin disabled")
	}
	if _, found := reg.Get("failing"); found {
		t.Error("Get returned disabled plugin")
	}
}

func TestInitAll_RequiredFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *testPlugin)
		wantErr string
	}{
		{"error", func(p *testPlugin) { p.initErr = errors.New("boom") }, "boom"},
		{"panic", func(p *testPlugin) { p.panicOn = "init" }, "panicked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlugin("roster")
			p.info.Required = true
			tt.mutate(p)
			reg := setup(t, p)
			err := reg.InitAll(context.Background(), testDeps(nil))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("InitAll() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInitAll_WiresSubscriptions(t *testing.T) {
	noop := func(context.Context, plugin.Event) {}
	p := &subscriberPlugin{
		testPlugin: newTestPlugin("prediction"),
		subs: []plugin.Subscription{
			{Topic: "roster.report.created", Handler: noop},
			{Topic: "roster.group.created", Handler: noop},
		},
	}
	reg := setup(t, p)
	bus := &recordingBus{}
	if err := reg.InitAll(context.Background(), testDeps(bus)); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	want := []string{"roster.report.created", "roster.group.created"}
	if !reflect.DeepEqual(bus.topics, want) {
		t.Errorf("subscribed topics = %v, want %v", bus.topics, want)
	}

	if err := reg.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if bus.removed != 2 {
		t.Errorf("unsubscribed %d, want 2", bus.removed)
	}
}

func TestStartAll(t *testing.T) {
	failing := newTestPlugin("failing")
	failing.startErr = errors.New("port in use")
	panicking := newTestPlugin("panicking")
	panicking.panicOn = "start"

	reg := setup(t, failing, panicking, newTestPlugin("ok"))
	ctx := context.Background()
	_ = reg.InitAll(ctx, testDeps(nil))
	if err := reg.StartAll(ctx); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	if !reg.IsDisabled("failing") || !reg.IsDisabled("panicking") || reg.IsDisabled("ok") {
		t.Error("unexpected disabled set after StartAll")
	}

	required := newTestPlugin("roster")
	required.info.Required = true
	required.panicOn = "start"
	reg = setup(t, required)
	_ = reg.InitAll(ctx, testDeps(nil))
	if err := reg.StartAll(ctx); err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Errorf("StartAll() error = %v, want panic error", err)
	}
}

func TestStopAll_ReverseOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		stopped []string
	)
	mk := func(name string, deps ...string) *testPlugin {
		p := newTestPlugin(name, deps...)
		p.stopped, p.mu = &stopped, &mu
		return p
	}
	reg := setup(t, mk("roster"), mk("prediction", "roster"), mk("export", "prediction"))
	ctx := context.Background()
	_ = reg.InitAll(ctx, testDeps(nil))
	_ = reg.StartAll(ctx)

	if err := reg.StopAll(ctx); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	want := []string{"export", "prediction", "roster"}
	if !reflect.DeepEqual(stopped, want) {
		t.Errorf("stop order = %v, want %v", stopped, want)
	}
}

func TestStopAll_CollectsErrors(t *testing.T) {
	a := newTestPlugin("a")
	a.stopErr = errors.New("a failed")
	b := newTestPlugin("b")
	b.panicOn = "stop"
	c := newTestPlugin("c")

	reg := setup(t, a, b, c)
	ctx := context.Background()
	_ = reg.InitAll(ctx, testDeps(nil))
	_ = reg.StartAll(ctx)

	err := reg.StopAll(ctx)
	if err == nil {
		t.Fatal("StopAll() error = nil")
	}
	if !strings.Contains(err.Error(), "a failed") || !strings.Contains(err.Error(), "panicked") {
		t.Errorf("StopAll() error = %v", err)
	}
	if c.stops.Load() != 1 {
		t.Error("c not stopped after earlier failures")
	}
}

func TestStopAll_ContextTimeout(t *testing.T) {
	slow := newTestPlugin("slow")
	slow.stopFor = 5 * time.Second
	fast := newTestPlugin("fast")

	reg := setup(t, slow, fast)
	ctx := context.Background()
	_ = reg.InitAll(ctx, testDeps(nil))
	_ = reg.StartAll(ctx)

	stopCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := reg.StopAll(stopCtx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("StopAll took %v", elapsed)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("StopAll() error = %v, want deadline exceeded", err)
	}
	if fast.stops.Load() != 1 {
		t.Error("fast plugin not stopped")
	}
}

func TestStopAll_SkipsDisabled(t *testing.T) {
	bad := newTestPlugin("bad")
	bad.initErr = errors.New("nope")
	reg := setup(t, bad)
	ctx := context.Background()
	_ = reg.InitAll(ctx, testDeps(nil))
	_ = reg.StopAll(ctx)
	if bad.stops.Load() != 0 {
		t.Error("disabled plugin was stopped")
	}
}

func TestResolveByRole(t *testing.T) {
	roster := newTestPlugin("roster")
	roster.info.Roles = []string{"history", "scheduler"}
	prediction := newTestPlugin("prediction", "roster")
	prediction.info.Roles = []string{"forecaster"}

	reg := setup(t, roster, prediction)
	if got := names(reg.ResolveByRole("history")); !reflect.DeepEqual(got, []string{"roster"}) {
		t.Errorf("ResolveByRole(history) = %v", got)
	}
	if got := reg.ResolveByRole("missing"); len(got) != 0 {
		t.Errorf("ResolveByRole(missing) = %v", got)
	}
	if p, ok := reg.Resolve("prediction"); !ok || p.Info().Name != "prediction" {
		t.Error("Resolve(prediction) failed")
	}
}

func TestAllRoutesAndInfos(t *testing.T) {
	h := &httpPlugin{
		testPlugin: newTestPlugin("roster"),
		routes:     []plugin.Route{{Method: "GET", Path: "/groups"}},
	}
	reg := setup(t, h, newTestPlugin("plain"))
	routes := reg.AllRoutes()
	if len(routes) != 1 || len(routes["roster"]) != 1 {
		t.Errorf("AllRoutes() = %v", routes)
	}
	if infos := reg.Infos(); len(infos) != 2 || infos[0].Name != "plain" {
		t.Errorf("Infos() = %+v", infos)
	}
}

func TestHealth(t *testing.T) {
	degraded := &healthPlugin{testPlugin: newTestPlugin("prediction"), status: "degraded"}
	off := newTestPlugin("off")
	off.initErr = errors.New("x")

	reg := setup(t, degraded, off, newTestPlugin("roster"))
	_ = reg.InitAll(context.Background(), testDeps(nil))

	h := reg.Health(context.Background())
	want := map[string]string{"prediction": "degraded", "off": "unhealthy", "roster": "healthy"}
	for name, status := range want {
		if h[name].Status != status {
			t.Errorf("Health()[%s] = %q, want %q", name, h[name].Status, status)
		}
	}
}

func TestStopAll_Concurrent(t *testing.T) {
	p := newTestPlugin("concurrent")
	p.stopFor = 20 * time.Millisecond
	reg := setup(t, p)
	ctx := context.Background()
	_ = reg.InitAll(ctx, testDeps(nil))
	_ = reg.StartAll(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.StopAll(ctx)
		}()
	}
	wg.Wait()
	if got := p.stops.Load(); got != 3 {
		t.Errorf("stops = %d, want 3", got)
	}
}
