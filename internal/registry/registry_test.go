package registry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// fakeModule records lifecycle calls in a shared trace.
type fakeModule struct {
	info     module.Info
	trace    *[]string
	initErr  error
	startErr error
	routes   []module.Route
}

func (m *fakeModule) Info() module.Info { return m.info }

func (m *fakeModule) Init(_ context.Context, _ module.Dependencies) error {
	*m.trace = append(*m.trace, "init:"+m.info.Name)
	return m.initErr
}

func (m *fakeModule) Start(_ context.Context) error {
	*m.trace = append(*m.trace, "start:"+m.info.Name)
	return m.startErr
}

func (m *fakeModule) Stop(_ context.Context) error {
	*m.trace = append(*m.trace, "stop:"+m.info.Name)
	return nil
}

func (m *fakeModule) Routes() []module.Route { return m.routes }

func newFake(trace *[]string, name string, deps []string, required bool) *fakeModule {
	return &fakeModule{
		info:  module.Info{Name: name, Version: "0.1.0", Dependencies: deps, Required: required},
		trace: trace,
	}
}

func noDeps(string) module.Dependencies { return module.Dependencies{} }

func TestRegister_Duplicate(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	if err := r.Register(newFake(&trace, "inventory", nil, true)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(newFake(&trace, "inventory", nil, true)); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestValidate_TopologicalOrder(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	// Register out of dependency order on purpose.
	r.Register(newFake(&trace, "poller", []string{"alertsource"}, false))
	r.Register(newFake(&trace, "alertsource", []string{"inventory"}, true))
	r.Register(newFake(&trace, "inventory", nil, true))

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pos := map[string]int{}
	for i, name := range r.order {
		pos[name] = i
	}
	if pos["inventory"] > pos["alertsource"] || pos["alertsource"] > pos["poller"] {
		t.Errorf("order = %v, want dependencies first", r.order)
	}
}

func TestValidate_MissingDependency(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	r.Register(newFake(&trace, "poller", []string{"alertsource"}, false))
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !r.IsDisabled("poller") {
		t.Error("optional module with missing dependency should be disabled")
	}
}

func TestValidate_MissingDependencyRequired(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	r.Register(newFake(&trace, "alertsource", []string{"inventory"}, true))
	if err := r.Validate(); err == nil {
		t.Error("required module with missing dependency should fail validation")
	}
}

func TestValidate_Cycle(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	r.Register(newFake(&trace, "a", []string{"b"}, true))
	r.Register(newFake(&trace, "b", []string{"a"}, true))
	if err := r.Validate(); err == nil {
		t.Error("dependency cycle should fail validation")
	}
}

func TestLifecycle_OrderAndReverse(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	r.Register(newFake(&trace, "alertsource", []string{"inventory"}, true))
	r.Register(newFake(&trace, "inventory", nil, true))

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	ctx := context.Background()
	if err := r.InitAll(ctx, noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	r.StopAll(ctx)

	want := []string{
		"init:inventory", "init:alertsource",
		"start:inventory", "start:alertsource",
		"stop:alertsource", "stop:inventory",
	}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}
}

func TestInitAll_OptionalFailureDisables(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	bad := newFake(&trace, "poller", nil, false)
	bad.initErr = errors.New("no sources")
	r.Register(bad)
	r.Register(newFake(&trace, "inventory", nil, true))

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if !r.IsDisabled("poller") {
		t.Error("optional module failing Init should be disabled")
	}
	if r.IsDisabled("inventory") {
		t.Error("healthy module should stay active")
	}
}

func TestInitAll_RequiredFailureAborts(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	bad := newFake(&trace, "inventory", nil, true)
	bad.initErr = errors.New("no database")
	r.Register(bad)

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := r.InitAll(context.Background(), noDeps); err == nil {
		t.Error("required module failing Init should abort")
	}
}

func TestAllRoutes(t *testing.T) {
	r := New(zap.NewNop())
	var trace []string

	withRoutes := newFake(&trace, "alerts", nil, true)
	withRoutes.routes = []module.Route{
		{Method: "GET", Path: "/{storage_id}", Handler: func(http.ResponseWriter, *http.Request) {}},
	}
	r.Register(withRoutes)
	r.Register(newFake(&trace, "poller", nil, false))

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	routes := r.AllRoutes()
	if len(routes["alerts"]) != 1 {
		t.Errorf("routes = %v, want one alerts route", routes)
	}
	if _, ok := routes["poller"]; ok {
		t.Error("module without routes should not appear")
	}
}
