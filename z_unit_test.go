// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package propfuzz

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/catalog"
	"github.com/zintix-labs/propfuzz/errs"
	alpha "github.com/zintix-labs/propfuzz/internal/testkind/alpha/kind"
	beta "github.com/zintix-labs/propfuzz/internal/testkind/beta/kind"
	"github.com/zintix-labs/propfuzz/reflector"
	"github.com/zintix-labs/propfuzz/report"
	"github.com/zintix-labs/propfuzz/spec"
	"github.com/zintix-labs/propfuzz/strgen"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type goblin struct {
	Health int
	Name   string
}

type goblinV2 struct {
	Health int
	Name   string
	Mana   float64
}

// FuzzClass 讓兩個版本共用同一個 baseline key
func (*goblin) FuzzClass() string   { return "Goblin" }
func (*goblinV2) FuzzClass() string { return "Goblin" }

type chest struct {
	Gold  uint32
	Label string
	Items []string
}

func loadCfg(t *testing.T, doc string) *spec.FuzzConfig {
	t.Helper()
	fc, err := spec.LoadJSON([]byte(doc))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return fc
}

func newFuzzer(t *testing.T, opt Options) *Fuzzer {
	t.Helper()
	if opt.Seed == 0 {
		opt.Seed = 11
	}
	f, err := New(opt)
	if err != nil {
		t.Fatalf("new fuzzer: %v", err)
	}
	return f
}

func TestEndToEndGoblin(t *testing.T) {
	store := baseline.NewMemStore()
	cfg := loadCfg(t, `{"Goblin": {"Health": [1, 100]}}`)

	// 第一次：舊版 Goblin 建立 baseline
	old := &goblin{Health: 5, Name: "grub"}
	f := newFuzzer(t, Options{Config: cfg, Store: store})
	if _, err := f.RunTargets(context.Background(), []any{old}); err != nil {
		t.Fatalf("run 1: %v", err)
	}

	// 第二次：新版多了 Mana
	g := &goblinV2{Health: 5, Name: "grub", Mana: -1}
	f = newFuzzer(t, Options{Config: cfg, Store: store, Seed: 99})
	p, err := f.RunTargets(context.Background(), []any{g})
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if g.Health < 1 || g.Health > 100 {
		t.Fatalf("health out of range: %d", g.Health)
	}
	if g.Name != "grub" {
		t.Fatalf("unconfigured name changed: %q", g.Name)
	}
	if g.Mana < 0 || g.Mana > 1_000_000 {
		t.Fatalf("mana out of fallback range: %v", g.Mana)
	}
	if len(p.Diffs) != 1 || !slices.Equal(p.Diffs[0].Names, []string{"Mana"}) {
		t.Fatalf("diff should be {Mana}, got %+v", p.Diffs)
	}
	if p.Mutations() != 2 || p.Failed() {
		t.Fatalf("mutations=%d failed=%v", p.Mutations(), p.Failed())
	}
}

func TestSameNamedTypesTrackedSeparately(t *testing.T) {
	store := baseline.NewMemStore()
	cfg := loadCfg(t, `{"Goblin": {"Health": [1, 100]}}`)
	a, b := &alpha.Goblin{}, &beta.Goblin{}
	f := newFuzzer(t, Options{Config: cfg, Store: store})
	p, err := f.RunTargets(context.Background(), []any{a, b})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reflector.TypeKey(a) == reflector.TypeKey(b) {
		t.Fatalf("keys collide: %s", reflector.TypeKey(a))
	}
	if len(p.Diffs) != 2 {
		t.Fatalf("each type needs its own diff, got %+v", p.Diffs)
	}
	if !slices.Equal(p.Diffs[1].Names, []string{"Gold", "Armor"}) {
		t.Fatalf("second type diff: %+v", p.Diffs[1])
	}
	// alpha：Health 規則 + Mana fallback；beta：Gold、Armor fallback
	if p.Mutations() != 4 {
		t.Fatalf("mutations=%d", p.Mutations())
	}
	base, err := store.ReadBaseline(reflector.TypeKey(b))
	if err != nil || !slices.Equal(base, []string{"Gold", "Armor"}) {
		t.Fatalf("beta baseline: %v %v", base, err)
	}
}

func TestRunResolvesThroughWorld(t *testing.T) {
	w := catalog.NewWorld()
	if err := w.Register(catalog.EntryOf[chest]("Chest")); err != nil {
		t.Fatalf("register: %v", err)
	}
	a, b := &chest{Gold: 1}, &chest{Gold: 2}
	if err := w.Spawn(a, b); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	cfg := loadCfg(t, `{"Ghost": {"X": [1, 2]}, "Chest": {"Gold": [10, 20], "Label": "L[0-9]{2}", "Items": [1, 2]}}`)
	f := newFuzzer(t, Options{Config: cfg, Resolver: w})
	p, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, c := range []*chest{a, b} {
		if c.Gold < 10 || c.Gold > 20 {
			t.Fatalf("gold out of range: %d", c.Gold)
		}
		if len(c.Label) != 3 || c.Label[0] != 'L' {
			t.Fatalf("label: %q", c.Label)
		}
	}
	if len(p.Targets) != 2 || p.Targets[0].Index != 0 || p.Targets[1].Index != 1 {
		t.Fatalf("targets: %+v", p.Targets)
	}
	// 同型別只計算一次 diff
	if len(p.Diffs) != 1 {
		t.Fatalf("diff should be computed once per type, got %d", len(p.Diffs))
	}

	var unresolved, mismatch int
	for _, w := range p.Warnings {
		switch w.Kind {
		case errs.KindUnresolvedClass.String():
			unresolved++
		case errs.KindTypeMismatch.String():
			mismatch++
		}
	}
	if unresolved != 1 {
		t.Fatalf("Ghost should be reported once, warnings=%+v", p.Warnings)
	}
	// Items 規則在兩個 target 上各警告一次
	if mismatch != 2 {
		t.Fatalf("expected 2 mismatch warnings, got %+v", p.Warnings)
	}
}

func TestConfigRejectedEntriesSurface(t *testing.T) {
	cfg := loadCfg(t, `{"Foo": {"Bar": 5, "Baz": [1, 2]}}`)
	f := newFuzzer(t, Options{Config: cfg})
	p, err := f.RunTargets(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(p.Warnings) != 1 || p.Warnings[0].Kind != errs.KindConfigEntry.String() {
		t.Fatalf("rejected entry should be reported: %+v", p.Warnings)
	}
}

func TestFatalStopsPass(t *testing.T) {
	cfg := loadCfg(t, `{"Chest": {"Gold": "abc"}}`)
	a, b := &chest{Gold: 7}, &chest{Gold: 8}
	f := newFuzzer(t, Options{Config: cfg})
	p, err := f.RunTargets(context.Background(), []any{a, b})
	if err == nil || !errs.IsFatal(err) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if !p.Failed() || p.Fatal.Class != "Chest" {
		t.Fatalf("fatal should be recorded: %+v", p.Fatal)
	}
	if len(p.Targets) != 1 {
		t.Fatalf("second target must not be processed, got %d", len(p.Targets))
	}
}

func TestNilTargetsAndCancel(t *testing.T) {
	cfg := loadCfg(t, `{"Chest": {"Gold": [1, 1]}}`)
	var nilChest *chest
	c := &chest{}
	f := newFuzzer(t, Options{Config: cfg})
	p, err := f.RunTargets(context.Background(), []any{nil, nilChest, c})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if c.Gold != 1 || len(p.Targets) != 1 || p.Targets[0].Index != 2 {
		t.Fatalf("nil targets should be skipped: gold=%d targets=%+v", c.Gold, p.Targets)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err = f.RunTargets(ctx, []any{c})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel, got %v", err)
	}
	if !p.Failed() || len(p.Targets) != 0 {
		t.Fatalf("canceled pass: %+v", p)
	}
}

func TestGeneratorAndOptions(t *testing.T) {
	cfg := loadCfg(t, `{"Chest": {"Label": "x+"}}`)
	calls := 0
	gen := strgen.Func(func(string) (string, error) {
		calls++
		return "fixed", nil
	})
	var seen []report.Target
	c := &chest{}
	fb := spec.NumericInterval{Min: 3, Max: 3}
	f := newFuzzer(t, Options{
		Config:    cfg,
		Generator: gen,
		Fallback:  &fb,
		OnTarget:  func(tg report.Target) { seen = append(seen, tg) },
	})
	if _, err := f.RunTargets(context.Background(), []any{c}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 1 || c.Label != "fixed" {
		t.Fatalf("generator calls=%d label=%q", calls, c.Label)
	}
	// 第一次看到 chest：所有欄位都是新欄位，Gold 走 fallback
	if c.Gold != 3 {
		t.Fatalf("fallback not used: %d", c.Gold)
	}
	if len(seen) != 1 || seen[0].Class != "Chest" {
		t.Fatalf("OnTarget: %+v", seen)
	}
}

func TestRunRequiresResolver(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("config should be required")
	}
	f := newFuzzer(t, Options{Config: loadCfg(t, `{}`)})
	if _, err := f.Run(context.Background()); err == nil {
		t.Fatalf("Run without resolver should fail")
	}
	f2, err := New(Options{Config: loadCfg(t, `{}`)})
	if err != nil || f2.Seed() == 0 {
		t.Fatalf("random seed: %v %d", err, f2.Seed())
	}
}

func TestSeedReproducible(t *testing.T) {
	cfg := loadCfg(t, `{"Chest": {"Gold": [0, 1000000], "Label": "[a-z]{8}"}}`)
	run := func() chest {
		c := &chest{}
		f := newFuzzer(t, Options{Config: cfg, Seed: 1234})
		if _, err := f.RunTargets(context.Background(), []any{c}); err != nil {
			t.Fatalf("run: %v", err)
		}
		return *c
	}
	a, b := run(), run()
	if a.Gold != b.Gold || a.Label != b.Label {
		t.Fatalf("same seed should reproduce: %+v vs %+v", a, b)
	}
}

func TestSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	cfg := loadCfg(t, `{"Chest": {"Gold": [1, 2]}}`)
	f := newFuzzer(t, Options{Config: cfg, Tracer: tp.Tracer("test")})
	if _, err := f.RunTargets(context.Background(), []any{&chest{}, &chest{}}); err != nil {
		t.Fatalf("run: %v", err)
	}
	count := map[string]int{}
	for _, s := range sr.Ended() {
		count[s.Name()]++
	}
	if count["propfuzz.pass"] != 1 || count["propfuzz.class"] != 1 || count["propfuzz.target"] != 2 {
		t.Fatalf("spans: %v", count)
	}
}
