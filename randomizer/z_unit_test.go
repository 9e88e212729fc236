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

package randomizer

import (
	"errors"
	"math"
	"testing"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/reflector"
	"github.com/zintix-labs/propfuzz/sdk/core"
	"github.com/zintix-labs/propfuzz/spec"
	"github.com/zintix-labs/propfuzz/strgen"
)

type unit struct {
	Health int
	Small  int8
	Count  uint16
	Speed  float64
	Weight float32
	Name   string
	Tag    reflector.Symbol
	Title  reflector.Text
	Loot   []string
}

func rulesFrom(t *testing.T, doc string) *spec.ClassRule {
	t.Helper()
	fc, err := spec.LoadJSON([]byte(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cr, ok := fc.Class("Unit")
	if !ok {
		t.Fatalf("class Unit missing")
	}
	return cr
}

func fieldsOf(t *testing.T, u *unit) []reflector.Field {
	t.Helper()
	fs, err := reflector.Enumerate(u)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	return fs
}

func constGen(s string) (strgen.Generator, *int) {
	n := 0
	return strgen.Func(func(string) (string, error) {
		n++
		return s, nil
	}), &n
}

func TestDegenerateIntervalAlwaysPoint(t *testing.T) {
	rules := rulesFrom(t, `{"Unit": {"Health": [0, 0], "Count": [0, 0], "Speed": [0, 0], "Weight": [0, 0]}}`)
	e := New(core.NewWithSeed(1), nil, nil)
	for range 50 {
		u := &unit{Health: 9, Count: 9, Speed: 9, Weight: 9}
		res, err := e.Apply(rules, fieldsOf(t, u), baseline.Diff{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Health != 0 || u.Count != 0 || u.Speed != 0 || u.Weight != 0 {
			t.Fatalf("degenerate interval should yield 0, got %+v", u)
		}
		if len(res.Mutations) != 4 || len(res.Warnings) != 0 {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
}

func TestSamplesStayInInterval(t *testing.T) {
	rules := rulesFrom(t, `{"Unit": {"Health": [10, 100], "Speed": [-1.5, 2.25], "Count": [3, 7]}}`)
	e := New(core.NewWithSeed(2), nil, nil)
	seen := map[int]bool{}
	for range 2000 {
		u := &unit{}
		if _, err := e.Apply(rules, fieldsOf(t, u), baseline.Diff{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Health < 10 || u.Health > 100 {
			t.Fatalf("Health out of range: %d", u.Health)
		}
		if u.Speed < -1.5 || u.Speed > 2.25 {
			t.Fatalf("Speed out of range: %v", u.Speed)
		}
		if u.Count < 3 || u.Count > 7 {
			t.Fatalf("Count out of range: %d", u.Count)
		}
		seen[u.Health] = true
	}
	if !seen[10] || !seen[100] {
		t.Fatalf("inclusive endpoints should be reachable")
	}
}

func TestFloat32StaysInInterval(t *testing.T) {
	e := New(core.NewWithSeed(5), nil, nil)
	rules := rulesFrom(t, `{"Unit": {"Weight": [0.1, 0.3]}}`)
	for range 2000 {
		u := &unit{}
		res, err := e.Apply(rules, fieldsOf(t, u), baseline.Diff{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w := float64(u.Weight); w < 0.1 || w > 0.3 {
			t.Fatalf("Weight out of range: %v", w)
		}
		if len(res.Mutations) != 1 || res.Mutations[0].Value != float64(u.Weight) {
			t.Fatalf("mutation should record the stored value: %+v", res.Mutations)
		}
	}

	u := &unit{Weight: 9}
	res, _ := e.Apply(rulesFrom(t, `{"Unit": {"Weight": [0.25, 0.25]}}`), fieldsOf(t, u), baseline.Diff{})
	if u.Weight != 0.25 || len(res.Warnings) != 0 {
		t.Fatalf("representable point: %v %v", u.Weight, res.Warnings)
	}

	// 0.1 不是 float32 可表示的值
	u = &unit{Weight: 9}
	res, _ = e.Apply(rulesFrom(t, `{"Unit": {"Weight": [0.1, 0.1]}}`), fieldsOf(t, u), baseline.Diff{})
	if u.Weight != 9 || len(res.Warnings) != 1 || !errs.IsKind(res.Warnings[0], errs.KindTypeMismatch) {
		t.Fatalf("unrepresentable point should be skipped: %v %v", u.Weight, res.Warnings)
	}

	u = &unit{}
	e.Apply(rulesFrom(t, `{"Unit": {"Weight": [-1e39, 1e39]}}`), fieldsOf(t, u), baseline.Diff{})
	if math.IsInf(float64(u.Weight), 0) {
		t.Fatalf("Weight overflowed: %v", u.Weight)
	}
}

func TestInvertedIntervalIsSwapped(t *testing.T) {
	rules := rulesFrom(t, `{"Unit": {"Health": [10, 1]}}`)
	e := New(core.NewWithSeed(3), nil, nil)
	for range 200 {
		u := &unit{}
		e.Apply(rules, fieldsOf(t, u), baseline.Diff{})
		if u.Health < 1 || u.Health > 10 {
			t.Fatalf("Health out of swapped range: %d", u.Health)
		}
	}
}

func TestIntegerIntervalIntersectsTypeRange(t *testing.T) {
	e := New(core.NewWithSeed(4), nil, nil)

	rules := rulesFrom(t, `{"Unit": {"Small": [100, 1000], "Count": [-5, 3]}}`)
	for range 200 {
		u := &unit{}
		res, _ := e.Apply(rules, fieldsOf(t, u), baseline.Diff{})
		if len(res.Warnings) != 0 {
			t.Fatalf("unexpected warnings: %v", res.Warnings)
		}
		if u.Small < 100 {
			t.Fatalf("Small out of range: %d", u.Small)
		}
		if u.Count > 3 {
			t.Fatalf("Count out of range: %d", u.Count)
		}
	}

	for _, doc := range []string{
		`{"Unit": {"Small": [200, 300]}}`,
		`{"Unit": {"Health": [0.2, 0.8]}}`,
		`{"Unit": {"Count": [-10, -1]}}`,
	} {
		u := &unit{Small: 5, Health: 5, Count: 5}
		res, err := e.Apply(rulesFrom(t, doc), fieldsOf(t, u), baseline.Diff{})
		if err != nil {
			t.Fatalf("%s: unexpected fatal: %v", doc, err)
		}
		if len(res.Warnings) != 1 || !errs.IsKind(res.Warnings[0], errs.KindTypeMismatch) {
			t.Fatalf("%s: expected one mismatch warning, got %v", doc, res.Warnings)
		}
		if u.Small != 5 || u.Health != 5 || u.Count != 5 {
			t.Fatalf("%s: field should stay untouched", doc)
		}
	}
}

func TestStringPatternCallsGeneratorOncePerField(t *testing.T) {
	gen, calls := constGen("enemy_042")
	rules := rulesFrom(t, `{"Unit": {"Name": "enemy_[0-9]{3}", "Tag": "t.*", "Title": "x"}}`)
	u := &unit{Title: reflector.Text{Namespace: "ui", Key: "k", Source: "old"}}
	res, err := New(core.NewWithSeed(5), gen, nil).Apply(rules, fieldsOf(t, u), baseline.Diff{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 3 {
		t.Fatalf("generator should be called once per string field, got %d", *calls)
	}
	if u.Name != "enemy_042" || u.Tag.String() != "enemy_042" || u.Title != reflector.TextFromString("enemy_042") {
		t.Fatalf("literal generator output should be stored, got %+v", u)
	}
	if len(res.Mutations) != 3 || res.Mutations[2].Old != "old" {
		t.Fatalf("unexpected mutations: %+v", res.Mutations)
	}
}

func TestStringPatternOnNonStringIsFatal(t *testing.T) {
	gen, calls := constGen("x")
	rules := rulesFrom(t, `{"Unit": {"Health": [5, 5], "Speed": "1.5", "Name": "y"}}`)
	u := &unit{}
	_, err := New(core.NewWithSeed(6), gen, nil).Apply(rules, fieldsOf(t, u), baseline.Diff{})
	if err == nil || !errs.IsFatal(err) || !errs.IsKind(err, errs.KindTypeMismatch) {
		t.Fatalf("expected fatal type mismatch, got %v", err)
	}
	if u.Health != 5 {
		t.Fatalf("fields before the fatal one stay applied")
	}
	if u.Name != "" || *calls != 0 {
		t.Fatalf("processing must stop at the fatal field")
	}

	rules = rulesFrom(t, `{"Unit": {"Loot": "x"}}`)
	if _, err := New(core.NewWithSeed(6), gen, nil).Apply(rules, fieldsOf(t, &unit{}), baseline.Diff{}); !errs.IsFatal(err) {
		t.Fatalf("pattern on other field should be fatal, got %v", err)
	}
}

func TestNumericRuleOnStringIsWarning(t *testing.T) {
	rules := rulesFrom(t, `{"Unit": {"Name": [1, 2], "Health": [3, 3]}}`)
	u := &unit{Name: "keep"}
	res, err := New(core.NewWithSeed(7), nil, nil).Apply(rules, fieldsOf(t, u), baseline.Diff{})
	if err != nil {
		t.Fatalf("mismatch should not be fatal: %v", err)
	}
	if len(res.Warnings) != 1 || !errs.IsKind(res.Warnings[0], errs.KindTypeMismatch) || errs.IsFatal(res.Warnings[0]) {
		t.Fatalf("expected one mismatch warning, got %v", res.Warnings)
	}
	if u.Name != "keep" || u.Health != 3 {
		t.Fatalf("unexpected state %+v", u)
	}
}

func TestDriftFallback(t *testing.T) {
	rules := rulesFrom(t, `{"Unit": {"Health": [1, 100]}}`)
	diff := baseline.NewDiff("Unit", []string{"Speed", "Count", "Name", "Health"})
	e := New(core.NewWithSeed(8), nil, nil)
	for range 200 {
		u := &unit{Name: "same", Small: 1}
		res, err := e.Apply(rules, fieldsOf(t, u), diff)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Speed < 0 || u.Speed > 1_000_000 {
			t.Fatalf("Speed outside fallback: %v", u.Speed)
		}
		if u.Health < 1 || u.Health > 100 {
			t.Fatalf("rule should win over drift: %d", u.Health)
		}
		if u.Name != "same" || u.Small != 1 {
			t.Fatalf("non-numeric drift and known fields stay untouched")
		}
		for _, m := range res.Mutations {
			want := SourceDrift
			if m.Field == "Health" {
				want = SourceRule
			}
			if m.Source != want {
				t.Fatalf("%s: source %s want %s", m.Field, m.Source, want)
			}
		}
	}
}

func TestCustomFallback(t *testing.T) {
	diff := baseline.NewDiff("Unit", []string{"Health"})
	e := New(core.NewWithSeed(9), nil, nil).WithFallback(spec.NumericInterval{Min: 7, Max: 7})
	u := &unit{}
	if _, err := e.Apply(nil, fieldsOf(t, u), diff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Health != 7 {
		t.Fatalf("custom fallback not applied: %d", u.Health)
	}
}

func TestGeneratorFailureIsWarning(t *testing.T) {
	failing := strgen.Func(func(string) (string, error) { return "", errors.New("bridge down") })
	rules := rulesFrom(t, `{"Unit": {"Name": "x", "Health": [2, 2]}}`)
	u := &unit{Name: "keep"}
	res, err := New(core.NewWithSeed(10), failing, nil).Apply(rules, fieldsOf(t, u), baseline.Diff{})
	if err != nil {
		t.Fatalf("generator failure must not be fatal: %v", err)
	}
	if len(res.Warnings) != 1 || !errs.IsKind(res.Warnings[0], errs.KindGeneratorUnavailable) {
		t.Fatalf("expected generator unavailable warning, got %v", res.Warnings)
	}
	if u.Name != "keep" || u.Health != 2 {
		t.Fatalf("unexpected state %+v", u)
	}

	res, _ = New(core.NewWithSeed(10), nil, nil).Apply(rules, fieldsOf(t, &unit{}), baseline.Diff{})
	if len(res.Warnings) != 1 || !errs.IsKind(res.Warnings[0], errs.KindGeneratorUnavailable) {
		t.Fatalf("missing generator should be a warning, got %v", res.Warnings)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	boom := strgen.Func(func(p string) (string, error) {
		if p == "x" {
			panic("boom")
		}
		return "ok", nil
	})
	rules := rulesFrom(t, `{"Unit": {"Name": "x", "Tag": "y"}}`)
	u := &unit{}
	res, err := New(core.NewWithSeed(11), boom, nil).Apply(rules, fieldsOf(t, u), baseline.Diff{})
	if err != nil {
		t.Fatalf("panic must not be fatal: %v", err)
	}
	if len(res.Warnings) != 1 || errs.IsFatal(res.Warnings[0]) {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
	if u.Tag.String() != "ok" {
		t.Fatalf("later fields should still be processed")
	}
}

func TestUnconfiguredFieldsUntouched(t *testing.T) {
	u := &unit{Health: 3, Name: "n"}
	res, err := New(core.NewWithSeed(12), nil, nil).Apply(rulesFrom(t, `{"Unit": {}}`), fieldsOf(t, u), baseline.Diff{})
	if err != nil || len(res.Mutations) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("nothing should happen: %+v %v", res, err)
	}
	if u.Health != 3 || u.Name != "n" {
		t.Fatalf("fields changed")
	}
}

func TestMutationRecordsEffectiveRange(t *testing.T) {
	rules := rulesFrom(t, `{"Unit": {"Small": [-1000, 1000]}}`)
	res, _ := New(core.NewWithSeed(13), nil, nil).Apply(rules, fieldsOf(t, &unit{}), baseline.Diff{})
	if len(res.Mutations) != 1 {
		t.Fatalf("expected one mutation")
	}
	m := res.Mutations[0]
	if !m.Numeric || !m.Integer || m.Lo != -128 || m.Hi != 127 {
		t.Fatalf("unexpected effective range: %+v", m)
	}
}
