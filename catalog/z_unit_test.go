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

package catalog

import (
	"slices"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/propfuzz/errs"
)

type goblin struct{ Health int }
type chief struct {
	goblin
	Rage int
}
type warlord struct {
	*chief
	Banner string
}
type chest struct{ Gold int }
type stray struct{ X int }

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w := NewWorld()
	err := w.Register(
		EntryOf[goblin]("Goblin"),
		EntryOf[chief]("GoblinChief"),
		EntryOf[chest]("Chest"),
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return w
}

func TestRegisterValidation(t *testing.T) {
	w := newTestWorld(t)
	if err := w.Register(EntryOf[stray]("Goblin")); err != ErrDupClass {
		t.Fatalf("expected dup class, got %v", err)
	}
	if err := w.Register(EntryOf[goblin]("Other")); err != ErrDupType {
		t.Fatalf("expected dup type, got %v", err)
	}
	if err := w.Register(EntryOf[stray]("A"), EntryOf[stray]("B")); err != ErrDupType {
		t.Fatalf("expected dup type inside one call, got %v", err)
	}
	if err := w.Register(EntryOf[*stray]("Ptr")); err == nil {
		t.Fatalf("pointer types should be rejected")
	}
	if err := w.Register(EntryOf[stray](" ")); err == nil {
		t.Fatalf("empty class should be rejected")
	}
	if slices.Contains(w.Classes(), "A") {
		t.Fatalf("failed register must not write partially")
	}
	w.Freeze()
	if err := w.Register(EntryOf[stray]("Stray")); err == nil || errs.IsFatal(err) {
		t.Fatalf("frozen register should warn, got %v", err)
	}
}

func TestResolveSpawnOrderAndSubclasses(t *testing.T) {
	w := newTestWorld(t)
	g1, c1, g2, box := &goblin{}, &chief{}, &goblin{}, &chest{}
	wl := &warlord{chief: &chief{}}
	if err := w.Spawn(g1, c1, box, g2, wl); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	got, err := w.Resolve("Goblin")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !slices.Equal(got, []any{g1, c1, g2, wl}) {
		t.Fatalf("unexpected goblins: %v", got)
	}

	w.SetExact(true)
	got, _ = w.Resolve("Goblin")
	if !slices.Equal(got, []any{g1, g2}) {
		t.Fatalf("exact resolve should skip subclasses: %v", got)
	}

	got, _ = w.Resolve("Chest")
	if !slices.Equal(got, []any{box}) {
		t.Fatalf("unexpected chests: %v", got)
	}
}

func TestSpawnValidation(t *testing.T) {
	w := newTestWorld(t)
	g := &goblin{}
	if err := w.Spawn(g); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := w.Spawn(g); err == nil {
		t.Fatalf("double spawn should fail")
	}
	for _, obj := range []any{nil, goblin{}, (*goblin)(nil), &stray{}} {
		if err := w.Spawn(obj); err == nil {
			t.Fatalf("spawn %T should fail", obj)
		}
	}
	if w.Live() != 1 {
		t.Fatalf("unexpected live count %d", w.Live())
	}
	if c, ok := w.ClassOf(&warlord{}); !ok || c != "GoblinChief" {
		t.Fatalf("warlord should belong to GoblinChief, got %q", c)
	}
}

func TestDespawn(t *testing.T) {
	w := newTestWorld(t)
	a, b := &goblin{}, &goblin{}
	w.Spawn(a, b)
	if !w.Despawn(a) || w.Despawn(a) {
		t.Fatalf("despawn should succeed exactly once")
	}
	got, _ := w.Resolve("Goblin")
	if !slices.Equal(got, []any{b}) {
		t.Fatalf("unexpected live goblins %v", got)
	}
}

func TestRedirectOneHop(t *testing.T) {
	w := newTestWorld(t)
	g := &goblin{}
	w.Spawn(g)
	if err := w.Redirect("Orc", "Goblin"); err != nil {
		t.Fatalf("redirect: %v", err)
	}
	if err := w.Redirect("Brute", "Orc"); err != nil {
		t.Fatalf("redirect: %v", err)
	}
	if err := w.Redirect("Goblin", "Chest"); err == nil {
		t.Fatalf("registered class must not be redirected")
	}

	if c, ok := w.FindClass("Orc"); !ok || c != "Goblin" {
		t.Fatalf("one hop should resolve, got %q %v", c, ok)
	}
	got, err := w.Resolve("Orc")
	if err != nil || !slices.Equal(got, []any{g}) {
		t.Fatalf("unexpected resolve through redirect: %v %v", got, err)
	}
	if _, err := w.Resolve("Brute"); !errs.IsKind(err, errs.KindUnresolvedClass) {
		t.Fatalf("two hops should give up, got %v", err)
	}
	if _, err := w.Resolve("goblin"); !errs.IsKind(err, errs.KindUnresolvedClass) || errs.IsFatal(err) {
		t.Fatalf("class lookup is case-sensitive and unresolved is a warning, got %v", err)
	}
}

func TestResolveEmptyClass(t *testing.T) {
	w := newTestWorld(t)
	got, err := w.Resolve("Chest")
	if err != nil || len(got) != 0 {
		t.Fatalf("registered class without instances should be empty, got %v %v", got, err)
	}
}

func TestSummaries(t *testing.T) {
	w := newTestWorld(t)
	w.Spawn(&goblin{}, &goblin{}, &chief{})
	s := w.Summaries()
	// chief embed goblin，與 Resolve("Goblin") 一致
	if len(s) != 3 || s[0].Class != "Goblin" || s[0].Live != 3 || s[1].Live != 1 || s[2].Live != 0 {
		t.Fatalf("unexpected summaries %+v", s)
	}
	got, _ := w.Resolve("Goblin")
	if len(got) != s[0].Live {
		t.Fatalf("summary live=%d, resolve=%d", s[0].Live, len(got))
	}

	w.SetExact(true)
	s = w.Summaries()
	if s[0].Live != 2 || s[1].Live != 1 {
		t.Fatalf("exact summaries %+v", s)
	}
}

func TestContent(t *testing.T) {
	a := fstest.MapFS{
		"fuzz.yaml":  {Data: []byte("Goblin:\n  Health: [1, 100]\n")},
		"notes.txt":  {Data: []byte("ignored")},
		"extra.toml": {Data: []byte("[Chest]\nGold = [0, 10]\n")},
	}
	b := fstest.MapFS{
		"other.json": {Data: []byte(`{"Chest": {"Gold": [1, 2]}}`)},
	}
	c, err := NewContent(a, b)
	if err != nil {
		t.Fatalf("new content: %v", err)
	}
	if !slices.Equal(c.Names(), []string{"extra.toml", "fuzz.yaml", "other.json"}) {
		t.Fatalf("unexpected names %v", c.Names())
	}
	fc, err := c.Load("other.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := fc.Class("Chest"); !ok {
		t.Fatalf("Chest missing")
	}
	for _, bad := range []string{"", "../fuzz.yaml", "notes.txt", ".yaml", "missing.json"} {
		if _, err := c.Load(bad); err == nil {
			t.Fatalf("load %q should fail", bad)
		}
	}
}

func TestContentRejectsDuplicatesAndSubdirs(t *testing.T) {
	a := fstest.MapFS{"fuzz.yaml": {Data: []byte("{}")}}
	b := fstest.MapFS{"fuzz.yaml": {Data: []byte("{}")}}
	if _, err := NewContent(a, b); err == nil {
		t.Fatalf("duplicate names should fail")
	}
	nested := fstest.MapFS{"sub/fuzz.yaml": {Data: []byte("{}")}}
	if _, err := NewContent(nested); err == nil {
		t.Fatalf("subdirectories should fail")
	}
	if _, err := NewContent(); err == nil {
		t.Fatalf("no fs should fail")
	}
}
