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

package demo_world

import (
	"slices"
	"testing"

	"github.com/zintix-labs/propfuzz/reflector"
)

func TestNewWorld(t *testing.T) {
	w, err := NewWorld()
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	if w.Live() != 9 {
		t.Fatalf("live: %d", w.Live())
	}
	cases := []struct {
		class string
		n     int
	}{
		{"Enemy", 7}, // 含 Goblin 與 GoblinChief
		{"Orc", 7},
		{"Goblin", 5},
		{"GoblinChief", 2},
		{"Chest", 2},
	}
	for _, c := range cases {
		got, err := w.Resolve(c.class)
		if err != nil {
			t.Fatalf("resolve %s: %v", c.class, err)
		}
		if len(got) != c.n {
			t.Fatalf("%s: got %d want %d", c.class, len(got), c.n)
		}
	}
	if _, err := w.Resolve("Dragon"); err == nil {
		t.Fatalf("Dragon should be unresolved")
	}
}

func TestChiefFields(t *testing.T) {
	fs, err := reflector.Enumerate(&GoblinChief{})
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	want := []string{"Health", "Speed", "Name", "Faction", "Title", "Loot", "Mana", "Clan", "Rage"}
	if got := reflector.Names(fs); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	fs, _ = reflector.Enumerate(&GoblinChief{Mount: &Mount{}})
	if got := reflector.Names(fs); !slices.Contains(got, "Stamina") || !slices.Contains(got, "Breed") {
		t.Fatalf("mounted chief should expose mount fields: %v", got)
	}
}

func TestChestManifest(t *testing.T) {
	c := NewChest(1, "x")
	fs, err := reflector.Enumerate(c)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(fs) != 4 || fs[0].Kind != reflector.KindNumeric || fs[3].Kind != reflector.KindOther {
		t.Fatalf("fields: %v", fs)
	}
	if err := fs[0].SetUint(77); err != nil || c.Gold() != 77 {
		t.Fatalf("manifest write: %v gold=%d", err, c.Gold())
	}
	if reflector.TypeKey(c) != "github.com/zintix-labs/propfuzz/demo/demo_world.Chest" {
		t.Fatalf("type key: %s", reflector.TypeKey(c))
	}
}
