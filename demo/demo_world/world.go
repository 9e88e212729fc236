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

// Package demo_world 示範用的遊戲物件與世界。
//
// 涵蓋欄位列舉會遇到的情境：
//   - Enemy：數值、字串、Symbol、Text 與無法亂數的欄位。
//   - Goblin 嵌入 Enemy、GoblinChief 嵌入 Goblin（subclass 解析）。
//   - GoblinChief 的 *Mount 可能為 nil（其欄位被略過），Notes 以 fuzz:"-" 排除。
//   - Chest 以 manifest 提供 unexported 欄位。
//   - Orc 是 Enemy 的舊 class 名稱（redirect）。
package demo_world

import (
	"github.com/zintix-labs/propfuzz/catalog"
	"github.com/zintix-labs/propfuzz/reflector"
)

type Enemy struct {
	Health  int
	Speed   float32
	Name    string
	Faction reflector.Symbol
	Title   reflector.Text
	Loot    []string
}

type Goblin struct {
	Enemy
	Mana float64
	Clan reflector.Symbol
}

// Mount 坐騎；沒有坐騎時為 nil
type Mount struct {
	Stamina uint16
	Breed   string
}

type GoblinChief struct {
	Goblin
	*Mount
	Rage  uint8
	Notes string `fuzz:"-"`
}

// Chest 欄位皆為 unexported，以 manifest 開放給 fuzz。
type Chest struct {
	gold   uint32
	label  string
	weight float64
	locked bool
}

func NewChest(gold uint32, label string) *Chest {
	return &Chest{gold: gold, label: label, weight: 10, locked: true}
}

func (c *Chest) Gold() uint32    { return c.gold }
func (c *Chest) Label() string   { return c.label }
func (c *Chest) Weight() float64 { return c.weight }
func (c *Chest) Locked() bool    { return c.locked }

func (c *Chest) FuzzFields() ([]reflector.Field, error) {
	ptrs := []struct {
		name string
		ptr  any
	}{
		{"Gold", &c.gold},
		{"Label", &c.label},
		{"Weight", &c.weight},
		{"Locked", &c.locked},
	}
	out := make([]reflector.Field, 0, len(ptrs))
	for _, p := range ptrs {
		f, err := reflector.FieldOf(p.name, p.ptr)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Entries 示範世界的 class 註冊表
func Entries() []catalog.Entry {
	return []catalog.Entry{
		catalog.EntryOf[Enemy]("Enemy"),
		catalog.EntryOf[Goblin]("Goblin"),
		catalog.EntryOf[GoblinChief]("GoblinChief"),
		catalog.EntryOf[Chest]("Chest"),
	}
}

// NewWorld 建立並凍結示範世界：
//
//	Enemy x2、Goblin x3、GoblinChief x2（一個有坐騎）、Chest x2，Orc -> Enemy。
func NewWorld() (*catalog.World, error) {
	w := catalog.NewWorld()
	if err := w.Register(Entries()...); err != nil {
		return nil, err
	}
	if err := w.Redirect("Orc", "Enemy"); err != nil {
		return nil, err
	}
	w.Freeze()
	if err := Populate(w); err != nil {
		return nil, err
	}
	return w, nil
}

// Populate 產生示範物件
func Populate(w *catalog.World) error {
	objs := []any{
		&Enemy{Health: 50, Speed: 1, Name: "bandit", Faction: reflector.NewSymbol("outlaws"), Title: reflector.TextFromString("Bandit")},
		&Enemy{Health: 80, Speed: 0.8, Name: "orc", Faction: reflector.NewSymbol("horde"), Title: reflector.Text{Namespace: "mobs", Key: "orc", Source: "Orc"}},
		&Goblin{Enemy: Enemy{Health: 20, Name: "grub"}, Mana: 5, Clan: reflector.NewSymbol("red_hand")},
		&Goblin{Enemy: Enemy{Health: 22, Name: "snik"}, Mana: 3},
		&Goblin{Enemy: Enemy{Health: 18, Name: "zog", Loot: []string{"bone"}}, Mana: 8},
		&GoblinChief{Goblin: Goblin{Enemy: Enemy{Health: 120, Name: "grotsnik"}}, Rage: 10, Notes: "boss"},
		&GoblinChief{Goblin: Goblin{Enemy: Enemy{Health: 140, Name: "skarsnik"}}, Mount: &Mount{Stamina: 40, Breed: "wolf"}},
		NewChest(100, "wooden"),
		NewChest(900, "golden"),
	}
	return w.Spawn(objs...)
}
