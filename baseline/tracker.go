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

// Package baseline 追蹤每個型別的欄位名稱集合，找出相對於 baseline 新出現的欄位。
//
// baseline 是 ratchet：名稱一旦被記錄就永遠不會再被回報為「新欄位」，
// 即使欄位之後被移除又加回來。
package baseline

import (
	"log/slog"
	"slices"

	"github.com/zintix-labs/propfuzz/errs"
)

// Diff 本次新出現的欄位（fresh − baseline），保留列舉順序。
type Diff struct {
	Key   string
	names []string
	set   map[string]struct{}
}

func NewDiff(key string, names []string) Diff {
	d := Diff{Key: key, set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, ok := d.set[n]; ok {
			continue
		}
		d.set[n] = struct{}{}
		d.names = append(d.names, n)
	}
	return d
}

func (d Diff) Has(name string) bool {
	_, ok := d.set[name]
	return ok
}

func (d Diff) Names() []string {
	return slices.Clone(d.names)
}

func (d Diff) Len() int { return len(d.names) }

func (d Diff) Empty() bool { return len(d.names) == 0 }

// Tracker 執行一次型別的 baseline 比對
type Tracker struct {
	store Store
	log   *slog.Logger
}

func NewTracker(store Store, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Tracker{store: store, log: log}
}

func (t *Tracker) Store() Store { return t.store }

// Track 依序：覆寫 current、讀 baseline、計算 diff、回報、把新名稱併入 baseline。
//
// 所有 Store 錯誤都降級為 warning（回傳於第二個值），比對照常進行。
func (t *Tracker) Track(key string, fresh []string) (Diff, []error) {
	var warns []error
	warn := func(err error) {
		e, ok := errs.AsErr(err)
		if !ok || e.Kind != errs.KindStoreIO || e.ErrLv != errs.Warn {
			e = errs.StoreIO(err, "baseline store failed: "+key)
		}
		t.log.Warn("baseline store failed", "type", key, "kind", e.Kind.String(), "err", e.Error())
		warns = append(warns, e)
	}

	if err := t.store.WriteCurrent(key, fresh); err != nil {
		warn(err)
	}

	known, err := t.store.ReadBaseline(key)
	if err != nil {
		warn(err)
		known = nil
	}
	seen := make(map[string]struct{}, len(known))
	for _, n := range known {
		seen[n] = struct{}{}
	}

	var added []string
	for _, n := range fresh {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		added = append(added, n)
	}
	diff := NewDiff(key, added)

	if diff.Empty() {
		t.log.Info("no new properties", "type", key)
	} else {
		t.log.Info("new properties", "type", key, "names", diff.Names())
	}

	if err := t.store.AppendBaseline(key, added); err != nil {
		warn(err)
	}
	return diff, warns
}
