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

// Package catalog 提供 fuzz 的外部協作者：
//   - World：class 註冊、存活物件列舉與 class 改名（redirect），實作 Target Resolver。
//   - Content：多個 fs.FS 組成的 fuzz 設定檔目錄。
package catalog

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/zintix-labs/propfuzz/errs"
)

var (
	ErrDupClass = errs.NewFatal("duplicate class name")
	ErrDupType  = errs.NewFatal("duplicate class type")
)

// Entry 一個 class：名稱與其 struct 型別（非指標）
type Entry struct {
	Class string
	Type  reflect.Type
}

// EntryOf 以型別參數建立 Entry
func EntryOf[T any](class string) Entry {
	return Entry{Class: class, Type: reflect.TypeFor[T]()}
}

// Summary 給 API 使用的 class 概要
type Summary struct {
	Class string `json:"class"`
	Type  string `json:"type"`
	Live  int    `json:"live"`
}

// World 存活物件的登記處。
//
// 非併發安全：與 fuzz pass 相同，由 host 序列化所有操作。
type World struct {
	byClass   map[string]Entry
	byType    map[reflect.Type]string
	classes   []string          // 註冊順序
	redirects map[string]string // 舊名 -> 新名
	live      []any             // spawn 順序
	exact     bool
	frozen    bool
}

func NewWorld() *World {
	return &World{
		byClass:   map[string]Entry{},
		byType:    map[reflect.Type]string{},
		classes:   make([]string, 0, 16),
		redirects: map[string]string{},
		live:      make([]any, 0, 64),
	}
}

// Register 全部驗證通過才寫入（兩階段，與設定檔註冊相同）。
func (w *World) Register(entries ...Entry) error {
	if w.frozen {
		return errs.NewWarn("can not register when world already frozen")
	}
	seenClass := map[string]struct{}{}
	seenType := map[reflect.Type]struct{}{}
	for i, e := range entries {
		e.Class = strings.TrimSpace(e.Class)
		entries[i] = e
		if e.Class == "" {
			return errs.NewFatal("class name required")
		}
		if e.Type == nil || e.Type.Kind() != reflect.Struct {
			return errs.NewFatal(fmt.Sprintf("class %s: type must be a struct type, got %v", e.Class, e.Type))
		}
		if _, ok := w.byClass[e.Class]; ok {
			return ErrDupClass
		}
		if _, ok := w.byType[e.Type]; ok {
			return ErrDupType
		}
		if _, ok := seenClass[e.Class]; ok {
			return ErrDupClass
		}
		if _, ok := seenType[e.Type]; ok {
			return ErrDupType
		}
		seenClass[e.Class] = struct{}{}
		seenType[e.Type] = struct{}{}
	}
	for _, e := range entries {
		w.byClass[e.Class] = e
		w.byType[e.Type] = e.Class
		w.classes = append(w.classes, e.Class)
	}
	return nil
}

// Redirect 記錄 class 改名：舊名 from 指向 to。
func (w *World) Redirect(from, to string) error {
	if w.frozen {
		return errs.NewWarn("can not redirect when world already frozen")
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" || from == to {
		return errs.NewFatal(fmt.Sprintf("invalid redirect %q -> %q", from, to))
	}
	if _, ok := w.byClass[from]; ok {
		return errs.NewFatal(fmt.Sprintf("class %s is registered and can not be redirected", from))
	}
	w.redirects[from] = to
	return nil
}

func (w *World) Freeze() {
	w.frozen = true
}

func (w *World) IsFrozen() bool {
	return w.frozen
}

// SetExact true 時 Resolve 只回傳型別完全相同的物件；預設包含 embed 了該 class 的子型別。
func (w *World) SetExact(exact bool) {
	w.exact = exact
}

// Spawn 物件需為已註冊型別（或其子型別）的非 nil 指標。
func (w *World) Spawn(objs ...any) error {
	for _, obj := range objs {
		t, err := structPtr(obj)
		if err != nil {
			return err
		}
		if _, ok := w.classOfType(t); !ok {
			return errs.Warnf("type %s is not a registered class", t)
		}
		if slices.Contains(w.live, obj) {
			return errs.Warnf("object %p already spawned", obj)
		}
	}
	w.live = append(w.live, objs...)
	return nil
}

// Despawn 移除物件，回傳是否存在
func (w *World) Despawn(obj any) bool {
	i := slices.Index(w.live, obj)
	if i < 0 {
		return false
	}
	w.live = slices.Delete(w.live, i, i+1)
	return true
}

// FindClass 名稱對應到已註冊 class；最多跟隨一次 redirect。
func (w *World) FindClass(name string) (string, bool) {
	if _, ok := w.byClass[name]; ok {
		return name, true
	}
	to, ok := w.redirects[name]
	if !ok {
		return "", false
	}
	if _, ok := w.byClass[to]; ok {
		return to, true
	}
	return "", false
}

// Resolve 回傳 class 的所有存活物件（spawn 順序）。找不到 class 回傳 errs.KindUnresolvedClass。
func (w *World) Resolve(class string) ([]any, error) {
	name, ok := w.FindClass(class)
	if !ok {
		return nil, errs.Unresolved(class)
	}
	base := w.byClass[name].Type
	out := make([]any, 0, 8)
	for _, obj := range w.live {
		if w.belongs(reflect.TypeOf(obj).Elem(), base) {
			out = append(out, obj)
		}
	}
	return out, nil
}

// Classes 已註冊的 class（註冊順序）
func (w *World) Classes() []string {
	if len(w.classes) == 0 {
		return nil
	}
	return append([]string(nil), w.classes...)
}

// ClassOf 物件所屬的 class 名稱
func (w *World) ClassOf(obj any) (string, bool) {
	t, err := structPtr(obj)
	if err != nil {
		return "", false
	}
	return w.classOfType(t)
}

// Live 存活物件數
func (w *World) Live() int {
	return len(w.live)
}

// Summaries 每個 class 的存活數，計算方式與 Resolve 相同（含子型別，SetExact 時只算本身）
func (w *World) Summaries() []Summary {
	out := make([]Summary, 0, len(w.classes))
	for _, c := range w.classes {
		n := 0
		base := w.byClass[c].Type
		for _, obj := range w.live {
			if w.belongs(reflect.TypeOf(obj).Elem(), base) {
				n++
			}
		}
		out = append(out, Summary{Class: c, Type: base.String(), Live: n})
	}
	return out
}

// belongs t 是 base 本身，或（非 exact 時）embed 了 base
func (w *World) belongs(t, base reflect.Type) bool {
	return t == base || (!w.exact && embedDepth(t, base, 1) > 0)
}

// classOfType 型別本身已註冊，或 embed 了已註冊型別（取最淺的一層）
func (w *World) classOfType(t reflect.Type) (string, bool) {
	if c, ok := w.byType[t]; ok {
		return c, true
	}
	best, bestDepth := "", -1
	for _, c := range w.classes {
		d := embedDepth(t, w.byClass[c].Type, 1)
		if d > 0 && (bestDepth < 0 || d < bestDepth) {
			best, bestDepth = c, d
		}
	}
	return best, bestDepth > 0
}

func structPtr(obj any) (reflect.Type, error) {
	v := reflect.ValueOf(obj)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, errs.Warnf("object %T must be a non-nil pointer to struct", obj)
	}
	return v.Elem().Type(), nil
}

// 避免遞迴型別無窮展開
const maxEmbedDepth = 16

// embedDepth base 在 t 中被 embed 的最淺層數；沒有回傳 -1
func embedDepth(t, base reflect.Type, depth int) int {
	if depth > maxEmbedDepth || t.Kind() != reflect.Struct {
		return -1
	}
	best := -1
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		var d int
		if ft == base {
			d = depth
		} else {
			d = embedDepth(ft, base, depth+1)
		}
		if d > 0 && (best < 0 || d < best) {
			best = d
		}
	}
	return best
}
