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

// Package reflector 列舉 target 上所有可從外部寫入的欄位，並分類為 Numeric / String / Other。
//
// 兩種來源：
//  1. 反射：target 為 *struct，取所有可見、可寫入的 exported 欄位
//     （含 embedded struct 提升上來的欄位，宣告順序，外層同名欄位遮蔽內層）。
//  2. Manifest：target 實作 Fielder，自行回傳欄位清單（例如欄位存在 unexported storage 時）。
//
// 同一個型別重複列舉時順序固定，baseline diff 依賴這個性質。
package reflector

import (
	"reflect"
	"slices"
	"sync"

	"github.com/zintix-labs/propfuzz/errs"
)

// Fielder 由 target 自行提供欄位清單（explicit manifest）。
type Fielder interface {
	FuzzFields() ([]Field, error)
}

// Classed 讓 target 自訂 class 名稱與 baseline key。
type Classed interface {
	FuzzClass() string
}

// Enumerator 欄位列舉能力；Reflect 為預設實作。
type Enumerator interface {
	Enumerate(target any) ([]Field, error)
}

// Reflect 以 reflect 實作 Enumerator
type Reflect struct{}

func (Reflect) Enumerate(target any) ([]Field, error) {
	return Enumerate(target)
}

// 型別 -> 欄位 index 路徑
var plans sync.Map

// Enumerate 回傳 target 的欄位（順序固定）。
func Enumerate(target any) ([]Field, error) {
	if fd, ok := target.(Fielder); ok {
		fs, err := fd.FuzzFields()
		if err != nil {
			return nil, errs.Wrap(err, "manifest enumerate failed")
		}
		return fs, nil
	}
	rv := reflect.ValueOf(target)
	if !rv.IsValid() {
		return nil, errs.NewWarn("nil target")
	}
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, errs.Warnf("target %T must be a non-nil pointer to struct", target)
	}
	ev := rv.Elem()
	if ev.Kind() != reflect.Struct {
		return nil, errs.Warnf("target %T must be a non-nil pointer to struct", target)
	}

	plan := planOf(ev.Type())
	out := make([]Field, 0, len(plan))
	for _, p := range plan {
		fv, err := ev.FieldByIndexErr(p.index)
		if err != nil {
			// 經過 nil 的 embedded pointer
			continue
		}
		if !fv.CanSet() {
			continue
		}
		out = append(out, classify(p.name, fv))
	}
	return out, nil
}

type step struct {
	name  string
	index []int
}

func planOf(t reflect.Type) []step {
	if v, ok := plans.Load(t); ok {
		return v.([]step)
	}
	var (
		plan     []step
		excluded [][]int
	)
	for _, sf := range reflect.VisibleFields(t) {
		if under(sf.Index, excluded) {
			continue
		}
		if sf.Tag.Get("fuzz") == "-" {
			excluded = append(excluded, sf.Index)
			continue
		}
		if sf.Anonymous && embedsStruct(sf.Type) {
			continue
		}
		if !sf.IsExported() {
			continue
		}
		plan = append(plan, step{name: sf.Name, index: sf.Index})
	}
	v, _ := plans.LoadOrStore(t, plan)
	return v.([]step)
}

func embedsStruct(t reflect.Type) bool {
	if t == symbolType || t == textType {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func under(idx []int, prefixes [][]int) bool {
	for _, p := range prefixes {
		if len(idx) > len(p) && slices.Equal(idx[:len(p)], p) {
			return true
		}
	}
	return false
}

// FieldOf 由指標建立 Field，供 Fielder 實作 manifest 使用。
func FieldOf(name string, ptr any) (Field, error) {
	rv := reflect.ValueOf(ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return Field{}, errs.Warnf("field %s: want a non-nil pointer, got %T", name, ptr)
	}
	return classify(name, rv.Elem()), nil
}

// Names 欄位名稱（保留列舉順序）
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// TypeKey baseline 紀錄的 key：Classed.FuzzClass() 或含 import path 的型別名稱
// （例如 github.com/zintix-labs/propfuzz/demo/demo_world.Goblin）。
//
// 同一個 package 內同名的區域型別共用 key，需要區分時請實作 Classed。
func TypeKey(target any) string {
	if c, ok := target.(Classed); ok {
		return c.FuzzClass()
	}
	t := reflect.TypeOf(target)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ClassName target 的 class 名稱：Classed.FuzzClass() 或 Go 型別名稱。
func ClassName(target any) string {
	if c, ok := target.(Classed); ok {
		return c.FuzzClass()
	}
	t := reflect.TypeOf(target)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
