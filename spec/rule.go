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

package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/zintix-labs/propfuzz/errs"
)

// PropertyRule 是單一欄位的隨機化規則。
//
// 這是封閉集合：只有 NumericInterval 與 StringPattern 兩種實作。
// 使用端請以 type switch 窮舉處理。
type PropertyRule interface {
	isPropertyRule()
	String() string
}

// NumericInterval 數值區間 [Min, Max]（含兩端）。
//
// 載入時保留設定檔原樣；Min > Max 的區間在取樣時交換（見 Normalize）。
type NumericInterval struct {
	Min float64
	Max float64
}

func (NumericInterval) isPropertyRule() {}

func (n NumericInterval) String() string {
	return fmt.Sprintf("[%s, %s]", fmtNum(n.Min), fmtNum(n.Max))
}

// Inverted 回報 Min > Max。
func (n NumericInterval) Inverted() bool {
	return n.Min > n.Max
}

// Normalize 回傳 Min <= Max 的區間。
func (n NumericInterval) Normalize() NumericInterval {
	if n.Inverted() {
		return NumericInterval{Min: n.Max, Max: n.Min}
	}
	return n
}

// Contains 以正規化後的區間判斷 v 是否落在 [Min, Max]。
func (n NumericInterval) Contains(v float64) bool {
	m := n.Normalize()
	return v >= m.Min && v <= m.Max
}

// StringPattern 交給字串產生器的 pattern。
type StringPattern struct {
	Text string
}

func (StringPattern) isPropertyRule() {}

func (s StringPattern) String() string {
	return strconv.Quote(s.Text)
}

// FallbackInterval 新欄位（baseline 沒見過）且沒有規則時使用的區間。
var FallbackInterval = NumericInterval{Min: 0, Max: 1_000_000}

// ClassRule 單一 class 的 property -> rule 對照表（保留設定檔順序）。
type ClassRule struct {
	Class string
	rules map[string]PropertyRule
	order []string
}

func newClassRule(class string) *ClassRule {
	return &ClassRule{
		Class: class,
		rules: make(map[string]PropertyRule, 8),
		order: make([]string, 0, 8),
	}
}

// set 回傳 false 代表覆蓋了既有 property。
func (c *ClassRule) set(prop string, r PropertyRule) bool {
	_, dup := c.rules[prop]
	if !dup {
		c.order = append(c.order, prop)
	}
	c.rules[prop] = r
	return !dup
}

// Rule 名稱比對為精確比對（大小寫敏感）。
func (c *ClassRule) Rule(prop string) (PropertyRule, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.rules[prop]
	return r, ok
}

// Names 依設定檔順序回傳 property 名稱。
func (c *ClassRule) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

func (c *ClassRule) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// FuzzConfig class -> ClassRule。載入完成後視為唯讀。
type FuzzConfig struct {
	classes  map[string]*ClassRule
	order    []string
	rejected []*errs.E
}

func newFuzzConfig() *FuzzConfig {
	return &FuzzConfig{
		classes: make(map[string]*ClassRule, 8),
		order:   make([]string, 0, 8),
	}
}

func (fc *FuzzConfig) set(cr *ClassRule) bool {
	_, dup := fc.classes[cr.Class]
	if !dup {
		fc.order = append(fc.order, cr.Class)
	}
	fc.classes[cr.Class] = cr
	return !dup
}

func (fc *FuzzConfig) reject(e *errs.E) {
	fc.rejected = append(fc.rejected, e)
}

// Classes 依設定檔順序回傳通過檢查的 class 名稱。
func (fc *FuzzConfig) Classes() []string {
	if fc == nil {
		return nil
	}
	return append([]string(nil), fc.order...)
}

func (fc *FuzzConfig) Class(name string) (*ClassRule, bool) {
	if fc == nil {
		return nil, false
	}
	cr, ok := fc.classes[name]
	return cr, ok
}

func (fc *FuzzConfig) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.order)
}

// Rejected 載入時被拒絕的 entry（皆為 errs.KindConfigEntry，Warn 等級）。
func (fc *FuzzConfig) Rejected() []*errs.E {
	if fc == nil {
		return nil
	}
	return append([]*errs.E(nil), fc.rejected...)
}

// MarshalJSON 依原順序輸出回設定檔格式。
func (fc *FuzzConfig) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, class := range fc.Classes() {
		if i > 0 {
			b.WriteByte(',')
		}
		writeKey(&b, class)
		cr := fc.classes[class]
		b.WriteByte('{')
		for j, prop := range cr.order {
			if j > 0 {
				b.WriteByte(',')
			}
			writeKey(&b, prop)
			switch r := cr.rules[prop].(type) {
			case NumericInterval:
				b.WriteString("[" + jsonNum(r.Min) + "," + jsonNum(r.Max) + "]")
			case StringPattern:
				s, err := json.Marshal(r.Text)
				if err != nil {
					return nil, err
				}
				b.Write(s)
			}
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeKey(b *bytes.Buffer, k string) {
	s, _ := json.Marshal(k)
	b.Write(s)
	b.WriteByte(':')
}

func jsonNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func fmtNum(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
