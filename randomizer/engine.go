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

// Package randomizer 把 class 規則套用到單一 target 的欄位上。
//
// 每個欄位依列舉順序處理：
//  1. 有對應規則：NumericInterval 套 Numeric 欄位、StringPattern 套 String 欄位。
//     NumericInterval 遇到非 Numeric 欄位只警告；StringPattern 遇到非 String 欄位為 fatal。
//  2. 沒有規則但欄位名稱在 baseline diff 中且為 Numeric：套用 fallback 區間。
//  3. 其他欄位不動。
//
// 除 fatal 之外，所有欄位層級的錯誤（含 panic）都轉成 warning，不影響其他欄位。
package randomizer

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/reflector"
	"github.com/zintix-labs/propfuzz/sdk/core"
	"github.com/zintix-labs/propfuzz/spec"
	"github.com/zintix-labs/propfuzz/strgen"
)

// Source 值的來源
type Source uint8

const (
	SourceRule  Source = iota // 設定檔規則
	SourceDrift               // 新欄位 fallback
)

var sourceMap = map[Source]string{
	SourceRule:  "rule",
	SourceDrift: "drift",
}

func (s Source) String() string {
	if v, ok := sourceMap[s]; ok {
		return v
	}
	return "unknown"
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mutation 一次寫入
type Mutation struct {
	Field  string         `json:"field" yaml:"field"`
	Kind   reflector.Kind `json:"-" yaml:"-"`
	Source Source         `json:"source" yaml:"source"`
	Rule   string         `json:"rule" yaml:"rule"`
	Old    string         `json:"old" yaml:"old"`
	New    string         `json:"new" yaml:"new"`

	// 數值欄位：實際取樣值與有效取樣區間（已交集欄位型別範圍）
	Numeric bool    `json:"numeric" yaml:"numeric"`
	Integer bool    `json:"integer,omitempty" yaml:"integer,omitempty"`
	Value   float64 `json:"value" yaml:"value"`
	Lo      float64 `json:"lo" yaml:"lo"`
	Hi      float64 `json:"hi" yaml:"hi"`
}

// Result 一個 target 的處理結果
type Result struct {
	Mutations []Mutation
	Warnings  []error
}

func (r *Result) warn(err error) {
	r.Warnings = append(r.Warnings, err)
}

// Engine 無內部狀態（除了亂數與產生器），可重複用於同一個 pass 的所有 target。
type Engine struct {
	core     *core.Core
	gen      strgen.Generator
	log      *slog.Logger
	fallback spec.NumericInterval
}

// New gen 為 nil 時使用 strgen.Unavailable；log 為 nil 時不輸出。
func New(c *core.Core, gen strgen.Generator, log *slog.Logger) *Engine {
	if gen == nil {
		gen = strgen.Unavailable
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{core: c, gen: gen, log: log, fallback: spec.FallbackInterval}
}

// WithFallback 替換新欄位的 fallback 區間
func (e *Engine) WithFallback(iv spec.NumericInterval) *Engine {
	e.fallback = iv
	return e
}

func (e *Engine) Fallback() spec.NumericInterval { return e.fallback }

// Apply 對一個 target 的欄位套用規則。rules 可為 nil（只剩 drift fallback）。
//
// 回傳的 error 只會是 fatal；fatal 發生時立即停止，已寫入的欄位不回滾。
func (e *Engine) Apply(rules *spec.ClassRule, fields []reflector.Field, diff baseline.Diff) (Result, error) {
	var res Result
	for _, f := range fields {
		if err := e.applyField(rules, f, diff, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (e *Engine) applyField(rules *spec.ClassRule, f reflector.Field, diff baseline.Diff, res *Result) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			res.warn(errs.Warnf("field %s panicked while mutating: %v", f.Name, r))
		}
	}()

	var (
		rule spec.PropertyRule
		ok   bool
	)
	if rules != nil {
		rule, ok = rules.Rule(f.Name)
	}
	if !ok {
		if diff.Has(f.Name) && f.Kind == reflector.KindNumeric {
			e.numeric(f, e.fallback, SourceDrift, res)
		}
		return nil
	}

	switch r := rule.(type) {
	case spec.NumericInterval:
		if f.Kind != reflector.KindNumeric {
			res.warn(errs.Mismatch(false, "property %s is %s, rule %s needs a numeric field", f.Name, f.Kind, r))
			return nil
		}
		e.numeric(f, r, SourceRule, res)
	case spec.StringPattern:
		if f.Kind != reflector.KindString {
			return errs.Mismatch(true, "property %s is %s, pattern %q needs a string, symbol or text field", f.Name, f.Kind, r.Text)
		}
		e.text(f, r, res)
	default:
		res.warn(errs.Mismatch(false, "property %s has unsupported rule %T", f.Name, rule))
	}
	return nil
}

func (e *Engine) text(f reflector.Field, r spec.StringPattern, res *Result) {
	old := f.Display()
	s, err := e.gen.Generate(r.Text)
	if err != nil {
		if !errs.IsKind(err, errs.KindGeneratorUnavailable) {
			err = errs.Unavailable(err, "string generator failed for "+f.Name)
		}
		res.warn(err)
		return
	}
	if err := f.SetString(s); err != nil {
		res.warn(err)
		return
	}
	m := Mutation{Field: f.Name, Kind: f.Kind, Source: SourceRule, Rule: r.String(), Old: old, New: f.Display()}
	e.log.Debug("mutate", "field", m.Field, "old", m.Old, "new", m.New, "source", m.Source.String())
	res.Mutations = append(res.Mutations, m)
}

func (e *Engine) numeric(f reflector.Field, iv spec.NumericInterval, src Source, res *Result) {
	iv = iv.Normalize()
	old := f.Display()
	m := Mutation{Field: f.Name, Kind: f.Kind, Source: src, Rule: iv.String(), Old: old, Numeric: true}

	var err error
	switch f.Num {
	case reflector.NumInt:
		tlo, thi := f.IntBounds()
		lo, hi, ok := intPoints(iv, float64(tlo), float64(thi))
		if !ok {
			res.warn(errs.Mismatch(false, "interval %s has no value representable by %s (%s)", iv, f.Name, f.Type()))
			return
		}
		a, b := toInt(lo, tlo, thi), toInt(hi, tlo, thi)
		v := e.core.UniformInt(a, b)
		err = f.SetInt(v)
		m.Integer, m.Value, m.Lo, m.Hi = true, float64(v), float64(a), float64(b)
	case reflector.NumUint:
		umax := f.UintMax()
		lo, hi, ok := intPoints(iv, 0, float64(umax))
		if !ok {
			res.warn(errs.Mismatch(false, "interval %s has no value representable by %s (%s)", iv, f.Name, f.Type()))
			return
		}
		a, b := toUint(lo, umax), toUint(hi, umax)
		v := e.core.UniformUint(a, b)
		err = f.SetUint(v)
		m.Integer, m.Value, m.Lo, m.Hi = true, float64(v), float64(a), float64(b)
	case reflector.NumFloat:
		if f.Type().Bits() == 32 {
			a, b, ok := float32Points(iv)
			if !ok {
				res.warn(errs.Mismatch(false, "interval %s has no value representable by %s (%s)", iv, f.Name, f.Type()))
				return
			}
			v := min(max(float32(e.core.UniformFloat(float64(a), float64(b))), a), b)
			err = f.SetFloat(float64(v))
			m.Value, m.Lo, m.Hi = float64(v), float64(a), float64(b)
			break
		}
		v := e.core.UniformFloat(iv.Min, iv.Max)
		err = f.SetFloat(v)
		m.Value, m.Lo, m.Hi = v, iv.Min, iv.Max
	default:
		err = errs.Mismatch(false, "field %s has unknown numeric representation", f.Name)
	}
	if err != nil {
		res.warn(err)
		return
	}
	m.New = f.Display()
	e.log.Debug("mutate", "field", m.Field, "old", m.Old, "new", m.New, "source", m.Source.String())
	res.Mutations = append(res.Mutations, m)
}

// intPoints 區間內的整數點與型別範圍 [tlo, thi] 的交集（以 float64 表示）。
func intPoints(iv spec.NumericInterval, tlo, thi float64) (float64, float64, bool) {
	lo, hi := math.Ceil(iv.Min), math.Floor(iv.Max)
	lo, hi = max(lo, tlo), min(hi, thi)
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// float32Points 區間內最小與最大的 float32（向區間內捨入）。
// 區間落在兩個相鄰 float32 之間時（例如 [0.1, 0.1]）沒有可寫入的值。
func float32Points(iv spec.NumericInterval) (float32, float32, bool) {
	lo, hi := max(iv.Min, -math.MaxFloat32), min(iv.Max, math.MaxFloat32)
	if lo > hi {
		return 0, 0, false
	}
	a, b := float32(lo), float32(hi)
	if float64(a) < lo {
		a = math.Nextafter32(a, math.MaxFloat32)
	}
	if float64(b) > hi {
		b = math.Nextafter32(b, -math.MaxFloat32)
	}
	if a > b {
		return 0, 0, false
	}
	return a, b, true
}

// toInt float64(MaxInt64) 會進位成 2^63，需先比較再轉型。
func toInt(x float64, tlo, thi int64) int64 {
	if x <= float64(tlo) {
		return tlo
	}
	if x >= float64(thi) {
		return thi
	}
	return int64(x)
}

func toUint(x float64, umax uint64) uint64 {
	if x <= 0 {
		return 0
	}
	if x >= float64(umax) {
		return umax
	}
	return uint64(x)
}

// String 方便 log
func (m Mutation) String() string {
	return fmt.Sprintf("%s: %s -> %s (%s %s)", m.Field, m.Old, m.New, m.Source, m.Rule)
}
