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

package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// 卡方檢定每格期望次數下限
const minExpected = 5

// 卡方檢定最大分格數
const maxBins = 10

// FieldSummary 同一個 (型別, 欄位, 有效區間) 的數值取樣統計
type FieldSummary struct {
	Type    string  `json:"type" yaml:"type"`
	Field   string  `json:"field" yaml:"field"`
	Source  string  `json:"source" yaml:"source"`
	Integer bool    `json:"integer" yaml:"integer"`
	Lo      float64 `json:"lo" yaml:"lo"`
	Hi      float64 `json:"hi" yaml:"hi"`
	Count   int     `json:"count" yaml:"count"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Std     float64 `json:"std" yaml:"std"`
	// 均勻性卡方檢定的 p 值；樣本不足時為 nil
	PValue *float64 `json:"p_value,omitempty" yaml:"p_value,omitempty"`
	// 超出有效區間的樣本數（正常應為 0）
	Outside int `json:"outside" yaml:"outside"`
}

type summaryKey struct {
	typ, field, source string
	integer            bool
	lo, hi             float64
}

// Summarize 彙總所有數值 mutation。順序：型別、欄位、區間。
func (p *Pass) Summarize() []FieldSummary {
	groups := map[summaryKey][]float64{}
	for _, t := range p.Targets {
		for _, m := range t.Mutations {
			if !m.Numeric {
				continue
			}
			k := summaryKey{typ: t.Type, field: m.Field, source: m.Source.String(), integer: m.Integer, lo: m.Lo, hi: m.Hi}
			groups[k] = append(groups[k], m.Value)
		}
	}
	keys := make([]summaryKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.typ != b.typ {
			return a.typ < b.typ
		}
		if a.field != b.field {
			return a.field < b.field
		}
		if a.lo != b.lo {
			return a.lo < b.lo
		}
		return a.hi < b.hi
	})

	out := make([]FieldSummary, 0, len(keys))
	for _, k := range keys {
		xs := groups[k]
		s := FieldSummary{
			Type: k.typ, Field: k.field, Source: k.source, Integer: k.integer,
			Lo: k.lo, Hi: k.hi, Count: len(xs),
			Min: floats.Min(xs), Max: floats.Max(xs),
		}
		if len(xs) > 1 {
			s.Mean, s.Std = stat.MeanStdDev(xs, nil)
		} else {
			s.Mean = xs[0]
		}
		for _, x := range xs {
			if x < k.lo || x > k.hi {
				s.Outside++
			}
		}
		if pv, ok := uniformPValue(xs, k.lo, k.hi, k.integer); ok {
			s.PValue = &pv
		}
		out = append(out, s)
	}
	return out
}

// uniformPValue 以卡方檢定 xs 是否在 [lo, hi] 上均勻分布。
//
// 整數欄位的分格以整數點計算期望次數（每格整數點數不一定相同）。
func uniformPValue(xs []float64, lo, hi float64, integer bool) (float64, bool) {
	n := len(xs)
	if hi <= lo {
		return 0, false
	}
	k := min(maxBins, n/minExpected)
	var points float64
	if integer {
		points = hi - lo + 1
		if points > 1<<53 {
			return 0, false
		}
		k = min(k, int(points))
	}
	if k < 2 {
		return 0, false
	}

	obs := make([]float64, k)
	exp := make([]float64, k)
	if integer {
		// 第 b 格包含 i*k/points == b 的整數點 i
		for b := range k {
			from := math.Ceil(float64(b) * points / float64(k))
			to := math.Ceil(float64(b+1) * points / float64(k))
			exp[b] = float64(n) * (to - from) / points
		}
		for _, x := range xs {
			i := x - lo
			b := int(math.Floor(i * float64(k) / points))
			obs[clampBin(b, k)]++
		}
	} else {
		for b := range k {
			exp[b] = float64(n) / float64(k)
		}
		w := hi - lo
		for _, x := range xs {
			b := int((x - lo) / w * float64(k))
			obs[clampBin(b, k)]++
		}
	}
	for _, e := range exp {
		if e <= 0 {
			return 0, false
		}
	}
	chi2 := stat.ChiSquare(obs, exp)
	dist := distuv.ChiSquared{K: float64(k - 1)}
	return 1 - dist.CDF(chi2), true
}

func clampBin(b, k int) int {
	if b < 0 {
		return 0
	}
	if b >= k {
		return k - 1
	}
	return b
}
