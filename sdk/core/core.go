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

package core

import (
	"math"
	"math/bits"
)

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// Float64 的精度與生成方式由 PRNG 決定；區間取樣（含兩端）統一由 Core 以 Uint64 實作，
// 讓不同 PRNG 對同一個 seed 在同一個區間上的行為只取決於 Uint64 序列。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 以指定 seed 建立新的 PRNG。
	//
	// 合約：相同的 seed 必須產生相同的初始內部狀態與輸出序列，
	// 一次 fuzz pass 的結果才能以 seed 重現。
	New(int64) PRNG
}

// DefaultPRNG 實作預設的 PRNGFactory（PCG64）
type DefaultPRNG struct{}

// New 滿足合約
func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// Core 封裝 PRNG，並提供 fuzz 取樣需要的工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// NewWithSeed 以預設 PRNG 建立 Core。
func NewWithSeed(seed int64) *Core {
	return New(Default().New(seed))
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	return src[c.IntN(len(src))]
}

// Float64Closed 回傳 [0,1] 的浮點亂數（53 bits，含 1）。
func (c *Core) Float64Closed() float64 {
	return float64(c.Uint64()>>11) / float64(1<<53-1)
}

// UniformFloat 在 [lo, hi]（含兩端）均勻取樣。
//
// lo > hi 時先交換；lo == hi 時直接回傳 lo。
func (c *Core) UniformFloat(lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo
	}
	u := c.Float64Closed()
	var v float64
	if span := hi - lo; !math.IsInf(span, 0) {
		v = lo + span*u
	} else {
		// 兩端接近 ±MaxFloat64 時 hi-lo 會溢位
		v = lo*(1-u) + hi*u
	}
	return min(max(v, lo), hi)
}

// UniformInt 在 [lo, hi]（含兩端）均勻取樣整數。
func (c *Core) UniformInt(lo, hi int64) int64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	span := uint64(hi) - uint64(lo)
	if span == math.MaxUint64 {
		return int64(c.Uint64())
	}
	return int64(uint64(lo) + c.Uint64N(span+1))
}

// UniformUint 在 [lo, hi]（含兩端）均勻取樣無號整數。
func (c *Core) UniformUint(lo, hi uint64) uint64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	span := hi - lo
	if span == math.MaxUint64 {
		return c.Uint64()
	}
	return lo + c.Uint64N(span+1)
}

// Uint64N 回傳 [0,n) 的無偏亂數（乘法高位 + 拒絕採樣）；n == 0 回傳 0。
func (c *Core) Uint64N(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	if n&(n-1) == 0 {
		return c.Uint64() & (n - 1)
	}
	hi, lo := bits.Mul64(c.Uint64(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(c.Uint64(), n)
		}
	}
	return hi
}
