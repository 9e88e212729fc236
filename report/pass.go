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

// Package report 收集一次 fuzz pass 的結果（mutation、新欄位、warning），並提供統計與輸出。
package report

import (
	"time"

	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/randomizer"
)

// Pass 一次 fuzz pass 的完整結果
type Pass struct {
	Seed     int64          `json:"seed" yaml:"seed"`
	Started  time.Time      `json:"started" yaml:"started"`
	Used     time.Duration  `json:"used_ns" yaml:"used_ns"`
	Targets  []Target       `json:"targets" yaml:"targets"`
	Diffs    []Diff         `json:"diffs" yaml:"diffs"`
	Warnings []Warning      `json:"warnings" yaml:"warnings"`
	Fatal    *Warning       `json:"fatal,omitempty" yaml:"fatal,omitempty"`
	Stats    []FieldSummary `json:"stats" yaml:"stats"` // Done 時計算
}

// Target 一個被處理的物件
type Target struct {
	Class     string                `json:"class" yaml:"class"`
	Type      string                `json:"type" yaml:"type"`
	Index     int                   `json:"index" yaml:"index"` // 在該 class 解析結果中的位置
	Mutations []randomizer.Mutation `json:"mutations" yaml:"mutations"`
}

// Diff 一個型別本次新出現的欄位
type Diff struct {
	Type  string   `json:"type" yaml:"type"`
	Names []string `json:"names" yaml:"names"`
}

// Warning 結構化的錯誤紀錄
type Warning struct {
	Level   string `json:"level" yaml:"level"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Class   string `json:"class,omitempty" yaml:"class,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// NewWarning 由 error 建立 Warning；非 *errs.E 視為 fatal。
func NewWarning(err error, class, typ string) Warning {
	w := Warning{Class: class, Type: typ, Message: err.Error(), Level: errs.ErrLv(errs.Fatal)}
	if e, ok := errs.AsErr(err); ok {
		w.Level = errs.ErrLv(e.ErrLv)
		w.Kind = e.Kind.String()
		if e.Kind == errs.KindNone {
			w.Kind = ""
		}
	}
	return w
}

// Failed pass 是否被 fatal 中止
func (p *Pass) Failed() bool {
	return p.Fatal != nil
}

// Mutations 全部 mutation 數量
func (p *Pass) Mutations() int {
	n := 0
	for _, t := range p.Targets {
		n += len(t.Mutations)
	}
	return n
}

// NewProperties 全部新欄位數量
func (p *Pass) NewProperties() int {
	n := 0
	for _, d := range p.Diffs {
		n += len(d.Names)
	}
	return n
}

// Recorder 在 pass 進行中累積結果，Done 之後回傳 Pass。
type Recorder struct {
	pass   *Pass
	isDone bool
}

func NewRecorder(seed int64) *Recorder {
	return &Recorder{
		pass: &Pass{
			Seed:     seed,
			Started:  time.Now(),
			Targets:  make([]Target, 0, 16),
			Diffs:    make([]Diff, 0, 4),
			Warnings: make([]Warning, 0, 4),
		},
	}
}

// Target 紀錄一個 target 的結果
func (r *Recorder) Target(class, typ string, index int, res randomizer.Result) {
	muts := res.Mutations
	if muts == nil {
		muts = []randomizer.Mutation{}
	}
	r.pass.Targets = append(r.pass.Targets, Target{Class: class, Type: typ, Index: index, Mutations: muts})
	for _, w := range res.Warnings {
		r.Warn(w, class, typ)
	}
}

func (r *Recorder) Diff(typ string, names []string) {
	if names == nil {
		names = []string{}
	}
	r.pass.Diffs = append(r.pass.Diffs, Diff{Type: typ, Names: names})
}

func (r *Recorder) Warn(err error, class, typ string) {
	if err == nil {
		return
	}
	r.pass.Warnings = append(r.pass.Warnings, NewWarning(err, class, typ))
}

// Fail 紀錄 fatal（只保留第一個）
func (r *Recorder) Fail(err error, class, typ string) {
	if err == nil || r.pass.Fatal != nil {
		return
	}
	w := NewWarning(err, class, typ)
	w.Level = errs.ErrLv(errs.Fatal)
	r.pass.Fatal = &w
}

// Done 結束紀錄並鎖定耗時
func (r *Recorder) Done() *Pass {
	if !r.isDone {
		r.pass.Used = time.Since(r.pass.Started)
		r.pass.Stats = r.pass.Summarize()
		r.isDone = true
	}
	return r.pass
}
