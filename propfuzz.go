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

// Package propfuzz 提供 fuzz pass 的「組裝入口（assembler）」與「執行入口（orchestrator）」。
//
// 一次 pass 需要下列地基，由 New 的 Options 明確注入：
//  1. Config：設定檔解析結果（class -> property -> rule），決定要跑哪些 class、每個欄位怎麼亂數。
//  2. Resolver：依 class 名稱找出存活物件（target），最多追一層 redirect。
//  3. Store：每個型別的 current / baseline 欄位名稱紀錄（ratchet），用來偵測新欄位。
//  4. Generator：依 pattern 產生字串的能力；未指定時使用內建 regexp 產生器。
//
// 執行流程（Run）：
//   - 依設定檔順序處理每個 class：解析 target（找不到 class 只警告，不中止）。
//   - 每個 target：列舉欄位 -> 該型別本次 pass 第一次出現時計算 baseline diff -> 套用規則。
//   - 同一型別在同一 pass 只計算一次 diff，之後的 target 共用。
//   - 除了兩種 fatal（設定檔無法解析、StringPattern 套在非字串欄位），所有錯誤都記成 warning。
//   - pass 非交易性：fatal 中止時已寫入的欄位不回滾。
//
// 注意：pass 之間共用 Store 時必須由呼叫端序列化（同一個 Fuzzer 內部已互斥）。
package propfuzz

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math"
	"math/big"
	"reflect"
	"sync"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/randomizer"
	"github.com/zintix-labs/propfuzz/reflector"
	"github.com/zintix-labs/propfuzz/report"
	"github.com/zintix-labs/propfuzz/sdk/core"
	"github.com/zintix-labs/propfuzz/spec"
	"github.com/zintix-labs/propfuzz/strgen"
	"github.com/zintix-labs/propfuzz/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 依 class 名稱回傳存活物件（順序即處理順序）。
//
// 找不到 class 時回傳 error（通常為 errs.KindUnresolvedClass），不應 panic。
type Resolver interface {
	Resolve(class string) ([]any, error)
}

// ResolverFunc 將函式轉成 Resolver
type ResolverFunc func(class string) ([]any, error)

func (f ResolverFunc) Resolve(class string) ([]any, error) { return f(class) }

// Options New 的參數
type Options struct {
	Config     *spec.FuzzConfig      // 必填
	Resolver   Resolver              // Run 必填；只用 RunTargets 時可省略
	Store      baseline.Store        // nil 時使用 MemStore（不跨 process 保存）
	Generator  strgen.Generator      // nil 時使用 strgen.Regex
	Enumerator reflector.Enumerator  // nil 時使用 reflector.Reflect
	Seed       int64                 // 0 時由 crypto/rand 產生
	Log        *slog.Logger          // nil 時不輸出
	Fallback   *spec.NumericInterval // 新欄位的 fallback 區間；nil 為 [0, 1000000]
	Tracer     trace.Tracer          // nil 時使用全域 provider
	OnTarget   func(report.Target)   // 每個 target 處理完後呼叫（進度、即時輸出）
}

// Fuzzer 持有一次或多次 pass 所需的全部元件。
//
// 多次 Run 共用同一個亂數核心：第一次 pass 可由 Seed 重現，之後的 pass 接續同一序列。
type Fuzzer struct {
	mu       sync.Mutex
	cfg      *spec.FuzzConfig
	resolver Resolver
	tracker  *baseline.Tracker
	enum     reflector.Enumerator
	engine   *randomizer.Engine
	seed     int64
	log      *slog.Logger
	tracer   trace.Tracer
	onTarget func(report.Target)
}

// New 組裝 Fuzzer
func New(opt Options) (*Fuzzer, error) {
	if opt.Config == nil {
		return nil, errs.NewFatal("fuzz config required")
	}
	log := opt.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	store := opt.Store
	if store == nil {
		store = baseline.NewMemStore()
	}
	seed := opt.Seed
	if seed == 0 {
		s, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			return nil, errs.Wrap(err, "generate seed failed")
		}
		seed = s.Int64() + 1
	}
	c := core.NewWithSeed(seed)
	gen := opt.Generator
	if gen == nil {
		gen = strgen.NewRegex(c)
	}
	enum := opt.Enumerator
	if enum == nil {
		enum = reflector.Reflect{}
	}
	tracer := opt.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	engine := randomizer.New(c, gen, log)
	if opt.Fallback != nil {
		engine.WithFallback(*opt.Fallback)
	}
	return &Fuzzer{
		cfg:      opt.Config,
		resolver: opt.Resolver,
		tracker:  baseline.NewTracker(store, log),
		enum:     enum,
		engine:   engine,
		seed:     seed,
		log:      log,
		tracer:   tracer,
		onTarget: opt.OnTarget,
	}, nil
}

func (f *Fuzzer) Seed() int64 { return f.seed }

func (f *Fuzzer) Config() *spec.FuzzConfig { return f.cfg }

func (f *Fuzzer) Store() baseline.Store { return f.tracker.Store() }

// Run 依設定檔的 class 順序，透過 Resolver 找 target 並執行一次 pass。
//
// 回傳的 Pass 永遠不為 nil；error 只在 fatal 或 ctx 取消時回傳（Pass.Fatal 同步紀錄）。
func (f *Fuzzer) Run(ctx context.Context) (*report.Pass, error) {
	if f.resolver == nil {
		return nil, errs.NewFatal("resolver required")
	}
	return f.run(ctx, nil, false)
}

// RunTargets 以呼叫端給定的 target 清單取代 Resolver：每個 class 都原樣使用同一份清單。
func (f *Fuzzer) RunTargets(ctx context.Context, targets []any) (*report.Pass, error) {
	return f.run(ctx, targets, true)
}

// pass 內的共用狀態
type passState struct {
	rec   *report.Recorder
	diffs map[string]baseline.Diff
}

func (f *Fuzzer) run(ctx context.Context, explicit []any, useList bool) (*report.Pass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, span := f.tracer.Start(ctx, "propfuzz.pass", trace.WithAttributes(
		attribute.Int64("propfuzz.seed", f.seed),
		attribute.Int("propfuzz.classes", f.cfg.Len()),
		attribute.Bool("propfuzz.explicit_targets", useList),
	))
	defer span.End()

	st := &passState{rec: report.NewRecorder(f.seed), diffs: make(map[string]baseline.Diff, 8)}
	for _, e := range f.cfg.Rejected() {
		f.log.WarnContext(ctx, "config entry rejected", "kind", e.Kind.String(), "err", e.Error())
		st.rec.Warn(e, "", "")
	}

	var fatal error
	for _, class := range f.cfg.Classes() {
		if err := ctx.Err(); err != nil {
			fatal = errs.Wrap(err, "pass canceled")
			st.rec.Fail(fatal, class, "")
			break
		}
		rules, _ := f.cfg.Class(class)
		if err := f.runClass(ctx, st, class, rules, explicit, useList); err != nil {
			fatal = err
			break
		}
	}

	p := st.rec.Done()
	span.SetAttributes(
		attribute.Int("propfuzz.targets", len(p.Targets)),
		attribute.Int("propfuzz.mutations", p.Mutations()),
		attribute.Int("propfuzz.new_properties", p.NewProperties()),
		attribute.Int("propfuzz.warnings", len(p.Warnings)),
	)
	if fatal != nil {
		span.RecordError(fatal)
		span.SetStatus(codes.Error, fatal.Error())
		f.log.ErrorContext(ctx, "pass aborted", "seed", f.seed, "err", fatal.Error())
		return p, fatal
	}
	f.log.InfoContext(ctx, "pass done", "seed", f.seed, "targets", len(p.Targets), "mutations", p.Mutations(), "warnings", len(p.Warnings), "used", p.Used.String())
	return p, nil
}

func (f *Fuzzer) runClass(ctx context.Context, st *passState, class string, rules *spec.ClassRule, explicit []any, useList bool) error {
	ctx, span := f.tracer.Start(ctx, "propfuzz.class", trace.WithAttributes(attribute.String("propfuzz.class", class)))
	defer span.End()

	targets := explicit
	if !useList {
		ts, err := f.resolver.Resolve(class)
		if err != nil {
			if !errs.IsKind(err, errs.KindUnresolvedClass) {
				e := errs.Unresolved(class)
				e.Cause = err
				err = e
			}
			f.log.WarnContext(ctx, "class unresolved", "class", class, "kind", errs.KindUnresolvedClass.String(), "err", err.Error())
			span.RecordError(err)
			st.rec.Warn(err, class, "")
			return nil
		}
		targets = ts
	}
	span.SetAttributes(attribute.Int("propfuzz.targets", len(targets)))
	if len(targets) == 0 {
		f.log.InfoContext(ctx, "no live targets", "class", class)
		return nil
	}

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			e := errs.Wrap(err, "pass canceled")
			st.rec.Fail(e, class, "")
			return e
		}
		if isNil(t) {
			f.log.DebugContext(ctx, "skip nil target", "class", class, "index", i)
			continue
		}
		if err := f.runTarget(ctx, st, class, rules, i, t); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

func (f *Fuzzer) runTarget(ctx context.Context, st *passState, class string, rules *spec.ClassRule, index int, target any) error {
	typ := reflector.TypeKey(target)
	ctx, span := f.tracer.Start(ctx, "propfuzz.target", trace.WithAttributes(
		attribute.String("propfuzz.class", class),
		attribute.String("propfuzz.type", typ),
		attribute.Int("propfuzz.index", index),
	))
	defer span.End()

	fields, err := f.enum.Enumerate(target)
	if err != nil {
		if e, ok := errs.AsErr(err); !ok || e.ErrLv == errs.Fatal {
			err = errs.Mismatch(false, "target %s cannot be enumerated: %v", typ, err)
		}
		f.log.WarnContext(ctx, "target skipped", "class", class, "type", typ, "index", index, "err", err.Error())
		span.RecordError(err)
		st.rec.Warn(err, class, typ)
		return nil
	}

	diff, ok := st.diffs[typ]
	if !ok {
		d, warns := f.tracker.Track(typ, reflector.Names(fields))
		st.diffs[typ] = d
		st.rec.Diff(typ, d.Names())
		for _, w := range warns {
			st.rec.Warn(w, class, typ)
		}
		diff = d
	}

	res, ferr := f.engine.Apply(rules, fields, diff)
	for _, w := range res.Warnings {
		f.log.WarnContext(ctx, "field skipped", "class", class, "type", typ, "kind", errs.KindOf(w).String(), "err", w.Error())
	}
	st.rec.Target(class, typ, index, res)
	span.SetAttributes(attribute.Int("propfuzz.mutations", len(res.Mutations)))
	if f.onTarget != nil {
		f.onTarget(report.Target{Class: class, Type: typ, Index: index, Mutations: res.Mutations})
	}
	if ferr != nil {
		f.log.ErrorContext(ctx, "fatal mutation error", "class", class, "type", typ, "kind", errs.KindOf(ferr).String(), "err", ferr.Error())
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Error())
		st.rec.Fail(ferr, class, typ)
		return ferr
	}
	return nil
}

func isNil(t any) bool {
	if t == nil {
		return true
	}
	rv := reflect.ValueOf(t)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
