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

package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/zintix-labs/propfuzz"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/reflector"
	"github.com/zintix-labs/propfuzz/report"
	"github.com/zintix-labs/propfuzz/server/httperr"
	"github.com/zintix-labs/propfuzz/server/netsvr/middleware"
	"github.com/zintix-labs/propfuzz/server/svrcfg"
	"github.com/zintix-labs/propfuzz/spec"
	"golang.org/x/sync/semaphore"
)

// 設定檔 body 上限
const maxConfigBody = 1 << 20

var contentTypes = map[string]string{
	"":        "text/plain; charset=utf-8",
	"table":   "text/plain; charset=utf-8",
	"json":    "application/json",
	"yaml":    "application/yaml",
	"yml":     "application/yaml",
	"msgpack": "application/msgpack",
}

// LabHandler 操作同一個 World 與 Store 的所有 API。
//
// World 與 Store 都不是併發安全的：fuzz 與讀取都要先取得 sem（容量 1），
// 等待受請求 ctx 與 PassLimit 限制。
type LabHandler struct {
	cfg *svrcfg.SvrCfg
	sem *semaphore.Weighted
}

func NewLabHandler(sCfg *svrcfg.SvrCfg) (*LabHandler, error) {
	if sCfg == nil || sCfg.World == nil || sCfg.Store == nil || sCfg.Config == nil {
		return nil, errs.NewFatal("lab handler requires config, world and store")
	}
	return &LabHandler{cfg: sCfg, sem: semaphore.NewWeighted(1)}, nil
}

// lock 取得世界的使用權；回傳的 release 必須呼叫
func (h *LabHandler) lock(ctx context.Context) (func(), error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.Wrap(err, "lab is busy")
	}
	return func() { h.sem.Release(1) }, nil
}

// Config GET /v1/config：目前預設的 fuzz 設定
func (h *LabHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Config)
}

// Configs GET /v1/configs：content 內可用的設定檔名稱
func (h *LabHandler) Configs(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.cfg.Content != nil {
		names = h.cfg.Content.Names()
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": names})
}

// ConfigByName GET /v1/configs/{name}
func (h *LabHandler) ConfigByName(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Content == nil {
		httperr.Errs(w, errs.NewWarn("no content configured"))
		return
	}
	fc, err := h.cfg.Content.Load(chi.URLParam(r, "name"))
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// Fuzz POST /v1/fuzz
//
// query：seed（int64，省略時隨機）、format（json|yaml|msgpack|table，預設 json）、
// config（content 內的設定檔名稱）。body 非空時視為 JSON 設定檔，優先於 config。
// pass 因 fatal 中止時回傳 422 並附上報表。
func (h *LabHandler) Fuzz(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "json"
	}
	rd, err := report.ByName(format)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	var seed int64
	if s := q.Get("seed"); s != "" {
		seed, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed must be an int64"))
			return
		}
	}
	fc, err := h.requestConfig(w, r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.PassLimit)
	defer cancel()
	release, err := h.lock(ctx)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	defer release()

	fz, err := propfuzz.New(propfuzz.Options{
		Config:    fc,
		Resolver:  h.cfg.World,
		Store:     h.cfg.Store,
		Generator: h.cfg.Generator,
		Seed:      seed,
		Log:       h.cfg.Log,
	})
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	pass, err := fz.Run(ctx)
	if pass == nil {
		httperr.Errs(w, err)
		return
	}
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		httperr.Errs(w, err)
		return
	}

	var b bytes.Buffer
	if err := rd.Write(&b, pass); err != nil {
		httperr.Errs(w, errs.Wrap(err, "render report failed"))
		return
	}
	status := http.StatusOK
	if pass.Failed() {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set(middleware.SeedHeader, strconv.FormatInt(pass.Seed, 10))
	w.WriteHeader(status)
	_, _ = w.Write(b.Bytes())
}

// requestConfig body > ?config= > 預設設定
func (h *LabHandler) requestConfig(w http.ResponseWriter, r *http.Request) (*spec.FuzzConfig, error) {
	if r.Body != nil {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBody))
		if err != nil {
			return nil, errs.NewWarn("read config body failed: " + err.Error())
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			fc, err := spec.LoadJSON(raw)
			if err != nil {
				// 呼叫端送來的設定檔錯誤屬於請求問題
				e := errs.Wrap(err, "invalid fuzz config")
				e.ErrLv = errs.Warn
				return nil, e
			}
			return fc, nil
		}
	}
	if name := r.URL.Query().Get("config"); name != "" {
		if h.cfg.Content == nil {
			return nil, errs.NewWarn("no content configured")
		}
		return h.cfg.Content.Load(name)
	}
	return h.cfg.Config, nil
}

// Classes GET /v1/world：已註冊 class 與存活數量
func (h *LabHandler) Classes(w http.ResponseWriter, r *http.Request) {
	release, err := h.lock(r.Context())
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	defer release()
	writeJSON(w, http.StatusOK, h.cfg.World.Summaries())
}

// ObjectView 一個存活物件的欄位快照
type ObjectView struct {
	Class  string      `json:"class"`
	Type   string      `json:"type"`
	Index  int         `json:"index"`
	Fields []FieldView `json:"fields"`
}

type FieldView struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// World GET /v1/world/{class}：class 解析結果（含 redirect 與子型別）與欄位值
func (h *LabHandler) World(w http.ResponseWriter, r *http.Request) {
	class := chi.URLParam(r, "class")
	release, err := h.lock(r.Context())
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	defer release()

	objs, err := h.cfg.World.Resolve(class)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	views := make([]ObjectView, 0, len(objs))
	for i, obj := range objs {
		fs, err := reflector.Enumerate(obj)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		cls, _ := h.cfg.World.ClassOf(obj)
		v := ObjectView{Class: cls, Type: reflector.TypeKey(obj), Index: i, Fields: make([]FieldView, 0, len(fs))}
		for _, f := range fs {
			kind := f.Kind.String()
			if f.Kind == reflector.KindString && f.Str != reflector.StrPlain {
				kind += "/" + f.Str.String()
			}
			v.Fields = append(v.Fields, FieldView{Name: f.Name, Kind: kind, Value: f.Display()})
		}
		views = append(views, v)
	}
	resolved, _ := h.cfg.World.FindClass(class)
	writeJSON(w, http.StatusOK, map[string]any{
		"class":    class,
		"resolved": resolved,
		"objects":  views,
	})
}

// BaselineView 一個型別的 current / baseline 紀錄
type BaselineView struct {
	Key      string   `json:"key"`
	Current  []string `json:"current"`
	Baseline []string `json:"baseline"`
}

// baselineKey 取出路由 wildcard 部分的型別 key
func baselineKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "*")
	if key == "" {
		return "", errs.NewWarn("baseline key is empty")
	}
	return key, nil
}

// Baseline GET /v1/baseline/{key...}
func (h *LabHandler) Baseline(w http.ResponseWriter, r *http.Request) {
	key, err := baselineKey(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	release, err := h.lock(r.Context())
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	defer release()

	cur, err := h.cfg.Store.ReadCurrent(key)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	base, err := h.cfg.Store.ReadBaseline(key)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if cur == nil {
		cur = []string{}
	}
	if base == nil {
		base = []string{}
	}
	writeJSON(w, http.StatusOK, BaselineView{Key: key, Current: cur, Baseline: base})
}

// ResetBaseline DELETE /v1/baseline/{key...}
func (h *LabHandler) ResetBaseline(w http.ResponseWriter, r *http.Request) {
	key, err := baselineKey(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	release, err := h.lock(r.Context())
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	defer release()

	if err := h.cfg.Store.Reset(key); err != nil {
		httperr.Errs(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(v); err != nil {
		httperr.Errs(w, errs.Wrap(err, "encode response failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b.Bytes())
}
