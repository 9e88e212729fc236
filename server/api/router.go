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

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	v1 "github.com/zintix-labs/propfuzz/server/api/v1"
	"github.com/zintix-labs/propfuzz/server/netsvr"
	"github.com/zintix-labs/propfuzz/server/netsvr/middleware"
	"github.com/zintix-labs/propfuzz/server/svrcfg"
)

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	registerMiddleware(svr, sCfg.Log) // 1. 註冊 middleware
	registerIndex(svr)                // 2. 註冊主頁
	return registerV1API(svr, sCfg)   // 3. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.Trace)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover(log))
	svr.Use(middleware.Compression)
}

// 註冊主頁：列出已註冊的路由
func registerIndex(svr netsvr.NetSvr) {
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		routes := []string{}
		if rs, ok := svr.(interface{ Routes() []string }); ok {
			routes = rs.Routes()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service": "propfuzz",
			"routes":  routes,
		})
	})
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	h, err := v1.NewLabHandler(sCfg)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/config", h.Config)
		vOne.Get("/configs", h.Configs)
		vOne.Get("/configs/{name}", h.ConfigByName)
		vOne.Post("/fuzz", h.Fuzz)
		vOne.Get("/world", h.Classes)
		vOne.Get("/world/{class}", h.World)
		// key 含 import path，以 wildcard 接住其中的 '/'
		vOne.Get("/baseline/*", h.Baseline)
		vOne.Delete("/baseline/*", h.ResetBaseline)
	})
	return nil
}
