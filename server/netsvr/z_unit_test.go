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

package netsvr

import (
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

func TestChiAdapterRoutes(t *testing.T) {
	svr := NewChiServer("")
	if !svr.Ready() || svr.Address() != defaultAddr {
		t.Fatalf("default server not ready: %q", svr.Address())
	}
	hit := ""
	svr.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Mw", "1")
			next.ServeHTTP(w, r)
		})
	})
	svr.Group("/v1", func(r NetRouter) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { hit = "get"; _, _ = io.WriteString(w, "pong") })
		r.Delete("/ping", func(w http.ResponseWriter, _ *http.Request) { hit = "delete" })
	})

	rec := httptest.NewRecorder()
	svr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	if hit != "get" || rec.Body.String() != "pong" || rec.Header().Get("X-Mw") != "1" {
		t.Fatalf("get: hit=%q body=%q", hit, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	svr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/ping", nil))
	if hit != "delete" {
		t.Fatalf("delete not routed")
	}
	rec = httptest.NewRecorder()
	svr.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ping", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post: %d", rec.Code)
	}
}

func TestChiServerAddr(t *testing.T) {
	if NewChiServer(":7000").Address() != ":7000" {
		t.Fatalf("custom addr lost")
	}
}

func TestRoutesAndPassLimit(t *testing.T) {
	svr := NewChiServer("")
	noop := func(http.ResponseWriter, *http.Request) {}
	svr.Get("/", noop)
	svr.Group("/v1", func(r NetRouter) {
		r.Post("/fuzz", noop)
		r.Delete("/baseline/*", noop)
	})
	got := svr.Routes()
	for _, want := range []string{"DELETE /v1/baseline/*", "GET /", "POST /v1/fuzz"} {
		if !slices.Contains(got, want) {
			t.Fatalf("routes %v missing %q", got, want)
		}
	}
	if !slices.IsSorted(got) {
		t.Fatalf("routes should be sorted: %v", got)
	}

	svr.FitPassLimit(time.Second)
	if svr.WriteTimeout() != defaultWriteTimeout {
		t.Fatalf("short pass limit should keep the default: %v", svr.WriteTimeout())
	}
	svr.FitPassLimit(5 * time.Minute)
	if svr.WriteTimeout() != 5*time.Minute+writeSlack {
		t.Fatalf("write timeout: %v", svr.WriteTimeout())
	}
}
