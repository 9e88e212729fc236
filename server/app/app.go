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

// Package app 管理 lab server 這類長期運行元件的生命週期：一起啟動，任一停止就全部優雅關閉。
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// 預設關閉等待時間
const DefaultGrace = 5 * time.Second

// App 啟動所有 Component，在 ctx 結束、收到 SIGINT/SIGTERM 或任一 Component 返回時關閉全部。
type App struct {
	comps []Component
	log   *slog.Logger
	grace time.Duration
}

func New() *App {
	return &App{log: slog.New(slog.DiscardHandler), grace: DefaultGrace}
}

// NewWith 建立並註冊 Component
func NewWith(comps ...Component) *App {
	a := New()
	for _, c := range comps {
		a.Register(c)
	}
	return a
}

func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// WithLogger 停止原因與關閉錯誤輸出到 log；nil 不變
func (a *App) WithLogger(log *slog.Logger) *App {
	if log != nil {
		a.log = log
	}
	return a
}

// WithGrace 關閉時等待進行中請求（例如尚未結束的 fuzz pass）的上限；<= 0 不變
func (a *App) WithGrace(d time.Duration) *App {
	if d > 0 {
		a.grace = d
	}
	return a
}

// Run 阻塞到停止為止。ctx 結束、收到信號或 Component 回傳 http.ErrServerClosed 視為正常結束（nil），
// 其他 Component 錯誤原樣回傳。
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var err error
	select {
	case <-ctx.Done():
		a.log.Info("[propfuzz] stopping", slog.String("reason", "context done"))
	case sig := <-quit:
		a.log.Info("[propfuzz] stopping", slog.String("reason", sig.String()))
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			a.log.Error("[propfuzz] component stopped", slog.Any("err", err))
		}
	}
	a.shutdown()
	return err
}

// shutdown 在 grace 內依序關閉所有 Component，錯誤只記錄不回傳
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.grace)
	defer cancel()
	for _, c := range a.comps {
		if err := c.Shutdown(ctx); err != nil {
			a.log.Warn("[propfuzz] shutdown failed", slog.Any("err", err))
		}
	}
}
