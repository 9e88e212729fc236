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

// Package demo 組裝示範世界與內建設定檔，供 CLI、server 與測試直接使用。
package demo

import (
	"io/fs"
	"log/slog"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/catalog"
	"github.com/zintix-labs/propfuzz/demo/demo_configs"
	"github.com/zintix-labs/propfuzz/demo/demo_world"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/server/logger"
	"github.com/zintix-labs/propfuzz/server/svrcfg"
	"github.com/zintix-labs/propfuzz/spec"
)

// NewContent 內建設定檔；extra 會排在內建設定之後，檔名不可重複。
func NewContent(extra ...fs.FS) (*catalog.Content, error) {
	return catalog.NewContent(append([]fs.FS{demo_configs.FS}, extra...)...)
}

// DefaultConfig 內建的預設設定檔
func DefaultConfig() (*spec.FuzzConfig, error) {
	return spec.LoadFS(demo_configs.FS, demo_configs.Default)
}

// NewServerConfig 以示範世界組出 server 設定。store 為 nil 時使用記憶體 store。
func NewServerConfig(log *slog.Logger, store baseline.Store) (*svrcfg.SvrCfg, error) {
	w, err := demo_world.NewWorld()
	if err != nil {
		return nil, errs.Wrap(err, "new demo world failed")
	}
	content, err := NewContent()
	if err != nil {
		return nil, err
	}
	fc, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefaultLogger(logger.ModeSilence)
	}
	if store == nil {
		store = baseline.NewMemStore()
	}
	return &svrcfg.SvrCfg{
		Log:     log,
		Config:  fc,
		Content: content,
		World:   w,
		Store:   store,
	}, nil
}
