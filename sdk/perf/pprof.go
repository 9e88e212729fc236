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

// Package perf 以 pprof 包裝一段執行，供 CLI 的 --pprof 使用。
package perf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/propfuzz/errs"
)

// DefaultDir pprof 檔案寫入路徑
const DefaultDir = "build/profiling"

// Modes 支援的 profile 種類
var Modes = []string{"cpu", "heap", "allocs"}

// Run 依 mode 決定執行哪種 profiling；mode 為空時直接執行 exe。
//
// 回傳 exe 的錯誤；profile 寫入失敗時，若 exe 本身成功則回傳寫入錯誤。
//
// Usage like:
//
//	propfuzz run --pprof cpu
//	go tool pprof build/profiling/cpu.pprof
func Run(mode, dir string, exe func() error) error {
	if mode == "" {
		return exe()
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "create profiling dir failed")
	}
	switch mode {
	case "cpu":
		return cpu(filepath.Join(dir, "cpu.pprof"), exe)
	case "heap":
		// 盡量讓快照貼近最新狀態
		return after(filepath.Join(dir, "heap.pprof"), exe, func(f *os.File) error {
			runtime.GC()
			return pprof.WriteHeapProfile(f)
		})
	case "allocs":
		// 累積配置，需搭配 -alloc_space / -alloc_objects 查看
		return after(filepath.Join(dir, "allocs.pprof"), exe, func(f *os.File) error {
			return pprof.Lookup("allocs").WriteTo(f, 0)
		})
	default:
		return errs.NewWarn(fmt.Sprintf("unknown pprof mode: %q (cpu|heap|allocs)", mode))
	}
}

func cpu(path string, exe func() error) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "create cpu.pprof failed")
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile failed")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

// after 先執行 exe，再寫一次快照
func after(path string, exe func() error, write func(*os.File) error) error {
	runErr := exe()
	f, err := os.Create(path)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return errs.Wrap(err, "create "+filepath.Base(path)+" failed")
	}
	defer f.Close()
	if err := write(f); err != nil && runErr == nil {
		return errs.Wrap(err, "write "+filepath.Base(path)+" failed")
	}
	return runErr
}
