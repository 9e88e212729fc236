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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/demo"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/server/logger"
	"github.com/zintix-labs/propfuzz/spec"
	"github.com/zintix-labs/propfuzz/strgen"
	"github.com/zintix-labs/propfuzz/telemetry"
	"golang.org/x/term"
)

// newLogger 解析 --log-mode；空字串時使用 fallback。
func (c *cli) newLogger(errOut io.Writer, fallback string) *slog.Logger {
	name := c.logMode
	if name == "" {
		name = fallback
	}
	mode, err := logger.ParseMode(name)
	if err != nil {
		fmt.Fprintln(errOut, err)
	}
	return logger.NewDefaultLogger(mode)
}

func (c *cli) openStore() (*baseline.FileStore, error) {
	return baseline.NewFileStore(c.baselineDir)
}

// resolveConfigPath 依序嘗試原路徑、content 目錄下的同名路徑。
func resolveConfigPath(name, contentDir string) (string, error) {
	if fileExists(name) {
		return name, nil
	}
	if contentDir != "" && !filepath.IsAbs(name) {
		p := filepath.Join(contentDir, name)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", errs.NewWarn(fmt.Sprintf("config %s not found (relative paths are also searched under %q)", name, contentDir))
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

// loadConfig 空名稱時使用內建的示範設定。
func loadConfig(name, contentDir string) (*spec.FuzzConfig, string, error) {
	if name == "" {
		fc, err := demo.DefaultConfig()
		return fc, "<embedded>", err
	}
	p, err := resolveConfigPath(name, contentDir)
	if err != nil {
		return nil, "", err
	}
	fc, err := spec.LoadFS(os.DirFS(filepath.Dir(p)), filepath.Base(p))
	return fc, p, err
}

// newGenerator 外部產生器指令；空白時回傳 nil（使用內建 regexp 產生器）。
func newGenerator(command []string, limit time.Duration) strgen.Generator {
	if len(command) == 0 || command[0] == "" {
		return nil
	}
	return strgen.WithTimeout(strgen.Exec{Path: command[0], Args: command[1:], Timeout: limit}, limit)
}

// contentFS content 目錄必須是扁平目錄，否則不掛載。
func contentFS(dir string) (fs.FS, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errs.NewWarn(dir + " is not a directory")
	}
	return os.DirFS(dir), nil
}

// setupTelemetry PROPFUZZ_OTEL_* 未設定時不做事
func setupTelemetry(ctx context.Context, log *slog.Logger) func() {
	cfg, err := telemetry.LoadConfig()
	if err != nil {
		log.Warn("telemetry config ignored", slog.Any("err", err))
		return func() {}
	}
	shutdown, err := telemetry.Setup(ctx, "propfuzz", cfg)
	if err != nil {
		log.Warn("telemetry disabled", slog.Any("err", err))
		return func() {}
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func splitCommand(s string) []string {
	return strings.Fields(s)
}
