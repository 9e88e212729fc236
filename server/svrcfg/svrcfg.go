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

package svrcfg

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/catalog"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/server/logger"
	"github.com/zintix-labs/propfuzz/spec"
	"github.com/zintix-labs/propfuzz/strgen"
)

// Env 由環境變數讀取的 process 設定；CLI flag 會覆蓋。
type Env struct {
	Addr           string        `env:"PROPFUZZ_ADDR"            envDefault:":5808"`
	ContentDir     string        `env:"PROPFUZZ_CONTENT_DIR"     envDefault:"."`
	BaselineDir    string        `env:"PROPFUZZ_BASELINE_DIR"    envDefault:".propfuzz"`
	LogMode        string        `env:"PROPFUZZ_LOG_MODE"        envDefault:"dev"`
	GeneratorCmd   []string      `env:"PROPFUZZ_GENERATOR_CMD"   envSeparator:" "`
	GeneratorLimit time.Duration `env:"PROPFUZZ_GENERATOR_LIMIT" envDefault:"5s"`
}

// LoadEnv 讀取環境變數
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, errs.Wrap(err, "parse env")
	}
	return e, nil
}

// SvrCfg lab server 的所有依賴，由呼叫端明確注入。
type SvrCfg struct {
	Log       *slog.Logger
	Addr      string
	Config    *spec.FuzzConfig // 預設設定；POST /v1/fuzz 可用 body 覆蓋
	Content   *catalog.Content // 可選：GET /v1/configs
	World     *catalog.World   // 必填：fuzz 對象
	Store     baseline.Store   // 必填：baseline 紀錄
	Generator strgen.Generator // nil 時每個 pass 使用 strgen.Regex
	PassLimit time.Duration    // 單一 pass 的時間上限
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Addr == "" {
		sc.Addr = ":5808"
	}
	if sc.PassLimit <= 0 {
		sc.PassLimit = 30 * time.Second
	}
	if sc.Config == nil {
		return errs.NewFatal("fuzz config is required")
	}
	if sc.World == nil {
		return errs.NewFatal("world is required")
	}
	if sc.Store == nil {
		return errs.NewFatal("baseline store is required")
	}
	return nil
}
