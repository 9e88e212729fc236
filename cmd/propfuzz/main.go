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

// Command propfuzz 對示範世界執行 fuzz pass、檢視 baseline 紀錄，或啟動 lab server。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zintix-labs/propfuzz/server/svrcfg"
)

// cli 所有子命令共用的設定；flag 覆蓋環境變數。
type cli struct {
	env         svrcfg.Env
	logMode     string
	contentDir  string
	baselineDir string
}

func newRootCmd(env svrcfg.Env) *cobra.Command {
	c := &cli{env: env}
	root := &cobra.Command{
		Use:          "propfuzz",
		Short:        "Config-driven property randomization for game objects",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.logMode, "log-mode", "", "log mode: dev|prod|silence|cli (default cli, serve uses PROPFUZZ_LOG_MODE)")
	root.PersistentFlags().StringVar(&c.contentDir, "content-dir", env.ContentDir, "directory searched for config files")
	root.PersistentFlags().StringVar(&c.baselineDir, "baseline-dir", env.BaselineDir, "directory of the current/baseline records")

	root.AddCommand(c.newRunCmd())
	root.AddCommand(c.newBaselineCmd())
	root.AddCommand(c.newServeCmd())
	return root
}

func main() {
	env, err := svrcfg.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(env).Execute(); err != nil {
		os.Exit(1)
	}
}
