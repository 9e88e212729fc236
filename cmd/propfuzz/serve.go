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
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zintix-labs/propfuzz/demo"
	"github.com/zintix-labs/propfuzz/server"
)

func (c *cli) newServeCmd() *cobra.Command {
	var (
		addr      string
		passLimit time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lab server over the demo world",
		Long: `Start the lab server over the demo world.

--content-dir (or PROPFUZZ_CONTENT_DIR) is mounted next to the embedded
configs only when given explicitly; it must be a flat directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := c.newLogger(cmd.ErrOrStderr(), c.env.LogMode)
			ctx := cmd.Context()
			defer setupTelemetry(ctx, log)()

			store, err := c.openStore()
			if err != nil {
				return err
			}
			sCfg, err := demo.NewServerConfig(log, store)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("content-dir") || os.Getenv("PROPFUZZ_CONTENT_DIR") != "" {
				if extra, err := contentFS(c.contentDir); err != nil {
					log.Warn("content dir not mounted", slog.String("dir", c.contentDir), slog.Any("err", err))
				} else if content, err := demo.NewContent(extra); err != nil {
					log.Warn("content dir not mounted", slog.String("dir", c.contentDir), slog.Any("err", err))
				} else {
					sCfg.Content = content
				}
			}
			sCfg.Addr = addr
			sCfg.PassLimit = passLimit
			sCfg.Generator = newGenerator(c.env.GeneratorCmd, c.env.GeneratorLimit)
			return server.Run(ctx, sCfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", c.env.Addr, "listen address")
	cmd.Flags().DurationVar(&passLimit, "pass-limit", 30*time.Second, "time limit of one fuzz request")
	return cmd
}
