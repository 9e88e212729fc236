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

// Package strgen 提供 pattern 字串產生器。
//
// Generator 是同步、阻塞的能力介面；Engine 對每個 String 欄位只呼叫一次。
// 所有失敗都以 errs.KindGeneratorUnavailable（Warn）回報，讓呼叫端跳過該欄位。
package strgen

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/zintix-labs/propfuzz/errs"
)

// Generator generate(pattern) -> text
type Generator interface {
	Generate(pattern string) (string, error)
}

// Func 讓一般函式滿足 Generator
type Func func(pattern string) (string, error)

func (f Func) Generate(pattern string) (string, error) {
	return f(pattern)
}

// Unavailable 永遠失敗的 Generator（沒有設定產生器時使用）
var Unavailable Generator = Func(func(string) (string, error) {
	return "", errs.Unavailable(nil, "no string generator configured")
})

// Exec 呼叫外部程序產生字串：Path Args... pattern，取 stdout（去掉結尾換行）。
type Exec struct {
	Path    string
	Args    []string
	Timeout time.Duration // 0 表示不設上限
}

func (e Exec) Generate(pattern string) (string, error) {
	if e.Path == "" {
		return "", errs.Unavailable(nil, "generator command is empty")
	}
	ctx := context.Background()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	args := append(append([]string(nil), e.Args...), pattern)
	cmd := exec.CommandContext(ctx, e.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", errs.Unavailable(err, "generator command failed: "+strings.TrimSpace(stderr.String()))
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

// WithTimeout 以時間上限包裝 Generator。超時回傳 KindGeneratorUnavailable。
//
// 被包裝的呼叫無法被中斷；超時後其結果會被丟棄。
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return Func(func(pattern string) (string, error) {
		type result struct {
			s   string
			err error
		}
		ch := make(chan result, 1)
		go func() {
			s, err := g.Generate(pattern)
			ch <- result{s, err}
		}()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case r := <-ch:
			return r.s, r.err
		case <-timer.C:
			return "", errs.Unavailable(context.DeadlineExceeded, "string generator timed out after "+d.String())
		}
	})
}
