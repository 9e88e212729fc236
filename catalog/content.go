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

package catalog

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/spec"
)

// Content 多個 fs.FS 組成的 fuzz 設定檔集合（扁平目錄，檔名全域唯一）。
type Content struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func NewContent(src ...fs.FS) (*Content, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
	}

	c := &Content{
		src:   src,
		index: make(map[string]int, 32),
	}

	// 先建索引並檢查重複
	for i := range src {
		err := fs.WalkDir(src[i], ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// 只允許根目錄
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("content FS must be flat (no subdirectories): %q", path))
			}
			// 其他附檔名的檔案直接忽略
			if spec.FormatByExt(path) == spec.FormatUnknown {
				return nil
			}
			if prev, ok := c.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			c.index[path] = i
			return nil
		})
		if err != nil {
			return nil, errs.Wrap(err, "can not index content")
		}
	}
	return c, nil
}

// Names 所有設定檔名稱（排序後）
func (c *Content) Names() []string {
	out := make([]string, 0, len(c.index))
	for name := range c.index {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Content) GetFS(name string) (fs.FS, bool) {
	if id, ok := c.index[name]; ok {
		return c.src[id], true
	}
	return nil, false
}

// Load 讀取並解析指定名稱的設定檔
func (c *Content) Load(name string) (*spec.FuzzConfig, error) {
	if err := validFileName(name); err != nil {
		return nil, err
	}
	src, ok := c.GetFS(name)
	if !ok {
		return nil, errs.NewWarn(fmt.Sprintf("config %s does not exist in content", name))
	}
	return spec.LoadFS(src, name)
}

// Sources 唯讀
func (c *Content) Sources() []fs.FS {
	if c == nil || len(c.src) == 0 {
		return nil
	}
	return append([]fs.FS(nil), c.src...)
}

func validFileName(file string) error {
	if file == "" {
		return errs.NewWarn("empty config filename")
	}
	// 不能包含路徑字元
	if strings.ContainsAny(file, `/\:`) {
		return errs.NewWarn(fmt.Sprintf("invalid config filename: %q (must be a basename; no / \\ :)", file))
	}
	if spec.FormatByExt(file) == spec.FormatUnknown {
		return errs.NewWarn(fmt.Sprintf("invalid config filename: %q (must end with .json, .yaml, .yml or .toml)", file))
	}
	if strings.HasPrefix(file, ".") {
		return errs.NewWarn(fmt.Sprintf("invalid config filename: %q (cannot start with '.')", file))
	}
	return nil
}
