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

// Package spec 負責把 fuzz 設定檔解析成 class -> property -> rule 的規則表。
//
// 設定檔頂層是 class 名稱到 property 表的 mapping；每個 property 的值只能是：
//   - 2 個數字的陣列 [min, max]  -> NumericInterval
//   - 單一字串                  -> StringPattern（交給字串產生器）
//
// 整份文件無法解析時回傳 errs.KindConfigParse（fatal）。
// 單一 class / property 格式錯誤只會被跳過，並記錄在 FuzzConfig.Rejected()。
package spec

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/propfuzz/errs"
)

// Format 設定檔格式
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatYAML
	FormatTOML
)

var formatMap = map[Format]string{
	FormatUnknown: "unknown",
	FormatJSON:    "json",
	FormatYAML:    "yaml",
	FormatTOML:    "toml",
}

func (f Format) String() string {
	if s, ok := formatMap[f]; ok {
		return s
	}
	return "unknown"
}

// FormatByExt 依副檔名（大小寫不敏感）判斷格式。
func FormatByExt(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatUnknown
	}
}

// LoadJSON 解析 JSON 設定檔
func LoadJSON(raw []byte) (*FuzzConfig, error) {
	root, err := decodeJSON(raw)
	if err != nil {
		return nil, errs.Parse(err, "can not unmarshal json fuzz config")
	}
	return build(root)
}

// LoadYAML 解析 YAML 設定檔
func LoadYAML(raw []byte) (*FuzzConfig, error) {
	root, err := decodeYAML(raw)
	if err != nil {
		return nil, errs.Parse(err, "can not unmarshal yaml fuzz config")
	}
	return build(root)
}

// LoadTOML 解析 TOML 設定檔（class 以 table 表示）
func LoadTOML(raw []byte) (*FuzzConfig, error) {
	root, err := decodeTOML(raw)
	if err != nil {
		return nil, errs.Parse(err, "can not unmarshal toml fuzz config")
	}
	return build(root)
}

func Load(f Format, raw []byte) (*FuzzConfig, error) {
	switch f {
	case FormatJSON:
		return LoadJSON(raw)
	case FormatYAML:
		return LoadYAML(raw)
	case FormatTOML:
		return LoadTOML(raw)
	default:
		return nil, errs.Parse(nil, fmt.Sprintf("unsupported config format: %s", f))
	}
}

// LoadByExt 依檔名副檔名選擇解析器
func LoadByExt(name string, raw []byte) (*FuzzConfig, error) {
	f := FormatByExt(name)
	if f == FormatUnknown {
		return nil, errs.Parse(nil, fmt.Sprintf("unsupported config format: %q", name))
	}
	return Load(f, raw)
}

// LoadFS 從 fs.FS 讀取設定檔。
//
// 本包不處理「路徑解析」：呼叫端決定 fs.FS 的根目錄（os.DirFS / go:embed）。
func LoadFS(fsys fs.FS, name string) (*FuzzConfig, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("read fuzz config failed: %s", name))
	}
	return LoadByExt(name, raw)
}

// build 把格式無關的文件樹轉成 FuzzConfig。
func build(root value) (*FuzzConfig, error) {
	if root.kind != vMap {
		return nil, errs.Parse(nil, fmt.Sprintf("top level must be a mapping of class names, got %s", root.kind))
	}
	fc := newFuzzConfig()
	for i, class := range root.keys {
		v := root.vals[i]
		if v.kind != vMap {
			fc.reject(errs.Entry("entry %s must have an object type value, got %s", class, v.kind))
			continue
		}
		cr := newClassRule(class)
		for j, prop := range v.keys {
			rule, why := toRule(v.vals[j])
			if rule == nil {
				e := errs.Entry("property %s.%s rejected: %s", class, prop, why)
				e.Extra = "want [min, max] or a pattern string"
				fc.reject(e)
				continue
			}
			if !cr.set(prop, rule) {
				fc.reject(errs.Entry("property %s.%s defined more than once, last one wins", class, prop))
			}
		}
		if !fc.set(cr) {
			fc.reject(errs.Entry("class %s defined more than once, last one wins", class))
		}
	}
	return fc, nil
}

// toRule 回傳 nil 時，第二個回傳值說明原因。
func toRule(v value) (PropertyRule, string) {
	switch v.kind {
	case vString:
		return StringPattern{Text: v.str}, ""
	case vList:
		if len(v.list) != 2 {
			return nil, fmt.Sprintf("interval must have exactly 2 elements, got %d", len(v.list))
		}
		lo, hi := v.list[0], v.list[1]
		if lo.kind != vNumber || hi.kind != vNumber {
			return nil, fmt.Sprintf("interval elements must be numbers, got [%s, %s]", lo.kind, hi.kind)
		}
		if !finite(lo.num) || !finite(hi.num) {
			return nil, "interval bounds must be finite"
		}
		return NumericInterval{Min: lo.num, Max: hi.num}, ""
	default:
		return nil, fmt.Sprintf("unsupported value type %s", v.kind)
	}
}
