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

package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// value 是 JSON / YAML / TOML 共用的有序文件樹，只保留規則判斷需要的資訊。
type value struct {
	kind valueKind
	str  string
	num  float64
	list []value
	keys []string
	vals []value
}

type valueKind uint8

const (
	vNull valueKind = iota
	vMap
	vList
	vString
	vNumber
	vBool
	vOther
)

var valueKindMap = map[valueKind]string{
	vNull:   "null",
	vMap:    "mapping",
	vList:   "array",
	vString: "string",
	vNumber: "number",
	vBool:   "bool",
	vOther:  "other",
}

func (k valueKind) String() string {
	if s, ok := valueKindMap[k]; ok {
		return s
	}
	return "other"
}

func (v *value) add(key string, child value) {
	v.keys = append(v.keys, key)
	v.vals = append(v.vals, child)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ------------------------------------------------------------
// JSON：以 token 逐一讀取，保留 key 順序
// ------------------------------------------------------------

func decodeJSON(raw []byte) (value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := readJSON(dec)
	if err != nil {
		return value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return value{}, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func readJSON(dec *json.Decoder) (value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return value{}, errors.New("empty document")
		}
		return value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := value{kind: vMap}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return value{}, fmt.Errorf("object key must be a string, got %v", kt)
				}
				child, err := readJSON(dec)
				if err != nil {
					return value{}, err
				}
				v.add(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil
		case '[':
			v := value{kind: vList}
			for dec.More() {
				child, err := readJSON(dec)
				if err != nil {
					return value{}, err
				}
				v.list = append(v.list, child)
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil
		default:
			return value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case string:
		return value{kind: vString, str: t}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			// 超出 float64 範圍：交給規則檢查拒絕，而不是整份失敗
			return value{kind: vOther, str: t.String()}, nil
		}
		return value{kind: vNumber, num: f}, nil
	case bool:
		return value{kind: vBool}, nil
	case nil:
		return value{kind: vNull}, nil
	default:
		return value{kind: vOther}, nil
	}
}

// ------------------------------------------------------------
// YAML：yaml.Node 本身就是有序樹
// ------------------------------------------------------------

func decodeYAML(raw []byte) (value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return value{}, err
	}
	if doc.Kind == 0 {
		return value{}, errors.New("empty document")
	}
	yt := &yamlTree{}
	return yt.from(&doc, 0)
}

// alias 展開後的深度與節點總數上限
const (
	maxYAMLDepth = 64
	maxYAMLNodes = 100_000
)

// yamlTree 記錄展開的節點數；alias 每被引用一次就重算一次其子樹
type yamlTree struct {
	nodes int
}

func (yt *yamlTree) from(n *yaml.Node, depth int) (value, error) {
	if depth > maxYAMLDepth {
		return value{}, errors.New("yaml document nested too deeply")
	}
	yt.nodes++
	if yt.nodes > maxYAMLNodes {
		return value{}, fmt.Errorf("yaml document expands to more than %d nodes", maxYAMLNodes)
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value{}, errors.New("empty document")
		}
		return yt.from(n.Content[0], depth+1)
	case yaml.AliasNode:
		if n.Alias == nil {
			return value{kind: vNull}, nil
		}
		return yt.from(n.Alias, depth+1)
	case yaml.MappingNode:
		v := value{kind: vMap}
		for i := 0; i+1 < len(n.Content); i += 2 {
			child, err := yt.from(n.Content[i+1], depth+1)
			if err != nil {
				return value{}, err
			}
			v.add(n.Content[i].Value, child)
		}
		return v, nil
	case yaml.SequenceNode:
		v := value{kind: vList}
		for _, c := range n.Content {
			child, err := yt.from(c, depth+1)
			if err != nil {
				return value{}, err
			}
			v.list = append(v.list, child)
		}
		return v, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!str":
			return value{kind: vString, str: n.Value}, nil
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return value{kind: vOther, str: n.Value}, nil
			}
			return value{kind: vNumber, num: f}, nil
		case "!!bool":
			return value{kind: vBool}, nil
		case "!!null":
			return value{kind: vNull}, nil
		default:
			return value{kind: vOther, str: n.Value}, nil
		}
	default:
		return value{kind: vOther}, nil
	}
}

// ------------------------------------------------------------
// TOML：map 本身無序，順序由 MetaData.Keys() 還原
// ------------------------------------------------------------

func decodeTOML(raw []byte) (value, error) {
	var m map[string]any
	md, err := toml.Decode(string(raw), &m)
	if err != nil {
		return value{}, err
	}
	pos := make(map[string]int, len(md.Keys()))
	for i, k := range md.Keys() {
		pos[k.String()] = i
	}
	return fromTOML(m, nil, pos), nil
}

func fromTOML(x any, path toml.Key, pos map[string]int) value {
	switch t := x.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.SliceStable(keys, func(i, j int) bool {
			return pos[childKey(path, keys[i])] < pos[childKey(path, keys[j])]
		})
		v := value{kind: vMap}
		for _, k := range keys {
			v.add(k, fromTOML(t[k], append(path[:len(path):len(path)], k), pos))
		}
		return v
	case []map[string]any:
		v := value{kind: vList}
		for _, c := range t {
			v.list = append(v.list, fromTOML(c, path, pos))
		}
		return v
	case []any:
		v := value{kind: vList}
		for _, c := range t {
			v.list = append(v.list, fromTOML(c, path, pos))
		}
		return v
	case string:
		return value{kind: vString, str: t}
	case int64:
		return value{kind: vNumber, num: float64(t)}
	case float64:
		return value{kind: vNumber, num: t}
	case bool:
		return value{kind: vBool}
	default:
		return value{kind: vOther}
	}
}

func childKey(path toml.Key, k string) string {
	return append(path[:len(path):len(path)], k).String()
}
