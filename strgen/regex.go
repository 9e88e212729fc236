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

package strgen

import (
	"regexp/syntax"
	"strings"
	"unicode"

	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/sdk/core"
)

// DefaultMaxRepeat `*`、`+`、`{n,}` 額外重複次數的上限
const DefaultMaxRepeat = 8

// 可印 ASCII
const (
	printLo = 0x20
	printHi = 0x7e
)

// Regex 產生符合正規表示式的隨機字串（Perl 語法，與 regexp 套件一致）。
//
// 錨點與邊界（^ $ \b）不輸出任何字元；字元類別優先取可印 ASCII 子集。
type Regex struct {
	core      *core.Core
	MaxRepeat int
	cache     map[string]*syntax.Regexp
}

func NewRegex(c *core.Core) *Regex {
	return &Regex{core: c, MaxRepeat: DefaultMaxRepeat, cache: map[string]*syntax.Regexp{}}
}

func (g *Regex) Generate(pattern string) (string, error) {
	re, ok := g.cache[pattern]
	if !ok {
		parsed, err := syntax.Parse(pattern, syntax.Perl)
		if err != nil {
			return "", errs.Unavailable(err, "invalid pattern: "+pattern)
		}
		re = parsed.Simplify()
		g.cache[pattern] = re
	}
	var sb strings.Builder
	if !g.walk(&sb, re) {
		return "", errs.Unavailable(nil, "pattern matches nothing: "+pattern)
	}
	return sb.String(), nil
}

func (g *Regex) walk(sb *strings.Builder, re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpNoMatch:
		return false
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return true
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			if re.Flags&syntax.FoldCase != 0 && g.core.IntN(2) == 1 {
				r = flipCase(r)
			}
			sb.WriteRune(r)
		}
		return true
	case syntax.OpCharClass:
		r, ok := g.pickClass(re.Rune)
		if !ok {
			return false
		}
		sb.WriteRune(r)
		return true
	case syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		sb.WriteRune(rune(g.core.UniformInt(printLo, printHi)))
		return true
	case syntax.OpCapture:
		return g.walk(sb, re.Sub[0])
	case syntax.OpStar:
		return g.repeat(sb, re.Sub[0], 0, -1)
	case syntax.OpPlus:
		return g.repeat(sb, re.Sub[0], 1, -1)
	case syntax.OpQuest:
		return g.repeat(sb, re.Sub[0], 0, 1)
	case syntax.OpRepeat:
		return g.repeat(sb, re.Sub[0], re.Min, re.Max)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !g.walk(sb, sub) {
				return false
			}
		}
		return true
	case syntax.OpAlternate:
		return g.walk(sb, re.Sub[g.core.IntN(len(re.Sub))])
	default:
		return false
	}
}

// hi < 0 表示沒有上限
func (g *Regex) repeat(sb *strings.Builder, sub *syntax.Regexp, lo, hi int) bool {
	if hi < 0 {
		hi = lo + g.MaxRepeat
	}
	n := int(g.core.UniformInt(int64(lo), int64(hi)))
	for range n {
		if !g.walk(sb, sub) {
			return false
		}
	}
	return true
}

// pickClass 字元類別以 [lo, hi] 成對表示。先在可印 ASCII 交集裡挑，交集為空才用完整範圍。
func (g *Regex) pickClass(ranges []rune) (rune, bool) {
	if len(ranges) < 2 {
		return 0, false
	}
	if r, ok := g.pickIn(ranges, printLo, printHi); ok {
		return r, true
	}
	return g.pickIn(ranges, 0, unicode.MaxRune)
}

func (g *Regex) pickIn(ranges []rune, lo, hi rune) (rune, bool) {
	var clipped []rune
	total := int64(0)
	for i := 0; i+1 < len(ranges); i += 2 {
		a, b := max(ranges[i], lo), min(ranges[i+1], hi)
		if a > b {
			continue
		}
		clipped = append(clipped, a, b)
		total += int64(b-a) + 1
	}
	if total == 0 {
		return 0, false
	}
	k := g.core.UniformInt(0, total-1)
	for i := 0; i+1 < len(clipped); i += 2 {
		size := int64(clipped[i+1]-clipped[i]) + 1
		if k < size {
			r := clipped[i] + rune(k)
			if r >= 0xd800 && r <= 0xdfff {
				r = unicode.ReplacementChar
			}
			return r, true
		}
		k -= size
	}
	return 0, false
}

func flipCase(r rune) rune {
	if unicode.IsUpper(r) {
		return unicode.ToLower(r)
	}
	return unicode.ToUpper(r)
}
