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

package reflector

import (
	"fmt"
	"math"
	"reflect"
	"unique"

	"github.com/zintix-labs/propfuzz/errs"
)

// Kind 欄位分類（封閉集合）。Randomization Engine 以 switch 窮舉。
type Kind uint8

const (
	KindOther Kind = iota
	KindNumeric
	KindString
)

var kindMap = map[Kind]string{
	KindOther:   "other",
	KindNumeric: "numeric",
	KindString:  "string",
}

func (k Kind) String() string {
	if s, ok := kindMap[k]; ok {
		return s
	}
	return "other"
}

// NumKind 數值欄位的實際表示法
type NumKind uint8

const (
	NumNone NumKind = iota
	NumInt
	NumUint
	NumFloat
)

// StrKind 字串欄位的實際表示法，寫回時需要用對應型別建構。
type StrKind uint8

const (
	StrNone   StrKind = iota
	StrPlain          // string（含具名 string 型別）
	StrSymbol         // Symbol：interned 名稱
	StrText           // Text：可在地化文字
)

var strKindMap = map[StrKind]string{
	StrNone:   "",
	StrPlain:  "plain",
	StrSymbol: "symbol",
	StrText:   "text",
}

func (s StrKind) String() string {
	return strKindMap[s]
}

// Symbol 是 interned 的名稱字串（同值共用同一份儲存）。零值代表空名稱。
type Symbol struct {
	h unique.Handle[string]
}

func NewSymbol(s string) Symbol {
	if s == "" {
		return Symbol{}
	}
	return Symbol{h: unique.Make(s)}
}

func (s Symbol) String() string {
	if s == (Symbol{}) {
		return ""
	}
	return s.h.Value()
}

func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Symbol) UnmarshalText(b []byte) error {
	*s = NewSymbol(string(b))
	return nil
}

// Text 可在地化文字。Namespace/Key 指向翻譯表；Source 為原文。
type Text struct {
	Namespace string `json:"namespace,omitempty"`
	Key       string `json:"key,omitempty"`
	Source    string `json:"source"`
}

// TextFromString 建立不參與在地化的文字（沒有 Namespace/Key）。
func TextFromString(s string) Text {
	return Text{Source: s}
}

func (t Text) String() string {
	return t.Source
}

var (
	symbolType = reflect.TypeFor[Symbol]()
	textType   = reflect.TypeFor[Text]()
)

// Field 一個可寫入的欄位。
//
// Field 內部持有 reflect.Value，只在單次 fuzz pass 內有效，不應跨 pass 保存。
type Field struct {
	Name string
	Kind Kind
	Num  NumKind
	Str  StrKind
	v    reflect.Value
}

// Type 欄位的 Go 型別
func (f Field) Type() reflect.Type {
	if !f.v.IsValid() {
		return nil
	}
	return f.v.Type()
}

// Get 回傳欄位目前的值
func (f Field) Get() any {
	if !f.v.IsValid() {
		return nil
	}
	return f.v.Interface()
}

// Display 以字串呈現目前的值（給報表與 log 使用）
func (f Field) Display() string {
	return Display(f.Get())
}

// Display 把欄位值轉成報表用字串。
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func (f Field) SetInt(x int64) error {
	if f.Num != NumInt {
		return errs.Mismatch(false, "field %s is not a signed integer", f.Name)
	}
	if f.v.OverflowInt(x) {
		return errs.Mismatch(false, "value %d overflows field %s (%s)", x, f.Name, f.v.Type())
	}
	f.v.SetInt(x)
	return nil
}

func (f Field) SetUint(x uint64) error {
	if f.Num != NumUint {
		return errs.Mismatch(false, "field %s is not an unsigned integer", f.Name)
	}
	if f.v.OverflowUint(x) {
		return errs.Mismatch(false, "value %d overflows field %s (%s)", x, f.Name, f.v.Type())
	}
	f.v.SetUint(x)
	return nil
}

func (f Field) SetFloat(x float64) error {
	if f.Num != NumFloat {
		return errs.Mismatch(false, "field %s is not a float", f.Name)
	}
	if f.v.OverflowFloat(x) {
		return errs.Mismatch(false, "value %g overflows field %s (%s)", x, f.Name, f.v.Type())
	}
	f.v.SetFloat(x)
	return nil
}

// SetString 依字串子型別寫回。
func (f Field) SetString(s string) error {
	switch f.Str {
	case StrPlain:
		f.v.SetString(s)
	case StrSymbol:
		f.v.Set(reflect.ValueOf(NewSymbol(s)))
	case StrText:
		f.v.Set(reflect.ValueOf(TextFromString(s)))
	default:
		return errs.Mismatch(false, "field %s is not a string field", f.Name)
	}
	return nil
}

// IntBounds 有號整數欄位可表示的範圍
func (f Field) IntBounds() (int64, int64) {
	bits := f.v.Type().Bits()
	if bits >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	return -1 << (bits - 1), 1<<(bits-1) - 1
}

// UintMax 無號整數欄位可表示的最大值
func (f Field) UintMax() uint64 {
	bits := f.v.Type().Bits()
	if bits >= 64 {
		return math.MaxUint64
	}
	return 1<<bits - 1
}

func (f Field) String() string {
	switch f.Kind {
	case KindString:
		return fmt.Sprintf("%s(%s/%s)", f.Name, f.Kind, f.Str)
	default:
		return fmt.Sprintf("%s(%s)", f.Name, f.Kind)
	}
}

// classify 依型別決定 Kind；Symbol/Text 為 struct，需先於 reflect.Kind 判斷。
func classify(name string, v reflect.Value) Field {
	f := Field{Name: name, v: v}
	switch v.Type() {
	case symbolType:
		f.Kind, f.Str = KindString, StrSymbol
		return f
	case textType:
		f.Kind, f.Str = KindString, StrText
		return f
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.Kind, f.Num = KindNumeric, NumInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f.Kind, f.Num = KindNumeric, NumUint
	case reflect.Float32, reflect.Float64:
		f.Kind, f.Num = KindNumeric, NumFloat
	case reflect.String:
		f.Kind, f.Str = KindString, StrPlain
	default:
		f.Kind = KindOther
	}
	return f
}
