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

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
//
//   - Fatal：整個 pass 必須中止（設定檔無法解析、字串規則套到非字串欄位）
//   - Warn ：跳過當下的 entry / class / field，其餘照常進行
//   - Log  ：僅供紀錄
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Kind : 錯誤種類（封閉集合），對應 fuzz pass 中每一種可預期的失敗情境。
type Kind uint8

const (
	KindNone                 Kind = iota
	KindConfigParse               // 設定檔本身無法解析（fatal）
	KindConfigEntry               // 單一 class / property entry 格式錯誤（跳過該 entry）
	KindUnresolvedClass           // Resolver 找不到 class（跳過該 class）
	KindTypeMismatch              // 規則與欄位型別不符
	KindGeneratorUnavailable      // 字串產生器不可用（跳過該欄位）
	KindStoreIO                   // baseline/current 紀錄讀寫失敗（視為空紀錄）
)

var kindMap = map[Kind]string{
	KindNone:                 "",
	KindConfigParse:          "config_parse",
	KindConfigEntry:          "config_entry",
	KindUnresolvedClass:      "unresolved_class",
	KindTypeMismatch:         "type_mismatch",
	KindGeneratorUnavailable: "generator_unavailable",
	KindStoreIO:              "store_io",
}

func (k Kind) String() string {
	if str, ok := kindMap[k]; ok {
		return str
	}
	return "unknown"
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端可追加的額外上下文；
// Cause 可串接下層錯誤（wrap）；ErrLv 表示嚴重程度；Kind 表示錯誤種類。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
	Kind    Kind
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Kind != KindNone {
		base = fmt.Sprintf("errlv=%s kind=%s %s", ErrLv(e.ErrLv), e.Kind, e.Message)
	}
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// New 依錯誤等級建立錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

func Logf(format string, a ...any) *E {
	return NewLog(fmt.Sprintf(format, a...))
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// ------------------------------------------------------------
// 分類建構子：等級由錯誤種類決定
// ------------------------------------------------------------

// Parse 設定檔整份無法解析，必為 Fatal。
func Parse(cause error, msg string) *E {
	return &E{Message: msg, Cause: cause, ErrLv: Fatal, Kind: KindConfigParse}
}

// Entry 單一設定 entry 被拒絕。
func Entry(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: KindConfigEntry}
}

// Unresolved class 無法被 Resolver 找到。
func Unresolved(class string) *E {
	return &E{Message: fmt.Sprintf("class %s could not be found", class), ErrLv: Warn, Kind: KindUnresolvedClass}
}

// Mismatch 規則與欄位型別不符。fatal 由呼叫端決定。
func Mismatch(fatal bool, format string, a ...any) *E {
	lv := Warn
	if fatal {
		lv = Fatal
	}
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: lv, Kind: KindTypeMismatch}
}

// Unavailable 字串產生器無法產出結果。
func Unavailable(cause error, msg string) *E {
	return &E{Message: msg, Cause: cause, ErrLv: Warn, Kind: KindGeneratorUnavailable}
}

// StoreIO 紀錄檔讀寫失敗。
func StoreIO(cause error, msg string) *E {
	return &E{Message: msg, Cause: cause, ErrLv: Warn, Kind: KindStoreIO}
}

// Wrap 使用給定的訊息包裝底層錯誤，建立一個 *E。
//
// ErrLevel 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv 與 Kind（保持原本嚴重度）。
//   - 若 cause 不是本包定義的 *E（多半是標準庫或三方依賴錯誤），則 ErrLv 一律視為 Fatal。
//
// 建議使用方式：
//   - 若你已判斷該錯誤是「可預期且可處理」的情境，請直接使用分類建構子
//     （Entry / Mismatch / StoreIO ...），而不要對其呼叫 Wrap。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv := Fatal
	kind := KindNone
	if errors.As(cause, &e) {
		errLv = e.ErrLv
		kind = e.Kind
	}
	r := New(errLv, msg)
	r.Kind = kind
	r.Cause = cause
	return r
}

// WrapWithExtra 與 Wrap 相同，另外附加上下文。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := Wrap(cause, msg)
	r.Extra = extra
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// KindOf 回傳錯誤鏈上第一個 *E 的 Kind；非本包錯誤回傳 KindNone。
func KindOf(err error) Kind {
	if e, ok := AsErr(err); ok {
		return e.Kind
	}
	return KindNone
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFatal 非本包錯誤一律視為 fatal。
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsErr(err); ok {
		return e.ErrLv == Fatal
	}
	return true
}
