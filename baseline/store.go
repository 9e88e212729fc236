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

package baseline

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zintix-labs/propfuzz/errs"
)

// Store 每個型別兩份紀錄：current（每次覆寫）與 baseline（只增不減）。
//
// 紀錄不存在時 Read* 回傳 (nil, nil)；其他讀寫失敗回傳 errs.KindStoreIO。
// Store 不保證併發安全，呼叫端需序列化同一個 key 的操作。
type Store interface {
	WriteCurrent(key string, names []string) error
	ReadCurrent(key string) ([]string, error)
	ReadBaseline(key string) ([]string, error)
	AppendBaseline(key string, names []string) error
	Reset(key string) error
}

const (
	currentExt  = ".current"
	baselineExt = ".baseline"
)

// FileStore 以目錄下的 <key>.current / <key>.baseline 純文字檔保存紀錄（每行一個欄位名稱，UTF-8）。
type FileStore struct {
	dir string
}

// NewFileStore 建立（必要時建立目錄）
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errs.NewFatal("baseline dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.StoreIO(err, "create baseline dir failed: "+dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key, ext string) string {
	return filepath.Join(s.dir, FileName(key)+ext)
}

// WriteCurrent 先截斷再整份寫入。非原子操作：中途失敗會留下不完整的紀錄。
func (s *FileStore) WriteCurrent(key string, names []string) error {
	if err := os.WriteFile(s.path(key, currentExt), encode(names), 0o644); err != nil {
		return errs.StoreIO(err, "write current record failed: "+key)
	}
	return nil
}

func (s *FileStore) ReadCurrent(key string) ([]string, error) {
	return s.read(key, currentExt)
}

func (s *FileStore) ReadBaseline(key string) ([]string, error) {
	return s.read(key, baselineExt)
}

func (s *FileStore) read(key, ext string) ([]string, error) {
	raw, err := os.ReadFile(s.path(key, ext))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.StoreIO(err, "read "+strings.TrimPrefix(ext, ".")+" record failed: "+key)
	}
	return decode(raw), nil
}

// AppendBaseline 以 append 模式寫入，既有內容不變。
func (s *FileStore) AppendBaseline(key string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.path(key, baselineExt), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.StoreIO(err, "open baseline record failed: "+key)
	}
	if _, err := f.Write(encode(names)); err != nil {
		f.Close()
		return errs.StoreIO(err, "append baseline record failed: "+key)
	}
	if err := f.Close(); err != nil {
		return errs.StoreIO(err, "close baseline record failed: "+key)
	}
	return nil
}

// Reset 刪除兩份紀錄（不存在視為成功）
func (s *FileStore) Reset(key string) error {
	for _, ext := range []string{currentExt, baselineExt} {
		if err := os.Remove(s.path(key, ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.StoreIO(err, "remove record failed: "+key)
		}
	}
	return nil
}

// 檔名長度上限（不含副檔名）
const maxFileName = 180

// FileName 把型別 key 轉成檔名：[A-Za-z0-9._-] 以外的位元組（含開頭的 '.'）
// 編碼成 %XX，不同的 key 不會對到同一個檔名。
// 編碼後過長時截斷並加上 '~' 與 key 的 sha256 前綴。
func FileName(key string) string {
	if key == "" {
		return "%"
	}
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '.' && i == 0:
			b.WriteString("%2E")
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	name := b.String()
	if len(name) <= maxFileName {
		return name
	}
	sum := sha256.Sum256([]byte(key))
	return name[:maxFileName-17] + "~" + hex.EncodeToString(sum[:8])
}

func encode(names []string) []byte {
	var buf bytes.Buffer
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// decode 容忍 CRLF 與空行，重複名稱只保留第一次出現。
func decode(raw []byte) []string {
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

// MemStore 記憶體版 Store（測試與 server 預設使用）
type MemStore struct {
	mu       sync.Mutex
	current  map[string][]string
	baseline map[string][]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		current:  map[string][]string{},
		baseline: map[string][]string{},
	}
}

func (m *MemStore) WriteCurrent(key string, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[key] = append([]string(nil), names...)
	return nil
}

func (m *MemStore) ReadCurrent(key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.current[key]...), nil
}

func (m *MemStore) ReadBaseline(key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.baseline[key]...), nil
}

func (m *MemStore) AppendBaseline(key string, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline[key] = append(m.baseline[key], names...)
	return nil
}

func (m *MemStore) Reset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.current, key)
	delete(m.baseline, key)
	return nil
}
