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

package perf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRunWritesProfile(t *testing.T) {
	for _, mode := range Modes {
		dir := t.TempDir()
		called := false
		err := Run(mode, dir, func() error {
			called = true
			return nil
		})
		if err != nil || !called {
			t.Fatalf("%s: err=%v called=%v", mode, err, called)
		}
		st, err := os.Stat(filepath.Join(dir, mode+".pprof"))
		if err != nil || st.Size() == 0 {
			t.Fatalf("%s profile missing: %v", mode, err)
		}
	}
}

func TestRunPassesThroughError(t *testing.T) {
	boom := errors.New("boom")
	if err := Run("", "", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("plain run: %v", err)
	}
	if err := Run("heap", t.TempDir(), func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("heap run: %v", err)
	}
	if err := Run("trace", t.TempDir(), func() error { return nil }); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}
