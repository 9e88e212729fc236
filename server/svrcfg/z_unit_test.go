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

package svrcfg

import (
	"testing"
	"time"

	"github.com/zintix-labs/propfuzz/baseline"
	"github.com/zintix-labs/propfuzz/catalog"
	"github.com/zintix-labs/propfuzz/spec"
)

func TestLoadEnvDefaults(t *testing.T) {
	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.Addr != ":5808" || e.BaselineDir != ".propfuzz" || e.GeneratorLimit != 5*time.Second {
		t.Fatalf("defaults: %+v", e)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROPFUZZ_ADDR", ":9000")
	t.Setenv("PROPFUZZ_GENERATOR_CMD", "python3 gen.py")
	t.Setenv("PROPFUZZ_GENERATOR_LIMIT", "250ms")
	t.Setenv("PROPFUZZ_LOG_MODE", "prod")
	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.Addr != ":9000" || e.LogMode != "prod" || e.GeneratorLimit != 250*time.Millisecond {
		t.Fatalf("overrides: %+v", e)
	}
	if len(e.GeneratorCmd) != 2 || e.GeneratorCmd[0] != "python3" {
		t.Fatalf("generator cmd: %q", e.GeneratorCmd)
	}

	t.Setenv("PROPFUZZ_GENERATOR_LIMIT", "soon")
	if _, err := LoadEnv(); err == nil {
		t.Fatalf("bad duration should fail")
	}
}

func TestVaild(t *testing.T) {
	sc := &SvrCfg{}
	if err := sc.Vaild(); err == nil {
		t.Fatalf("empty config should fail")
	}
	fc, err := spec.LoadJSON([]byte(`{}`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	sc = &SvrCfg{Config: fc, World: catalog.NewWorld(), Store: baseline.NewMemStore()}
	if err := sc.Vaild(); err != nil {
		t.Fatalf("vaild: %v", err)
	}
	if sc.Log == nil || sc.Addr != ":5808" || sc.PassLimit != 30*time.Second {
		t.Fatalf("defaults not applied: %+v", sc)
	}
}
