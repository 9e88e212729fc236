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
	"os/exec"
	"regexp"
	"testing"
	"time"

	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/sdk/core"
)

func TestRegexOutputMatchesPattern(t *testing.T) {
	patterns := []string{
		"enemy_[0-9]{3}",
		"a.*b",
		"[A-Z][a-z]+ the (Bold|Meek|Tall)",
		"^gob-\\d{2,4}$",
		"(?i)chest",
		"x?y*z+",
		"[^a-z]{5}",
		"\\w+@\\w+\\.com",
		"",
	}
	g := NewRegex(core.NewWithSeed(7))
	for _, p := range patterns {
		re := regexp.MustCompile("^(?:" + p + ")$")
		for range 200 {
			s, err := g.Generate(p)
			if err != nil {
				t.Fatalf("%q: unexpected error: %v", p, err)
			}
			if !re.MatchString(s) {
				t.Fatalf("%q: output %q does not match", p, s)
			}
		}
	}
}

func TestRegexDeterministic(t *testing.T) {
	a := NewRegex(core.NewWithSeed(42))
	b := NewRegex(core.NewWithSeed(42))
	for range 50 {
		x, _ := a.Generate("[a-z]{8}")
		y, _ := b.Generate("[a-z]{8}")
		if x != y {
			t.Fatalf("same seed should generate same strings: %q vs %q", x, y)
		}
	}
}

func TestRegexFailures(t *testing.T) {
	g := NewRegex(core.NewWithSeed(1))
	for _, p := range []string{"a(b", "[z-a]", "[^\\x00-\\x{10FFFF}]"} {
		_, err := g.Generate(p)
		if !errs.IsKind(err, errs.KindGeneratorUnavailable) || errs.IsFatal(err) {
			t.Fatalf("%q: expected generator unavailable warning, got %v", p, err)
		}
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable.Generate("x")
	if !errs.IsKind(err, errs.KindGeneratorUnavailable) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(p string) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return p, nil
	})
	_, err := WithTimeout(slow, 10*time.Millisecond).Generate("x")
	if !errs.IsKind(err, errs.KindGeneratorUnavailable) {
		t.Fatalf("expected timeout to be generator unavailable, got %v", err)
	}

	fast := Func(func(p string) (string, error) { return "ok:" + p, nil })
	s, err := WithTimeout(fast, time.Second).Generate("x")
	if err != nil || s != "ok:x" {
		t.Fatalf("unexpected result %q %v", s, err)
	}
	if WithTimeout(fast, 0) == nil {
		t.Fatalf("zero timeout should return the generator itself")
	}
}

func TestExec(t *testing.T) {
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}
	s, err := Exec{Path: echo, Args: []string{"gen"}}.Generate("enemy_[0-9]{3}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "gen enemy_[0-9]{3}" {
		t.Fatalf("unexpected output %q", s)
	}

	if _, err := (Exec{}).Generate("x"); !errs.IsKind(err, errs.KindGeneratorUnavailable) {
		t.Fatalf("empty command should be unavailable, got %v", err)
	}
	if _, err := (Exec{Path: "/nonexistent/generator"}).Generate("x"); !errs.IsKind(err, errs.KindGeneratorUnavailable) {
		t.Fatalf("missing command should be unavailable, got %v", err)
	}
}

func TestExecTimeout(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	start := time.Now()
	_, err = Exec{Path: sleep, Timeout: 50 * time.Millisecond}.Generate("5")
	if !errs.IsKind(err, errs.KindGeneratorUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout should kill the command")
	}
}
