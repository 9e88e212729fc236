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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zintix-labs/propfuzz"
	"github.com/zintix-labs/propfuzz/catalog"
	"github.com/zintix-labs/propfuzz/demo/demo_world"
	"github.com/zintix-labs/propfuzz/errs"
	"github.com/zintix-labs/propfuzz/randomizer"
	"github.com/zintix-labs/propfuzz/report"
	"github.com/zintix-labs/propfuzz/sdk/perf"
	"github.com/zintix-labs/propfuzz/spec"
)

// errPassFailed pass 被 fatal 中止；報表已輸出，只需要非 0 結束碼。
var errPassFailed = errs.NewFatal("fuzz pass aborted")

type runFlags struct {
	format         string
	seed           int64
	generatorCmd   string
	generatorLimit time.Duration
	exact          bool
	verbose        bool
	pprof          string
}

func (c *cli) newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Run one fuzz pass over the demo world",
		Long: `Run one fuzz pass over the demo world.

The config path is tried as given, then under --content-dir. Without a
config the embedded demo config is used. New properties are detected
against the records in --baseline-dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return perf.Run(f.pprof, perf.DefaultDir, func() error {
				return c.runPass(cmd, name, f)
			})
		},
	}
	cmd.Flags().StringVarP(&f.format, "format", "f", "table", "report format: table|json|yaml|msgpack")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (0 = random)")
	cmd.Flags().StringVar(&f.generatorCmd, "generator-cmd", "", "external string generator; the pattern is passed as the last argument (default $PROPFUZZ_GENERATOR_CMD)")
	cmd.Flags().DurationVar(&f.generatorLimit, "generator-limit", c.env.GeneratorLimit, "time limit of one generator call")
	cmd.Flags().BoolVar(&f.exact, "exact", false, "resolve classes by exact type only (no subclasses)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print every mutation")
	cmd.Flags().StringVar(&f.pprof, "pprof", "", "profile the pass: cpu|heap|allocs (written to "+perf.DefaultDir+")")
	return cmd
}

func (c *cli) runPass(cmd *cobra.Command, name string, f *runFlags) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	log := c.newLogger(errOut, "cli")
	ctx := cmd.Context()
	defer setupTelemetry(ctx, log)()

	rd, err := report.ByName(f.format)
	if err != nil {
		return err
	}
	fc, src, err := loadConfig(name, c.contentDir)
	if err != nil {
		return err
	}
	store, err := c.openStore()
	if err != nil {
		return err
	}
	w, err := demo_world.NewWorld()
	if err != nil {
		return err
	}
	w.SetExact(f.exact)

	command := c.env.GeneratorCmd
	if f.generatorCmd != "" {
		command = splitCommand(f.generatorCmd)
	}

	color.NoColor = color.NoColor || !isTerminal(errOut)
	onTarget, finish := progress(errOut, countTargets(w, fc), f.verbose)
	defer finish()

	fz, err := propfuzz.New(propfuzz.Options{
		Config:    fc,
		Resolver:  w,
		Store:     store,
		Generator: newGenerator(command, f.generatorLimit),
		Seed:      f.seed,
		Log:       log,
		OnTarget:  onTarget,
	})
	if err != nil {
		return err
	}
	log.Info("fuzz pass start", slog.String("config", src), slog.Int64("seed", fz.Seed()), slog.String("baseline_dir", store.Dir()))
	pass, runErr := fz.Run(ctx)
	finish()
	if pass == nil {
		return runErr
	}
	printNewProperties(errOut, pass)
	if err := rd.Write(out, pass); err != nil {
		return errs.Wrap(err, "render report failed")
	}
	if pass.Failed() {
		return errPassFailed
	}
	return nil
}

// countTargets 進度條總數；找不到的 class 不計
func countTargets(w *catalog.World, fc *spec.FuzzConfig) int {
	n := 0
	for _, class := range fc.Classes() {
		if objs, err := w.Resolve(class); err == nil {
			n += len(objs)
		}
	}
	return n
}

// progress 終端機上顯示進度條；verbose 時改為逐筆列出 mutation。finish 可重複呼叫。
func progress(errOut io.Writer, total int, verbose bool) (func(report.Target), func()) {
	if verbose {
		return func(t report.Target) { printTarget(errOut, t) }, func() {}
	}
	if !isTerminal(errOut) || total == 0 {
		return nil, func() {}
	}
	bar := pb.New(total).SetWriter(errOut).Start()
	done := false
	return func(report.Target) { bar.Increment() }, func() {
		if !done {
			bar.Finish()
			done = true
		}
	}
}

var (
	classColor = color.New(color.FgCyan, color.Bold)
	ruleColor  = color.New(color.FgGreen)
	driftColor = color.New(color.FgYellow)
	newColor   = color.New(color.FgMagenta, color.Bold)
)

func printTarget(w io.Writer, t report.Target) {
	classColor.Fprintf(w, "%s[%d]", t.Class, t.Index)
	fmt.Fprintf(w, " %s\n", t.Type)
	for _, m := range t.Mutations {
		c := ruleColor
		if m.Source == randomizer.SourceDrift {
			c = driftColor
		}
		c.Fprintf(w, "  %-16s", m.Field)
		fmt.Fprintf(w, " %s -> %s  (%s %s)\n", m.Old, m.New, m.Source, m.Rule)
	}
}

func printNewProperties(w io.Writer, p *report.Pass) {
	for _, d := range p.Diffs {
		if len(d.Names) == 0 {
			continue
		}
		newColor.Fprintf(w, "new properties on %s:", d.Type)
		fmt.Fprintf(w, " %v\n", d.Names)
	}
}
