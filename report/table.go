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

package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// TableRender 終端機表格
type TableRender struct{}

func (tr *TableRender) Write(w io.Writer, p *Pass) error {
	keys, basic := p.fmtBasic()
	if _, err := io.WriteString(w, fmtTable("propfuzz pass", keys, basic)); err != nil {
		return err
	}
	sum := p.Stats
	if sum == nil {
		sum = p.Summarize()
	}
	if len(sum) == 0 {
		return nil
	}
	pr := message.NewPrinter(lang)
	header := []string{"Type", "Field", "Source", "Interval", "N", "Min", "Max", "Mean", "Std", "p"}
	rows := make([][]string, 0, len(sum))
	for _, s := range sum {
		pv := "-"
		if s.PValue != nil {
			pv = pr.Sprintf("%.3f", *s.PValue)
		}
		rows = append(rows, []string{
			s.Type, s.Field, s.Source,
			pr.Sprintf("[%v, %v]", s.Lo, s.Hi),
			pr.Sprintf("%d", s.Count),
			pr.Sprintf("%.4g", s.Min),
			pr.Sprintf("%.4g", s.Max),
			pr.Sprintf("%.4g", s.Mean),
			pr.Sprintf("%.4g", s.Std),
			pv,
		})
	}
	_, err := io.WriteString(w, fmtGrid(header, rows))
	return err
}

// StdOut 輸出到標準輸出
func (p *Pass) StdOut() {
	(&TableRender{}).Write(os.Stdout, p)
}

func formatDuration(d time.Duration) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec < 60.0 {
		return p.Sprintf("%.3f seconds", sec)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("%dm %ds", m, s)
	}
	return p.Sprintf("%dh:%dm:%ds", h, m, s)
}

func (p *Pass) fmtBasic() ([]string, map[string]string) {
	pr := message.NewPrinter(lang)
	status := "ok"
	if p.Failed() {
		status = "fatal: " + p.Fatal.Message
	}
	basic := map[string]string{
		"Seed":           fmt.Sprintf("%d", p.Seed),
		"Started":        p.Started.Format(time.RFC3339),
		"Used":           formatDuration(p.Used),
		"Targets":        pr.Sprintf("%d", len(p.Targets)),
		"Mutations":      pr.Sprintf("%d", p.Mutations()),
		"New Properties": pr.Sprintf("%d", p.NewProperties()),
		"Warnings":       pr.Sprintf("%d", len(p.Warnings)),
		"Status":         status,
	}
	keys := []string{"Seed", "Started", "Used", "Targets", "Mutations", "New Properties", "Warnings", "Status"}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)
	if titleW > totalInner {
		maxValLen += titleW - totalInner
		totalInner = titleW
	}

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", totalInner) + "+\n"

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	fmt.Fprintf(&sb, "|%s%s%s|\n", blank(left), title, blank(right))
	sb.WriteString(divider)
	for _, k := range keys {
		fmt.Fprintf(&sb, "| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	sb.WriteString(divider)
	return sb.String()
}

// fmtGrid 多欄表格
func fmtGrid(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	var sb strings.Builder
	divider := func() {
		sb.WriteString("+")
		for _, w := range widths {
			sb.WriteString(strings.Repeat("-", w+2))
			sb.WriteString("+")
		}
		sb.WriteString("\n")
	}
	line := func(cells []string) {
		sb.WriteString("|")
		for i, c := range cells {
			fmt.Fprintf(&sb, " %s%s |", c, blank(widths[i]-runewidth.StringWidth(c)))
		}
		sb.WriteString("\n")
	}
	divider()
	line(header)
	divider()
	for _, r := range rows {
		line(r)
	}
	divider()
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
