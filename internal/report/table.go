// Package report renders benchmark cycles as console tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/appnet-org/wirebench/internal/bench"
	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"
)

// Columns are the table headings, in order.
var Columns = []string{"Client", "Data Size (KB)", "Network Time (s)", "Deserialization Time (s)"}

const missing = "-"

// Table writes one minimal-format table per cycle:
//
//	Client  | Data Size (KB) | Network Time (s) | Deserialization Time (s)
//	---------------------------------------------------------------------
//	WebAPI  | 1.00           | 0.25             | 1.50
type Table struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTable creates a Table writing to w.
func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

// Observe implements bench.Observer. Write errors are logged.
func (t *Table) Observe(c bench.Cycle) {
	if err := t.Render(c); err != nil {
		logging.Error("Failed to write report", zap.Stringer("cycle", c.ID), zap.Error(err))
	}
}

// Render writes the table for c. Clients without a sample get a row of "-".
func (t *Table) Render(c bench.Cycle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, Format(c))
	return err
}

// Format returns the table for c as a string.
func Format(c bench.Cycle) string {
	rows := [][]string{Columns}
	for _, name := range clientOrder(c) {
		rows = append(rows, row(c, name))
	}

	widths := make([]int, len(Columns))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var b strings.Builder
	writeRow(&b, rows[0], widths)
	total := 3 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	b.WriteString(strings.Repeat("-", total))
	b.WriteString("\n")
	for _, r := range rows[1:] {
		writeRow(&b, r, widths)
	}
	b.WriteString("\n")
	return b.String()
}

// clientOrder returns the client names in call order. Cycles built by hand
// without Clients fall back to samples then failures.
func clientOrder(c bench.Cycle) []string {
	if len(c.Clients) > 0 {
		return c.Clients
	}
	names := make([]string, 0, len(c.Samples)+len(c.Failures))
	for _, s := range c.Samples {
		names = append(names, s.Client)
	}
	for _, f := range c.Failures {
		names = append(names, f.Client)
	}
	return names
}

func row(c bench.Cycle, name string) []string {
	for _, s := range c.Samples {
		if s.Client == name {
			return []string{
				name,
				formatFloat(s.DataSizeKB),
				formatFloat(s.NetworkSeconds),
				formatFloat(s.DeserializationSeconds),
			}
		}
	}
	return []string{name, missing, missing, missing}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(" | ")
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
	}
	b.WriteString("\n")
}
