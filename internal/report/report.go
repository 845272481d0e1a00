// Package report writes air-quality reports to disk in markdown and HTML,
// one pair of files per watch area.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/gothamair/airpulse/internal/aq"
	"github.com/gothamair/airpulse/internal/insights"
)

// Writer renders snapshot reports into a directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteSnapshot writes <area>.md and <area>.html for the given snapshot.
// The insight section is included when non-nil.
func (w *Writer) WriteSnapshot(snap aq.Snapshot, insight *insights.Insight) error {
	md := renderMarkdown(snap, insight)

	mdPath := filepath.Join(w.dir, snap.Area+".md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("convert report to html: %w", err)
	}

	html := fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Air-Pulse report: %s</title></head><body>\n%s</body></html>\n",
		snap.Area, body.String())

	htmlPath := filepath.Join(w.dir, snap.Area+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}

func renderMarkdown(snap aq.Snapshot, insight *insights.Insight) string {
	summary := aq.Summarize(snap.Result)
	advice := aq.AdviceFor(snap.Request.Pollutant, summary.Average)
	unit := snap.Request.Pollutant.Unit

	var b strings.Builder
	fmt.Fprintf(&b, "# Air-Pulse Report: %s\n\n", snap.Area)
	fmt.Fprintf(&b, "Generated %s for %s within %d km of %s.\n\n",
		snap.FetchedAt.Format(time.RFC3339), snap.Request.Pollutant.Label,
		snap.Request.RadiusKM, snap.Request.Center)

	b.WriteString("## Summary\n\n")
	if summary.Count == 0 {
		b.WriteString("No readings with values were available for this run.\n\n")
	} else {
		fmt.Fprintf(&b, "- Average: %.1f %s\n", summary.Average, unit)
		fmt.Fprintf(&b, "- Peak hotspot: %.1f %s\n", summary.Peak, unit)
		fmt.Fprintf(&b, "- Cleanest spot: %.1f %s\n", summary.Minimum, unit)
		fmt.Fprintf(&b, "- Reporting sensors: %d (%d skipped)\n\n", summary.Count, snap.Result.Skipped)
		fmt.Fprintf(&b, "**Commuter guidance (%s):** %s\n\n", advice.Level, advice.Text)
	}

	if insight != nil {
		b.WriteString("## AI Health Analysis\n\n")
		fmt.Fprintf(&b, "- **Risk level:** %s\n", insight.RiskLevel)
		fmt.Fprintf(&b, "- **Summary:** %s\n", insight.Summary)
		fmt.Fprintf(&b, "- **Actionable tip:** %s\n\n", insight.ActionableTip)
	}

	if len(snap.Result.Readings) > 0 {
		b.WriteString("## Readings\n\n")
		b.WriteString("| Location | Value | Unit | Time |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, r := range snap.Result.Readings {
			val := "N/A"
			if r.Value != nil {
				val = fmt.Sprintf("%.1f", *r.Value)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r.LocationName, val, r.Unit, r.ObservedAt)
		}
		b.WriteString("\n")
	}

	return b.String()
}
