// Package report renders the end-of-run summary.
package report

import (
	"cmp"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// sampleRows caps the record table.
const sampleRows = 10

// Summary describes one finished run.
type Summary struct {
	RunID       string
	Window      config.Window
	Started     time.Time
	Duration    time.Duration
	OutputPath  string
	Degraded    bool
	Interrupted bool
	BySource    map[string]int64
	Records     []types.NewsRecord
}

// SourceCount is one row of the per-source distribution.
type SourceCount struct {
	Source string
	Count  int64
}

// Distribution orders sources by record count, largest first.
func (s Summary) Distribution() []SourceCount {
	out := make([]SourceCount, 0, len(s.BySource))
	for src, n := range s.BySource {
		out = append(out, SourceCount{Source: src, Count: n})
	}
	slices.SortFunc(out, func(a, b SourceCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Source, b.Source)
	})
	return out
}

// WriteMarkdown writes s as a Markdown document.
func WriteMarkdown(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("NewsHarvest Run Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + s.RunID + "`"},
			{"Window", s.Window.Start + " .. " + s.Window.End},
			{"Started", s.Started.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.Round(time.Second).String()},
			{"Records", strconv.Itoa(len(s.Records))},
			{"Output", s.OutputPath},
		},
	})
	md.PlainText("")

	switch {
	case s.Interrupted:
		md.Warning("The run was interrupted; the output holds partial results.")
	case s.Degraded:
		md.Note("The headless browser was unavailable; rendered sources were fetched over plain HTTP.")
	case len(s.Records) == 0:
		md.Caution("No records were harvested.")
	}
	md.PlainText("")

	writeDistribution(md, s)
	writeSample(md, s.Records)

	return md.Build()
}

func writeDistribution(md *markdown.Markdown, s Summary) {
	md.H2("Records by Source")
	md.PlainText("")

	dist := s.Distribution()
	if len(dist) == 0 {
		md.PlainText("No records.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(dist))
	chart := piechart.NewPieChart(io.Discard, piechart.WithTitle("Records by Source"), piechart.WithShowData(true))
	for _, d := range dist {
		rows = append(rows, []string{d.Source, strconv.FormatInt(d.Count, 10)})
		chart.LabelAndIntValue(d.Source, uint64(d.Count))
	}
	md.Table(markdown.TableSet{Header: []string{"Source", "Records"}, Rows: rows})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeSample(md *markdown.Markdown, records []types.NewsRecord) {
	if len(records) == 0 {
		return
	}
	md.H2("Sample Records")
	md.PlainText("")

	n := min(len(records), sampleRows)
	rows := make([][]string, 0, n)
	for _, r := range records[:n] {
		rows = append(rows, []string{parser.Truncate(r.Title, 40), r.Date, r.Source})
	}
	md.Table(markdown.TableSet{Header: []string{"Title", "Date", "Source"}, Rows: rows})
}
