package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/IshaanNene/NewsHarvest/internal/config"
)

// AuditOptions locates columns and classifies social links.
type AuditOptions struct {
	// Header is the column label set the file was written with.
	Header []string

	// SocialSource is the source label of social search proxy rows.
	SocialSource string

	// RedirectHost marks proxy redirect links; DirectHost marks links
	// that point at the article itself.
	RedirectHost string
	DirectHost   string

	// Preview is how many leading rows to echo back.
	Preview int
}

// DefaultAuditOptions derives the options from cfg.
func DefaultAuditOptions(cfg *config.Config) AuditOptions {
	return AuditOptions{
		Header:       cfg.Output.Header,
		SocialSource: cfg.Sources.Social.Name,
		RedirectHost: "weixin.sogou.com",
		DirectHost:   "mp.weixin.qq.com",
		Preview:      20,
	}
}

// AuditRow is one row of interest.
type AuditRow struct {
	Line   int
	Title  string
	Link   string
	Source string
}

// AuditReport summarizes an output CSV file.
type AuditReport struct {
	Rows     int
	BadLinks []AuditRow
	Preview  []AuditRow

	SocialRows      int
	SocialRedirects int
	SocialDirect    int
	SocialOther     int
}

// Audit reads a CSV file written by CSVStorage and checks its links. A
// leading byte order mark is skipped.
func Audit(r io.Reader, opts AuditOptions) (*AuditReport, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, []byte(utf8BOM)) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, label := range header {
		col[strings.TrimSpace(label)] = i
	}
	titleCol, linkCol, sourceCol, err := auditColumns(col, opts.Header)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", report.Rows+1, err)
		}
		report.Rows++

		row := AuditRow{Line: report.Rows}
		if titleCol < len(record) {
			row.Title = record[titleCol]
		}
		if linkCol < len(record) {
			row.Link = record[linkCol]
		}
		if sourceCol < len(record) {
			row.Source = record[sourceCol]
		}

		if len(report.Preview) < opts.Preview {
			report.Preview = append(report.Preview, row)
		}
		if !strings.HasPrefix(row.Link, "http") {
			report.BadLinks = append(report.BadLinks, row)
		}
		if opts.SocialSource != "" && row.Source == opts.SocialSource {
			report.SocialRows++
			switch {
			case opts.RedirectHost != "" && strings.Contains(row.Link, opts.RedirectHost):
				report.SocialRedirects++
			case opts.DirectHost != "" && strings.Contains(row.Link, opts.DirectHost):
				report.SocialDirect++
			default:
				report.SocialOther++
			}
		}
	}
	return report, nil
}

// auditColumns maps the title, link and source labels to column indexes.
func auditColumns(col map[string]int, labels []string) (title, link, source int, err error) {
	if len(labels) != 5 {
		return 0, 0, 0, fmt.Errorf("audit needs 5 header labels, got %d", len(labels))
	}
	idx := make([]int, 0, 3)
	for _, label := range []string{labels[0], labels[2], labels[4]} {
		i, ok := col[label]
		if !ok {
			return 0, 0, 0, fmt.Errorf("column %q not found in header", label)
		}
		idx = append(idx, i)
	}
	return idx[0], idx[1], idx[2], nil
}
