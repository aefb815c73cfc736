// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package report

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CrashRecord is one row of the report's crash table.
// ReproURL/ConfigURL are absolute URLs; a field is absent when the row
// carries no link for it, and a present field is never empty.
type CrashRecord struct {
	Title     string
	Commit    string
	ReproURL  string
	ConfigURL string
}

// HasRepro reports whether the crash has a C reproducer attached.
func (r *CrashRecord) HasRepro() bool {
	return r.ReproURL != ""
}

// HasConfig reports whether the crash references a kernel config.
func (r *CrashRecord) HasConfig() bool {
	return r.ConfigURL != ""
}

// Crash table column headers as emitted by the dashboard.
const (
	colCommit = "Commit"
	colRepro  = "C repro"
	colConfig = "Config"
)

// Parser extracts crash records from fetched bug reports.
// It is a pure transformation and does no I/O.
type Parser struct {
	base *url.URL
}

// NewParser creates a parser that resolves relative links in the report
// against the dashboard address.
func NewParser(dashboard string) (*Parser, error) {
	if err := checkURL(dashboard); err != nil {
		return nil, err
	}
	base, err := url.Parse(dashboard)
	if err != nil {
		return nil, &InvalidURLError{URL: dashboard, Reason: err.Error()}
	}
	return &Parser{base: base}, nil
}

// Parse extracts crash records from the report, in table row order.
// Rows without a C reproducer are not actionable for triage and are skipped.
// Failure modes, in checking order: NotAReportError when the document lacks
// the syzbot markers, NoCrashTableError when the crash table is missing,
// NoValidCrashesError when the table yields no usable rows.
func (p *Parser) Parse(raw *RawReport) ([]CrashRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, &NotAReportError{URL: raw.URL}
	}
	if !isReport(doc) {
		return nil, &NotAReportError{URL: raw.URL}
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	table := findCrashTable(doc)
	if table == nil {
		return nil, &NoCrashTableError{URL: raw.URL}
	}
	cols := headerColumns(table)
	commitIdx, okCommit := cols[colCommit]
	reproIdx, okRepro := cols[colRepro]
	configIdx, okConfig := cols[colConfig]
	if !okCommit || !okRepro {
		// A "Crashes" caption over something that is not the crash table.
		return nil, &NoCrashTableError{URL: raw.URL}
	}
	var records []CrashRecord
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= commitIdx || cells.Length() <= reproIdx {
			return // header or malformed row
		}
		rec := CrashRecord{
			Title:    title,
			Commit:   strings.TrimSpace(cells.Eq(commitIdx).Text()),
			ReproURL: p.cellLink(cells.Eq(reproIdx)),
		}
		if okConfig && cells.Length() > configIdx {
			rec.ConfigURL = p.cellLink(cells.Eq(configIdx))
		}
		if !rec.HasRepro() {
			return
		}
		records = append(records, rec)
	})
	if len(records) == 0 {
		return nil, &NoValidCrashesError{URL: raw.URL}
	}
	return records, nil
}

// isReport checks the report structure marker: every syzbot bug page links
// back to the upstream bug list. Checked ahead of the crash table search so
// that arbitrary fetched content produces a precise diagnostic.
func isReport(doc *goquery.Document) bool {
	found := false
	doc.Find(`a[href="/upstream"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == "syzbot" {
			found = true
			return false
		}
		return true
	})
	return found
}

func findCrashTable(doc *goquery.Document) *goquery.Selection {
	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		caption := strings.TrimSpace(s.Find("caption").First().Text())
		if strings.HasPrefix(caption, "Crashes") {
			table = s
			return false
		}
		return true
	})
	return table
}

func headerColumns(table *goquery.Selection) map[string]int {
	cols := make(map[string]int)
	table.Find("tr").First().Find("th, td").Each(func(i int, s *goquery.Selection) {
		cols[strings.TrimSpace(s.Text())] = i
	})
	return cols
}

// cellLink returns the absolute URL of the first link in the cell,
// or "" when the cell has no link (the field is absent).
func (p *Parser) cellLink(cell *goquery.Selection) string {
	href, ok := cell.Find("a").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}
