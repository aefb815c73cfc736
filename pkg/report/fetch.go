// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package report retrieves syzbot bug reports and extracts crash records
// from their crash tables.
package report

import (
	"io"
	"net/http"
	"net/url"
	"time"
)

// Reports are HTML pages of a few hundred KB; anything bigger is not a report.
const maxReportSize = 1 << 20

// RawReport is the fetched content of a single bug report.
// It is consumed once by Parse and not retained beyond the triage attempt.
type RawReport struct {
	URL       string
	Body      []byte
	FetchedAt time.Time
}

// Fetcher retrieves bug reports and reproducer/config artifacts over HTTP.
// There is no caching and no retry: each triage attempt re-fetches,
// and a fetch failure is fatal for that bug only.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the document at rawURL.
// The URL is validated before any network I/O (InvalidURLError),
// transport failures and non-2xx statuses become FetchError.
func (f *Fetcher) Fetch(rawURL string) (*RawReport, error) {
	if err := checkURL(rawURL); err != nil {
		return nil, err
	}
	resp, err := f.client.Get(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return &RawReport{
		URL:       rawURL,
		Body:      body,
		FetchedAt: time.Now(),
	}, nil
}

func checkURL(rawURL string) error {
	if rawURL == "" {
		return &InvalidURLError{URL: rawURL, Reason: "empty URL"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidURLError{URL: rawURL, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidURLError{URL: rawURL, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &InvalidURLError{URL: rawURL, Reason: "missing host"}
	}
	return nil
}
