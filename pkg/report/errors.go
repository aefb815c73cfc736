// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package report

import "fmt"

// InvalidURLError means the bug URL is malformed; no network I/O was attempted.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (err *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid bug URL %q: %v", err.URL, err.Reason)
}

// FetchError means the report could not be retrieved: either the transport
// failed or the server replied with a non-2xx status.
type FetchError struct {
	URL    string
	Status int // 0 for transport failures
	Err    error
}

func (err *FetchError) Error() string {
	if err.Status != 0 {
		return fmt.Sprintf("failed to fetch %v: HTTP %v", err.URL, err.Status)
	}
	return fmt.Sprintf("failed to fetch %v: %v", err.URL, err.Err)
}

func (err *FetchError) Unwrap() error {
	return err.Err
}

// NotAReportError means the fetched document is not a syzbot bug report at all
// (e.g. a generic error page). Checked before any crash table scanning.
type NotAReportError struct {
	URL string
}

func (err *NotAReportError) Error() string {
	return fmt.Sprintf("%v does not provide a syzbot report", err.URL)
}

// NoCrashTableError means the document is a report but lacks the crash table.
type NoCrashTableError struct {
	URL string
}

func (err *NoCrashTableError) Error() string {
	return fmt.Sprintf("crash table not found in the bug report %v", err.URL)
}

// NoValidCrashesError means the crash table is present but contains
// no row with a C reproducer.
type NoValidCrashesError struct {
	URL string
}

func (err *NoValidCrashesError) Error() string {
	return fmt.Sprintf("no valid crashes found in the bug report %v", err.URL)
}
