// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"sort"
)

// Kind says where a bug comes from.
type Kind int

const (
	// External bugs live on the dashboard and are identified by a report URL.
	External Kind = iota
	// Internal bugs come from the internal tracker and carry the kernel
	// commit directly.
	Internal
)

func (k Kind) String() string {
	if k == Internal {
		return "internal"
	}
	return "external"
}

// BugRef identifies a single bug to triage. The fields are fixed at
// creation, triaging never mutates them.
type BugRef struct {
	ID     string
	Kind   Kind
	URL    string // external only: the report page
	Commit string // internal only: the kernel commit the crash was seen on
}

// Source supplies the queue of bugs to triage.
type Source interface {
	// Next returns the next bug, or false once the queue is drained.
	Next() (BugRef, bool)
}

type listSource struct {
	refs []BugRef
	pos  int
}

func (s *listSource) Next() (BugRef, bool) {
	if s.pos >= len(s.refs) {
		return BugRef{}, false
	}
	ref := s.refs[s.pos]
	s.pos++
	return ref, true
}

// ExternalBugs returns a Source over dashboard report URLs, in the given order.
// The URL doubles as the bug id.
func ExternalBugs(urls []string) Source {
	src := &listSource{}
	for _, url := range urls {
		src.refs = append(src.refs, BugRef{ID: url, Kind: External, URL: url})
	}
	return src
}

// InternalBugs returns a Source over the internal id -> commit map,
// in sorted id order so runs are deterministic.
func InternalBugs(bugs map[string]string) Source {
	ids := make([]string, 0, len(bugs))
	for id := range bugs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	src := &listSource{}
	for _, id := range ids {
		src.refs = append(src.refs, BugRef{ID: id, Kind: Internal, Commit: bugs[id]})
	}
	return src
}
