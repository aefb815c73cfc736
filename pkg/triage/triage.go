// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package triage drives the pipeline: fetch the report, parse the crash
// table, pick a reproducible crash and hand it to the reproduction runner.
// A failure on one bug never stops the others.
package triage

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Asiderr/syztriage/pkg/log"
	"github.com/Asiderr/syztriage/pkg/report"
	"github.com/Asiderr/syztriage/pkg/repro"
)

// Fetcher downloads raw report pages (see report.Fetcher).
type Fetcher interface {
	Fetch(url string) (*report.RawReport, error)
}

// Parser extracts crash records from a raw report (see report.Parser).
type Parser interface {
	Parse(raw *report.RawReport) ([]report.CrashRecord, error)
}

// Runner performs one reproduction attempt (see repro.Runner).
type Runner interface {
	Reproduce(req *repro.Request) *repro.Result
}

// Orchestrator triages a queue of bugs against a single VM.
type Orchestrator struct {
	cfg     *Config
	fetcher Fetcher
	parser  Parser
	runner  Runner

	// The VM runs one reproducer at a time, even with workers > 1.
	vmLock sync.Mutex

	mu      sync.Mutex
	results []*repro.Result
	failed  []string
}

func NewOrchestrator(cfg *Config, fetcher Fetcher, parser Parser, runner Runner) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  parser,
		runner:  runner,
	}
}

// Run triages every bug the source yields. It returns an error if the queue
// was empty or if any bug failed (fetch, parse or execution), after all bugs
// had their chance.
func (o *Orchestrator) Run(source Source) error {
	var refs []BugRef
	for {
		ref, ok := source.Next()
		if !ok {
			break
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return fmt.Errorf("no bugs to triage")
	}
	if o.cfg.Workers <= 1 {
		for _, ref := range refs {
			o.triageBug(ref)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.cfg.Workers)
		for _, ref := range refs {
			ref := ref
			g.Go(func() error {
				o.triageBug(ref)
				return nil
			})
		}
		g.Wait()
	}
	o.logSummary(len(refs))
	if n := len(o.failed); n != 0 {
		return fmt.Errorf("%v of %v bugs failed triage", n, len(refs))
	}
	return nil
}

func (o *Orchestrator) triageBug(ref BugRef) {
	log.Logf(0, "%v: triaging %v bug", ref.ID, ref.Kind)
	req, err := o.prepare(ref)
	if err != nil {
		log.Logf(0, "%v: %v", ref.ID, err)
		o.recordFailure(ref.ID)
		return
	}
	o.vmLock.Lock()
	res := o.runner.Reproduce(req)
	o.vmLock.Unlock()
	log.Logf(0, "%v: %v", ref.ID, res.Outcome)
	o.mu.Lock()
	o.results = append(o.results, res)
	if res.Outcome == repro.OutcomeExecError {
		o.failed = append(o.failed, ref.ID)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) recordFailure(id string) {
	o.mu.Lock()
	o.failed = append(o.failed, id)
	o.mu.Unlock()
}

// prepare turns a bug reference into a reproduction request. External bugs go
// through the dashboard report, internal bugs already carry everything needed.
func (o *Orchestrator) prepare(ref BugRef) (*repro.Request, error) {
	if ref.Kind == Internal {
		return &repro.Request{
			Bug:       ref.ID,
			Commit:    ref.Commit,
			ConfigURL: o.cfg.InternalConfig,
			ReproFile: filepath.Join(o.cfg.InternalReproDir, "repro-"+ref.ID+".c"),
		}, nil
	}
	raw, err := o.fetcher.Fetch(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	crashes, err := o.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	// The table is ordered newest first, take the first crash with a
	// reproducer (the parser already dropped the rows without one).
	crash := crashes[0]
	log.Logf(1, "%v: %q, commit %v", ref.ID, crash.Title, crash.Commit)
	return &repro.Request{
		Bug:       ref.ID,
		Commit:    crash.Commit,
		ConfigURL: crash.ConfigURL,
		ReproURL:  crash.ReproURL,
	}, nil
}

// Results returns all reproduction attempts recorded so far.
func (o *Orchestrator) Results() []*repro.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*repro.Result{}, o.results...)
}

func (o *Orchestrator) logSummary(total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var reproduced, clean, skipped []string
	for _, res := range o.results {
		switch res.Outcome {
		case repro.OutcomeCrash:
			reproduced = append(reproduced, res.Bug)
		case repro.OutcomeNoCrash:
			clean = append(clean, res.Bug)
		case repro.OutcomeDryRun:
			skipped = append(skipped, res.Bug)
		}
	}
	log.Logf(0, "triaged %v bugs: %v reproduced, %v not reproduced, %v dry run, %v failed",
		total, len(reproduced), len(clean), len(skipped), len(o.failed))
	for _, id := range reproduced {
		log.Logf(0, "reproduced: %v", id)
	}
	for _, id := range clean {
		log.Logf(0, "not reproduced: %v", id)
	}
	for _, id := range o.failed {
		log.Logf(0, "failed: %v", id)
	}
}

// DumpResults writes every attempt with its VM output to w,
// for the per-run log file.
func (o *Orchestrator) DumpResults(w io.Writer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, res := range o.results {
		_, err := fmt.Fprintf(w, "==== %v (attempt %v, %v) ====\n%s\n",
			res.Bug, res.AttemptID, res.Outcome, res.Output)
		if err != nil {
			return err
		}
	}
	return nil
}
