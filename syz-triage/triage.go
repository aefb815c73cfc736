// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-triage takes a list of syzbot bug reports (or internally tracked bugs),
// extracts their C reproducers and replays them against a running target VM
// to tell which bugs still reproduce. See docs/example.cfg for the config.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Asiderr/syztriage/pkg/log"
	"github.com/Asiderr/syztriage/pkg/report"
	"github.com/Asiderr/syztriage/pkg/repro"
	"github.com/Asiderr/syztriage/pkg/tool"
	"github.com/Asiderr/syztriage/pkg/triage"
	"github.com/Asiderr/syztriage/pkg/vm"
)

var (
	flagConfig   = flag.String("config", "", "configuration file")
	flagVerbose  = flag.Bool("v", false, "verbose output")
	flagDryRun   = flag.Bool("dry-run", false, "validate the pipeline without executing reproducers")
	flagInternal = flag.Bool("internal", false, "triage the internally tracked bugs instead of the dashboard ones")
)

const fetchTimeout = time.Minute

func main() {
	flag.Parse()
	if *flagConfig == "" {
		tool.Failf("usage: syz-triage -config=triage.cfg [-v] [-dry-run] [-internal]")
	}
	if *flagVerbose {
		log.SetVerbosity(2)
	}
	log.EnableLogCaching(1000, 1<<20)

	cfg, err := triage.LoadConfig(*flagConfig)
	if err != nil {
		tool.Fail(err)
	}
	source := triage.ExternalBugs(cfg.Bugs)
	if *flagInternal {
		source = triage.InternalBugs(cfg.InternalBugs)
	}
	fetcher := report.NewFetcher(fetchTimeout)
	parser, err := report.NewParser(cfg.Dashboard)
	if err != nil {
		tool.Fail(err)
	}
	runner := repro.NewRunner(
		&vm.Instance{
			Addr:  cfg.VMAddr,
			Port:  cfg.VMPort,
			User:  cfg.SSHUser,
			Key:   cfg.SSHKey,
			Debug: *flagVerbose,
		},
		fetcher,
		repro.Options{
			KernelSrc:  cfg.KernelSrc,
			KernelRepo: cfg.KernelRepo,
			Timeout:    time.Duration(cfg.ReproTimeoutSec) * time.Second,
			DryRun:     *flagDryRun,
		})
	orch := triage.NewOrchestrator(cfg, fetcher, parser, runner)

	runErr := orch.Run(source)
	if err := writeRunLog(orch); err != nil {
		log.Logf(0, "failed to write run log: %v", err)
	}
	if runErr != nil {
		tool.Fail(runErr)
	}
}

// writeRunLog saves the run transcript and all VM outputs to
// syztriage-<unix-ts>.log in the current directory.
func writeRunLog(orch *triage.Orchestrator) error {
	name := fmt.Sprintf("syztriage-%v.log", time.Now().Unix())
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(log.CachedLogOutput()); err != nil {
		return err
	}
	if err := orch.DumpResults(f); err != nil {
		return err
	}
	log.Logf(0, "run log saved to %v", name)
	return nil
}
