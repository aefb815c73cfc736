// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package repro builds C reproducers and runs them inside the target VM,
// classifying what happened as a reproduction outcome.
package repro

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Asiderr/syztriage/pkg/log"
	"github.com/Asiderr/syztriage/pkg/osutil"
	"github.com/Asiderr/syztriage/pkg/report"
	"github.com/Asiderr/syztriage/pkg/vcs"
)

// Outcome is the terminal classification of a reproduction attempt.
// It is always a value, never an error: a reproducer that fails to run
// still yields a Result with OutcomeExecError.
type Outcome int

const (
	OutcomeCrash Outcome = iota
	OutcomeNoCrash
	OutcomeExecError
	OutcomeDryRun
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCrash:
		return "reproduced crash"
	case OutcomeNoCrash:
		return "no crash"
	case OutcomeExecError:
		return "execution error"
	case OutcomeDryRun:
		return "dry run"
	}
	return fmt.Sprintf("unknown outcome %v", int(o))
}

// Request describes one reproduction attempt.
// External bugs carry ReproURL, internal bugs carry ReproFile.
type Request struct {
	Bug       string // bug identifier, used for logging and in the result
	Commit    string // kernel commit the crash was reported on
	ConfigURL string // kernel config to place into the kernel tree
	ReproURL  string // C reproducer source to download
	ReproFile string // local C reproducer source
}

// Result is the immutable record of one attempt.
type Result struct {
	Bug         string
	AttemptID   string
	AttemptedAt time.Time
	Outcome     Outcome
	Output      []byte // remote output, possibly truncated
	DryRun      bool
}

// Session is the remote execution surface of the VM (see vm.Instance).
type Session interface {
	Test() error
	Copy(hostSrc string) (string, error)
	Run(timeout time.Duration, command string) ([]byte, error)
}

// Fetcher downloads reproduction artifacts (reproducer sources, kernel configs).
type Fetcher interface {
	Fetch(url string) (*report.RawReport, error)
}

// Options configures a Runner.
type Options struct {
	KernelSrc  string // kernel tree to check the commit out in; empty disables kernel prep
	KernelRepo string // remote to fetch from when the commit is not present locally
	Timeout    time.Duration
	DryRun     bool
}

const (
	defaultTimeout = 30 * time.Second
	buildTimeout   = 5 * time.Minute

	// Remote output kept in a result. Crashes report at the tail,
	// so truncation drops the head.
	maxOutputSize = 128 << 10
)

// Runner reproduces crashes in the target VM.
type Runner struct {
	session Session
	fetcher Fetcher
	git     *vcs.Git
	opts    Options
	compile compileFunc
}

type compileFunc func(src, bin string) error

func NewRunner(session Session, fetcher Fetcher, opts Options) *Runner {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	r := &Runner{
		session: session,
		fetcher: fetcher,
		opts:    opts,
		compile: compileRepro,
	}
	if opts.KernelSrc != "" {
		r.git = vcs.NewGit(opts.KernelSrc)
	}
	return r
}

// Reproduce runs one attempt end to end: prepare the kernel tree, build the
// reproducer, push it into the VM and execute it. It never fails outright,
// every path ends in a Result.
func (r *Runner) Reproduce(req *Request) *Result {
	res := &Result{
		Bug:         req.Bug,
		AttemptID:   uuid.New().String(),
		AttemptedAt: time.Now(),
		DryRun:      r.opts.DryRun,
	}
	// Connectivity and credentials are validated even in dry-run mode.
	if err := r.session.Test(); err != nil {
		return r.failed(res, err)
	}
	if r.opts.DryRun {
		log.Logf(0, "%v: dry run, skipping reproduction", req.Bug)
		res.Outcome = OutcomeDryRun
		return res
	}
	if err := r.prepareKernel(req); err != nil {
		return r.failed(res, err)
	}
	bin, err := r.buildRepro(req)
	if err != nil {
		return r.failed(res, err)
	}
	defer os.Remove(bin)
	vmBin, err := r.session.Copy(bin)
	if err != nil {
		return r.failed(res, err)
	}
	out, err := r.session.Run(r.opts.Timeout, vmBin)
	res.Output = Truncate(out)
	// A successful reproduction typically kills the connection or hangs
	// the command, so the crash markers in the output take precedence
	// over the execution error.
	switch {
	case ContainsCrash(out):
		res.Outcome = OutcomeCrash
	case err != nil:
		log.Logf(0, "%v: reproducer did not run cleanly: %v", req.Bug, err)
		res.Outcome = OutcomeExecError
	default:
		res.Outcome = OutcomeNoCrash
	}
	return res
}

func (r *Runner) failed(res *Result, err error) *Result {
	log.Logf(0, "%v: reproduction failed: %v", res.Bug, err)
	res.Outcome = OutcomeExecError
	res.Output = Truncate([]byte(err.Error()))
	return res
}

// prepareKernel checks the reported commit out in the kernel tree and places
// the reported config as .config, so the tree matches what the bug ran on.
func (r *Runner) prepareKernel(req *Request) error {
	if r.git == nil {
		return nil
	}
	if req.Commit != "" {
		if !vcs.CheckCommitHash(req.Commit) {
			return fmt.Errorf("bad kernel commit hash %q", req.Commit)
		}
		if r.git.Contains(req.Commit) {
			if _, err := r.git.SwitchCommit(req.Commit); err != nil {
				return osutil.PrependContext("kernel checkout failed", err)
			}
		} else {
			log.Logf(1, "%v: commit %v not present locally, fetching %v",
				req.Bug, req.Commit, r.opts.KernelRepo)
			if _, err := r.git.CheckoutCommit(r.opts.KernelRepo, req.Commit); err != nil {
				return osutil.PrependContext("kernel checkout failed", err)
			}
		}
	}
	if req.ConfigURL != "" {
		raw, err := r.fetcher.Fetch(req.ConfigURL)
		if err != nil {
			return osutil.PrependContext("kernel config download failed", err)
		}
		cfgFile := filepath.Join(r.opts.KernelSrc, ".config")
		if err := osutil.WriteFile(cfgFile, raw.Body); err != nil {
			return err
		}
		log.Logf(1, "%v: kernel config written to %v", req.Bug, cfgFile)
	}
	return nil
}

// buildRepro obtains the C reproducer source and compiles it statically,
// returning the path of the binary. The caller removes the binary.
func (r *Runner) buildRepro(req *Request) (string, error) {
	src := req.ReproFile
	if req.ReproURL != "" {
		raw, err := r.fetcher.Fetch(req.ReproURL)
		if err != nil {
			return "", osutil.PrependContext("reproducer download failed", err)
		}
		src, err = osutil.TempFile("syzbot-repro-*.c")
		if err != nil {
			return "", err
		}
		defer os.Remove(src)
		if err := osutil.WriteFile(src, raw.Body); err != nil {
			return "", err
		}
	}
	if src == "" {
		return "", fmt.Errorf("%v: no reproducer source", req.Bug)
	}
	if err := osutil.IsAccessible(src); err != nil {
		return "", err
	}
	bin, err := osutil.TempFile("syzbot-repro")
	if err != nil {
		return "", err
	}
	if err := r.compile(src, bin); err != nil {
		os.Remove(bin)
		return "", osutil.PrependContext("reproducer build failed", err)
	}
	return bin, nil
}

// Reproducers are linked statically so the binary does not depend on
// anything inside the VM image.
func compileRepro(src, bin string) error {
	_, err := osutil.RunCmd(buildTimeout, "", "clang", "-static", "-lpthread", src, "-o", bin)
	return err
}

// Kernel oops headers that mark the reproduction as successful.
// "Rebooting in" covers panic_timeout reboots where the oops itself
// scrolled past the captured output.
var oopses = [][]byte{
	[]byte("Kernel panic"),
	[]byte("BUG:"),
	[]byte("KASAN:"),
	[]byte("KMSAN:"),
	[]byte("KCSAN:"),
	[]byte("WARNING:"),
	[]byte("INFO: rcu"),
	[]byte("general protection fault"),
	[]byte("Unable to handle kernel"),
	[]byte("Rebooting in"),
}

// ContainsCrash reports whether the output contains a kernel crash marker.
func ContainsCrash(output []byte) bool {
	for _, oops := range oopses {
		if bytes.Contains(output, oops) {
			return true
		}
	}
	return false
}

var truncatedMarker = []byte("<<output truncated>>\n")

// Truncate caps output at maxOutputSize, keeping the tail.
func Truncate(output []byte) []byte {
	if len(output) <= maxOutputSize {
		return output
	}
	res := make([]byte, 0, len(truncatedMarker)+maxOutputSize)
	res = append(res, truncatedMarker...)
	return append(res, output[len(output)-maxOutputSize:]...)
}
