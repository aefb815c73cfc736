// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package vcs

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/Asiderr/syztriage/pkg/osutil"
)

const (
	cmdTimeout   = 10 * time.Minute
	fetchTimeout = time.Hour
)

type Git struct {
	dir string
}

func NewGit(dir string) *Git {
	return &Git{
		dir: dir,
	}
}

// SwitchCommit checkouts the specified commit without fetching.
func (git *Git) SwitchCommit(commit string) (*Commit, error) {
	if _, err := git.run(cmdTimeout, "checkout", commit); err != nil {
		return nil, err
	}
	return git.HeadCommit()
}

// CheckoutCommit fetches the remote and checkouts the specified commit.
// Used when SwitchCommit fails because the commit is not known locally.
func (git *Git) CheckoutCommit(repo, commit string) (*Commit, error) {
	if _, err := git.run(cmdTimeout, "reset", "--hard"); err != nil {
		return nil, err
	}
	if err := git.fetchRemote(repo); err != nil {
		return nil, err
	}
	return git.SwitchCommit(commit)
}

func (git *Git) fetchRemote(repo string) error {
	remote := fmt.Sprintf("%x", sha1.Sum([]byte(repo)))
	// Ignore error as we can double add the same remote and that will fail.
	git.run(cmdTimeout, "remote", "add", remote, repo)
	_, err := git.run(fetchTimeout, "fetch", "-t", remote)
	return err
}

// Contains reports whether the current HEAD has the commit as an ancestor.
func (git *Git) Contains(commit string) bool {
	_, err := git.run(cmdTimeout, "merge-base", "--is-ancestor", commit, "HEAD")
	return err == nil
}

func (git *Git) HeadCommit() (*Commit, error) {
	return git.getCommit("HEAD")
}

func (git *Git) getCommit(commit string) (*Commit, error) {
	output, err := git.run(cmdTimeout, "log", "--format=%H%n%s%n%ae%n%ad", "-n", "1", commit)
	if err != nil {
		return nil, err
	}
	return parseCommit(output)
}

func parseCommit(output []byte) (*Commit, error) {
	lines := bytes.Split(output, []byte{'\n'})
	if len(lines) < 4 || len(lines[0]) != 40 {
		return nil, fmt.Errorf("unexpected git log output: %q", output)
	}
	const dateFormat = "Mon Jan 2 15:04:05 2006 -0700"
	date, err := time.Parse(dateFormat, strings.TrimSpace(string(lines[3])))
	if err != nil {
		return nil, fmt.Errorf("failed to parse date in git log output: %v\n%q", err, output)
	}
	return &Commit{
		Hash:   string(lines[0]),
		Title:  string(lines[1]),
		Author: string(lines[2]),
		Date:   date,
	}, nil
}

func (git *Git) run(timeout time.Duration, args ...string) ([]byte, error) {
	return osutil.RunCmd(timeout, git.dir, "git", args...)
}
