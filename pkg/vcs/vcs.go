// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package vcs prepares the kernel source tree for reproduction:
// it checks out the crash commit, fetching from the configured remote
// when the commit is not known locally.
package vcs

import (
	"regexp"
	"time"
)

type Commit struct {
	Hash   string
	Title  string
	Author string
	Date   time.Time
}

var (
	gitRepoRe = regexp.MustCompile(`^(git|ssh|http|https|ftp|ftps)://[a-zA-Z0-9-_]+(\.[a-zA-Z0-9-_]+)+(:[0-9]+)?(/[a-zA-Z0-9-_./~]+)?(/)?$`)
	gitHashRe = regexp.MustCompile("^[a-f0-9]+$")
)

// CheckRepoAddress does a best-effort approximate check of a git repo address.
func CheckRepoAddress(repo string) bool {
	return gitRepoRe.MatchString(repo)
}

// CheckCommitHash accepts the abbreviated and full hash lengths
// that the syzbot dashboard emits.
func CheckCommitHash(hash string) bool {
	if !gitHashRe.MatchString(hash) {
		return false
	}
	ln := len(hash)
	return ln == 8 || ln == 10 || ln == 12 || ln == 16 || ln == 20 || ln == 40
}
