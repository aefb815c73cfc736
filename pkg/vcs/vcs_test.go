// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package vcs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckCommitHash(t *testing.T) {
	tests := []struct {
		hash string
		want bool
	}{
		{"8e4090902540da8c6e8f", true}, // syzbot's abbreviation
		{"45db3ab70092", true},         // linux tree's abbreviation
		{"8e4090902540da8c6e8f4429eeca4c7f2e8dd2b9", true},
		{"34afb82a3c67", true},
		{"8e4090902540", true},
		{"8e409090254", false},
		{"8e40909025400", false},
		{"8e4090902540da8c6e8f4429eeca4c7f2e8dd2b", false},
		{"8e4090902540da8c6e8f4429eeca4c7f2e8dd2b99", false},
		{"xxxxxxxxxxxx", false},
		{"", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, CheckCommitHash(test.hash), "hash %q", test.hash)
	}
}

func TestCheckRepoAddress(t *testing.T) {
	tests := []struct {
		repo string
		want bool
	}{
		{"git://git.cmpxchg.org/linux-mmots.git", true},
		{"https://git.kernel.org/pub/scm/linux/kernel/git/next/linux-next.git", true},
		{"git://git.kernel.org/pub/scm/linux/kernel/git/torvalds/linux.git", true},
		{"https://github.com/google/syzkaller", true},
		{"gitgitgit", false},
		{"", false},
		{"foo://bar", false},
		{"C:\\linux", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, CheckRepoAddress(test.repo), "repo %q", test.repo)
	}
}

func TestParseCommit(t *testing.T) {
	output := []byte("45db3ab70092637967967bfd8e6144017638563c\n" +
		"ext4: fix use-after-free in ext4_xattr_set_entry\n" +
		"someone@kernel.org\n" +
		"Fri Jan 19 13:45:00 2024 -0800\n")
	com, err := parseCommit(output)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "45db3ab70092637967967bfd8e6144017638563c", com.Hash)
	assert.Equal(t, "ext4: fix use-after-free in ext4_xattr_set_entry", com.Title)
	assert.Equal(t, "someone@kernel.org", com.Author)
	assert.Equal(t, 2024, com.Date.Year())

	_, err = parseCommit([]byte("garbage"))
	assert.Error(t, err)
}

func TestParseCommitDate(t *testing.T) {
	const dateFormat = "Mon Jan 2 15:04:05 2006 -0700"
	date := time.Date(2024, 1, 19, 13, 45, 0, 0, time.FixedZone("", -8*3600))
	output := []byte("45db3ab70092637967967bfd8e6144017638563c\ntitle\nauthor@x.org\n" +
		date.Format(dateFormat) + "\n")
	com, err := parseCommit(output)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, com.Date.Equal(date))
}
