// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"fmt"
	"os"

	"github.com/Asiderr/syztriage/pkg/config"
	"github.com/Asiderr/syztriage/pkg/osutil"
	"github.com/Asiderr/syztriage/pkg/vcs"
)

// Config is the tool configuration, loaded from a JSON file
// (lines starting with # are treated as comments).
type Config struct {
	// Dashboard the bug report URLs point into.
	Dashboard string `json:"dashboard"`
	// Report URLs of the bugs to triage.
	Bugs []string `json:"bugs"`
	// Internally tracked bugs: id -> kernel commit the crash was seen on.
	// These have no dashboard page; reproducer sources live in internal_repro_dir
	// as repro-<id>.c and all share internal_config.
	InternalBugs     map[string]string `json:"internal_bugs"`
	InternalConfig   string            `json:"internal_config"`
	InternalReproDir string            `json:"internal_repro_dir"`
	// Kernel tree to check reported commits out in (optional).
	KernelSrc  string `json:"kernel_src"`
	KernelRepo string `json:"kernel_repo"`
	// Target VM access.
	SSHKey  string `json:"ssh_key"`
	SSHUser string `json:"ssh_user"`
	VMAddr  string `json:"vm_addr"`
	VMPort  int    `json:"vm_port"`
	// Budget for a single reproducer run inside the VM.
	ReproTimeoutSec int `json:"repro_timeout_sec"`
	// Number of bugs processed concurrently. Reproductions are still
	// serialized on the single VM.
	Workers int `json:"workers"`
}

const maxWorkers = 8

func defaultConfig() *Config {
	return &Config{
		Dashboard:        "https://syzkaller.appspot.com",
		InternalReproDir: "internal-repro",
		KernelRepo:       "git://git.kernel.org/pub/scm/linux/kernel/git/torvalds/linux.git",
		SSHUser:          "root",
		VMAddr:           "localhost",
		VMPort:           5555,
		ReproTimeoutSec:  30,
		Workers:          1,
	}
}

// LoadConfig reads, defaults and validates a configuration file.
func LoadConfig(filename string) (*Config, error) {
	cfg := defaultConfig()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Complete validates the config and fills in derived state.
func Complete(cfg *Config) error {
	if cfg.SSHKey == "" {
		return fmt.Errorf("config param ssh_key is empty")
	}
	cfg.SSHKey = osutil.Abs(cfg.SSHKey)
	cfg.KernelSrc = osutil.Abs(cfg.KernelSrc)
	cfg.InternalReproDir = osutil.Abs(cfg.InternalReproDir)
	info, err := os.Stat(cfg.SSHKey)
	if err != nil {
		return fmt.Errorf("bad config param ssh_key: %w", err)
	}
	// ssh refuses keys readable by others, catch it before the first connection.
	if info.Mode()&0077 != 0 {
		return fmt.Errorf("sshkey %v is group/world accessible", cfg.SSHKey)
	}
	if cfg.VMAddr == "" {
		return fmt.Errorf("config param vm_addr is empty")
	}
	if cfg.VMPort <= 0 || cfg.VMPort > 65535 {
		return fmt.Errorf("bad config param vm_port: %v", cfg.VMPort)
	}
	if cfg.SSHUser == "" {
		return fmt.Errorf("config param ssh_user is empty")
	}
	if cfg.ReproTimeoutSec <= 0 {
		return fmt.Errorf("bad config param repro_timeout_sec: %v", cfg.ReproTimeoutSec)
	}
	if cfg.Workers < 1 || cfg.Workers > maxWorkers {
		return fmt.Errorf("bad config param workers: %v, want [1, %v]", cfg.Workers, maxWorkers)
	}
	if cfg.KernelSrc != "" && !osutil.IsExist(cfg.KernelSrc) {
		return fmt.Errorf("bad config param kernel_src: %v does not exist", cfg.KernelSrc)
	}
	if cfg.KernelRepo != "" && !vcs.CheckRepoAddress(cfg.KernelRepo) {
		return fmt.Errorf("bad config param kernel_repo: %v", cfg.KernelRepo)
	}
	if len(cfg.InternalBugs) != 0 && cfg.InternalConfig == "" {
		return fmt.Errorf("internal_bugs are set but internal_config is empty")
	}
	return nil
}
