// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package vm provides a remote shell session to the target VM.
// The VM image and boot process are external: the instance is assumed
// to be already reachable at Addr:Port with the configured key.
package vm

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Asiderr/syztriage/pkg/log"
	"github.com/Asiderr/syztriage/pkg/osutil"
)

const (
	testTimeout = time.Minute
	copyTimeout = 10 * time.Minute

	// Reproducers land in the root home dir, like the rest of the tooling expects.
	targetDir = "/root"
)

// Instance is a single booted target VM.
type Instance struct {
	Addr  string
	Port  int
	User  string
	Key   string
	Debug bool
}

// runCmd is stubbed in tests so they don't shell out.
var runCmd = osutil.RunCmd

// Test validates connectivity and credentials by running a no-op remotely.
func (inst *Instance) Test() error {
	if _, err := inst.ssh(testTimeout, ":"); err != nil {
		return osutil.PrependContext("vm connection check failed", err)
	}
	return nil
}

// Copy copies a hostSrc file into the VM and returns the file name in the VM.
func (inst *Instance) Copy(hostSrc string) (string, error) {
	vmDst := filepath.Join(targetDir, filepath.Base(hostSrc))
	args := append(inst.scpArgs(), hostSrc, fmt.Sprintf("%v@%v:%v", inst.User, inst.Addr, vmDst))
	if inst.Debug {
		log.Logf(0, "running command: scp %#v", args)
	}
	if _, err := runCmd(copyTimeout, "", "scp", args...); err != nil {
		return "", err
	}
	return vmDst, nil
}

// Run runs command inside the VM (think of ssh cmd) with the given timeout
// and returns combined output.
func (inst *Instance) Run(timeout time.Duration, command string) ([]byte, error) {
	return inst.ssh(timeout, command)
}

func (inst *Instance) ssh(timeout time.Duration, args ...string) ([]byte, error) {
	sshArgs := append(inst.sshArgs(), args...)
	if inst.Debug {
		log.Logf(0, "running command: ssh %#v", sshArgs)
	}
	return runCmd(timeout, "", "ssh", sshArgs...)
}

func (inst *Instance) sshArgs() []string {
	return append(sshOptions(inst.Key), "-p", fmt.Sprint(inst.Port), inst.User+"@"+inst.Addr)
}

func (inst *Instance) scpArgs() []string {
	return append(sshOptions(inst.Key), "-P", fmt.Sprint(inst.Port))
}

func sshOptions(key string) []string {
	return []string{
		"-i", key,
		"-o", "BatchMode=yes",
		"-o", "IdentitiesOnly=yes",
		"-o", "ConnectTimeout=10",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "StrictHostKeyChecking=no",
		"-o", "NoHostAuthenticationForLocalhost=yes",
	}
}
