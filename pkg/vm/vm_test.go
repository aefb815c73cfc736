// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package vm

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asiderr/syztriage/pkg/osutil"
)

type fakeExec struct {
	bin    string
	args   []string
	output []byte
	err    error
}

func (f *fakeExec) run(timeout time.Duration, dir, bin string, args ...string) ([]byte, error) {
	f.bin = bin
	f.args = args
	return f.output, f.err
}

func testInstance() *Instance {
	return &Instance{
		Addr: "localhost",
		Port: 5555,
		User: "root",
		Key:  "/keys/id_ed25519",
	}
}

func TestRunCommandLine(t *testing.T) {
	fake := &fakeExec{output: []byte("hello\n")}
	runCmd = fake.run
	defer func() { runCmd = osutil.RunCmd }()

	out, err := testInstance().Run(time.Second, "uname -a")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), out)
	assert.Equal(t, "ssh", fake.bin)
	assert.Contains(t, fake.args, "root@localhost")
	assert.Contains(t, fake.args, "uname -a")
	assert.Contains(t, fake.args, "/keys/id_ed25519")
	assert.Contains(t, fake.args, "BatchMode=yes")
	assert.Contains(t, fake.args, "IdentitiesOnly=yes")
	assert.Contains(t, fake.args, "NoHostAuthenticationForLocalhost=yes")
	// The remote command must come last, after all ssh options.
	assert.Equal(t, "uname -a", fake.args[len(fake.args)-1])
}

func TestCopyCommandLine(t *testing.T) {
	fake := &fakeExec{}
	runCmd = fake.run
	defer func() { runCmd = osutil.RunCmd }()

	vmDst, err := testInstance().Copy("/tmp/build/syzbot-repro")
	require.NoError(t, err)
	assert.Equal(t, "/root/syzbot-repro", vmDst)
	assert.Equal(t, "scp", fake.bin)
	assert.Contains(t, fake.args, "/tmp/build/syzbot-repro")
	assert.Contains(t, fake.args, "root@localhost:/root/syzbot-repro")
	// scp takes the port via -P, not -p.
	assert.Contains(t, fake.args, "-P")
	assert.NotContains(t, fake.args, "-p")
}

func TestTest(t *testing.T) {
	fake := &fakeExec{}
	runCmd = fake.run
	defer func() { runCmd = osutil.RunCmd }()

	inst := testInstance()
	require.NoError(t, inst.Test())
	assert.Equal(t, ":", fake.args[len(fake.args)-1])

	fake.err = fmt.Errorf("ssh: connect to host localhost port 5555: Connection refused")
	err := inst.Test()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vm connection check failed")
}
