package diskprep

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/inventory"
	"github.com/mlara/diskmanager/internal/operr"
)

type fakeRunner struct {
	tools map[string]bool
	fail  map[string]int // command name -> exit code
	calls [][]string
	stdin []string
}

func (f *fakeRunner) Run(args []string, _ time.Duration) execx.Result {
	f.calls = append(f.calls, args)
	if code, ok := f.fail[args[0]]; ok {
		return execx.Result{Args: args, ExitCode: code, Stderr: args[0] + ": error"}
	}
	return execx.Result{Args: args}
}

func (f *fakeRunner) RunInput(args []string, stdin string, d time.Duration) execx.Result {
	f.stdin = append(f.stdin, stdin)
	return f.Run(args, d)
}

func (f *fakeRunner) Have(tool string) bool { return f.tools[tool] }

func (f *fakeRunner) ran(name string) bool {
	for _, c := range f.calls {
		if c[0] == name {
			return true
		}
	}
	return false
}

func fakeBlockDevice(t *testing.T, exists bool) {
	t.Helper()
	orig := isBlockDevice
	isBlockDevice = func(string) bool { return exists }
	t.Cleanup(func() { isBlockDevice = orig })
}

func childPartition(name string, size int64) inventory.BlockDevice {
	return inventory.BlockDevice{
		Name:      name,
		Path:      "/dev/" + name,
		Parent:    "sdb",
		Kind:      inventory.KindPartition,
		SizeBytes: size,
	}
}

func TestWipeValidation(t *testing.T) {
	fakeBlockDevice(t, true)

	p := New(&fakeRunner{}, func() []inventory.BlockDevice { return nil }, nil)

	var ve *operr.ValidationError
	_, _, err := p.WipeAndCreateSinglePartition("", false)
	assert.True(t, errors.As(err, &ve))

	_, _, err = p.WipeAndCreateSinglePartition("../sdb", false)
	assert.True(t, errors.As(err, &ve))

	_, _, err = p.WipeAndCreateSinglePartition("sdb; rm", false)
	assert.True(t, errors.As(err, &ve))
}

func TestWipeNotABlockDevice(t *testing.T) {
	fakeBlockDevice(t, false)

	p := New(&fakeRunner{}, func() []inventory.BlockDevice { return nil }, nil)
	var ve *operr.ValidationError
	_, _, err := p.WipeAndCreateSinglePartition("sdb", false)
	assert.True(t, errors.As(err, &ve))
}

func TestWipeNoPartitioner(t *testing.T) {
	fakeBlockDevice(t, true)

	run := &fakeRunner{tools: map[string]bool{"wipefs": true}}
	p := New(run, func() []inventory.BlockDevice { return nil }, nil)

	var tue *operr.ToolUnavailableError
	_, _, err := p.WipeAndCreateSinglePartition("sdb", false)
	require.True(t, errors.As(err, &tue))
	assert.Equal(t, "parted", tue.Tool)
}

func TestWipeWithParted(t *testing.T) {
	fakeBlockDevice(t, true)

	run := &fakeRunner{tools: map[string]bool{
		"parted": true, "sgdisk": true, "wipefs": true, "partprobe": true, "udevadm": true,
	}}
	list := func() []inventory.BlockDevice {
		return []inventory.BlockDevice{
			childPartition("sdb2", 2<<30),
			childPartition("sdb1", 1<<20),
			{Name: "sdc1", Path: "/dev/sdc1", Parent: "sdc", Kind: inventory.KindPartition, SizeBytes: 5 << 30},
		}
	}
	p := New(run, list, nil)

	path, steps, err := p.WipeAndCreateSinglePartition("sdb", true)
	require.NoError(t, err)

	// Largest child of the target disk wins, not the biggest partition overall.
	assert.Equal(t, "/dev/sdb2", path)

	assert.Contains(t, steps, "wipefs: OK")
	assert.Contains(t, steps, "sgdisk --zap-all: OK")
	assert.Contains(t, steps, "parted: GPT + 1 partition: OK")
	assert.Contains(t, steps, "msftdata=on: OK")

	assert.True(t, run.ran("umount"))
	assert.True(t, run.ran("partprobe"))
	assert.True(t, run.ran("udevadm"))
	assert.False(t, run.ran("sfdisk"))
}

func TestWipePartedFailure(t *testing.T) {
	fakeBlockDevice(t, true)

	run := &fakeRunner{
		tools: map[string]bool{"parted": true},
		fail:  map[string]int{"parted": 1},
	}
	p := New(run, func() []inventory.BlockDevice { return nil }, nil)

	var ece *operr.ExternalCommandError
	_, _, err := p.WipeAndCreateSinglePartition("sdb", false)
	require.True(t, errors.As(err, &ece))
	assert.Contains(t, ece.Cmd, "parted")
}

func TestWipeSfdiskFallback(t *testing.T) {
	fakeBlockDevice(t, true)

	run := &fakeRunner{tools: map[string]bool{"sfdisk": true, "sgdisk": true}}
	list := func() []inventory.BlockDevice {
		return []inventory.BlockDevice{childPartition("sdb1", 4<<30)}
	}
	p := New(run, list, nil)

	path, steps, err := p.WipeAndCreateSinglePartition("sdb", true)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb1", path)
	assert.Contains(t, steps, "sfdisk: GPT + 1 partition: OK")
	assert.Contains(t, steps, "msftdata")

	require.Len(t, run.stdin, 1)
	assert.Equal(t, "label: gpt\n,\n", run.stdin[0])
	assert.False(t, run.ran("parted"))
}

func TestWipeRetriesEnumeration(t *testing.T) {
	fakeBlockDevice(t, true)

	run := &fakeRunner{tools: map[string]bool{"parted": true, "udevadm": true}}
	attempts := 0
	list := func() []inventory.BlockDevice {
		attempts++
		if attempts < 2 {
			return nil
		}
		return []inventory.BlockDevice{childPartition("sdb1", 4<<30)}
	}
	p := New(run, list, nil)

	path, _, err := p.WipeAndCreateSinglePartition("sdb", false)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb1", path)
	assert.Equal(t, 2, attempts)
}

func TestWipeNoPartitionAppears(t *testing.T) {
	fakeBlockDevice(t, true)

	run := &fakeRunner{tools: map[string]bool{"parted": true}}
	p := New(run, func() []inventory.BlockDevice { return nil }, nil)

	var pre *operr.PreconditionError
	_, steps, err := p.WipeAndCreateSinglePartition("sdb", false)
	require.True(t, errors.As(err, &pre))
	assert.Contains(t, steps, "parted")
}

func TestFindNewPartitionRejectsOddPaths(t *testing.T) {
	fakeBlockDevice(t, true)

	list := func() []inventory.BlockDevice {
		return []inventory.BlockDevice{{
			Name: "sdb1", Path: "../etc/passwd", Parent: "sdb",
			Kind: inventory.KindPartition, SizeBytes: 1 << 30,
		}}
	}
	p := New(&fakeRunner{}, list, nil)
	_, ok := p.findNewPartition("sdb")
	assert.False(t, ok)
}

func TestSettleWithoutUdevadm(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{}
	Settle(run, time.Second)
	assert.Empty(t, run.calls)

	run = &fakeRunner{tools: map[string]bool{"udevadm": true}}
	Settle(run, time.Second)
	require.Len(t, run.calls, 1)
	assert.True(t, strings.HasPrefix(strings.Join(run.calls[0], " "), "udevadm settle"))
}
