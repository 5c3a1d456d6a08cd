// Package diskprep rebuilds a physical disk's partition layout: wipe all
// signatures, write a fresh GPT with one whole-disk partition, then wait for
// the kernel to re-enumerate and identify the new partition node.
package diskprep

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/inventory"
	"github.com/mlara/diskmanager/internal/operr"
)

var deviceNameRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// isBlockDevice is a seam so tests can fake device nodes.
var isBlockDevice = func(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK
}

// Settle asks udev to finish processing pending device events. Best-effort;
// without udevadm it is a no-op.
func Settle(run execx.Runner, timeout time.Duration) {
	if run.Have("udevadm") {
		run.Run([]string{"udevadm", "settle"}, timeout)
	}
}

// Preparer runs the wipe → partition → settle pipeline.
type Preparer struct {
	run  execx.Runner
	list func() []inventory.BlockDevice
	log  *zap.Logger
}

func New(run execx.Runner, list func() []inventory.BlockDevice, log *zap.Logger) *Preparer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Preparer{run: run, list: list, log: log}
}

// WipeAndCreateSinglePartition erases diskName's partition table and creates
// one partition spanning the disk. With windowsData the partition type is
// marked "Microsoft basic data" so Windows assigns it a drive letter.
// Returns the new partition's device path and a step-by-step detail string.
func (p *Preparer) WipeAndCreateSinglePartition(diskName string, windowsData bool) (string, string, error) {
	diskName = strings.TrimSpace(diskName)
	if diskName == "" || !deviceNameRe.MatchString(diskName) {
		return "", "", operr.Validationf("invalid disk name %q", diskName)
	}
	diskPath := "/dev/" + diskName
	if !isBlockDevice(diskPath) {
		return "", "", operr.Validationf("%s is not a block device", diskPath)
	}

	hasParted := p.run.Have("parted")
	hasSgdisk := p.run.Have("sgdisk")
	hasSfdisk := p.run.Have("sfdisk")
	if !hasParted && !hasSfdisk {
		return "", "", &operr.ToolUnavailableError{
			Tool: "parted",
			Hint: "install 'parted' (preferred) or 'sfdisk'",
		}
	}

	var steps []string
	step := func(s string) { steps = append(steps, s) }

	p.log.Info("wiping disk", zap.String("disk", diskPath), zap.Bool("windows_data", windowsData))

	// Anything still mounted under the disk should already be gone; this is
	// a best-effort safety net.
	p.run.Run([]string{"umount", "-A", diskPath}, 10*time.Second)

	if p.run.Have("wipefs") {
		if p.run.Run([]string{"wipefs", "-a", diskPath}, 60*time.Second).OK() {
			step("wipefs: OK")
		} else {
			step("wipefs: failed (continuing)")
		}
	}
	if hasSgdisk {
		if p.run.Run([]string{"sgdisk", "--zap-all", diskPath}, 120*time.Second).OK() {
			step("sgdisk --zap-all: OK")
		} else {
			step("sgdisk --zap-all: failed (continuing)")
		}
	}

	if hasParted {
		r1 := p.run.Run([]string{"parted", "-s", diskPath, "mklabel", "gpt"}, 60*time.Second)
		r2 := p.run.Run([]string{"parted", "-s", "-a", "optimal", diskPath, "mkpart", "primary", "1MiB", "100%"}, 90*time.Second)
		if !r1.OK() || !r2.OK() {
			out := strings.TrimSpace(r1.Output() + "\n" + r2.Output())
			return "", strings.Join(steps, "\n"), &operr.ExternalCommandError{
				Cmd:      "parted " + diskPath,
				ExitCode: r2.ExitCode,
				Output:   execx.Truncate(out, 1200),
			}
		}
		step("parted: GPT + 1 partition: OK")

		if windowsData {
			if p.run.Run([]string{"parted", "-s", diskPath, "set", "1", "msftdata", "on"}, 30*time.Second).OK() {
				step("parted: msftdata=on: OK")
			} else {
				step("parted: msftdata=on: failed (continuing)")
			}
		}
	} else {
		// sfdisk fallback: scripted GPT with one catch-all partition.
		res := p.run.RunInput([]string{"sfdisk", diskPath}, "label: gpt\n,\n", 90*time.Second)
		if !res.OK() {
			return "", strings.Join(steps, "\n"), &operr.ExternalCommandError{
				Cmd:      "sfdisk " + diskPath,
				ExitCode: res.ExitCode,
				Output:   execx.Truncate(res.Output(), 1200),
				TimedOut: res.TimedOut,
				Timeout:  90 * time.Second,
			}
		}
		step("sfdisk: GPT + 1 partition: OK")

		if windowsData && hasSgdisk {
			// GPT typecode 0700 = Microsoft basic data.
			if p.run.Run([]string{"sgdisk", "-t", "1:0700", diskPath}, 30*time.Second).OK() {
				step("sgdisk: type 1=0700 (msftdata): OK")
			} else {
				step("sgdisk: type 1=0700: failed (continuing)")
			}
		}
	}

	// Ask the kernel to re-read the table, then wait out enumeration.
	if p.run.Have("partprobe") {
		p.run.Run([]string{"partprobe", diskPath}, 30*time.Second)
	}
	Settle(p.run, 30*time.Second)

	newPath, ok := p.findNewPartition(diskName)
	if !ok {
		// One bounded retry: udev can lag right after a re-scan.
		Settle(p.run, 30*time.Second)
		newPath, ok = p.findNewPartition(diskName)
	}
	if !ok {
		return "", strings.Join(steps, "\n"),
			operr.Preconditionf("no new partition found on %s after re-scan", diskPath)
	}

	p.log.Info("disk prepared", zap.String("disk", diskPath), zap.String("partition", newPath))
	return newPath, strings.Join(steps, "\n"), nil
}

// findNewPartition picks the largest child partition of diskName. Largest
// guards against a partitioner incidentally leaving more than one behind.
func (p *Preparer) findNewPartition(diskName string) (string, bool) {
	var best inventory.BlockDevice
	found := false
	for _, d := range p.list() {
		if d.Kind != inventory.KindPartition || d.Parent != diskName {
			continue
		}
		if !found || d.SizeBytes > best.SizeBytes {
			best = d
			found = true
		}
	}
	if !found {
		return "", false
	}
	path := strings.TrimSpace(best.Path)
	if path == "" {
		path = "/dev/" + best.Name
	}
	if !strings.HasPrefix(path, "/dev/") {
		return "", false
	}
	return path, true
}
