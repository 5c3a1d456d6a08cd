package manager

import (
	"fmt"
	"time"

	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/inventory"
	"github.com/mlara/diskmanager/internal/mkfs"
	"github.com/mlara/diskmanager/internal/samba"
)

// ConfirmPhrase is the exact text an operator must supply before a format
// is accepted. Server-side, not just a UI nicety.
const ConfirmPhrase = "FORMAT"

// Format wipes the whole physical disk behind a device and formats the
// fresh single partition. Preconditions: confirmation phrase is exact, the
// device is manageable, and it is neither mounted nor persistent nor shared.
func (m *Manager) Format(id, fstype, label, confirm string) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if !deviceIDRe.MatchString(id) {
		return fail("invalid device id")
	}
	if confirm != ConfirmPhrase {
		return failDetail("invalid confirmation", "type exactly: "+ConfirmPhrase)
	}

	devs := m.snapshot()
	d, manageable := m.manageable(devs, id)
	if !manageable {
		return fail("this device is not manageable here")
	}

	// Destructive path: demand the device be fully released first.
	if d.Mounted() {
		return fail("unmount the disk before formatting")
	}
	if m.isPersistent(d) {
		return fail("remove persistence (fstab) before formatting")
	}
	if m.samba.EnabledSharePaths()[samba.NormPath(d.Mountpoint)] {
		return fail("remove the Samba share before formatting")
	}

	// Formatting always rebuilds the whole disk: resolve a partition to its
	// parent, keep a raw disk as-is.
	diskName := d.Name
	if d.Kind != inventory.KindDisk {
		diskName = d.Parent
	}
	if diskName == "" {
		return fail("could not determine the physical disk for this device")
	}

	newPath, steps, err := m.prep.WipeAndCreateSinglePartition(diskName, mkfs.WindowsCompatible(fstype))
	if err != nil {
		res := failDetail("could not prepare the disk (wipe/partition): "+err.Error(), steps)
		m.record("format", id, res, "")
		return res
	}

	cmd := mkfs.Command(m.run, fstype, newPath, label)
	if cmd == nil {
		return failDetail("unsupported format or tool not installed",
			"supported: ext4, xfs, exfat, vfat(fat32), ntfs (each needs its mkfs.*)")
	}

	timeout := time.Duration(m.cfg.FormatTimeoutS) * time.Second
	cr := m.run.Run(cmd, timeout)
	if !cr.OK() {
		out := execx.Truncate(cr.Output(), 1200)
		var res Result
		if cr.TimedOut || cr.ExitCode == execx.TimeoutExitCode {
			res = failDetail("formatting took too long and was cancelled",
				fmt.Sprintf("raise format_timeout_s (current: %ds) or check the disk.\n%s", m.cfg.FormatTimeoutS, out))
		} else {
			res = failDetail("formatting failed", out)
		}
		m.record("format", id, res, "")
		return res
	}

	res := Result{OK: true, Message: "disk formatted as " + fstype, Details: execx.Truncate(steps, 1200)}
	m.record("format", id, res, "")
	return res
}

// isPersistent reports whether a mount-table entry references this device.
func (m *Manager) isPersistent(d inventory.BlockDevice) bool {
	for _, e := range m.fstab.Entries() {
		if d.UUID != "" && e.Spec == "UUID="+d.UUID {
			return true
		}
		if e.Spec == d.Path {
			return true
		}
	}
	return false
}
