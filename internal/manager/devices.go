package manager

import (
	"os"

	"github.com/mlara/diskmanager/internal/classify"
	"github.com/mlara/diskmanager/internal/fstab"
	"github.com/mlara/diskmanager/internal/inventory"
	"github.com/mlara/diskmanager/internal/mkfs"
	"github.com/mlara/diskmanager/internal/samba"
	"github.com/mlara/diskmanager/internal/view"
)

// Devices builds the operator-facing device rows: every manageable device
// from a fresh snapshot, joined against the mount table (persistence) and
// the share config (sharing), plus "missing" rows for persistent devices
// that are currently disconnected.
func (m *Manager) Devices() []view.DiskRow {
	entries := m.fstab.Entries()
	byUUID := make(map[string]fstab.Entry)
	byDev := make(map[string]fstab.Entry)
	for _, e := range entries {
		if uuid := e.UUID(); uuid != "" {
			byUUID[uuid] = e
		} else if len(e.Spec) > 5 && e.Spec[:5] == "/dev/" {
			byDev[e.Spec] = e
		}
	}
	sharePaths := m.samba.EnabledSharePaths()

	devs := m.snapshot()
	root := inventory.ResolveRootDisk(devs)

	var rows []view.DiskRow
	seenUUIDs := make(map[string]bool)

	for _, d := range devs {
		if m.rules.Classify(d, root) != classify.Manageable {
			continue
		}

		persistent := false
		if d.UUID != "" {
			_, persistent = byUUID[d.UUID]
		}
		if !persistent {
			_, persistent = byDev[d.Path]
		}

		label := d.Label
		if label == "" {
			label = "Disk " + d.Name
		}
		uuid := d.UUID
		if uuid == "" {
			uuid = "-"
		}
		fstype := d.FSType
		if fstype == "" {
			fstype = "-"
		}

		row := view.DiskRow{
			ID:         d.Name,
			Label:      label,
			Size:       d.Size,
			FSType:     fstype,
			UUID:       uuid,
			Kind:       string(d.Kind),
			Mounted:    d.Mounted(),
			Mountpoint: d.Mountpoint,
			Persistent: persistent,
			Shared:     d.Mounted() && sharePaths[samba.NormPath(d.Mountpoint)],
		}
		if d.Mounted() {
			row.Usage = view.UsageFor(d.Mountpoint)
		}
		rows = append(rows, row)
		if d.UUID != "" {
			seenUUIDs[d.UUID] = true
		}
	}

	// Persistent entries whose disk is gone: shown so the operator can
	// reconnect or purge them.
	for _, e := range entries {
		uuid := e.UUID()
		if uuid == "" || seenUUIDs[uuid] {
			continue
		}
		if _, err := os.Stat("/dev/disk/by-uuid/" + uuid); err == nil {
			continue
		}
		if !m.rules.IsUserMountpoint(e.Mountpoint) {
			continue
		}
		rows = append(rows, view.DiskRow{
			ID:         "-",
			Label:      "Disk unavailable",
			Size:       "-",
			FSType:     e.FSType,
			UUID:       uuid,
			Mountpoint: e.Mountpoint,
			Persistent: true,
			Missing:    true,
		})
	}

	return rows
}

// FormatOptions lists filesystem types this host can format.
func (m *Manager) FormatOptions() Result {
	opts := mkfs.Options(m.run)
	if len(opts) == 0 {
		return failDetail("no formatting tools installed",
			"supported: ext4, xfs, exfat, vfat(fat32), ntfs (each needs its mkfs.*)")
	}
	details := ""
	for _, o := range opts {
		if details != "" {
			details += "\n"
		}
		details += o.FSType + "\t" + o.Description
	}
	return Result{OK: true, Message: "available format options", Details: details}
}
