package manager

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mlara/diskmanager/internal/diskprep"
	"github.com/mlara/diskmanager/internal/mounter"
)

// Mount attaches a manageable device. When a mount-table entry exists for
// its UUID the device is mounted by mountpoint so the configured options
// apply; otherwise it is mounted directly under /mnt using a sanitized
// directory name (mountDir overrides the default label/name choice).
func (m *Manager) Mount(id, mountDir string) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if !deviceIDRe.MatchString(id) {
		return fail("invalid device id")
	}
	devPath := "/dev/" + id
	if !pathExists(devPath) {
		return fail(fmt.Sprintf("no such device %s", devPath))
	}

	devs := m.snapshot()
	d, manageable := m.manageable(devs, id)
	if !manageable {
		return fail("this device is a system device or is not manageable here")
	}
	if d.Mounted() {
		return succeed("already mounted")
	}

	var mp string
	var err error
	if d.UUID != "" {
		if entry, found := m.fstab.EntryForUUID(d.UUID); found {
			mp = entry.Mountpoint
			if !m.rules.IsUserMountpoint(mp) {
				return fail("unsafe mountpoint; only " + prefixList(m.cfg.MountPrefixes) + " are allowed")
			}
			if mkErr := mkdirAll(mp); mkErr != nil {
				return fail(fmt.Sprintf("could not create %s: %v", mp, mkErr))
			}
			diskprep.Settle(m.run, 15*time.Second)
			err = m.mount.MountAt(mp, 45*time.Second)
		}
	}
	if mp == "" {
		name := mountDir
		if name == "" {
			name = d.Label
		}
		if name == "" {
			name = id
		}
		mp = "/mnt/" + mounter.SafeMountDir(name)
		if !m.rules.IsUserMountpoint(mp) {
			return fail("unsafe mountpoint")
		}
		if mkErr := mkdirAll(mp); mkErr != nil {
			return fail(fmt.Sprintf("could not create %s: %v", mp, mkErr))
		}
		diskprep.Settle(m.run, 10*time.Second)
		err = m.mount.MountDevice(devPath, mp, d.FSType)
	}

	if err != nil {
		res := fail("mount failed: " + err.Error())
		m.record("mount", id, res, "")
		return res
	}

	// A share may have been parked with available=no when the disk was
	// unplugged; bring it back and make smbd pick it up.
	if m.samba.Exists() {
		if changed, _, availErr := m.samba.SetAvailabilityByPath(mp, true); availErr != nil {
			m.log.Warn("could not re-enable share", zap.String("path", mp), zap.Error(availErr))
		} else if changed {
			m.log.Info("share re-enabled after mount", zap.String("path", mp))
		}
		if share, found := m.samba.ShareForPath(mp); found && share.Enabled {
			m.samba.Restart()
		}
	}

	res := succeed("mounted at " + mp)
	m.record("mount", id, res, "")
	return res
}

// Unmount detaches a manageable device and removes its mount directory when
// it ended up empty.
func (m *Manager) Unmount(id string) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if !deviceIDRe.MatchString(id) {
		return fail("invalid device id")
	}

	devs := m.snapshot()
	d, found := m.manageable(devs, id)
	if !found || d.Mountpoint == "" {
		return succeed("already unmounted")
	}
	if !m.rules.IsUserMountpoint(d.Mountpoint) {
		return fail("unsafe mountpoint; only " + prefixList(m.cfg.MountPrefixes) + " are allowed")
	}

	if err := m.mount.Unmount(d.Mountpoint); err != nil {
		res := fail("unmount failed: " + err.Error())
		m.record("unmount", id, res, "")
		return res
	}
	m.mount.CleanupMountDir(d.Mountpoint, m.rules.IsUserMountpoint)

	res := succeed("unmounted")
	m.record("unmount", id, res, "")
	return res
}

func prefixList(prefixes []string) string {
	out := ""
	for i, p := range prefixes {
		if i > 0 {
			out += " or "
		}
		out += p
	}
	return out
}
