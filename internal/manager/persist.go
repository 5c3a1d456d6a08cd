package manager

import (
	"fmt"

	"github.com/mlara/diskmanager/internal/fstab"
	"github.com/mlara/diskmanager/internal/mounter"
)

// SetPersistence adds or removes the managed mount-table entry for a
// device. The device is identified by UUID, the only identifier that
// survives replug; devices without one cannot be persisted.
func (m *Manager) SetPersistence(id string, enable bool, mountDir string) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if !deviceIDRe.MatchString(id) {
		return fail("invalid device id")
	}

	devs := m.snapshot()
	d, manageable := m.manageable(devs, id)
	if !manageable {
		return fail("disk not found or not manageable")
	}
	if d.UUID == "" {
		return fail("cannot persist: no UUID available")
	}

	if !enable {
		changed, backup, err := m.fstab.SetPersistence(d.UUID, "", fstab.Fields{}, false)
		if err != nil {
			res := fail("could not update fstab: " + err.Error())
			m.record("persist", id, res, "")
			return res
		}
		if !changed {
			return succeed("fstab entry was already removed")
		}
		res := succeed(fmt.Sprintf("fstab entry removed (backup: %s)", backup))
		m.record("persist", id, res, backup)
		return res
	}

	mountpoint := d.Mountpoint
	if mountpoint == "" {
		name := mountDir
		if name == "" {
			name = d.Label
		}
		if name == "" {
			name = id
		}
		mountpoint = "/mnt/" + mounter.SafeMountDir(name)
	}
	if !m.rules.IsUserMountpoint(mountpoint) {
		return fail("unsafe mountpoint; only " + prefixList(m.cfg.MountPrefixes) + " are allowed")
	}
	if err := mkdirAll(mountpoint); err != nil {
		return fail(fmt.Sprintf("could not create %s: %v", mountpoint, err))
	}

	fields := fstab.FieldsFor(d.FSType, m.op, m.mount)
	changed, backup, err := m.fstab.SetPersistence(d.UUID, mountpoint, fields, true)
	if err != nil {
		res := fail("could not update fstab: " + err.Error())
		m.record("persist", id, res, "")
		return res
	}
	if !changed {
		return succeed("fstab entry already existed")
	}
	res := succeed(fmt.Sprintf("fstab entry added (backup: %s)", backup))
	m.record("persist", id, res, backup)
	return res
}
