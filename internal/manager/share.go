package manager

import (
	"errors"
	"path/filepath"

	"github.com/mlara/diskmanager/internal/operr"
)

// SetShare creates or removes the Samba share for a device's mountpoint.
// pathOverride lets the caller target a share whose disk is no longer
// mounted (removal case).
func (m *Manager) SetShare(id string, enable bool, pathOverride string) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if !deviceIDRe.MatchString(id) {
		return fail("invalid device id")
	}

	devs := m.snapshot()
	d, found := m.manageable(devs, id)

	mountpoint := pathOverride
	var label string
	if found {
		label = d.Label
	}
	if mountpoint == "" {
		if !found || !d.Mounted() {
			return fail("the disk must be mounted to share it over Samba")
		}
		mountpoint = d.Mountpoint
	}
	if !m.rules.IsUserMountpoint(mountpoint) {
		return fail("unsafe mountpoint; only " + prefixList(m.cfg.MountPrefixes) + " are allowed")
	}
	if !m.samba.Exists() {
		return fail("no smb.conf found (is Samba installed?)")
	}

	if enable {
		name := filepath.Base(mountpoint)
		if name == "" || name == "/" {
			name = label
		}
		if name == "" {
			name = id
		}
		changed, backup, err := m.samba.Create(mountpoint, name, m.op)
		if err != nil {
			res := shareError(err)
			m.record("share", id, res, "")
			return res
		}
		if !changed {
			return succeed("share already existed")
		}
		m.samba.Restart()
		res := succeed("share created (backup: " + backup + ")")
		m.record("share", id, res, backup)
		return res
	}

	changed, backup, err := m.samba.RemoveByPath(mountpoint)
	if err != nil {
		res := shareError(err)
		m.record("share", id, res, "")
		return res
	}
	if !changed {
		return succeed("share was already removed")
	}
	m.samba.Restart()
	res := succeed("share removed (backup: " + backup + ")")
	m.record("share", id, res, backup)
	return res
}

// SetShareAvailability parks or unparks an existing share by path without
// deleting its block, so configuration survives disconnects. Missing share
// is not an error: the goal is that disconnecting is always safe.
func (m *Manager) SetShareAvailability(path string, enable bool) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if path == "" {
		return fail("path required")
	}

	changed, detail, err := m.samba.SetAvailabilityByPath(path, enable)
	if err != nil {
		res := shareError(err)
		m.record("share", path, res, "")
		return res
	}
	if !changed {
		return Result{OK: true, Message: "no Samba changes", Details: detail}
	}
	m.samba.Restart()
	res := Result{OK: true, Message: "share updated", Details: detail}
	m.record("share", path, res, "")
	return res
}

// SetShareAvailabilityByName toggles a share located by name.
func (m *Manager) SetShareAvailabilityByName(name string, enable bool) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	if name == "" {
		return fail("share name required")
	}

	changed, detail, err := m.samba.SetAvailabilityByName(name, enable)
	if err != nil {
		res := shareError(err)
		m.record("share", name, res, "")
		return res
	}
	if !changed {
		return Result{OK: true, Message: "no changes", Details: detail}
	}
	m.samba.Restart()
	state := "disabled"
	if enable {
		state = "enabled"
	}
	res := Result{OK: true, Message: "share " + name + " " + state, Details: detail}
	m.record("share", name, res, "")
	return res
}

// shareError maps store errors onto operator-facing messages; a rejected
// candidate file means the live config was left untouched.
func shareError(err error) Result {
	var cve *operr.ConfigValidationError
	if errors.As(err, &cve) {
		return failDetail("invalid Samba configuration (testparm); no changes applied", cve.Output)
	}
	return fail("no Samba changes applied: " + err.Error())
}
