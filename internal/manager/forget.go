package manager

import (
	"strings"
)

// RemoveMissing purges the configuration left behind by a disk that is no
// longer connected: its managed mount-table entries (by UUID, optionally
// narrowed to one mountpoint) and the share block for its mountpoint. The
// disk itself does not have to be present.
func (m *Manager) RemoveMissing(uuid, mountpoint string) Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}
	uuid = strings.TrimSpace(uuid)
	mountpoint = strings.TrimSpace(mountpoint)
	if uuid == "" || !uuidRe.MatchString(uuid) {
		return fail("invalid UUID")
	}
	if mountpoint != "" && !m.rules.IsUserMountpoint(mountpoint) {
		return fail("unsafe mountpoint; only " + prefixList(m.cfg.MountPrefixes) + " are allowed")
	}

	changed, backup, err := m.fstab.RemoveForUUID(uuid, mountpoint)
	if err != nil {
		res := fail("could not update fstab: " + err.Error())
		m.record("forget", uuid, res, "")
		return res
	}

	var details []string
	if changed {
		details = append(details, "fstab: entry removed (backup: "+backup+")")
	} else {
		details = append(details, "fstab: no changes")
	}

	if mountpoint != "" && m.samba.Exists() {
		shareChanged, shareBackup, shareErr := m.samba.RemoveByPath(mountpoint)
		switch {
		case shareErr != nil:
			details = append(details, "samba: "+shareErr.Error())
		case shareChanged:
			m.samba.Restart()
			details = append(details, "samba: share removed (backup: "+shareBackup+")")
		default:
			details = append(details, "samba: no share for that path")
		}
	}

	res := Result{OK: true, Message: "configuration removed", Details: strings.Join(details, "\n")}
	m.record("forget", uuid, res, backup)
	return res
}
