package manager

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlara/diskmanager/internal/diskprep"
	"github.com/mlara/diskmanager/internal/execx"
)

const (
	reconnectAttempts = 3
	reconnectBackoff  = time.Second
)

// Reconnect scans the mount table for entries under the user prefixes whose
// backing device has reappeared but is not mounted, and mounts them with
// bounded retries. Shares parked with available=no are re-enabled, and the
// share service is restarted once at the end, not per share.
//
// Each mountpoint's outcome is reported individually; one failure never
// blocks the rest.
func (m *Manager) Reconnect() Result {
	if res, rootOK := m.requireRoot(); !rootOK {
		return res
	}

	// The scan usually runs right after a hot-plug; wait out enumeration.
	diskprep.Settle(m.run, 25*time.Second)

	var mounted, skipped []string
	var failed []string
	needsRestart := false

	for _, e := range m.fstab.Entries() {
		mp := strings.TrimSpace(e.Mountpoint)
		if mp == "" || !m.rules.IsUserMountpoint(mp) {
			continue
		}
		if !e.DevicePresent() {
			continue
		}
		if m.mount.IsMounted(mp) {
			skipped = append(skipped, mp+" (already mounted)")
			continue
		}

		if strings.EqualFold(strings.TrimSpace(e.FSType), "ntfs3") {
			m.mount.TryModprobe("ntfs3")
		}
		if err := mkdirAll(mp); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", mp, err))
			continue
		}

		var lastErr error
		for attempt := 0; attempt < reconnectAttempts; attempt++ {
			lastErr = m.mount.MountAt(mp, 30*time.Second)
			if lastErr == nil {
				break
			}
			diskprep.Settle(m.run, 10*time.Second)
			time.Sleep(reconnectBackoff)
		}
		if lastErr != nil {
			m.log.Warn("reconnect mount failed", zap.String("mountpoint", mp), zap.Error(lastErr))
			failed = append(failed, mp+": "+execx.Truncate(lastErr.Error(), 300))
			continue
		}
		mounted = append(mounted, mp)

		if share, found := m.samba.ShareForPath(mp); found && !share.Enabled {
			if changed, _, err := m.samba.SetAvailabilityByPath(mp, true); err == nil && changed {
				needsRestart = true
			}
		}
	}

	if needsRestart {
		m.samba.Restart()
	}

	var details []string
	if len(mounted) > 0 {
		details = append(details, "mounted: "+strings.Join(mounted, ", "))
	}
	if len(skipped) > 0 {
		details = append(details, "skipped: "+strings.Join(skipped, ", "))
	}
	if len(failed) > 0 {
		details = append(details, "failed: "+strings.Join(failed, "; "))
	}

	res := Result{
		OK:      true,
		Message: fmt.Sprintf("reconnect: %d mounted, %d failed", len(mounted), len(failed)),
		Details: strings.Join(details, "\n"),
	}
	m.record("reconnect", "-", res, "")
	return res
}
