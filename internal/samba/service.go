package samba

import (
	"time"
)

// Unit names vary across distros; try the usual suspects.
var serviceUnits = []string{"smbd", "smb", "nmbd"}

// Restart bounces the share service so config changes take effect. Reload is
// tried first, but on several distros reload reports success without
// applying new shares, so failure falls through to restart. Best-effort: no
// systemctl, no action.
func (s *Store) Restart() {
	if !s.run.Have("systemctl") {
		return
	}

	reloaded := false
	for _, u := range serviceUnits {
		if s.run.Run([]string{"systemctl", "reload", u}, 15*time.Second).OK() {
			reloaded = true
		}
	}
	if reloaded {
		s.log.Debug("samba reloaded")
		return
	}

	for _, u := range serviceUnits {
		s.run.Run([]string{"systemctl", "restart", u}, 25*time.Second)
	}
	s.log.Debug("samba restarted")
}
