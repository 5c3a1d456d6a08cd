package fstab

import (
	"fmt"
	"strings"

	"github.com/mlara/diskmanager/internal/config"
)

// Fields is the fstab column tuple computed for a filesystem type.
type Fields struct {
	FSType  string
	Options string
	Dump    string
	Passno  string
}

// HostProbe answers what the running kernel and toolchain support. The
// mounter package provides the live implementation.
type HostProbe interface {
	KernelFilesystems() map[string]bool
	Have(tool string) bool
}

// FieldsFor picks fstab columns for a filesystem type.
//
// NTFS needs special handling: ownership comes from uid/gid options, and the
// fstab type name must be one this host can actually mount. The in-kernel
// ntfs3 driver is preferred, then the ntfs-3g userspace helper, else the
// generic name. Everything else gets defaults plus nofail so an absent disk
// never blocks boot.
func FieldsFor(fstype string, op config.Operator, probe HostProbe) Fields {
	fs := strings.ToLower(strings.TrimSpace(fstype))

	if fs == "ntfs" || fs == "ntfs3" {
		options := fmt.Sprintf("defaults,nofail,uid=%d,gid=%d", op.UID, op.GID)
		if probe.KernelFilesystems()["ntfs3"] {
			return Fields{FSType: "ntfs3", Options: options, Dump: "0", Passno: "0"}
		}
		if probe.Have("mount.ntfs-3g") {
			return Fields{FSType: "ntfs-3g", Options: options, Dump: "0", Passno: "0"}
		}
		return Fields{FSType: "ntfs", Options: options, Dump: "0", Passno: "0"}
	}

	if fs == "" {
		fs = "auto"
	}
	return Fields{FSType: fs, Options: "defaults,nofail", Dump: "0", Passno: "2"}
}
