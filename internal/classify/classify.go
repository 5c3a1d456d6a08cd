// Package classify decides which block devices may be exposed to mount,
// format, persist and share operations.
//
// Classification is a pure function over a freshly fetched inventory
// snapshot; it holds no state of its own. That, plus re-reading live system
// state right before every mutation, is what makes the lock-free
// one-operation-at-a-time model safe.
package classify

import (
	"strings"

	"github.com/mlara/diskmanager/internal/inventory"
)

// Verdict is the eligibility decision for one device.
type Verdict int

const (
	// Manageable devices may be mounted, formatted, persisted and shared.
	Manageable Verdict = iota
	// SystemExcluded devices are protected: the OS disk and its partitions,
	// swap, system mountpoints, internal unpartitioned disks.
	SystemExcluded
	// NoiseExcluded devices carry nothing an operator can act on: disks
	// managed at partition granularity, firmware-reserved stub partitions.
	NoiseExcluded
)

func (v Verdict) String() string {
	switch v {
	case Manageable:
		return "manageable"
	case SystemExcluded:
		return "system"
	default:
		return "noise"
	}
}

// Mountpoints that must never be managed, no matter what backs them.
var systemMountpoints = map[string]bool{
	"/":         true,
	"/boot":     true,
	"/boot/efi": true,
}

var systemPrefixes = []string{"/proc", "/sys", "/dev", "/run", "/snap", "/var/lib/snapd"}

// noiseSizeLimit is the largest partition still considered a firmware stub
// (e.g. a Windows MSR partition, ~16 MiB) when it has no fstype and no UUID.
const noiseSizeLimit = 64 * 1024 * 1024

// Rules is the classifier configuration. UserPrefixes lists the mountpoint
// prefixes under which mounted devices remain manageable.
type Rules struct {
	UserPrefixes []string
}

// Classify applies the eligibility rules in order; the first match wins.
func (r Rules) Classify(d inventory.BlockDevice, rootDisk string) Verdict {
	// The OS disk and everything directly on it is untouchable.
	if rootDisk != "" && (d.Name == rootDisk || d.Parent == rootDisk) {
		return SystemExcluded
	}

	if d.Kind == inventory.KindDisk {
		// Partitioned disks are managed through their partitions.
		if d.HasChildren {
			return NoiseExcluded
		}
		// A raw childless disk is only exposed when it looks external;
		// un-partitioned internal disks stay hidden.
		if !d.External() {
			return SystemExcluded
		}
		return Manageable
	}

	if IsNoisePartition(d) {
		return NoiseExcluded
	}

	if strings.EqualFold(strings.TrimSpace(d.FSType), "swap") {
		return SystemExcluded
	}

	if d.Mounted() {
		if IsSystemMountpoint(d.Mountpoint) {
			return SystemExcluded
		}
		if !r.IsUserMountpoint(d.Mountpoint) {
			return SystemExcluded
		}
	}

	return Manageable
}

// IsNoisePartition reports whether a partition is a firmware-reserved stub:
// no filesystem, no UUID, and at most 64 MiB.
func IsNoisePartition(d inventory.BlockDevice) bool {
	if d.Kind != inventory.KindPartition {
		return false
	}
	if strings.TrimSpace(d.FSType) != "" || strings.TrimSpace(d.UUID) != "" {
		return false
	}
	size, ok := inventory.ParseSize(d.Size)
	if !ok {
		return false
	}
	return size <= noiseSizeLimit
}

// IsSystemMountpoint reports whether path is one of the protected system
// mounts or sits under a protected prefix.
func IsSystemMountpoint(path string) bool {
	if path == "" {
		return false
	}
	if systemMountpoints[path] {
		return true
	}
	for _, p := range systemPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// IsUserMountpoint reports whether path sits under an allowed user-mount
// prefix. Nothing is ever mounted, unmounted or shared outside of these.
func (r Rules) IsUserMountpoint(path string) bool {
	if path == "" {
		return false
	}
	for _, p := range r.UserPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
