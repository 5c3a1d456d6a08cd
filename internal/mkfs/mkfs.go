// Package mkfs maps a requested filesystem type to the matching formatting
// tool invocation, subject to what is installed on this host.
package mkfs

import (
	"regexp"
	"strings"
)

// Option is one offerable format choice.
type Option struct {
	FSType      string `json:"fstype"`
	Description string `json:"label"`
}

type toolChecker interface {
	Have(tool string) bool
}

var labelJunk = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeLabel reduces a volume label to a safe character set and length.
// FAT labels are capped at 11 characters, everything else at 32.
func SanitizeLabel(label string, max int) string {
	label = labelJunk.ReplaceAllString(strings.TrimSpace(label), "_")
	if len(label) > max {
		label = label[:max]
	}
	return label
}

// WindowsCompatible reports whether a filesystem type wants the partition
// marked as Microsoft basic data.
func WindowsCompatible(fstype string) bool {
	switch strings.ToLower(strings.TrimSpace(fstype)) {
	case "ntfs", "exfat", "vfat", "fat32":
		return true
	}
	return false
}

// Command builds the formatting invocation for a filesystem type, or nil
// when the type is unsupported or its tool is not installed.
func Command(tools toolChecker, fstype, devPath, label string) []string {
	fs := strings.ToLower(strings.TrimSpace(fstype))
	safeLabel := SanitizeLabel(label, 32)

	switch fs {
	case "ext4":
		if !tools.Have("mkfs.ext4") {
			return nil
		}
		args := []string{"mkfs.ext4", "-F"}
		if safeLabel != "" {
			args = append(args, "-L", safeLabel)
		}
		return append(args, devPath)

	case "xfs":
		if !tools.Have("mkfs.xfs") {
			return nil
		}
		args := []string{"mkfs.xfs", "-f"}
		if safeLabel != "" {
			args = append(args, "-L", safeLabel)
		}
		return append(args, devPath)

	case "exfat", "exfatprogs":
		// exfatprogs ships the tool as mkfs.exfat.
		if !tools.Have("mkfs.exfat") {
			return nil
		}
		args := []string{"mkfs.exfat"}
		if safeLabel != "" {
			args = append(args, "-n", safeLabel)
		}
		return append(args, devPath)

	case "vfat", "fat32":
		if !tools.Have("mkfs.vfat") {
			return nil
		}
		args := []string{"mkfs.vfat", "-F", "32"}
		if safeLabel != "" {
			args = append(args, "-n", SanitizeLabel(label, 11))
		}
		return append(args, devPath)

	case "ntfs":
		// mkfs.ntfs comes with ntfs-3g. Quick format (-Q) keeps large disks
		// from taking hours; -F forces past old signatures.
		if !tools.Have("mkfs.ntfs") {
			return nil
		}
		args := []string{"mkfs.ntfs", "-Q", "-F"}
		if safeLabel != "" {
			args = append(args, "-L", safeLabel)
		}
		return append(args, devPath)
	}

	return nil
}

// Options lists the filesystem types whose formatting tool is installed.
func Options(tools toolChecker) []Option {
	var opts []Option
	add := func(fstype, desc, tool string) {
		if tools.Have(tool) {
			opts = append(opts, Option{FSType: fstype, Description: desc})
		}
	}
	add("ext4", "ext4 (Linux)", "mkfs.ext4")
	add("xfs", "xfs (Linux)", "mkfs.xfs")
	add("exfat", "exFAT (Windows/macOS/Linux)", "mkfs.exfat")
	add("vfat", "FAT32 (vfat)", "mkfs.vfat")
	add("ntfs", "NTFS (Windows)", "mkfs.ntfs")
	return opts
}
