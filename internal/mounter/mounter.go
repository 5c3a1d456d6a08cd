// Package mounter wraps mount/umount and the host-capability probing around
// them (kernel filesystem drivers, mount helpers, module loading).
package mounter

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlara/diskmanager/internal/config"
	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/operr"
)

type Mounter struct {
	run execx.Runner
	op  config.Operator
	log *zap.Logger

	procFilesystems string
	procMounts      string
}

func New(run execx.Runner, op config.Operator, log *zap.Logger) *Mounter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mounter{
		run:             run,
		op:              op,
		log:             log,
		procFilesystems: "/proc/filesystems",
		procMounts:      "/proc/mounts",
	}
}

// KernelFilesystems returns the filesystem names the running kernel can
// mount. Empty map on read failure.
func (m *Mounter) KernelFilesystems() map[string]bool {
	f, err := os.Open(m.procFilesystems)
	if err != nil {
		return map[string]bool{}
	}
	defer f.Close()

	fs := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// Lines look like "nodev\tproc" or just "ext4".
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			fs[fields[len(fields)-1]] = true
		}
	}
	return fs
}

// Have reports whether a tool resolves on the search path. Together with
// KernelFilesystems this satisfies fstab.HostProbe.
func (m *Mounter) Have(tool string) bool { return m.run.Have(tool) }

// TryModprobe loads a kernel module best-effort; missing modprobe or missing
// permissions are silently ignored.
func (m *Mounter) TryModprobe(module string) {
	if module == "" || !m.run.Have("modprobe") {
		return
	}
	m.run.Run([]string{"modprobe", module}, 8*time.Second)
}

// MountDevice mounts a device node onto mountpoint, picking the NTFS driver
// chain when needed.
func (m *Mounter) MountDevice(devPath, mountpoint, fstype string) error {
	fs := strings.ToLower(strings.TrimSpace(fstype))
	var res execx.Result
	if fs == "ntfs" || fs == "ntfs3" {
		res = m.mountNTFS(devPath, mountpoint)
	} else {
		res = m.run.Run([]string{"mount", devPath, mountpoint}, 30*time.Second)
	}
	if res.OK() {
		m.log.Info("mounted", zap.String("device", devPath), zap.String("mountpoint", mountpoint))
		return nil
	}
	output := res.Output()
	if strings.Contains(strings.ToLower(output), "unknown filesystem type 'ntfs-3g'") ||
		strings.Contains(strings.ToLower(output), `unknown filesystem type "ntfs-3g"`) {
		output += "\nHint: install the 'ntfs-3g' package or enable the kernel 'ntfs3' driver (modprobe ntfs3)."
	}
	return &operr.ExternalCommandError{
		Cmd:      "mount " + devPath,
		ExitCode: res.ExitCode,
		Output:   execx.Truncate(output, 1200),
		TimedOut: res.TimedOut,
		Timeout:  30 * time.Second,
	}
}

// mountNTFS tries the drivers available on this host, in order:
// ntfs3 (in-kernel, after a modprobe attempt), the ntfs-3g helper, then a
// plain auto mount as last resort.
func (m *Mounter) mountNTFS(devPath, mountpoint string) execx.Result {
	options := fmt.Sprintf("defaults,nofail,uid=%d,gid=%d", m.op.UID, m.op.GID)

	fs := m.KernelFilesystems()
	if !fs["ntfs3"] {
		m.TryModprobe("ntfs3")
		fs = m.KernelFilesystems()
	}
	if fs["ntfs3"] {
		res := m.run.Run([]string{"mount", "-t", "ntfs3", "-o", options, devPath, mountpoint}, 25*time.Second)
		if res.OK() {
			return res
		}
	}

	if m.run.Have("mount.ntfs-3g") {
		res := m.run.Run([]string{"mount", "-t", "ntfs-3g", "-o", options, devPath, mountpoint}, 25*time.Second)
		if res.OK() {
			return res
		}
	}

	return m.run.Run([]string{"mount", "-o", options, devPath, mountpoint}, 25*time.Second)
}

// MountAt mounts by mountpoint so the mount-table options apply.
func (m *Mounter) MountAt(mountpoint string, timeout time.Duration) error {
	res := m.run.Run([]string{"mount", mountpoint}, timeout)
	if res.OK() {
		m.log.Info("mounted from table", zap.String("mountpoint", mountpoint))
		return nil
	}
	return &operr.ExternalCommandError{
		Cmd:      "mount " + mountpoint,
		ExitCode: res.ExitCode,
		Output:   execx.Truncate(res.Output(), 1200),
		TimedOut: res.TimedOut,
		Timeout:  timeout,
	}
}

// Unmount detaches a mountpoint.
func (m *Mounter) Unmount(mountpoint string) error {
	res := m.run.Run([]string{"umount", mountpoint}, 20*time.Second)
	if res.OK() {
		m.log.Info("unmounted", zap.String("mountpoint", mountpoint))
		return nil
	}
	return &operr.ExternalCommandError{
		Cmd:      "umount " + mountpoint,
		ExitCode: res.ExitCode,
		Output:   execx.Truncate(res.Output(), 1200),
		TimedOut: res.TimedOut,
		Timeout:  20 * time.Second,
	}
}

// IsMounted reports whether something is currently mounted at mountpoint,
// per the live mount list.
func (m *Mounter) IsMounted(mountpoint string) bool {
	mp := strings.TrimSpace(mountpoint)
	if mp == "" {
		return false
	}
	f, err := os.Open(m.procMounts)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[1] == mp {
			return true
		}
	}
	return false
}

// CleanupMountDir removes a now-unused mount directory, but only when it is
// empty and sits under a user prefix. Errors are ignored.
func (m *Mounter) CleanupMountDir(path string, userPrefix func(string) bool) {
	if !userPrefix(path) {
		return
	}
	entries, err := os.ReadDir(path)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(path)
}

var mountDirJunk = regexp.MustCompile(`[^a-z0-9._-]`)
var mountDirSpaces = regexp.MustCompile(`\s+`)

// SafeMountDir reduces a label or device name to a simple directory name.
func SafeMountDir(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = mountDirSpaces.ReplaceAllString(text, "_")
	text = mountDirJunk.ReplaceAllString(text, "")
	if text == "" {
		return "disk"
	}
	return text
}
