package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlara/diskmanager/internal/config"
	"github.com/mlara/diskmanager/internal/execx"
)

// fakeRunner scripts results by command name; everything else succeeds.
type fakeRunner struct {
	tools   map[string]bool
	results map[string]execx.Result
	calls   []string
}

func (f *fakeRunner) Run(args []string, _ time.Duration) execx.Result {
	line := strings.Join(args, " ")
	f.calls = append(f.calls, line)
	if res, ok := f.results[args[0]]; ok {
		res.Args = args
		return res
	}
	return execx.Result{Args: args}
}

func (f *fakeRunner) RunInput(args []string, _ string, d time.Duration) execx.Result {
	return f.Run(args, d)
}

func (f *fakeRunner) Have(tool string) bool { return f.tools[tool] }

func (f *fakeRunner) ran(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// lsblkJSON renders a minimal snapshot: the OS disk plus one external USB
// partition whose uuid/mountpoint the test controls.
func lsblkJSON(uuid, mountpoint string) string {
	mp := "null"
	if mountpoint != "" {
		mp = fmt.Sprintf("%q", mountpoint)
	}
	return fmt.Sprintf(`{"blockdevices": [
	  {"name": "sda", "path": "/dev/sda", "size": "489G", "type": "disk", "rm": "0", "hotplug": "0",
	   "children": [
	     {"name": "sda2", "path": "/dev/sda2", "pkname": "sda", "size": "488G",
	      "fstype": "ext4", "uuid": "root-uuid", "mountpoint": "/", "type": "part", "rm": "0", "hotplug": "0"}
	   ]},
	  {"name": "sdb", "path": "/dev/sdb", "size": "1.8T", "type": "disk", "rm": true, "hotplug": true, "tran": "usb",
	   "children": [
	     {"name": "sdb1", "path": "/dev/sdb1", "pkname": "sdb", "size": "1.8T",
	      "fstype": "ext4", "label": "backup", "uuid": %q, "mountpoint": %s,
	      "type": "part", "rm": true, "hotplug": true}
	   ]}
	]}`, uuid, mp)
}

type fixture struct {
	m      *Manager
	run    *fakeRunner
	cfg    *config.Config
	prefix string // user mountpoint prefix inside the temp dir
}

// newFixture builds a Manager over temp fstab/smb.conf files. smbConf == ""
// means Samba is not installed.
func newFixture(t *testing.T, lsblk, fstabContents, smbConf string) *fixture {
	t.Helper()
	dir := t.TempDir()

	fstabPath := filepath.Join(dir, "fstab")
	require.NoError(t, os.WriteFile(fstabPath, []byte(fstabContents), 0o644))

	smbPath := filepath.Join(dir, "smb.conf")
	if smbConf != "" {
		require.NoError(t, os.WriteFile(smbPath, []byte(smbConf), 0o644))
	}

	prefix := filepath.Join(dir, "mnt") + "/"
	cfg := &config.Config{
		FstabPath:      fstabPath,
		SmbConfPath:    smbPath,
		MountPrefixes:  []string{prefix},
		FormatTimeoutS: 30,
	}
	run := &fakeRunner{
		tools:   map[string]bool{},
		results: map[string]execx.Result{"lsblk": {Stdout: lsblk}},
	}
	m := New(cfg, config.Operator{UID: 1000, GID: 1, Username: "alice"}, run, nil, nil)
	return &fixture{m: m, run: run, cfg: cfg, prefix: prefix}
}

func asRoot(t *testing.T) {
	t.Helper()
	orig := geteuid
	geteuid = func() int { return 0 }
	t.Cleanup(func() { geteuid = orig })
}

func withDeviceNodes(t *testing.T, exists bool) {
	t.Helper()
	orig := pathExists
	pathExists = func(string) bool { return exists }
	t.Cleanup(func() { pathExists = orig })
}

func TestMutationsRequireRoot(t *testing.T) {
	orig := geteuid
	geteuid = func() int { return 1000 }
	t.Cleanup(func() { geteuid = orig })

	f := newFixture(t, lsblkJSON("u1", ""), "", "")
	for _, res := range []Result{
		f.m.Mount("sdb1", ""),
		f.m.Unmount("sdb1"),
		f.m.Format("sdb1", "ext4", "", ConfirmPhrase),
		f.m.SetPersistence("sdb1", true, ""),
		f.m.SetShare("sdb1", true, ""),
		f.m.Reconnect(),
	} {
		assert.False(t, res.OK)
		assert.Contains(t, res.Message, "permission denied")
	}
}

func TestMountValidation(t *testing.T) {
	asRoot(t)
	withDeviceNodes(t, true)

	f := newFixture(t, lsblkJSON("u1", ""), "", "")

	res := f.m.Mount("sdb;1", "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "invalid device id")

	// The OS partition is never manageable.
	res = f.m.Mount("sda2", "")
	assert.False(t, res.OK)

	withDeviceNodes(t, false)
	res = f.m.Mount("sdb1", "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "no such device")
}

func TestMountAlreadyMounted(t *testing.T) {
	asRoot(t)
	withDeviceNodes(t, true)

	f := newFixture(t, "", "", "")
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", f.prefix+"data")}

	res := f.m.Mount("sdb1", "")
	assert.True(t, res.OK)
	assert.Equal(t, "already mounted", res.Message)
	assert.False(t, f.run.ran("mount"))
}

func TestMountViaFstabEntry(t *testing.T) {
	asRoot(t)
	withDeviceNodes(t, true)

	f := newFixture(t, "", "", "")
	mp := f.prefix + "data"
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", "")}
	require.NoError(t, os.WriteFile(f.cfg.FstabPath,
		[]byte("# diskmanager\nUUID=u1\t"+mp+"\text4\tdefaults,nofail,x-diskmanager\t0\t2\n"), 0o644))

	res := f.m.Mount("sdb1", "")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "mounted at "+mp, res.Message)
	assert.True(t, f.run.ran("mount "+mp))
}

func TestMountRejectsUnsafeFstabMountpoint(t *testing.T) {
	asRoot(t)
	withDeviceNodes(t, true)

	f := newFixture(t, lsblkJSON("u1", ""),
		"UUID=u1 /etc/cron.d ext4 defaults 0 2\n", "")

	res := f.m.Mount("sdb1", "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "unsafe mountpoint")
}

func TestUnmount(t *testing.T) {
	asRoot(t)

	f := newFixture(t, "", "", "")
	mp := f.prefix + "data"
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", mp)}

	res := f.m.Unmount("sdb1")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "unmounted", res.Message)
	assert.True(t, f.run.ran("umount "+mp))
}

func TestUnmountAbsentDevice(t *testing.T) {
	asRoot(t)

	f := newFixture(t, lsblkJSON("u1", ""), "", "")
	res := f.m.Unmount("sdz9")
	assert.True(t, res.OK)
	assert.Equal(t, "already unmounted", res.Message)
}

func TestUnmountOutsideUserPrefix(t *testing.T) {
	asRoot(t)

	f := newFixture(t, lsblkJSON("u1", "/opt/data"), "", "")
	// Mounted outside the user prefixes the device is classified as a system
	// device, so it never reaches the unmount call.
	res := f.m.Unmount("sdb1")
	assert.True(t, res.OK)
	assert.Equal(t, "already unmounted", res.Message)
	assert.False(t, f.run.ran("umount"))
}

func TestFormatPreconditions(t *testing.T) {
	asRoot(t)

	t.Run("confirmation phrase", func(t *testing.T) {
		f := newFixture(t, lsblkJSON("u1", ""), "", "")
		res := f.m.Format("sdb1", "ext4", "", "format")
		assert.False(t, res.OK)
		assert.Contains(t, res.Message, "confirmation")
		assert.Contains(t, res.Details, ConfirmPhrase)
	})

	t.Run("mounted device", func(t *testing.T) {
		f := newFixture(t, "", "", "")
		f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", f.prefix+"data")}
		res := f.m.Format("sdb1", "ext4", "", ConfirmPhrase)
		assert.False(t, res.OK)
		assert.Contains(t, res.Message, "unmount")
	})

	t.Run("persistent device", func(t *testing.T) {
		f := newFixture(t, lsblkJSON("u1", ""),
			"UUID=u1 /mnt/data ext4 defaults,nofail,x-diskmanager 0 2\n", "")
		res := f.m.Format("sdb1", "ext4", "", ConfirmPhrase)
		assert.False(t, res.OK)
		assert.Contains(t, res.Message, "persistence")
	})

	t.Run("system device", func(t *testing.T) {
		f := newFixture(t, lsblkJSON("u1", ""), "", "")
		res := f.m.Format("sda2", "ext4", "", ConfirmPhrase)
		assert.False(t, res.OK)
		assert.Contains(t, res.Message, "not manageable")
	})
}

func TestSetPersistence(t *testing.T) {
	asRoot(t)

	f := newFixture(t, "", "", "")
	mp := f.prefix + "data"
	require.NoError(t, os.MkdirAll(mp, 0o755))
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", mp)}

	res := f.m.SetPersistence("sdb1", true, "")
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Message, "fstab entry added")

	data, err := os.ReadFile(f.cfg.FstabPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# diskmanager")
	assert.Contains(t, string(data), "UUID=u1\t"+mp+"\text4\tdefaults,nofail,x-diskmanager\t0\t2")

	// Second enable is a no-op.
	res = f.m.SetPersistence("sdb1", true, "")
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "already existed")

	// Disable restores the original empty file.
	res = f.m.SetPersistence("sdb1", false, "")
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Message, "removed")
	data, err = os.ReadFile(f.cfg.FstabPath)
	require.NoError(t, err)
	assert.Equal(t, "", string(data))
}

func TestSetPersistenceNeedsUUID(t *testing.T) {
	asRoot(t)

	f := newFixture(t, lsblkJSON("", ""), "", "")
	res := f.m.SetPersistence("sdb1", true, "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "no UUID")
}

func TestSetShare(t *testing.T) {
	asRoot(t)

	f := newFixture(t, "", "", "[global]\n   workgroup = WORKGROUP\n")
	mp := f.prefix + "data"
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", mp)}

	res := f.m.SetShare("sdb1", true, "")
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Message, "share created")

	conf, err := os.ReadFile(f.cfg.SmbConfPath)
	require.NoError(t, err)
	assert.Contains(t, string(conf), "[data]")
	assert.Contains(t, string(conf), "path = "+mp)
	assert.Contains(t, string(conf), "force user = alice")

	// Same device again: the path already has a share.
	res = f.m.SetShare("sdb1", true, "")
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "already existed")

	// Removal by the recorded path, without the disk mounted.
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", "")}
	res = f.m.SetShare("sdb1", false, mp)
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Message, "share removed")
	conf, err = os.ReadFile(f.cfg.SmbConfPath)
	require.NoError(t, err)
	assert.NotContains(t, string(conf), "[data]")
}

func TestSetShareRequiresMount(t *testing.T) {
	asRoot(t)

	f := newFixture(t, lsblkJSON("u1", ""), "", "[global]\n")
	res := f.m.SetShare("sdb1", true, "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "must be mounted")
}

func TestSetShareWithoutSamba(t *testing.T) {
	asRoot(t)

	f := newFixture(t, "", "", "")
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", f.prefix+"data")}
	res := f.m.SetShare("sdb1", true, "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "smb.conf")
}

func TestDevices(t *testing.T) {
	f := newFixture(t, "", "", "")
	mp := f.prefix + "data"
	require.NoError(t, os.MkdirAll(mp, 0o755))
	f.run.results["lsblk"] = execx.Result{Stdout: lsblkJSON("u1", mp)}
	require.NoError(t, os.WriteFile(f.cfg.SmbConfPath,
		[]byte("[data]\n   path = "+mp+"\n"), 0o644))
	require.NoError(t, os.WriteFile(f.cfg.FstabPath, []byte(
		"UUID=u1 "+mp+" ext4 defaults,nofail,x-diskmanager 0 2\n"+
			"UUID=gone-uuid "+f.prefix+"old ext4 defaults,nofail,x-diskmanager 0 2\n"), 0o644))

	rows := f.m.Devices()
	require.Len(t, rows, 2)

	// The live partition, joined against fstab and smb.conf.
	assert.Equal(t, "sdb1", rows[0].ID)
	assert.Equal(t, "backup", rows[0].Label)
	assert.True(t, rows[0].Mounted)
	assert.True(t, rows[0].Persistent)
	assert.True(t, rows[0].Shared)
	assert.NotNil(t, rows[0].Usage)

	// The persistent entry whose disk is disconnected.
	assert.True(t, rows[1].Missing)
	assert.Equal(t, "gone-uuid", rows[1].UUID)
	assert.Equal(t, f.prefix+"old", rows[1].Mountpoint)

	// System devices never appear.
	for _, r := range rows {
		assert.NotEqual(t, "sda2", r.ID)
	}
}

func TestReconnectNothingToDo(t *testing.T) {
	asRoot(t)

	// One persistent entry whose device is absent, one outside the prefixes.
	f := newFixture(t, lsblkJSON("u1", ""), "", "")
	require.NoError(t, os.WriteFile(f.cfg.FstabPath, []byte(
		"UUID=0000dead-0000-0000-0000-000000000000 "+f.prefix+"gone ext4 defaults,nofail,x-diskmanager 0 2\n"+
			"UUID=root-uuid / ext4 errors=remount-ro 0 1\n"), 0o644))

	res := f.m.Reconnect()
	require.True(t, res.OK)
	assert.Equal(t, "reconnect: 0 mounted, 0 failed", res.Message)
	assert.False(t, f.run.ran("mount "))
}

func TestRemoveMissing(t *testing.T) {
	asRoot(t)

	f := newFixture(t, lsblkJSON("u1", ""), "", "")
	mp := f.prefix + "old"
	require.NoError(t, os.WriteFile(f.cfg.FstabPath,
		[]byte("# diskmanager\nUUID=abcd1234-0000-0000-0000-000000000000\t"+mp+"\text4\tdefaults,nofail,x-diskmanager\t0\t2\n"), 0o644))
	require.NoError(t, os.WriteFile(f.cfg.SmbConfPath,
		[]byte("[old]\n   path = "+mp+"\n"), 0o644))

	res := f.m.RemoveMissing("abcd1234-0000-0000-0000-000000000000", mp)
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Details, "fstab: entry removed")
	assert.Contains(t, res.Details, "samba: share removed")

	fstabData, err := os.ReadFile(f.cfg.FstabPath)
	require.NoError(t, err)
	assert.NotContains(t, string(fstabData), "abcd1234")

	smbData, err := os.ReadFile(f.cfg.SmbConfPath)
	require.NoError(t, err)
	assert.NotContains(t, string(smbData), "[old]")
}

func TestRemoveMissingValidation(t *testing.T) {
	asRoot(t)

	f := newFixture(t, lsblkJSON("u1", ""), "", "")

	res := f.m.RemoveMissing("", "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "invalid UUID")

	res = f.m.RemoveMissing("not a uuid!", "")
	assert.False(t, res.OK)

	res = f.m.RemoveMissing("abcd1234", "/etc")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "unsafe mountpoint")
}

func TestFormatOptions(t *testing.T) {
	f := newFixture(t, lsblkJSON("u1", ""), "", "")

	res := f.m.FormatOptions()
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "no formatting tools")

	f.run.tools["mkfs.ext4"] = true
	res = f.m.FormatOptions()
	assert.True(t, res.OK)
	assert.Contains(t, res.Details, "ext4")
}
