// Package inventory snapshots the kernel's block-device tree via lsblk.
//
// Every query rebuilds the snapshot from scratch; nothing here is cached or
// persisted. The UUID is the only identifier that survives replug/reboot.
package inventory

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mlara/diskmanager/internal/execx"
)

// Kind mirrors the lsblk TYPE column for the device kinds we track.
type Kind string

const (
	KindDisk      Kind = "disk"
	KindPartition Kind = "part"
	KindCrypt     Kind = "crypt"
	KindLVM       Kind = "lvm"
)

// BlockDevice is one row of the flattened device tree.
type BlockDevice struct {
	Name        string
	Path        string
	Parent      string // kernel name of the immediate backing device
	Size        string // raw lsblk size, e.g. "489G"
	SizeBytes   int64  // parsed Size; 0 when unparseable
	FSType      string
	Label       string
	UUID        string
	Mountpoint  string
	Kind        Kind
	Removable   bool
	Hotplug     bool
	Transport   string // "usb", "sata", ... empty when unknown
	HasChildren bool
}

// Mounted reports whether the device currently has a mountpoint.
func (d BlockDevice) Mounted() bool { return d.Mountpoint != "" }

// External reports whether a raw disk looks removable/hotplug/USB-attached.
// Internal disks without partitions stay hidden so they cannot be formatted
// by accident.
func (d BlockDevice) External() bool {
	return d.Removable || d.Hotplug || strings.EqualFold(d.Transport, "usb")
}

type runner interface {
	Run(args []string, timeout time.Duration) execx.Result
}

// lsblkOutput represents the JSON output from lsblk
type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

// lsblkDevice represents a single device in lsblk output
type lsblkDevice struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	PKName     string        `json:"pkname"`
	Size       string        `json:"size"`
	FSType     string        `json:"fstype"`
	Label      string        `json:"label"`
	UUID       string        `json:"uuid"`
	Mountpoint string        `json:"mountpoint"`
	Type       string        `json:"type"`
	RM         flexBool      `json:"rm"`
	Hotplug    flexBool      `json:"hotplug"`
	Tran       string        `json:"tran"`
	Children   []lsblkDevice `json:"children,omitempty"`
}

// flexBool tolerates both lsblk dialects: older util-linux emits "0"/"1"
// strings, newer emits real JSON booleans.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

// lsblkColumns is the -o column list; keep in sync with lsblkDevice.
const lsblkColumns = "NAME,PATH,PKNAME,SIZE,FSTYPE,LABEL,UUID,MOUNTPOINT,TYPE,RM,HOTPLUG,TRAN"

// List returns the flattened device snapshot. It fails soft: any query or
// decode error yields an empty list, which callers must treat as a valid,
// if degraded, result.
func List(run runner) []BlockDevice {
	res := run.Run([]string{"lsblk", "-J", "-o", lsblkColumns}, 10*time.Second)
	if !res.OK() {
		return nil
	}
	devs, err := Decode([]byte(res.Stdout))
	if err != nil {
		return nil
	}
	return devs
}

// Decode flattens lsblk JSON into BlockDevice records. Parents always appear
// in the output; order is otherwise the tool's.
func Decode(data []byte) ([]BlockDevice, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	var devs []BlockDevice
	for _, node := range out.Blockdevices {
		walk(node, &devs)
	}
	return devs, nil
}

func walk(node lsblkDevice, devs *[]BlockDevice) {
	kind := Kind(strings.ToLower(strings.TrimSpace(node.Type)))
	switch kind {
	case KindDisk, KindPartition, KindCrypt, KindLVM:
		path := node.Path
		if path == "" && node.Name != "" {
			path = "/dev/" + node.Name
		}
		size, _ := ParseSize(node.Size)
		*devs = append(*devs, BlockDevice{
			Name:        node.Name,
			Path:        path,
			Parent:      strings.TrimSpace(node.PKName),
			Size:        node.Size,
			SizeBytes:   size,
			FSType:      node.FSType,
			Label:       node.Label,
			UUID:        node.UUID,
			Mountpoint:  node.Mountpoint,
			Kind:        kind,
			Removable:   bool(node.RM),
			Hotplug:     bool(node.Hotplug),
			Transport:   strings.ToLower(strings.TrimSpace(node.Tran)),
			HasChildren: len(node.Children) > 0,
		})
	}
	for _, child := range node.Children {
		walk(child, devs)
	}
}

// ByName returns the first device with the given kernel name.
func ByName(devs []BlockDevice, name string) (BlockDevice, bool) {
	for _, d := range devs {
		if d.Name == name {
			return d, true
		}
	}
	return BlockDevice{}, false
}
