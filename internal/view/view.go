// Package view renders device rows for the CLI: one line per manageable
// device with mount/persist/share state and usage.
package view

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// Usage is filesystem occupancy for a mounted device.
type Usage struct {
	TotalBytes uint64  `json:"total_bytes"`
	UsedBytes  uint64  `json:"used_bytes"`
	FreeBytes  uint64  `json:"free_bytes"`
	Percent    float64 `json:"percent"`
}

// Human returns "used / total (pct%)".
func (u Usage) Human() string {
	return fmt.Sprintf("%s / %s (%.1f%%)",
		humanize.IBytes(u.UsedBytes), humanize.IBytes(u.TotalBytes), u.Percent)
}

// UsageFor reads occupancy for a mounted path; nil when statfs fails.
func UsageFor(path string) *Usage {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	if total == 0 {
		return nil
	}
	used := total - st.Bfree*uint64(st.Bsize)
	return &Usage{
		TotalBytes: total,
		UsedBytes:  used,
		FreeBytes:  free,
		Percent:    float64(used) / float64(total) * 100,
	}
}

// DiskRow is one presentable device.
type DiskRow struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Size       string `json:"size"`
	FSType     string `json:"fstype"`
	UUID       string `json:"uuid"`
	Kind       string `json:"kind"`
	Mounted    bool   `json:"mounted"`
	Mountpoint string `json:"mountpoint"`
	Persistent bool   `json:"persistent"`
	Shared     bool   `json:"samba"`
	Missing    bool   `json:"missing,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`
}

// Stats summarizes a set of rows.
type Stats struct {
	Detected   int `json:"detected"`
	Mounted    int `json:"mounted"`
	Missing    int `json:"missing"`
	Persistent int `json:"persistent"`
	Shared     int `json:"samba"`
}

// Summarize counts row states.
func Summarize(rows []DiskRow) Stats {
	var s Stats
	s.Detected = len(rows)
	for _, r := range rows {
		if r.Mounted {
			s.Mounted++
		}
		if r.Missing {
			s.Missing++
		}
		if r.Persistent {
			s.Persistent++
		}
		if r.Shared {
			s.Shared++
		}
	}
	return s
}

// PrintTable writes an aligned device table.
func PrintTable(w io.Writer, rows []DiskRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tLABEL\tSIZE\tFSTYPE\tMOUNTPOINT\tFLAGS\tUSAGE")
	for _, r := range rows {
		flags := ""
		if r.Mounted {
			flags += "M"
		}
		if r.Persistent {
			flags += "P"
		}
		if r.Shared {
			flags += "S"
		}
		if r.Missing {
			flags += "!"
		}
		if flags == "" {
			flags = "-"
		}
		usage := "-"
		if r.Usage != nil {
			usage = r.Usage.Human()
		}
		mp := r.Mountpoint
		if mp == "" {
			mp = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Label, r.Size, r.FSType, mp, flags, usage)
	}
	tw.Flush()
}

// PrintJSON writes rows plus summary stats as JSON.
func PrintJSON(w io.Writer, rows []DiskRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Stats Stats     `json:"stats"`
		Disks []DiskRow `json:"disks"`
	}{Stats: Summarize(rows), Disks: rows})
}
