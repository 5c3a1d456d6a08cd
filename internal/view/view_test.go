package view

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageHuman(t *testing.T) {
	t.Parallel()

	u := Usage{TotalBytes: 2 << 30, UsedBytes: 1 << 30, Percent: 50}
	assert.Equal(t, "1.0 GiB / 2.0 GiB (50.0%)", u.Human())
}

func TestUsageFor(t *testing.T) {
	t.Parallel()

	u := UsageFor(t.TempDir())
	require.NotNil(t, u)
	assert.Greater(t, u.TotalBytes, uint64(0))
	assert.LessOrEqual(t, u.Percent, 100.0)

	assert.Nil(t, UsageFor("/does/not/exist"))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rows := []DiskRow{
		{ID: "sdb1", Mounted: true, Persistent: true, Shared: true},
		{ID: "sdc1", Mounted: true},
		{ID: "gone", Missing: true, Persistent: true},
	}
	s := Summarize(rows)
	assert.Equal(t, Stats{Detected: 3, Mounted: 2, Missing: 1, Persistent: 2, Shared: 1}, s)
}

func TestPrintTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintTable(&buf, []DiskRow{
		{ID: "sdb1", Label: "data", Size: "1.8T", FSType: "ext4",
			Mountpoint: "/mnt/data", Mounted: true, Persistent: true, Shared: true},
		{ID: "sdc1", Label: "-", Size: "500G", FSType: "ntfs"},
	})
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "DEVICE")
	assert.Contains(t, lines[1], "MPS")
	assert.Contains(t, lines[2], "-")
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := PrintJSON(&buf, []DiskRow{{ID: "sdb1", UUID: "u1", Mounted: true}})
	require.NoError(t, err)

	var decoded struct {
		Stats Stats     `json:"stats"`
		Disks []DiskRow `json:"disks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Stats.Detected)
	assert.Equal(t, 1, decoded.Stats.Mounted)
	require.Len(t, decoded.Disks, 1)
	assert.Equal(t, "sdb1", decoded.Disks[0].ID)
	assert.Equal(t, "u1", decoded.Disks[0].UUID)
}
