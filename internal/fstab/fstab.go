// Package fstab owns the boot-time mount table.
//
// Entries created here are bracketed by a marker comment and tagged with a
// marker mount option, so they can be removed later without disturbing
// hand-written lines. Everything outside a managed entry round-trips
// byte-for-byte.
package fstab

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mlara/diskmanager/internal/blockfile"
	"github.com/mlara/diskmanager/internal/txfile"
)

const (
	// MarkerComment precedes every entry this tool writes.
	MarkerComment = "# diskmanager"
	// ManagedOption tags managed entries inside the options column, so
	// automation (mount -a -O) can filter on it.
	ManagedOption = "x-diskmanager"
)

// Entry is one parsed mount-table line.
type Entry struct {
	Spec       string // UUID=<uuid> or a device path
	Mountpoint string
	FSType     string
	Options    string
	Dump       string
	Passno     string
	Raw        string // verbatim source line
}

// UUID returns the uuid for UUID= specs, else "".
func (e Entry) UUID() string {
	if rest, ok := strings.CutPrefix(e.Spec, "UUID="); ok {
		return rest
	}
	return ""
}

// Managed reports whether the entry carries the managed marker option.
func (e Entry) Managed() bool {
	for _, opt := range strings.Split(e.Options, ",") {
		if opt == ManagedOption {
			return true
		}
	}
	return false
}

// DevicePresent reports whether the backing device currently exists, by
// UUID symlink or by device path.
func (e Entry) DevicePresent() bool {
	if uuid := e.UUID(); uuid != "" {
		_, err := os.Stat("/dev/disk/by-uuid/" + uuid)
		return err == nil
	}
	if strings.HasPrefix(e.Spec, "/dev/") {
		_, err := os.Stat(e.Spec)
		return err == nil
	}
	return false
}

// Store reads and mutates one mount-table file.
type Store struct {
	path   string
	writer *txfile.Writer
	log    *zap.Logger
}

func NewStore(path string, writer *txfile.Writer, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, writer: writer, log: log}
}

// Path returns the file this store manages.
func (s *Store) Path() string { return s.path }

// Entries parses the table. It fails soft: a missing or unreadable file
// yields an empty list so read-only views still work without privileges.
// Lines with fewer than six fields are skipped, tolerating truncated or
// malformed entries without failing the whole read.
func (s *Store) Entries() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	return ParseEntries(data)
}

// ParseEntries decodes whitespace-separated mount-table lines.
func ParseEntries(data []byte) []Entry {
	var entries []Entry
	for _, raw := range blockfile.Parse(data).Lines() {
		stripped := strings.TrimSpace(raw)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		fields := strings.Fields(stripped)
		if len(fields) < 6 {
			continue
		}
		entries = append(entries, Entry{
			Spec:       fields[0],
			Mountpoint: fields[1],
			FSType:     fields[2],
			Options:    fields[3],
			Dump:       fields[4],
			Passno:     fields[5],
			Raw:        raw,
		})
	}
	return entries
}

// EntryForUUID returns the active entry for a uuid, if any.
func (s *Store) EntryForUUID(uuid string) (Entry, bool) {
	spec := "UUID=" + uuid
	for _, e := range s.Entries() {
		if e.Spec == spec {
			return e, true
		}
	}
	return Entry{}, false
}

// SetPersistence adds or removes the managed entry for a uuid. Fields is the
// pre-computed filesystem/options tuple (see FieldsFor). It returns whether
// the file changed and, if so, the backup path.
func (s *Store) SetPersistence(uuid, mountpoint string, fields Fields, enable bool) (bool, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, "", fmt.Errorf("read %s: %w", s.path, err)
	}
	doc := blockfile.Parse(data)

	spec := "UUID=" + uuid
	idx := doc.FindLine(func(line string) bool {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			return false
		}
		return strings.Fields(stripped)[0] == spec
	})

	if enable {
		if idx >= 0 {
			return false, "", nil
		}
		options := fields.Options
		if !containsOption(options, ManagedOption) {
			options += "," + ManagedOption
		}
		line := strings.Join([]string{spec, mountpoint, fields.FSType, options, fields.Dump, fields.Passno}, "\t")
		doc.Append("", MarkerComment, line)
	} else {
		if idx < 0 {
			return false, "", nil
		}
		removeManagedBlock(doc, idx)
	}

	backup, err := s.writer.Replace(s.path, doc.Render(), nil)
	if err != nil {
		return false, "", err
	}
	s.log.Info("mount table updated",
		zap.String("uuid", uuid),
		zap.String("mountpoint", mountpoint),
		zap.Bool("enable", enable),
		zap.String("backup", backup))
	return true, backup, nil
}

// RemoveForUUID deletes every entry for a uuid, optionally narrowed to one
// mountpoint. Used when purging configuration for a disk that is gone.
func (s *Store) RemoveForUUID(uuid, mountpoint string) (bool, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, "", fmt.Errorf("read %s: %w", s.path, err)
	}
	doc := blockfile.Parse(data)

	spec := "UUID=" + uuid
	var hits []int
	for i := 0; i < doc.Len(); i++ {
		stripped := strings.TrimSpace(doc.Line(i))
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		fields := strings.Fields(stripped)
		if len(fields) < 2 || fields[0] != spec {
			continue
		}
		if mountpoint != "" && fields[1] != mountpoint {
			continue
		}
		hits = append(hits, i)
	}
	if len(hits) == 0 {
		return false, "", nil
	}

	// Back to front so earlier indexes stay valid.
	for i := len(hits) - 1; i >= 0; i-- {
		removeManagedBlock(doc, hits[i])
	}

	backup, err := s.writer.Replace(s.path, doc.Render(), nil)
	if err != nil {
		return false, "", err
	}
	return true, backup, nil
}

// removeManagedBlock deletes the entry line plus its marker comment and the
// blank line the marker was appended with, when they are present.
func removeManagedBlock(doc *blockfile.Document, entryIdx int) {
	doc.Remove(entryIdx)

	commentIdx := entryIdx - 1
	if commentIdx < 0 || commentIdx >= doc.Len() {
		return
	}
	if !strings.EqualFold(strings.TrimSpace(doc.Line(commentIdx)), MarkerComment) {
		return
	}
	doc.Remove(commentIdx)

	blankIdx := commentIdx - 1
	if blankIdx >= 0 && blankIdx < doc.Len() && strings.TrimSpace(doc.Line(blankIdx)) == "" {
		doc.Remove(blankIdx)
	}
}

func containsOption(options, opt string) bool {
	for _, o := range strings.Split(options, ",") {
		if o == opt {
			return true
		}
	}
	return false
}
