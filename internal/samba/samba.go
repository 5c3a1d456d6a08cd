// Package samba owns the share-definition file (smb.conf).
//
// Shares are located structurally, block by block, and edits splice lines so
// unrelated blocks stay byte-for-byte intact. Every mutation goes through
// the transactional writer with testparm validation when the tool is
// present; a rejected candidate never touches the live file.
package samba

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlara/diskmanager/internal/blockfile"
	"github.com/mlara/diskmanager/internal/config"
	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/operr"
	"github.com/mlara/diskmanager/internal/txfile"
)

// Share is one named export parsed from the config.
type Share struct {
	Name     string
	Path     string
	Public   bool
	ReadOnly bool
	Enabled  bool // from "available"; absence means enabled
}

// Sections that are never manageable shares (the global block and system
// resources like printers).
var systemSections = map[string]bool{
	"global":   true,
	"printers": true,
	"print$":   true,
	"ipc$":     true,
}

// Store reads and mutates one share-definition file.
type Store struct {
	path   string
	writer *txfile.Writer
	run    execx.Runner
	log    *zap.Logger
}

func NewStore(path string, writer *txfile.Writer, run execx.Runner, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, writer: writer, run: run, log: log}
}

// Path returns the file this store manages.
func (s *Store) Path() string { return s.path }

// Exists reports whether the config file is present (Samba installed).
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Shares lists the manageable share blocks. It fails soft: a missing or
// unreadable file yields an empty list.
func (s *Store) Shares() []Share {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	return ParseShares(data)
}

// ParseShares decodes share blocks from file contents.
func ParseShares(data []byte) []Share {
	var shares []Share
	var current *Share
	for _, raw := range blockfile.Parse(data).Lines() {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if name, ok := headerName(line); ok {
			if systemSections[strings.ToLower(name)] {
				current = nil
				continue
			}
			shares = append(shares, Share{Name: name, Enabled: true})
			current = &shares[len(shares)-1]
			continue
		}
		if current == nil {
			continue
		}
		key, value, ok := keyValue(line)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "path":
			current.Path = value
		case "guest ok", "public":
			current.Public = isTruthy(value)
		case "read only":
			current.ReadOnly = isTruthy(value)
		case "writable", "writeable":
			current.ReadOnly = !isTruthy(value)
		case "available":
			current.Enabled = isTruthy(value)
		}
	}
	return shares
}

// EnabledSharePaths returns the normalized paths of all enabled shares.
func (s *Store) EnabledSharePaths() map[string]bool {
	paths := make(map[string]bool)
	for _, sh := range s.Shares() {
		if sh.Enabled && sh.Path != "" {
			paths[NormPath(sh.Path)] = true
		}
	}
	return paths
}

// ShareForPath returns the first share targeting path, if any.
func (s *Store) ShareForPath(path string) (Share, bool) {
	target := NormPath(path)
	if target == "" {
		return Share{}, false
	}
	for _, sh := range s.Shares() {
		if NormPath(sh.Path) == target {
			return sh, true
		}
	}
	return Share{}, false
}

// SetAvailabilityByPath flips "available = yes/no" on the share targeting
// path. A missing config or missing share is not an error: the point of the
// disable path is that disconnecting a disk is always safe. Reports whether
// the file changed.
func (s *Store) SetAvailabilityByPath(path string, enable bool) (bool, string, error) {
	doc, err := s.load()
	if err != nil {
		return false, "Samba not installed (no smb.conf).", nil
	}
	block, ok := findBlockByPath(doc, path)
	if !ok {
		return false, "no existing share for that path", nil
	}
	return s.setAvailable(doc, block, enable)
}

// SetAvailabilityByName flips availability on a share located by its
// (case-insensitive) name.
func (s *Store) SetAvailabilityByName(name string, enable bool) (bool, string, error) {
	doc, err := s.load()
	if err != nil {
		return false, "", operr.Preconditionf("samba is not installed (no %s)", s.path)
	}
	block, ok := findBlockByName(doc, name)
	if !ok {
		return false, "", operr.Preconditionf("share %q not found in %s", name, s.path)
	}
	return s.setAvailable(doc, block, enable)
}

func (s *Store) setAvailable(doc *blockfile.Document, block blockfile.Range, enable bool) (bool, string, error) {
	desired := "no"
	if enable {
		desired = "yes"
	}

	updated := false
	for i := block.Start + 1; i < block.End; i++ {
		raw := doc.Line(i)
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := keyValue(line)
		if !ok || !strings.EqualFold(key, "available") {
			continue
		}
		if strings.EqualFold(value, desired) {
			return false, fmt.Sprintf("share already had available=%s", desired), nil
		}
		doc.Set(i, blockfile.Indent(raw)+"available = "+desired)
		updated = true
		break
	}
	if !updated {
		// No existing key: insert right after the block header.
		doc.Insert(block.Start+1, "   available = "+desired)
	}

	backup, err := s.commit(doc)
	if err != nil {
		return false, "", err
	}
	return true, fmt.Sprintf("share updated (available=%s), backup: %s", desired, backup), nil
}

// RemoveByPath deletes the whole share block targeting path.
func (s *Store) RemoveByPath(path string) (bool, string, error) {
	doc, err := s.load()
	if err != nil {
		return false, "", nil
	}
	block, ok := findBlockByPath(doc, path)
	if !ok {
		return false, "", nil
	}
	doc.RemoveRange(block)
	backup, err := s.commit(doc)
	if err != nil {
		return false, "", err
	}
	s.log.Info("share removed", zap.String("path", path), zap.String("backup", backup))
	return true, backup, nil
}

// Create appends a share block exporting mountpoint with public read/write
// access, ownership forced to the operator, and a dfree hook so clients see
// the disk's real free space. A share for the same path is a no-op; reusing
// an existing share name for a different path is rejected.
func (s *Store) Create(mountpoint, name string, op config.Operator) (bool, string, error) {
	doc, err := s.load()
	if err != nil {
		return false, "", operr.Preconditionf("samba is not installed (no %s)", s.path)
	}

	if _, ok := findBlockByPath(doc, mountpoint); ok {
		return false, "", nil
	}
	shareName := SafeShareName(name)
	if block, ok := findBlockByName(doc, shareName); ok {
		if !blockHasPath(doc, block, mountpoint) {
			return false, "", operr.Validationf(
				"share name %q already exists for a different path", shareName)
		}
		return false, "", nil
	}

	doc.Append(
		"",
		"["+shareName+"]",
		"   path = "+mountpoint,
		"   browseable = yes",
		"   read only = no",
		"   guest ok = yes",
		"   public = yes",
		"   force user = "+op.Username,
		"   create mask = 0775",
		"   directory mask = 0775",
		"   dfree command = /bin/df -P "+mountpoint,
	)

	backup, err := s.commit(doc)
	if err != nil {
		return false, "", err
	}
	s.log.Info("share created",
		zap.String("name", shareName),
		zap.String("path", mountpoint),
		zap.String("backup", backup))
	return true, backup, nil
}

func (s *Store) load() (*blockfile.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return blockfile.Parse(data), nil
}

func (s *Store) commit(doc *blockfile.Document) (string, error) {
	return s.writer.Replace(s.path, doc.Render(), s.validator())
}

// validator runs testparm against the candidate file when the tool exists.
func (s *Store) validator() txfile.Validator {
	if !s.run.Have("testparm") {
		return nil
	}
	return func(candidate string) error {
		res := s.run.Run([]string{"testparm", "-s", candidate}, 25*time.Second)
		if res.OK() {
			return nil
		}
		return &operr.ConfigValidationError{
			File:   s.path,
			Output: execx.Truncate(res.Output(), 1200),
		}
	}
}

var shareNameJunk = regexp.MustCompile(`[^a-z0-9._-]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// SafeShareName lowercases and strips a proposed name to the character set
// Samba handles without quoting.
func SafeShareName(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = whitespaceRun.ReplaceAllString(text, "_")
	text = shareNameJunk.ReplaceAllString(text, "")
	if text == "" {
		return "share"
	}
	return text
}

// NormPath strips trailing slashes so "/mnt/x/" and "/mnt/x" compare equal.
func NormPath(p string) string {
	p = strings.TrimSpace(p)
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func headerName(line string) (string, bool) {
	if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
		return strings.TrimSpace(line[1 : len(line)-1]), true
	}
	return "", false
}

func keyValue(line string) (string, string, bool) {
	k, v, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), true
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func findBlockByPath(doc *blockfile.Document, path string) (blockfile.Range, bool) {
	target := NormPath(path)
	if target == "" {
		return blockfile.Range{}, false
	}
	for _, sec := range doc.Sections(headerFunc) {
		if strings.EqualFold(sec.Name, "global") {
			continue
		}
		if blockHasPath(doc, sec.Range, target) {
			return sec.Range, true
		}
	}
	return blockfile.Range{}, false
}

func findBlockByName(doc *blockfile.Document, name string) (blockfile.Range, bool) {
	for _, sec := range doc.Sections(headerFunc) {
		if strings.EqualFold(sec.Name, "global") {
			continue
		}
		if strings.EqualFold(sec.Name, name) {
			return sec.Range, true
		}
	}
	return blockfile.Range{}, false
}

func blockHasPath(doc *blockfile.Document, block blockfile.Range, target string) bool {
	target = NormPath(target)
	for i := block.Start; i < block.End; i++ {
		line := strings.TrimSpace(doc.Line(i))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := keyValue(line)
		if !ok || !strings.EqualFold(key, "path") {
			continue
		}
		return NormPath(value) == target
	}
	return false
}

func headerFunc(line string) (string, bool) { return headerName(line) }
