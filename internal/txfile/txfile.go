// Package txfile replaces system config files without ever leaving them
// half-written.
//
// The sequence is: write a temp file next to the target (same filesystem, so
// the final rename is atomic), optionally run an external validator against
// it, copy the original to a timestamped backup, carry the original
// permission bits over, then rename the temp file into place. Any failure
// before the rename leaves the target untouched; a failure after the backup
// was taken triggers a best-effort restore.
package txfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Validator inspects a candidate file before it replaces the target. A
// non-nil error aborts the replace with the target unchanged.
type Validator func(candidatePath string) error

// Writer performs transactional replaces. The zero value is not usable;
// construct with New.
type Writer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{log: log}
}

// backupSuffix marks backups taken by this tool; the unix timestamp keeps
// repeated edits from clobbering each other.
const backupSuffix = ".bak.diskmanager."

// Replace atomically swaps target's contents. The backup path is returned on
// success so callers can surface it to the operator.
func (w *Writer) Replace(target string, contents []byte, validate Validator) (string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", target, err)
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".diskmanager.*")
	if err != nil {
		return "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if validate != nil {
		if err := validate(tmpPath); err != nil {
			cleanup()
			return "", err
		}
	}

	backup := fmt.Sprintf("%s%s%d", target, backupSuffix, time.Now().Unix())
	if err := copyFile(target, backup, info.Mode()); err != nil {
		cleanup()
		return "", fmt.Errorf("backup %s: %w", target, err)
	}

	// Match the original permission bits; CreateTemp defaults to 0600.
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		w.log.Warn("could not carry permissions onto candidate file",
			zap.String("target", target), zap.Error(err))
	}

	if err := os.Rename(tmpPath, target); err != nil {
		cleanup()
		if restoreErr := copyFile(backup, target, info.Mode()); restoreErr != nil {
			w.log.Error("restore after failed replace also failed",
				zap.String("target", target),
				zap.String("backup", backup),
				zap.Error(restoreErr))
		}
		return "", fmt.Errorf("replace %s: %w", target, err)
	}

	w.log.Info("config file replaced",
		zap.String("target", target),
		zap.String("backup", backup))
	return backup, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
