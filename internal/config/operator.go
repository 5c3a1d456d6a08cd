package config

import (
	"os"
	"strconv"
	"strings"
)

// Operator is the acting non-root identity behind a sudo invocation. It is
// resolved once at startup and passed down explicitly; deep code never reads
// the environment again.
//
// GID is fixed to 1 to match the fstab convention already in use on the
// hosts this runs on. Windows-family filesystems (NTFS/exFAT) need uid/gid
// mount options because they carry no ownership of their own.
type Operator struct {
	UID      int
	GID      int
	Username string
}

// ResolveOperator derives the operator from SUDO_UID/SUDO_USER, defaulting
// to uid 1000 and username "root" when the app was not started via sudo.
func ResolveOperator() Operator {
	op := Operator{UID: 1000, GID: 1, Username: "root"}

	if v := strings.TrimSpace(os.Getenv("SUDO_UID")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			op.UID = n
		}
	}

	// root is not a useful owner for shares; prefer the invoking user.
	for _, key := range []string{"SUDO_USER", "USER"} {
		if u := strings.TrimSpace(os.Getenv(key)); u != "" {
			op.Username = u
			break
		}
	}
	return op
}
