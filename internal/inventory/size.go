package inventory

import (
	"regexp"
	"strconv"
	"strings"
)

var sizeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([KMGTPkmgtp]?)[Bb]?$`)

var sizeUnits = map[string]int64{
	"":  1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
	"P": 1 << 50,
}

// ParseSize converts an lsblk-style size string ("489G", "1.5G", "0") into
// bytes. Unparseable or negative input reports ok=false; callers treat that
// as zero/absent, never as an error.
func ParseSize(value string) (int64, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, false
	}
	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	mul, ok := sizeUnits[strings.ToUpper(m[2])]
	if !ok {
		return 0, false
	}
	out := int64(num * float64(mul))
	if out < 0 {
		return 0, false
	}
	return out, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
