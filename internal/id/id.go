package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	fileDateFormat = "20060102"
	fileExt        = ".txt"
)

// FormatFileName returns the clearing file name for a submission,
// like "12345678-001-20250115.txt".
func FormatFileName(instituteID, senderID string, executionDate time.Time) string {
	return fmt.Sprintf("%s-%s-%s%s", instituteID, senderID, executionDate.Format(fileDateFormat), fileExt)
}

// ParseFileName parses "12345678-001-20250115.txt" into its parts.
func ParseFileName(name string) (instituteID, senderID string, executionDate time.Time, err error) {
	base := strings.TrimSuffix(name, fileExt)
	if base == name {
		return "", "", time.Time{}, fmt.Errorf("invalid file name %q: missing %s suffix", name, fileExt)
	}

	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return "", "", time.Time{}, fmt.Errorf("invalid file name format: %q", name)
	}

	executionDate, err = time.Parse(fileDateFormat, parts[2])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid date in file name %q: %w", name, err)
	}

	return parts[0], parts[1], executionDate, nil
}

// FormatSeq returns a zero-padded payment sequence like "0007".
func FormatSeq(seq, width int) string {
	return fmt.Sprintf("%0*d", width, seq)
}

// NormalizeCode strips leading zeros from a numeric bank or branch code.
// "010" -> "10", "000" -> "0".
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" && code != "" {
		return "0"
	}
	return trimmed
}

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Compare orders invoice ids canonically: numeric ids first by value,
// then everything else lexically. Ties between "7" and "007" fall back to
// lexical order so the result is a total order.
func Compare(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
