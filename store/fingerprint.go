package store

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint computes a stable hash of the normalized title and summary,
// used to detect the same story republished under a different URL. Text is
// lowercased, stripped of everything but letters, digits and whitespace,
// and whitespace-collapsed before hashing, so two articles fingerprint
// equal iff their normalized text is identical. Returns "" when the
// normalized text is empty; empty fingerprints take no part in duplicate
// detection.
func Fingerprint(title, summary string) string {
	normalized := normalize(title + " " + summary)
	if normalized == "" {
		return ""
	}
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
