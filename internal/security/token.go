package security

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ProjectCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const ProjectCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const magicLinkPrefix = "ml_"

// NewMagicLinkToken builds a one-time token from a random base-36 fragment
// plus a base-36 timestamp suffix. Expiry and the single-use flag enforce
// the security boundary, not the token alone.
func NewMagicLinkToken(now time.Time) string {
	var b strings.Builder
	b.WriteString(magicLinkPrefix)
	b.WriteString(randomBase36(8))
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	return b.String()
}

// NewSessionID is unique within practical collision bounds: millisecond
// timestamp plus a 6-char random suffix.
func NewSessionID(now time.Time) string {
	return "s_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomBase36(6)
}

// NewNumericCode returns a uniformly random code of exactly the given
// number of digits (no leading zero).
func NewNumericCode(digits int) string {
	if digits < 1 {
		digits = 6
	}
	var b strings.Builder
	b.WriteByte(byte('1' + randomInt(9)))
	for i := 1; i < digits; i++ {
		b.WriteByte(byte('0' + randomInt(10)))
	}
	return b.String()
}

// NewProjectCode draws uniformly from the restricted alphabet.
func NewProjectCode(length int) string {
	if length < 1 {
		length = 6
	}
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(ProjectCodeAlphabet[randomInt(len(ProjectCodeAlphabet))])
	}
	return b.String()
}

// NormalizeProjectCode uppercases, strips non-alphanumerics and caps the
// length, mirroring what users paste from share panels.
func NormalizeProjectCode(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 8 {
			break
		}
	}
	return b.String()
}

func randomBase36(length int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[randomInt(len(alphabet))])
	}
	return b.String()
}

func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the platform source is broken;
		// degrading to a fixed index would silently kill entropy.
		panic(err)
	}
	return int(v.Int64())
}
