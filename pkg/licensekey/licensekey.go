// Package licensekey generates human-typeable license codes.
//
// A code is five hyphen-joined groups of five characters drawn from A-Z0-9,
// e.g. "7K2QX-PLM09-AA3ZT-Q8WRN-0BD4H". The generator is pure and stateless;
// uniqueness against the store is the caller's responsibility.
package licensekey

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// Alphabet is the 36-character set codes are drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	Groups    = 5
	GroupLen  = 5
	Separator = "-"
)

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// Generate produces a fresh random code. The search space is 36^25, so
// collisions are astronomically rare but still handled by the caller.
func Generate() string {
	var b strings.Builder
	b.Grow(Groups*GroupLen + Groups - 1)
	for g := 0; g < Groups; g++ {
		if g > 0 {
			b.WriteString(Separator)
		}
		for i := 0; i < GroupLen; i++ {
			b.WriteByte(Alphabet[randIndex()])
		}
	}
	return b.String()
}

// Valid reports whether the code matches the XXXXX-XXXXX-XXXXX-XXXXX-XXXXX shape.
func Valid(code string) bool {
	parts := strings.Split(code, Separator)
	if len(parts) != Groups {
		return false
	}
	for _, part := range parts {
		if len(part) != GroupLen {
			return false
		}
		for i := 0; i < len(part); i++ {
			if !strings.ContainsRune(Alphabet, rune(part[i])) {
				return false
			}
		}
	}
	return true
}

// Normalize uppercases and trims a user-supplied code so lookups are
// insensitive to how the desktop client captured it.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randIndex() int {
	n, err := rand.Int(rand.Reader, alphabetLen)
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// nothing sensible can continue from there.
		panic(err)
	}
	return int(n.Int64())
}
