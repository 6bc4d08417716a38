package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referencePrefix   = 6
	referenceSuffix   = 4
)

// NewReference returns a 10 character booking code: the last six base36
// digits of the Unix time in seconds followed by four random characters.
func NewReference(now time.Time) (string, error) {
	prefix := strings.ToUpper(strconv.FormatInt(now.Unix(), 36))
	if len(prefix) > referencePrefix {
		prefix = prefix[len(prefix)-referencePrefix:]
	}
	prefix = strings.Repeat("0", referencePrefix-len(prefix)) + prefix

	var b strings.Builder
	b.Grow(referencePrefix + referenceSuffix)
	b.WriteString(prefix)
	radix := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceSuffix; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", fmt.Errorf("booking reference: %w", err)
		}
		b.WriteByte(referenceAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidReference reports whether s looks like a booking reference.
func ValidReference(s string) bool {
	if len(s) != referencePrefix+referenceSuffix {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(referenceAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
