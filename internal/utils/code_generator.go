package utils

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ReferralCodeLength is the number of random characters after the prefix
const ReferralCodeLength = 6

// GenerateReferralCode creates a code in the format "PREFIXXXXXXX" where the
// suffix is upper-cased base58 of random bytes
func GenerateReferralCode(prefix string) (string, error) {
	var suffix string
	for len(suffix) < ReferralCodeLength {
		b := make([]byte, 8)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		suffix += base58.Encode(b)
	}

	return prefix + strings.ToUpper(suffix[:ReferralCodeLength]), nil
}
