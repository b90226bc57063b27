package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateDeviceToken returns a random, collision-improbable device token of
// the form dev_<hex>. byteLen controls the entropy, not the string length.
func GenerateDeviceToken(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = 16
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "dev_" + hex.EncodeToString(buf), nil
}
