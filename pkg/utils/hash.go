package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// SubscriberHash returns the list member identifier for an email address:
// the MD5 hash of the lowercased address, hex encoded.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}
