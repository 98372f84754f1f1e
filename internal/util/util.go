package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256Hex compares a hex signature against the expected MAC
// for msg in constant time.
func VerifyHMACSHA256Hex(secret, msg, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hmac.Equal(sig, mac.Sum(nil))
}
