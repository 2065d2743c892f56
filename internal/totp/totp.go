// Package totp generates time-based one-time codes (RFC 6238) for the
// second authentication step.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSecret indicates the shared secret is not valid base32.
var ErrInvalidSecret = errors.New("invalid totp secret")

const (
	// period is the code validity window in seconds.
	period = 30

	// digits is the code length.
	digits = 6
)

// Generate returns the 6-digit code for the current 30-second UTC window.
func Generate(secret string) (string, error) {
	return generateAt(secret, time.Now())
}

// generateAt computes the code for an arbitrary point in time.
func generateAt(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	counter := uint64(t.UTC().Unix() / period)

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation (RFC 4226 §5.3).
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%1_000_000), nil
}

// decodeSecret decodes a base32 shared secret, tolerating lowercase,
// spaces, and missing padding as produced by various issuers.
func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	normalized = strings.TrimRight(normalized, "=")

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}
