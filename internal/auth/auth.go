package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const signatureMaxAge = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrExpired          = errors.New("signature expired")
	ErrMismatch         = errors.New("signature mismatch")
)

// Sign returns the hex HMAC-SHA256 of "timestamp.body" under secret.
func Sign(secret string, timestamp int64, body []byte) string {
	return hex.EncodeToString(hmacSHA256([]byte(secret), signedPayload(timestamp, body)))
}

// ValidateSignature checks an admin request signature. timestamp is Unix
// seconds and may not be older (or further in the future) than five minutes.
func ValidateSignature(secret, signature, timestamp string, body []byte, now time.Time) error {
	if signature == "" || timestamp == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureMaxAge || age < -signatureMaxAge {
		return ErrExpired
	}

	received, err := hex.DecodeString(signature)
	if err != nil {
		return ErrMismatch
	}
	computed := hmacSHA256([]byte(secret), signedPayload(ts, body))
	if !hmac.Equal(computed, received) {
		return ErrMismatch
	}
	return nil
}

func signedPayload(timestamp int64, body []byte) []byte {
	out := strconv.AppendInt(nil, timestamp, 10)
	out = append(out, '.')
	return append(out, body...)
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
