package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// SignatureHeader carries base64(HMAC-SHA256(channel secret, body)).
const SignatureHeader = "X-Line-Signature"

// ErrBadSignature is returned when the request signature does not match.
var ErrBadSignature = errors.New("invalid webhook signature")

// Sign computes the signature for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body in constant time.
func Verify(secret, body []byte, signature string) error {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || signature == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}
