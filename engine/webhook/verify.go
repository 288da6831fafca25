// Package webhook is the HTTP entry point for inbound provider events:
// it verifies signatures, derives the idempotency key and drives the
// schedule pipeline synchronously.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Signature verification states recorded into the run's step log.
const (
	SignatureVerified      = "verified"
	SignatureNotApplicable = "not_applicable"
)

var ErrBadSignature = errors.New("signature mismatch")

// Verifier checks an HMAC-SHA256 signature over the raw request body.
// Verification is permissive: with no secret configured, or no signature
// header on the request, the request passes as not applicable. Unsigned
// internal triggers rely on this.
type Verifier struct {
	secret []byte
	header string
}

func NewVerifier(secret, header string) *Verifier {
	return &Verifier{secret: []byte(secret), header: header}
}

// Verify returns the signature state for the request, or ErrBadSignature
// when a presented signature does not match the body digest.
func (v *Verifier) Verify(signatureHeader string, body []byte) (string, error) {
	if len(v.secret) == 0 || signatureHeader == "" {
		return SignatureNotApplicable, nil
	}
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signatureHeader), "sha256="))
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !hmac.Equal(expected, got) {
		return "", ErrBadSignature
	}
	return SignatureVerified, nil
}

// Header returns the configured signature header name.
func (v *Verifier) Header() string {
	return v.header
}
