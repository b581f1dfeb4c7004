// Package payment verifies and parses payment gateway webhooks.
//
// The gateway signs each delivery with a header of the form
//
//	X-Signature: t=1700000000,v1=5257a869e7ec...
//
// where v1 is the hex HMAC-SHA256 of "<t>.<raw body>" under the shared
// secret. Several v1 entries may be present while a secret is rotated.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader  = "X-Signature"
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature   = errors.New("payment: missing signature")
	ErrMalformedSignature = errors.New("payment: malformed signature header")
	ErrStaleTimestamp     = errors.New("payment: timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("payment: signature mismatch")
)

// Verifier checks webhook signatures.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier returns a verifier with the default 5 minute tolerance.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

func computeSignature(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign builds a signature header value, used by tests and local tooling.
func Sign(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(computeSignature([]byte(secret), ts, body))
}

// Verify validates header against body.
func (v *Verifier) Verify(header string, body []byte) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var signatures [][]byte

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return ErrMalformedSignature
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return ErrMalformedSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}

	age := v.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return ErrStaleTimestamp
	}

	expected := computeSignature(v.secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}

	return ErrSignatureMismatch
}
