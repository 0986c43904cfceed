// Package auth verifies that billing provider events were sent by the provider.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the timestamp and HMAC of a webhook delivery
const SignatureHeader = "Billing-Signature"

// signatureScheme is the only accepted signature version
const signatureScheme = "v1"

var (
	// ErrMissingSignature is returned when a delivery carries no signature header
	ErrMissingSignature = errors.New("missing signature header")
	// ErrMalformedSignature is returned when the header cannot be parsed
	ErrMalformedSignature = errors.New("malformed signature header")
	// ErrSignatureMismatch is returned when no signature matches the payload
	ErrSignatureMismatch = errors.New("signature does not match payload")
	// ErrTimestampOutsideTolerance is returned for stale or future-dated deliveries
	ErrTimestampOutsideTolerance = errors.New("signature timestamp outside tolerance")
)

// Verifier checks webhook signatures of the form "t=<unix>,v1=<hex>".
// The signed payload is "<unix>.<body>" under HMAC-SHA256 with the shared secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
}

// NewVerifier creates a verifier for the shared secret
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret must not be empty")
	}
	if tolerance <= 0 {
		return nil, fmt.Errorf("invalid signature tolerance %s", tolerance)
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance}, nil
}

// Verify checks the header against the body at time now.
// Several v1 entries may be present during secret rotation; any match is accepted.
func (v *Verifier) Verify(header string, body []byte, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrTimestampOutsideTolerance
	}

	expected := computeSignature(v.secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// Sign returns a signature header value for body at time t
func Sign(secret string, body []byte, t time.Time) string {
	sig := computeSignature([]byte(secret), t.Unix(), body)
	return fmt.Sprintf("t=%d,%s=%s", t.Unix(), signatureScheme, hex.EncodeToString(sig))
}

func computeSignature(secret []byte, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var (
		timestamp  int64
		haveTime   bool
		signatures [][]byte
	)

	for part := range strings.SplitSeq(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrMalformedSignature
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			timestamp, haveTime = ts, true
		case signatureScheme:
			sig, err := hex.DecodeString(value)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			signatures = append(signatures, sig)
		default:
			// Unknown schemes are skipped so providers can add new versions
		}
	}

	if !haveTime || len(signatures) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return timestamp, signatures, nil
}
