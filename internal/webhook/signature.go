package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("webhook: missing signature")
	ErrBadSignature     = errors.New("webhook: signature mismatch")
	ErrStaleSignature   = errors.New("webhook: signature timestamp outside tolerance")
)

// Header names the provider has used for the signature, in lookup order.
var signatureHeaders = []string{
	"elevenlabs-signature",
	"x-elevenlabs-signature",
	"x-signature",
	"x-webhook-signature",
}

// SignatureFromHeader returns the first non-empty signature header.
func SignatureFromHeader(h http.Header) string {
	for _, name := range signatureHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// Verifier checks webhook signatures against a shared secret.
//
// Accepted forms:
//   - the secret itself
//   - hex HMAC-SHA256 of the body, optionally prefixed "sha256="
//   - "t=<unix>,v0=<hex>" where v0 is HMAC-SHA256 of "<t>.<body>"
//
// A Verifier with an empty secret is disabled: Enabled reports false and
// callers run in unverified mode.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = 30 * time.Minute
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

func (v *Verifier) Enabled() bool { return v != nil && len(v.secret) > 0 }

func (v *Verifier) Verify(signature string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	if strings.Contains(signature, "v0=") {
		return v.verifyTimestamped(signature, body)
	}
	if subtle.ConstantTimeCompare([]byte(signature), v.secret) == 1 {
		return nil
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, v.mac(body)) {
		return ErrBadSignature
	}
	return nil
}

func (v *Verifier) verifyTimestamped(header string, body []byte) error {
	var (
		ts   string
		sigs [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v0":
			if b, err := hex.DecodeString(val); err == nil {
				sigs = append(sigs, b)
			}
		}
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || len(sigs) == 0 {
		return ErrBadSignature
	}

	age := v.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return ErrStaleSignature
	}

	signed := make([]byte, 0, len(ts)+1+len(body))
	signed = append(signed, ts...)
	signed = append(signed, '.')
	signed = append(signed, body...)
	want := v.mac(signed)
	for _, s := range sigs {
		if hmac.Equal(s, want) {
			return nil
		}
	}
	return ErrBadSignature
}

func (v *Verifier) mac(b []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(b)
	return m.Sum(nil)
}

// Sign produces a hex HMAC-SHA256 of body. Used by tests and local tooling
// that replays provider payloads.
func Sign(secret string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}
