package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timestamped(secret, ts string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(ts + "."))
	m.Write(body)
	return "t=" + ts + ",v0=" + hex.EncodeToString(m.Sum(nil))
}

func TestVerifier_AcceptedForms(t *testing.T) {
	now := time.Unix(1735689600, 0)
	v := NewVerifier("s3cret", 30*time.Minute)
	v.now = func() time.Time { return now }
	body := []byte(`{"conversation_id":"conv_1"}`)
	ts := strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)

	cases := map[string]string{
		"shared secret":   "s3cret",
		"hex hmac":        Sign("s3cret", body),
		"prefixed hmac":   "sha256=" + Sign("s3cret", body),
		"timestamped":     timestamped("s3cret", ts, body),
		"timestamped pad": " " + timestamped("s3cret", ts, body),
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, v.Verify(sig, body))
		})
	}
}

func TestVerifier_Rejections(t *testing.T) {
	now := time.Unix(1735689600, 0)
	v := NewVerifier("s3cret", 30*time.Minute)
	v.now = func() time.Time { return now }
	body := []byte(`{"conversation_id":"conv_1"}`)

	assert.ErrorIs(t, v.Verify("", body), ErrMissingSignature)
	assert.ErrorIs(t, v.Verify(Sign("other", body), body), ErrBadSignature)
	assert.ErrorIs(t, v.Verify(Sign("s3cret", body), []byte(`{"conversation_id":"conv_2"}`)), ErrBadSignature)
	assert.ErrorIs(t, v.Verify("not-hex-and-not-secret", body), ErrBadSignature)

	old := strconv.FormatInt(now.Add(-2*time.Hour).Unix(), 10)
	assert.ErrorIs(t, v.Verify(timestamped("s3cret", old, body), body), ErrStaleSignature)
	assert.ErrorIs(t, v.Verify("t=abc,v0=00", body), ErrBadSignature)
}

func TestVerifier_DisabledWithoutSecret(t *testing.T) {
	v := NewVerifier("", 0)
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify("", []byte("anything")))

	var nilV *Verifier
	assert.False(t, nilV.Enabled())
}

func TestSignatureFromHeader_Order(t *testing.T) {
	h := http.Header{}
	h.Set("X-Webhook-Signature", "last")
	h.Set("X-Signature", "third")
	assert.Equal(t, "third", SignatureFromHeader(h))

	h.Set("ElevenLabs-Signature", "first")
	assert.Equal(t, "first", SignatureFromHeader(h))

	assert.Equal(t, "", SignatureFromHeader(http.Header{}))
}
