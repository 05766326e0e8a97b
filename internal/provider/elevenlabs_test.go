package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"callcenter-platform/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestElevenLabs(url string) *ElevenLabs {
	return NewElevenLabs(config.ProviderConfig{
		APIKey:          "xi-test",
		AgentID:         "agent_1",
		BaseURL:         url,
		Timeout:         2 * time.Second,
		RetryMaxElapsed: 2 * time.Second,
	})
}

func TestSignedURL_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, signedURLPath, r.URL.Path)
		assert.Equal(t, "agent_1", r.URL.Query().Get("agent_id"))
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"signed_url":"wss://example.test/convai?token=abc"}`))
	}))
	defer srv.Close()

	sess, err := newTestElevenLabs(srv.URL).SignedURL(context.Background(), SessionRequest{CallID: "call-1"})
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/convai?token=abc", sess.SignedURL)
	assert.Equal(t, "agent_1", sess.AgentID)
}

func TestSignedURL_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"signed_url":"wss://ok"}`))
	}))
	defer srv.Close()

	sess, err := newTestElevenLabs(srv.URL).SignedURL(context.Background(), SessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "wss://ok", sess.SignedURL)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestSignedURL_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := newTestElevenLabs(srv.URL).SignedURL(context.Background(), SessionRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSignedURL_NotConfigured(t *testing.T) {
	p := NewElevenLabs(config.ProviderConfig{})
	_, err := p.SignedURL(context.Background(), SessionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
