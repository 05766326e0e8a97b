package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"callcenter-platform/internal/config"
	"callcenter-platform/pkg/logger"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const signedURLPath = "/v1/convai/conversation/get-signed-url"

// ElevenLabs issues signed conversation URLs for one configured agent.
type ElevenLabs struct {
	client          *resty.Client
	apiKey          string
	agentID         string
	retryMaxElapsed time.Duration
	now             func() time.Time
}

func NewElevenLabs(cfg config.ProviderConfig) *ElevenLabs {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.elevenlabs.io"
	}
	c := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetHeader("xi-api-key", cfg.APIKey)
	}
	return &ElevenLabs{
		client:          c,
		apiKey:          cfg.APIKey,
		agentID:         cfg.AgentID,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		now:             time.Now,
	}
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// SignedURL requests a connection URL. Network errors and 5xx answers are retried
// with exponential backoff; 4xx answers fail immediately.
func (p *ElevenLabs) SignedURL(ctx context.Context, req SessionRequest) (Session, error) {
	if p.apiKey == "" || p.agentID == "" {
		return Session{}, ErrNotConfigured
	}
	log := logger.From(ctx)

	var out signedURLResponse
	attempt := 0
	op := func() error {
		attempt++
		resp, err := p.client.R().
			SetContext(ctx).
			SetQueryParam("agent_id", p.agentID).
			SetResult(&out).
			Get(signedURLPath)
		if err != nil {
			log.Warn("signed url request failed", "call_id", req.CallID, "attempt", attempt, "err", err)
			return err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			log.Warn("signed url upstream error", "call_id", req.CallID, "attempt", attempt, "status", resp.StatusCode())
			return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
		}
		if resp.IsError() {
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode()))
		}
		if out.SignedURL == "" {
			return backoff.Permanent(fmt.Errorf("%w: empty signed_url", ErrUpstream))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = p.retryMaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 5 * time.Second
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return Session{}, err
	}
	return Session{SignedURL: out.SignedURL, AgentID: p.agentID, IssuedAt: p.now().UTC()}, nil
}
