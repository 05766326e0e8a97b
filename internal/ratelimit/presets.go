package ratelimit

import "time"

// Named budgets. Webhook is generous because the caller is the provider, not an untrusted client.
var (
	Public          = Config{MaxRequests: 30, Window: time.Minute}
	TokenValidation = Config{MaxRequests: 10, Window: time.Minute}
	CallStart       = Config{MaxRequests: 5, Window: time.Minute}
	Webhook         = Config{MaxRequests: 100, Window: time.Minute}
)

// Buckets prefix the per-client key so each endpoint has its own window.
const (
	BucketPublic          = "public"
	BucketTokenValidation = "token-validation"
	BucketCallStart       = "call-start"
	BucketCallEnd         = "call-end"
	BucketCallUpdate      = "call-update"
	BucketCallFail        = "call-fail"
	BucketProviderSession = "provider-session"
	BucketWebhook         = "webhook"
)
