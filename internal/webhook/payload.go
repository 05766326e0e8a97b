package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
)

var (
	ErrMalformedPayload      = errors.New("webhook: malformed payload")
	ErrMissingConversationID = errors.New("webhook: conversation_id missing")
)

// Payload is the normalized provider callback.
type Payload struct {
	Type           string
	ConversationID string
	AgentID        string
	Status         string
	Transcript     json.RawMessage
	Analysis       json.RawMessage
	// DurationSeconds is the provider-reported call length, nil when absent.
	DurationSeconds *int
}

type conversationFields struct {
	ConversationID string          `json:"conversation_id"`
	AgentID        string          `json:"agent_id"`
	Status         string          `json:"status"`
	Transcript     json.RawMessage `json:"transcript"`
	Analysis       json.RawMessage `json:"analysis"`
	Metadata       json.RawMessage `json:"metadata"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	conversationFields
}

// ParsePayload decodes a callback body. Two shapes are known: the current one
// nests the conversation under "data", older deliveries carry it at the top
// level. The nested shape wins when it has a conversation id.
func ParsePayload(body []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Payload{}, ErrMalformedPayload
	}

	src := env.conversationFields
	if !isNull(env.Data) {
		var nested conversationFields
		if err := json.Unmarshal(env.Data, &nested); err != nil {
			return Payload{}, ErrMalformedPayload
		}
		if strings.TrimSpace(nested.ConversationID) != "" {
			src = nested
		}
	}

	id := strings.TrimSpace(src.ConversationID)
	if id == "" {
		return Payload{}, ErrMissingConversationID
	}
	p := Payload{
		Type:           env.Type,
		ConversationID: id,
		AgentID:        src.AgentID,
		Status:         src.Status,
		Transcript:     src.Transcript,
		Analysis:       src.Analysis,
	}
	if isNull(p.Analysis) {
		p.Analysis = nil
	}
	p.DurationSeconds = callDuration(src.Metadata)
	return p, nil
}

func callDuration(meta json.RawMessage) *int {
	if isNull(meta) {
		return nil
	}
	var m struct {
		CallDurationSecs *float64 `json:"call_duration_secs"`
	}
	if err := json.Unmarshal(meta, &m); err != nil || m.CallDurationSecs == nil || *m.CallDurationSecs < 0 {
		return nil
	}
	d := int(math.Round(*m.CallDurationSecs))
	return &d
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// FlattenTranscript renders the transcript field as text:
// a string is kept, an array of turns becomes "role: content" lines,
// anything else is kept as compact JSON.
func FlattenTranscript(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var turns []map[string]any
	if err := json.Unmarshal(raw, &turns); err == nil {
		lines := make([]string, 0, len(turns))
		for _, t := range turns {
			role := firstString(t, "role", "source")
			if role == "" {
				role = "unknown"
			}
			lines = append(lines, role+": "+firstString(t, "message", "content", "text"))
		}
		return strings.Join(lines, "\n")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
