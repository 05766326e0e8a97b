package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_NestedShapeWins(t *testing.T) {
	body := []byte(`{
		"type": "post_call_transcription",
		"conversation_id": "top",
		"data": {
			"conversation_id": "nested",
			"agent_id": "agent_1",
			"status": "done",
			"transcript": [{"role": "agent", "message": "Hola"}],
			"metadata": {"call_duration_secs": 94.6},
			"analysis": {"call_successful": "success"}
		}
	}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)
	assert.Equal(t, "nested", p.ConversationID)
	assert.Equal(t, "post_call_transcription", p.Type)
	assert.Equal(t, "agent_1", p.AgentID)
	assert.Equal(t, "done", p.Status)
	require.NotNil(t, p.DurationSeconds)
	assert.Equal(t, 95, *p.DurationSeconds)
	assert.JSONEq(t, `{"call_successful":"success"}`, string(p.Analysis))
}

func TestParsePayload_TopLevelShape(t *testing.T) {
	p, err := ParsePayload([]byte(`{"type":"x","conversation_id":" conv_9 ","transcript":"hi","analysis":null,"data":null}`))
	require.NoError(t, err)
	assert.Equal(t, "conv_9", p.ConversationID)
	assert.Nil(t, p.DurationSeconds)
	assert.Nil(t, p.Analysis)

	// Nested object without an id falls back to the top level.
	p, err = ParsePayload([]byte(`{"conversation_id":"conv_top","data":{"status":"done"}}`))
	require.NoError(t, err)
	assert.Equal(t, "conv_top", p.ConversationID)
}

func TestParsePayload_Errors(t *testing.T) {
	_, err := ParsePayload([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParsePayload([]byte(`{"data":"oops"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParsePayload([]byte(`{"type":"x","data":{"agent_id":"a"}}`))
	assert.ErrorIs(t, err, ErrMissingConversationID)
}

func TestFlattenTranscript(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"absent", ``, ""},
		{"null", `null`, ""},
		{"plain string", `"hello there"`, "hello there"},
		{"turns", `[{"role":"agent","message":"Hola"},{"source":"user","text":"Buenas"},{"content":"?"}]`, "agent: Hola\nuser: Buenas\nunknown: ?"},
		{"fallback json", `{"a": 1, "b": [2]}`, `{"a":1,"b":[2]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FlattenTranscript(json.RawMessage(tc.raw)))
		})
	}
}
