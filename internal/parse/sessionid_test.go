package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSessionID(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{
			name: "direct field order",
			json: `{"conversationId":"conv","session_id":"sess-primary"}`,
			want: "sess-primary",
		},
		{
			name: "camelCase variant",
			json: `{"sessionId":"abc"}`,
			want: "abc",
		},
		{
			name: "resume id",
			json: `{"resume_session_id":"resumed"}`,
			want: "resumed",
		},
		{
			name: "bare id at top level",
			json: `{"id":"0B6EF9A2-3CBB-4BC4-A7A2-47BA75B3C0DD"}`,
			want: "0b6ef9a2-3cbb-4bc4-a7a2-47ba75b3c0dd",
		},
		{
			name: "bare id not matched inside containers",
			json: `{"metadata":{"id":"nested"}}`,
			want: "",
		},
		{
			name: "session sub-object id",
			json: `{"session":{"id":"from-session"}}`,
			want: "from-session",
		},
		{
			name: "container recursion",
			json: `{"payload":{"session_id":"wrapped"}}`,
			want: "wrapped",
		},
		{
			name: "two levels deep",
			json: `{"metadata":{"context":{"session_id":"deep"}}}`,
			want: "deep",
		},
		{
			name: "beyond depth cap",
			json: `{"metadata":{"context":{"payload":{"session_id":"too-deep"}}}}`,
			want: "",
		},
		{
			name: "non-object value",
			json: `"just a string"`,
			want: "",
		},
		{
			name: "empty string ignored",
			json: `{"session_id":"  ","sessionId":"fallback"}`,
			want: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSessionID([]byte(tt.json)))
		})
	}
}

func TestNormalizeSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rollout-2025-08-14-0b6ef9a2-3cbb-4bc4-a7a2-47ba75b3c0dd", "0b6ef9a2-3cbb-4bc4-a7a2-47ba75b3c0dd"},
		{"0B6EF9A2-3CBB-4BC4-A7A2-47BA75B3C0DD", "0b6ef9a2-3cbb-4bc4-a7a2-47ba75b3c0dd"},
		{"resume session_Abc123 now", "session_Abc123"},
		{"prefix sess-42", "sess-42"},
		{"  plain-token  ", "plain-token"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSessionID(tt.in), "input %q", tt.in)
	}
}

func TestScanSessionIDPrefersSessionMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	lines := `{"type":"turn_context","payload":{"session_id":"from-context"}}
{"type":"session_meta","payload":{"session_id":"from-meta"}}
{"type":"event_msg","payload":{"type":"user_message","message":"hi"}}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	id, err := ScanSessionID(path)
	require.NoError(t, err)
	assert.Equal(t, "from-meta", id)
}

func TestScanSessionIDFallsBackToTurnContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	lines := `{"type":"turn_context","payload":{"session_id":"from-context"}}
{"type":"event_msg","payload":{"type":"user_message","message":"hi"}}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	id, err := ScanSessionID(path)
	require.NoError(t, err)
	assert.Equal(t, "from-context", id)
}

func TestScanSessionIDMissingFile(t *testing.T) {
	_, err := ScanSessionID(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}
