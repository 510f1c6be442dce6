package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, lines ...string) *Result {
	t.Helper()
	res, err := Stream(strings.NewReader(strings.Join(lines, "\n")), "2025/08/14/rollout-test.jsonl")
	require.NoError(t, err)
	return res
}

func TestParseUserAgentTurn(t *testing.T) {
	res := parseLines(t,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:00Z","payload":{"type":"user_message","message":"hi"}}`,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:42Z","payload":{"type":"agent_message","message":"hello"}}`,
	)

	require.Len(t, res.Messages, 2)
	assert.Equal(t, RoleUser, res.Messages[0].Role)
	assert.Equal(t, "hi", res.Messages[0].Content)
	assert.Equal(t, 1, res.Messages[0].TurnID)
	assert.Equal(t, RoleAssistant, res.Messages[1].Role)
	assert.Equal(t, "hello", res.Messages[1].Content)
	assert.Equal(t, 1, res.Messages[1].TurnID)

	s := res.Session
	assert.Equal(t, 1, s.TurnCount)
	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, int64(42_000), s.ActiveMs)
	assert.Equal(t, "2025-08-14T10:00:00Z", s.StartedAt)
	assert.Equal(t, "2025-08-14T10:00:42Z", s.EndedAt)
	assert.Equal(t, "hi", s.Preview)
}

func TestParseTurnCountMatchesUserMessages(t *testing.T) {
	res := parseLines(t,
		`{"type":"event_msg","payload":{"type":"user_message","message":"one"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"two"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"three"}}`,
	)
	assert.Equal(t, 3, res.Session.TurnCount)
	assert.Equal(t, 3, res.Session.MessageCount)
}

func TestParsePreambleBucket(t *testing.T) {
	res := parseLines(t,
		`{"type":"response_item","payload":{"type":"function_call","name":"shell","call_id":"c1","arguments":"{\"cmd\":\"ls\"}"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"go"}}`,
	)

	require.Len(t, res.Messages, 2)
	assert.Equal(t, 0, res.Messages[0].TurnID, "items before the first user message belong to turn 0")
	assert.Equal(t, RoleToolCall, res.Messages[0].Role)
	assert.Equal(t, 1, res.Messages[1].TurnID)
}

func TestParseToolItems(t *testing.T) {
	res := parseLines(t,
		`{"type":"event_msg","payload":{"type":"user_message","message":"run it"}}`,
		`{"type":"response_item","payload":{"type":"function_call","name":"shell","call_id":"c1","arguments":"{\"cmd\":\"ls\"}"}}`,
		`{"type":"function_call_output","call_id":"c1","output":"ok"}`,
		`{"type":"custom_tool_call","name":"browse","call_id":"c2"}`,
		`{"type":"response_item","payload":{"type":"web_search_call","call_id":"c3"}}`,
	)

	require.Len(t, res.Messages, 5)
	assert.Equal(t, RoleToolCall, res.Messages[1].Role)
	assert.Contains(t, res.Messages[1].Content, "shell")
	assert.Contains(t, res.Messages[1].Content, "c1")
	assert.Equal(t, RoleToolOutput, res.Messages[2].Role)
	assert.Contains(t, res.Messages[2].Content, "ok")
	assert.Equal(t, RoleToolCall, res.Messages[3].Role)
	assert.Equal(t, RoleToolCall, res.Messages[4].Role)
	assert.Contains(t, res.Messages[4].Content, "web_search_call")

	assert.Equal(t, 3, res.Session.ToolCallCount)
	assert.Equal(t, 5, res.Session.MessageCount)
	// tool items all live in turn 1
	for _, m := range res.Messages[1:] {
		assert.Equal(t, 1, m.TurnID)
	}
}

func TestParseReasoningAndTokenCounts(t *testing.T) {
	res := parseLines(t,
		`{"type":"event_msg","payload":{"type":"user_message","message":"q"}}`,
		`{"type":"event_msg","payload":{"type":"agent_reasoning","text":"thinking hard"}}`,
		`{"type":"event_msg","payload":{"type":"agent_reasoning","text":"  "}}`,
		`{"type":"event_msg","payload":{"type":"token_count"}}`,
		`{"type":"event_msg","payload":{"type":"token_count"}}`,
		`{"type":"event_msg","payload":{"type":"turn_aborted"}}`,
	)

	require.Len(t, res.Messages, 2)
	assert.Equal(t, RoleThought, res.Messages[1].Role)
	assert.Equal(t, 1, res.Session.ThoughtCount)
	assert.Equal(t, 2, res.Session.MetaCount)
}

func TestParseSkipsMalformedLines(t *testing.T) {
	res := parseLines(t,
		`{"type":"event_msg","payload":{"type":"user_message","message":"first"}}`,
		`{not json at all`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"still here"}}`,
	)
	assert.Equal(t, 2, res.Session.MessageCount)
}

func TestParseSessionMetaFields(t *testing.T) {
	res := parseLines(t,
		`{"type":"session_meta","payload":{"id":"0b6ef9a2-3cbb-4bc4-a7a2-47ba75b3c0dd","timestamp":"2025-08-14T09:59:00Z","cwd":"/repo","git":{"branch":"main","repository_url":"git@github.com:acme/widgets.git","commit_hash":"abc123"}}}`,
		`{"type":"session_meta","payload":{"cwd":"/repo/sub","git":{"branch":"fix"}}}`,
	)

	s := res.Session
	assert.Equal(t, "0b6ef9a2-3cbb-4bc4-a7a2-47ba75b3c0dd", s.SessionID)
	assert.Equal(t, "/repo/sub", s.Cwd, "later non-empty values overwrite")
	assert.Equal(t, "fix", s.GitBranch)
	assert.Equal(t, "git@github.com:acme/widgets.git", s.GitRepo)
	assert.Equal(t, "abc123", s.GitCommit)
	assert.Equal(t, "2025-08-14T09:59:00Z", s.Timestamp)
}

func TestParseSessionIDPrecedence(t *testing.T) {
	res := parseLines(t,
		`{"type":"session_meta","payload":{"session_id":"S1"}}`,
		`{"type":"turn_context","payload":{"session_id":"S2"}}`,
	)
	assert.Equal(t, "S1", res.Session.SessionID)

	res = parseLines(t,
		`{"type":"turn_context","payload":{"session_id":"S2"}}`,
	)
	assert.Equal(t, "S2", res.Session.SessionID)
}

func TestParseActiveDurationIgnoresIncompleteTurns(t *testing.T) {
	res := parseLines(t,
		// turn 1: complete pair, 10s
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:00Z","payload":{"type":"user_message","message":"a"}}`,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:10Z","payload":{"type":"agent_message","message":"b"}}`,
		// turn 2: no agent reply
		`{"type":"event_msg","timestamp":"2025-08-14T10:01:00Z","payload":{"type":"user_message","message":"c"}}`,
	)
	assert.Equal(t, int64(10_000), res.Session.ActiveMs)
	assert.Equal(t, 2, res.Session.TurnCount)
}

func TestParseActiveDurationUsesLastAgentTimestamp(t *testing.T) {
	res := parseLines(t,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:00Z","payload":{"type":"user_message","message":"a"}}`,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:05Z","payload":{"type":"agent_message","message":"b"}}`,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:30Z","payload":{"type":"agent_message","message":"c"}}`,
	)
	assert.Equal(t, int64(30_000), res.Session.ActiveMs)
}

func TestParsePreviewCapped(t *testing.T) {
	long := strings.Repeat("word ", 100)
	res := parseLines(t,
		`{"type":"event_msg","payload":{"type":"user_message","message":"  "}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"`+long+`"}}`,
	)
	assert.NotEmpty(t, res.Session.Preview, "first non-empty user message becomes the preview")
	assert.LessOrEqual(t, len([]rune(res.Session.Preview)), previewMaxLen)
	assert.NotContains(t, res.Session.Preview, "\n")
}

func TestParseStartedEndedSpanAllLines(t *testing.T) {
	res := parseLines(t,
		`{"type":"turn_context","timestamp":"2025-08-14T08:00:00Z","payload":{}}`,
		`{"type":"event_msg","timestamp":"2025-08-14T10:00:00Z","payload":{"type":"user_message","message":"late"}}`,
		`{"type":"event_msg","timestamp":"2025-08-14T09:00:00Z","payload":{"type":"token_count"}}`,
	)
	assert.Equal(t, "2025-08-14T08:00:00Z", res.Session.StartedAt)
	assert.Equal(t, "2025-08-14T10:00:00Z", res.Session.EndedAt)
}
