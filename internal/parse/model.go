package parse

// Message roles emitted by the parser.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleThought    = "thought"
	RoleToolCall   = "tool_call"
	RoleToolOutput = "tool_output"
)

type Message struct {
	TurnID    int    // 0 = preamble (items before the first user message)
	Role      string
	Timestamp string // RFC3339 as recorded, "" when the line carried none
	Content   string
}

type Session struct {
	Path          string // root-relative, posix separators
	SessionID     string
	Timestamp     string
	Cwd           string
	GitBranch     string
	GitRepo       string
	GitCommit     string
	Preview       string // first non-empty user message, trimmed and capped
	StartedAt     string
	EndedAt       string
	TurnCount     int
	MessageCount  int
	ThoughtCount  int
	ToolCallCount int
	MetaCount     int
	ActiveMs      int64
}

type Result struct {
	Session  Session
	Messages []Message
}
