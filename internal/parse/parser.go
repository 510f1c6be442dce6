package parse

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB
const maxTextSize = 8 * 1024         // 8KB per message for the FTS index

const previewMaxLines = 3
const previewMaxLen = 200

// Top-level record in a transcript JSONL file.
type record struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// session_meta payload
type sessionMeta struct {
	Timestamp string `json:"timestamp"`
	Cwd       string `json:"cwd"`
	Git       *struct {
		Branch        string `json:"branch"`
		RepositoryURL string `json:"repository_url"`
		CommitHash    string `json:"commit_hash"`
	} `json:"git"`
}

// event_msg payload (flat, not nested)
type eventMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"` // user_message / agent_message
	Text    string `json:"text"`    // agent_reasoning
}

// function_call / custom_tool_call / web_search_call and their outputs,
// either bare lines or wrapped in a response_item payload.
type toolItem struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	CallID    string          `json:"call_id"`
	Arguments json.RawMessage `json:"arguments"`
	Output    json.RawMessage `json:"output"`
}

// File parses one transcript file into a session with its ordered messages.
// relPath becomes the session's stable join key.
func File(absPath, relPath string) (*Result, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Stream(f, relPath)
}

// Stream parses a line-oriented transcript from r. Lines that fail to
// parse are skipped; parsing continues with the next line.
func Stream(r io.Reader, relPath string) (*Result, error) {
	p := &parser{res: &Result{Session: Session{Path: relPath}}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		p.line(line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p.finish(), nil
}

type parser struct {
	res *Result

	turnID      int
	turnOpen    bool
	turnUserTS  time.Time
	turnAgentTS time.Time

	started time.Time
	ended   time.Time

	idRank int // 0 none, 1 turn_context, 2 session_meta
}

func (p *parser) line(raw []byte) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Type == "" {
		return
	}
	ts := parseTimestamp(rec.Timestamp)
	p.observe(ts)

	switch rec.Type {
	case "session_meta":
		p.sessionMeta(rec.Payload)
	case "turn_context":
		p.setSessionID(ResolveSessionID(rec.Payload), 1)
	case "event_msg":
		p.eventMsg(rec.Payload, rec.Timestamp, ts)
	case "response_item":
		var item toolItem
		if err := json.Unmarshal(rec.Payload, &item); err == nil {
			p.toolItem(item, rec.Timestamp)
		}
	case "function_call", "custom_tool_call", "web_search_call",
		"function_call_output", "custom_tool_call_output":
		// bare item, not wrapped in response_item
		var item toolItem
		if err := json.Unmarshal(raw, &item); err == nil {
			p.toolItem(item, rec.Timestamp)
		}
	}
}

// sessionMeta merges cwd/git/timestamp fields; later occurrences
// overwrite earlier non-empty values.
func (p *parser) sessionMeta(payload []byte) {
	var meta sessionMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return
	}
	s := &p.res.Session
	if meta.Cwd != "" {
		s.Cwd = meta.Cwd
	}
	if meta.Timestamp != "" {
		s.Timestamp = meta.Timestamp
		p.observe(parseTimestamp(meta.Timestamp))
	}
	if meta.Git != nil {
		if meta.Git.Branch != "" {
			s.GitBranch = meta.Git.Branch
		}
		if meta.Git.RepositoryURL != "" {
			s.GitRepo = meta.Git.RepositoryURL
		}
		if meta.Git.CommitHash != "" {
			s.GitCommit = meta.Git.CommitHash
		}
	}
	p.setSessionID(ResolveSessionID(payload), 2)
}

func (p *parser) setSessionID(id string, rank int) {
	if id == "" || rank < p.idRank {
		return
	}
	p.res.Session.SessionID = id
	p.idRank = rank
}

func (p *parser) eventMsg(payload []byte, rawTS string, ts time.Time) {
	var ev eventMsg
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}

	switch ev.Type {
	case "user_message":
		text := strings.TrimSpace(ev.Message)
		p.closeTurn()
		p.turnID++
		p.turnOpen = true
		p.turnUserTS = ts
		p.turnAgentTS = time.Time{}
		p.emit(RoleUser, rawTS, text)
		if p.res.Session.Preview == "" && text != "" {
			p.res.Session.Preview = preview(text)
		}

	case "agent_message":
		p.emit(RoleAssistant, rawTS, strings.TrimSpace(ev.Message))
		if p.turnOpen && !ts.IsZero() {
			p.turnAgentTS = ts
		}

	case "agent_reasoning":
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		p.emit(RoleThought, rawTS, text)
		p.res.Session.ThoughtCount++

	case "token_count":
		p.res.Session.MetaCount++

	case "turn_aborted":
		// consumed, nothing to record
	}
}

func (p *parser) toolItem(item toolItem, rawTS string) {
	switch item.Type {
	case "function_call", "custom_tool_call", "web_search_call":
		p.emit(RoleToolCall, rawTS, formatToolCall(item))
		p.res.Session.ToolCallCount++
	case "function_call_output", "custom_tool_call_output":
		p.emit(RoleToolOutput, rawTS, formatToolOutput(item))
	}
}

// emit appends a message to the current turn (turn 0 is the preamble).
func (p *parser) emit(role, rawTS, content string) {
	if len(content) > maxTextSize {
		content = content[:maxTextSize]
	}
	p.res.Messages = append(p.res.Messages, Message{
		TurnID:    p.turnID,
		Role:      role,
		Timestamp: rawTS,
		Content:   content,
	})
}

// closeTurn finalizes the open turn's active-duration contribution:
// last agent timestamp minus the opening user timestamp, when both
// exist and the difference is non-negative.
func (p *parser) closeTurn() {
	if p.turnOpen && !p.turnUserTS.IsZero() && !p.turnAgentTS.IsZero() {
		if d := p.turnAgentTS.Sub(p.turnUserTS); d >= 0 {
			p.res.Session.ActiveMs += d.Milliseconds()
		}
	}
	p.turnOpen = false
}

func (p *parser) observe(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if p.started.IsZero() || ts.Before(p.started) {
		p.started = ts
	}
	if p.ended.IsZero() || ts.After(p.ended) {
		p.ended = ts
	}
}

func (p *parser) finish() *Result {
	p.closeTurn()
	s := &p.res.Session
	s.TurnCount = p.turnID
	s.MessageCount = len(p.res.Messages)
	if !p.started.IsZero() {
		s.StartedAt = p.started.UTC().Format(time.RFC3339)
	}
	if !p.ended.IsZero() {
		s.EndedAt = p.ended.UTC().Format(time.RFC3339)
	}
	if s.Timestamp == "" {
		s.Timestamp = s.StartedAt
	}
	return p.res
}

func formatToolCall(item toolItem) string {
	name := item.Name
	if name == "" {
		name = item.Type
	}
	s := name + "(" + rawText(item.Arguments) + ")"
	if item.CallID != "" {
		s = item.CallID + " " + s
	}
	return s
}

func formatToolOutput(item toolItem) string {
	s := strings.TrimSpace(rawText(item.Output))
	if item.CallID != "" {
		s = item.CallID + " " + s
	}
	return s
}

// rawText renders a JSON fragment as plain text: strings are unquoted,
// anything else is kept as its raw JSON encoding.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// preview caps a user message to a few lines and a fixed rune length,
// collapsing whitespace so it renders on one line.
func preview(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > previewMaxLines {
		lines = lines[:previewMaxLines]
	}
	s := strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
	if r := []rune(s); len(r) > previewMaxLen {
		s = string(r[:previewMaxLen])
	}
	return s
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
