package parse

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// idDepth caps how deep the heuristic id search descends.
const idDepth = 2

// Direct fields checked first, in priority order. A bare "id" is only
// consulted at the top level of the value being searched.
var directIDKeys = []string{
	"session_id",
	"sessionId",
	"conversation_id",
	"conversationId",
	"resume_session_id",
	"resumeSessionId",
}

// Container fields recursed into, in order, when no direct field matches.
var containerIDKeys = []string{"session_info", "metadata", "context", "payload"}

var uuidRe = regexp.MustCompile(
	`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

var sessTokenRe = regexp.MustCompile(`(?i)sess(?:ion)?[-_][0-9A-Za-z][0-9A-Za-z_-]*`)

// ResolveSessionID recovers a canonical session identifier from an
// arbitrary JSON value. First non-empty match wins; the result is
// normalized via NormalizeSessionID.
func ResolveSessionID(raw []byte) string {
	return resolveID(gjson.ParseBytes(raw), idDepth, true)
}

func resolveID(v gjson.Result, depth int, top bool) string {
	if !v.IsObject() {
		return ""
	}
	for _, k := range directIDKeys {
		if s := stringField(v, k); s != "" {
			return NormalizeSessionID(s)
		}
	}
	if top {
		if s := stringField(v, "id"); s != "" {
			return NormalizeSessionID(s)
		}
	}
	if sess := v.Get("session"); sess.IsObject() {
		if s := stringField(sess, "id"); s != "" {
			return NormalizeSessionID(s)
		}
		if depth > 0 {
			if id := resolveID(sess, depth-1, false); id != "" {
				return id
			}
		}
	}
	if depth > 0 {
		for _, k := range containerIDKeys {
			if c := v.Get(k); c.IsObject() {
				if id := resolveID(c, depth-1, false); id != "" {
					return id
				}
			}
		}
	}
	return ""
}

func stringField(v gjson.Result, key string) string {
	f := v.Get(key)
	if f.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(f.String())
}

// NormalizeSessionID prefers a canonical UUID substring, then a
// sess-/session_-prefixed token, then the trimmed raw string.
func NormalizeSessionID(s string) string {
	if m := uuidRe.FindString(s); m != "" {
		if u, err := uuid.Parse(m); err == nil {
			return u.String()
		}
	}
	if m := sessTokenRe.FindString(s); m != "" {
		return m
	}
	return strings.TrimSpace(s)
}

// ScanSessionID is the cheap metadata-only pass: it reads lines until a
// session_meta event yields an id (rank 2) and stops there. A
// turn_context id (rank 1) is kept as a fallback for the end of file.
func ScanSessionID(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	candidate := ""
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		v := gjson.ParseBytes(line)
		switch v.Get("type").String() {
		case "session_meta":
			if id := resolveID(v.Get("payload"), idDepth, true); id != "" {
				return id, nil
			}
		case "turn_context":
			if candidate == "" {
				candidate = resolveID(v.Get("payload"), idDepth, true)
			}
		}
	}
	return candidate, sc.Err()
}
