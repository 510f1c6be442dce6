package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"codexlog/internal/parse"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    path       TEXT PRIMARY KEY,
    size       INTEGER NOT NULL,
    mtime_ms   INTEGER NOT NULL,
    indexed_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
    path               TEXT PRIMARY KEY,
    session_id         TEXT,
    session_id_checked INTEGER NOT NULL DEFAULT 0,
    timestamp          TEXT NOT NULL DEFAULT '',
    cwd                TEXT NOT NULL DEFAULT '',
    git_branch         TEXT,
    git_repo           TEXT,
    git_commit_hash    TEXT,
    first_user_message TEXT,
    started_at         TEXT,
    ended_at           TEXT,
    turn_count         INTEGER NOT NULL DEFAULT 0,
    message_count      INTEGER NOT NULL DEFAULT 0,
    thought_count      INTEGER NOT NULL DEFAULT 0,
    tool_call_count    INTEGER NOT NULL DEFAULT 0,
    meta_count         INTEGER NOT NULL DEFAULT 0,
    active_duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    id           INTEGER PRIMARY KEY,
    session_path TEXT NOT NULL REFERENCES sessions(path) ON DELETE CASCADE,
    turn_id      INTEGER NOT NULL,
    role         TEXT NOT NULL,
    ts           TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_path);
CREATE INDEX IF NOT EXISTS idx_sessions_cwd ON sessions(cwd);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    session_path UNINDEXED,
    turn_id UNINDEXED,
    role UNINDEXED,
    content=messages,
    content_rowid=id,
    tokenize='unicode61'
);

-- triggers keep the FTS shadow index in lockstep with messages
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content, session_path, turn_id, role)
    VALUES (new.id, new.content, new.session_path, new.turn_id, new.role);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content, session_path, turn_id, role)
    VALUES ('delete', old.id, old.content, old.session_path, old.turn_id, old.role);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content, session_path, turn_id, role)
    VALUES ('delete', old.id, old.content, old.session_path, old.turn_id, old.role);
    INSERT INTO messages_fts(rowid, content, session_path, turn_id, role)
    VALUES (new.id, new.content, new.session_path, new.turn_id, new.role);
END;
`

// Columns added to sessions after its first release. Open compares the
// live table against this set and adds whatever is missing; columns are
// never removed or renamed, and historical rows are not backfilled.
var sessionColumns = []struct {
	name string
	typ  string
}{
	{"session_id", "TEXT"},
	{"session_id_checked", "INTEGER NOT NULL DEFAULT 0"},
	{"git_repo", "TEXT"},
	{"git_commit_hash", "TEXT"},
	{"first_user_message", "TEXT"},
	{"started_at", "TEXT"},
	{"ended_at", "TEXT"},
	{"thought_count", "INTEGER NOT NULL DEFAULT 0"},
	{"tool_call_count", "INTEGER NOT NULL DEFAULT 0"},
	{"meta_count", "INTEGER NOT NULL DEFAULT 0"},
	{"active_duration_ms", "INTEGER NOT NULL DEFAULT 0"},
}

type DB struct {
	db   *sql.DB
	path string
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	d := &DB{db: db, path: dbPath}
	if err := d.init(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init() error {
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return d.migrate()
}

// migrate performs the additive schema migration against sessions.
func (d *DB) migrate() error {
	rows, err := d.db.Query(`PRAGMA table_info(sessions)`)
	if err != nil {
		return fmt.Errorf("read sessions columns: %w", err)
	}
	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scan sessions column: %w", err)
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read sessions columns: %w", err)
	}

	for _, col := range sessionColumns {
		if have[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE sessions ADD COLUMN %s %s", col.name, col.typ)
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

// Clear drops all indexing tables and triggers, then re-initializes the
// schema. Used for a full rebuild.
func (d *DB) Clear() error {
	drops := []string{
		"DROP TRIGGER IF EXISTS messages_ai",
		"DROP TRIGGER IF EXISTS messages_ad",
		"DROP TRIGGER IF EXISTS messages_au",
		"DROP TABLE IF EXISTS messages_fts",
		"DROP TABLE IF EXISTS messages",
		"DROP TABLE IF EXISTS sessions",
		"DROP TABLE IF EXISTS fingerprints",
	}
	for _, stmt := range drops {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	return d.init()
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

// Path returns the store file's location on disk.
func (d *DB) Path() string {
	return d.path
}

// fileState is what the reindexer needs to classify a known path.
type fileState struct {
	Size       int64
	MtimeMs    int64
	HasSession bool
	IDChecked  bool
}

// FileStates returns, per known path, the last fingerprint plus whether
// a session row exists and has had id resolution attempted.
func (d *DB) FileStates() (map[string]fileState, error) {
	rows, err := d.db.Query(`
		SELECT f.path, f.size, f.mtime_ms,
		       s.path IS NOT NULL,
		       COALESCE(s.session_id_checked, 0)
		FROM fingerprints f
		LEFT JOIN sessions s ON s.path = f.path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]fileState)
	for rows.Next() {
		var path string
		var st fileState
		if err := rows.Scan(&path, &st.Size, &st.MtimeMs, &st.HasSession, &st.IDChecked); err != nil {
			return nil, err
		}
		states[path] = st
	}
	return states, rows.Err()
}

// ReplaceSession rewrites one session from a fresh parse inside a
// single transaction: existing messages are deleted, the session row is
// upserted with id resolution marked done, the new messages are bulk
// inserted, and the fingerprint is updated. All-or-nothing.
func (d *DB) ReplaceSession(res *parse.Result, size, mtimeMs int64) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	s := res.Session
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_path = ?`, s.Path); err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sessions (
			path, session_id, session_id_checked, timestamp, cwd,
			git_branch, git_repo, git_commit_hash, first_user_message,
			started_at, ended_at, turn_count, message_count,
			thought_count, tool_call_count, meta_count, active_duration_ms
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			session_id = excluded.session_id,
			session_id_checked = 1,
			timestamp = excluded.timestamp,
			cwd = excluded.cwd,
			git_branch = excluded.git_branch,
			git_repo = excluded.git_repo,
			git_commit_hash = excluded.git_commit_hash,
			first_user_message = excluded.first_user_message,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			turn_count = excluded.turn_count,
			message_count = excluded.message_count,
			thought_count = excluded.thought_count,
			tool_call_count = excluded.tool_call_count,
			meta_count = excluded.meta_count,
			active_duration_ms = excluded.active_duration_ms`,
		s.Path, nullable(s.SessionID), s.Timestamp, s.Cwd,
		nullable(s.GitBranch), nullable(s.GitRepo), nullable(s.GitCommit),
		nullable(s.Preview), nullable(s.StartedAt), nullable(s.EndedAt),
		s.TurnCount, s.MessageCount, s.ThoughtCount, s.ToolCallCount,
		s.MetaCount, s.ActiveMs,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert session: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (session_path, turn_id, role, ts, content)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare messages: %w", err)
	}
	defer stmt.Close()
	for _, m := range res.Messages {
		if _, err := stmt.Exec(s.Path, m.TurnID, m.Role, m.Timestamp, m.Content); err != nil {
			return 0, fmt.Errorf("insert message: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO fingerprints (path, size, mtime_ms, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime_ms = excluded.mtime_ms,
			indexed_at = excluded.indexed_at`,
		s.Path, size, mtimeMs, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert fingerprint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(res.Messages), nil
}

// MarkSessionIDChecked records the outcome of a metadata-only id pass.
// It never touches messages.
func (d *DB) MarkSessionIDChecked(path, id string) error {
	var err error
	if id == "" {
		_, err = d.db.Exec(
			`UPDATE sessions SET session_id_checked = 1 WHERE path = ?`, path)
	} else {
		_, err = d.db.Exec(
			`UPDATE sessions SET session_id = ?, session_id_checked = 1 WHERE path = ?`,
			id, path)
	}
	return err
}

// DeleteSession purges a session with its messages and fingerprint.
func (d *DB) DeleteSession(path string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM fingerprints WHERE path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

type SessionRow struct {
	Path      string
	SessionID string
	IDChecked bool
	Timestamp string
	Cwd       string
	GitBranch string
	GitRepo   string
	GitCommit string
	Preview   string
	StartedAt string
	EndedAt   string
	TurnCount int
	MsgCount  int
	Thoughts  int
	ToolCalls int
	MetaCount int
	ActiveMs  int64
}

func (d *DB) GetSession(path string) (*SessionRow, error) {
	var (
		s                                                 SessionRow
		id, branch, repo, commit, preview, started, ended sql.NullString
	)
	err := d.db.QueryRow(`
		SELECT path, session_id, session_id_checked, timestamp, cwd,
		       git_branch, git_repo, git_commit_hash, first_user_message,
		       started_at, ended_at, turn_count, message_count,
		       thought_count, tool_call_count, meta_count, active_duration_ms
		FROM sessions WHERE path = ?`, path).Scan(
		&s.Path, &id, &s.IDChecked, &s.Timestamp, &s.Cwd,
		&branch, &repo, &commit, &preview, &started, &ended,
		&s.TurnCount, &s.MsgCount, &s.Thoughts, &s.ToolCalls,
		&s.MetaCount, &s.ActiveMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.SessionID = id.String
	s.GitBranch = branch.String
	s.GitRepo = repo.String
	s.GitCommit = commit.String
	s.Preview = preview.String
	s.StartedAt = started.String
	s.EndedAt = ended.String
	return &s, nil
}

type MessageRow struct {
	SessionPath string
	TurnID      int
	Role        string
	Ts          string
	Content     string
}

func (d *DB) Messages(path string) ([]MessageRow, error) {
	rows, err := d.db.Query(`
		SELECT session_path, turn_id, role, ts, content
		FROM messages WHERE session_path = ? ORDER BY id`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.SessionPath, &m.TurnID, &m.Role, &m.Ts, &m.Content); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (d *DB) SessionCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// FTSCount reports the shadow-index row count; doctor compares it
// against MessageCount to verify the sync invariant.
func (d *DB) FTSCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM messages_fts`).Scan(&n)
	return n, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
