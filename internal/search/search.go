package search

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"codexlog/internal/index"
)

const defaultLimit = 50

type Options struct {
	Query     string
	Workspace string // "" = all workspaces
	Limit     int
	MarkStart string // snippet highlight markers, default ">>>" / "<<<"
	MarkEnd   string
}

type Result struct {
	SessionPath string
	TurnID      int
	Role        string
	Timestamp   string
	Snippet     string
	Rank        float64
}

// Group is one workspace's slice of a search result set.
type Group struct {
	Workspace  Workspace
	MatchCount int
	Results    []Result
}

// Search runs a ranked FTS query and groups the matches by workspace.
// Groups are ordered by most recent session timestamp, then session
// count, then workspace path.
func Search(db *index.DB, opts Options) ([]Group, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.MarkStart == "" {
		opts.MarkStart = ">>>"
	}
	if opts.MarkEnd == "" {
		opts.MarkEnd = "<<<"
	}

	conditions := []string{"messages_fts MATCH ?"}
	args := []any{opts.MarkStart, opts.MarkEnd, opts.Query}
	if opts.Workspace != "" {
		conditions = append(conditions, "s.cwd = ?")
		args = append(args, opts.Workspace)
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT m.session_path, m.turn_id, m.role, m.ts,
		       snippet(messages_fts, 0, ?, ?, '...', 16) AS snip,
		       bm25(messages_fts) AS rank,
		       s.cwd
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN sessions s ON s.path = m.session_path
		WHERE %s
		ORDER BY rank
		LIMIT ?`, strings.Join(conditions, " AND "))

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	byCwd := make(map[string]*Group)
	var order []string
	for rows.Next() {
		var r Result
		var cwd string
		if err := rows.Scan(&r.SessionPath, &r.TurnID, &r.Role, &r.Timestamp,
			&r.Snippet, &r.Rank, &cwd); err != nil {
			return nil, err
		}
		g, ok := byCwd[cwd]
		if !ok {
			g = &Group{Workspace: Workspace{Cwd: cwd}}
			byCwd[cwd] = g
			order = append(order, cwd)
		}
		g.Results = append(g.Results, r)
		g.MatchCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	// attach full workspace summaries to the groups
	summaries, err := Workspaces(db, SortRecent)
	if err != nil {
		return nil, err
	}
	byWorkspace := make(map[string]Workspace, len(summaries))
	for _, w := range summaries {
		byWorkspace[w.Cwd] = w
	}

	groups := make([]Group, 0, len(order))
	for _, cwd := range order {
		g := *byCwd[cwd]
		if w, ok := byWorkspace[cwd]; ok {
			g.Workspace = w
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Workspace, groups[j].Workspace
		if a.LastSeen != b.LastSeen {
			return a.LastSeen > b.LastSeen
		}
		if a.SessionCount != b.SessionCount {
			return a.SessionCount > b.SessionCount
		}
		return a.Cwd < b.Cwd
	})
	return groups, nil
}

// ResolveSession matches a free-form identifier against the canonical
// session id (exact), the stored path (exact), then the path as a
// substring. Ties break to the shortest path, then lexically. Returns
// at most one path.
func ResolveSession(db *index.DB, id, workspace string) (string, bool, error) {
	lookups := []struct {
		cond string
		arg  any
	}{
		{"session_id = ?", id},
		{"path = ?", id},
		{"instr(path, ?) > 0", id},
	}
	for _, l := range lookups {
		query := "SELECT path FROM sessions WHERE " + l.cond
		args := []any{l.arg}
		if workspace != "" {
			query += " AND cwd = ?"
			args = append(args, workspace)
		}
		query += " ORDER BY LENGTH(path), path LIMIT 1"

		var path string
		err := db.Raw().QueryRow(query, args...).Scan(&path)
		if err == nil {
			return path, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", false, err
		}
	}
	return "", false, nil
}
