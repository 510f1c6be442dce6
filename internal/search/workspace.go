package search

import (
	"database/sql"
	"net/url"
	"sort"
	"strings"

	"codexlog/internal/index"
)

// Workspace sort orders.
const (
	SortRecent = "recent"
	SortCount  = "count"
	SortPath   = "path"
)

// Workspace summarizes the sessions sharing one working directory. Git
// fields come from the most recent session in the workspace.
type Workspace struct {
	Cwd           string
	SessionCount  int
	LastSeen      string
	GitBranch     string
	GitRepo       string
	GitCommitHash string
	GithubSlug    string
}

// Workspaces groups sessions by cwd. Sessions without a cwd are left out.
func Workspaces(db *index.DB, sortBy string) ([]Workspace, error) {
	rows, err := db.Raw().Query(`
		SELECT cwd, git_branch, git_repo, git_commit_hash, n, last FROM (
			SELECT cwd, git_branch, git_repo, git_commit_hash,
			       COUNT(*) OVER (PARTITION BY cwd) AS n,
			       MAX(timestamp) OVER (PARTITION BY cwd) AS last,
			       ROW_NUMBER() OVER (PARTITION BY cwd ORDER BY timestamp DESC, path) AS rn
			FROM sessions
			WHERE cwd <> ''
		) WHERE rn = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []Workspace
	for rows.Next() {
		var w Workspace
		var branch, repo, commit sql.NullString
		if err := rows.Scan(&w.Cwd, &branch, &repo, &commit, &w.SessionCount, &w.LastSeen); err != nil {
			return nil, err
		}
		w.GitBranch = branch.String
		w.GitRepo = repo.String
		w.GitCommitHash = commit.String
		w.GithubSlug = GithubSlug(w.GitRepo)
		workspaces = append(workspaces, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(workspaces, func(i, j int) bool {
		a, b := workspaces[i], workspaces[j]
		switch sortBy {
		case SortCount:
			if a.SessionCount != b.SessionCount {
				return a.SessionCount > b.SessionCount
			}
		case SortPath:
			return a.Cwd < b.Cwd
		default: // SortRecent
			if a.LastSeen != b.LastSeen {
				return a.LastSeen > b.LastSeen
			}
		}
		return a.Cwd < b.Cwd
	})
	return workspaces, nil
}

// GithubSlug derives "owner/repo" from the recognized remote URL
// shapes: git@host:owner/repo(.git), https://host/owner/repo(.git) and
// ssh://git@host/owner/repo(.git). Anything else yields "".
func GithubSlug(remote string) string {
	r := strings.TrimSuffix(strings.TrimSpace(remote), ".git")
	if r == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(r, "ssh://"):
		rest := strings.TrimPrefix(r, "ssh://")
		if i := strings.Index(rest, "/"); i >= 0 {
			return ownerRepo(rest[i+1:])
		}
	case strings.Contains(r, "://"):
		if u, err := url.Parse(r); err == nil {
			return ownerRepo(strings.TrimPrefix(u.Path, "/"))
		}
	case strings.Contains(r, "@") && strings.Contains(r, ":"):
		// SSH shorthand: git@host:owner/repo
		return ownerRepo(r[strings.Index(r, ":")+1:])
	}
	return ""
}

func ownerRepo(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "/" + parts[1]
}
