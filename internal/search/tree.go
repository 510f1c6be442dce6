package search

import (
	"database/sql"
	"path"
	"sort"
	"strings"
	"unicode"

	"codexlog/internal/index"
)

// TreeFile is one session summary leaf in the browse tree.
type TreeFile struct {
	Path      string
	SessionID string
	Preview   string
	StartedAt string
	Timestamp string
	TurnCount int
	MsgCount  int
}

type DayGroup struct {
	Day   string
	Files []TreeFile
}

type MonthGroup struct {
	Month string
	Days  []DayGroup
}

type YearGroup struct {
	Year   string
	Months []MonthGroup
}

type Tree struct {
	Root  string
	Years []YearGroup
}

// SessionTree partitions sessions into year/month/day groups inferred
// from the leading segments of each storage path. Sessions whose paths
// don't carry date segments land in an unlabeled trailing group.
func SessionTree(db *index.DB, root, workspace string) (*Tree, error) {
	query := `
		SELECT path, session_id, first_user_message, started_at, timestamp,
		       turn_count, message_count
		FROM sessions`
	var args []any
	if workspace != "" {
		query += " WHERE cwd = ?"
		args = append(args, workspace)
	}

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct{ y, m, d string }
	days := make(map[key][]TreeFile)
	for rows.Next() {
		var f TreeFile
		var id, preview, started sql.NullString
		if err := rows.Scan(&f.Path, &id, &preview, &started, &f.Timestamp,
			&f.TurnCount, &f.MsgCount); err != nil {
			return nil, err
		}
		f.SessionID = id.String
		f.Preview = preview.String
		f.StartedAt = started.String

		y, m, d := datePathSegments(f.Path)
		k := key{y, m, d}
		days[k] = append(days[k], f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	years := make(map[string]map[string]map[string][]TreeFile)
	for k, files := range days {
		if years[k.y] == nil {
			years[k.y] = make(map[string]map[string][]TreeFile)
		}
		if years[k.y][k.m] == nil {
			years[k.y][k.m] = make(map[string][]TreeFile)
		}
		years[k.y][k.m][k.d] = files
	}

	tree := &Tree{Root: root}
	for _, y := range sortedKeysDesc(years) {
		yg := YearGroup{Year: y}
		for _, m := range sortedKeysDesc(years[y]) {
			mg := MonthGroup{Month: m}
			for _, d := range sortedKeysDesc(years[y][m]) {
				files := years[y][m][d]
				sortDayFiles(files)
				mg.Days = append(mg.Days, DayGroup{Day: d, Files: files})
			}
			yg.Months = append(yg.Months, mg)
		}
		tree.Years = append(tree.Years, yg)
	}
	return tree, nil
}

// sortDayFiles orders a day's sessions by parsed start time descending,
// falling back to filename descending when timestamps are missing or
// tied.
func sortDayFiles(files []TreeFile) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.StartedAt != "" && b.StartedAt != "" && a.StartedAt != b.StartedAt {
			return a.StartedAt > b.StartedAt
		}
		return path.Base(a.Path) > path.Base(b.Path)
	})
}

// datePathSegments extracts year/month/day from a path shaped like
// "2025/08/14/rollout-....jsonl". Non-conforming paths get empty keys.
func datePathSegments(p string) (year, month, day string) {
	parts := strings.Split(p, "/")
	if len(parts) >= 4 && isDigits(parts[0]) && isDigits(parts[1]) && isDigits(parts[2]) {
		return parts[0], parts[1], parts[2]
	}
	return "", "", ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// sortedKeysDesc returns map keys sorted descending, with the empty key
// always last.
func sortedKeysDesc[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == "") != (keys[j] == "") {
			return keys[j] == ""
		}
		return keys[i] > keys[j]
	})
	return keys
}
