package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"codexlog/internal/parse"
	"codexlog/internal/scan"
)

// ErrReindexRunning means another reindex holds the advisory lock.
var ErrReindexRunning = errors.New("another reindex is already running")

type Summary struct {
	Scanned         int
	Updated         int
	Removed         int
	Skipped         int
	MetadataChecked int
	Messages        int
	Errors          int
}

func (s Summary) String() string {
	return fmt.Sprintf("scanned=%d updated=%d removed=%d skipped=%d metadata-checked=%d messages=%d errors=%d",
		s.Scanned, s.Updated, s.Removed, s.Skipped, s.MetadataChecked, s.Messages, s.Errors)
}

// Reindexer performs incremental, idempotent updates of the store from
// the current state of the filesystem. Files are processed strictly
// sequentially; each file's write is a single transaction.
type Reindexer struct {
	db     *DB
	logger *slog.Logger
	lock   *flock.Flock
}

func NewReindexer(db *DB, logger *slog.Logger) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		db:     db,
		logger: logger,
		// advisory lock beside the store file serializes reindex runs
		lock: flock.New(db.Path() + ".lock"),
	}
}

// Run reindexes the transcript root incrementally.
func (r *Reindexer) Run(root string) (Summary, error) {
	unlock, err := r.acquire()
	if err != nil {
		return Summary{}, err
	}
	defer unlock()
	return r.run(root)
}

// Rebuild drops the whole schema and reindexes from scratch.
func (r *Reindexer) Rebuild(root string) (Summary, error) {
	unlock, err := r.acquire()
	if err != nil {
		return Summary{}, err
	}
	defer unlock()

	if err := r.db.Clear(); err != nil {
		return Summary{}, err
	}
	return r.run(root)
}

func (r *Reindexer) acquire() (func(), error) {
	ok, err := r.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("reindex lock: %w", err)
	}
	if !ok {
		return nil, ErrReindexRunning
	}
	return func() { _ = r.lock.Unlock() }, nil
}

func (r *Reindexer) run(root string) (Summary, error) {
	var sum Summary

	files, err := scan.Scan(root, r.logger)
	if err != nil {
		return sum, err
	}
	sum.Scanned = len(files)

	known, err := r.db.FileStates()
	if err != nil {
		return sum, fmt.Errorf("load fingerprints: %w", err)
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.RelPath] = true
		st, ok := known[f.RelPath]
		unchanged := ok && st.HasSession && st.Size == f.Size && st.MtimeMs == f.ModifiedMs

		switch {
		case unchanged && st.IDChecked:
			// no content read at all
			sum.Skipped++

		case unchanged:
			// metadata-only pass: resolve the id reading as few lines
			// as possible; messages stay untouched
			id, err := parse.ScanSessionID(f.AbsPath)
			if err != nil {
				r.logger.Warn("reindex: id scan failed", "path", f.RelPath, "err", err)
				sum.Errors++
				continue
			}
			if err := r.db.MarkSessionIDChecked(f.RelPath, id); err != nil {
				r.logger.Warn("reindex: mark checked failed", "path", f.RelPath, "err", err)
				sum.Errors++
				continue
			}
			sum.MetadataChecked++

		default:
			res, err := parse.File(f.AbsPath, f.RelPath)
			if err != nil {
				r.logger.Warn("reindex: parse failed", "path", f.RelPath, "err", err)
				sum.Errors++
				continue
			}
			n, err := r.db.ReplaceSession(res, f.Size, f.ModifiedMs)
			if err != nil {
				r.logger.Warn("reindex: write failed", "path", f.RelPath, "err", err)
				sum.Errors++
				continue
			}
			sum.Updated++
			sum.Messages += n
		}
	}

	// purge sessions whose files vanished
	for path := range known {
		if seen[path] {
			continue
		}
		if err := r.db.DeleteSession(path); err != nil {
			r.logger.Warn("reindex: purge failed", "path", path, "err", err)
			sum.Errors++
			continue
		}
		sum.Removed++
	}

	return sum, nil
}
