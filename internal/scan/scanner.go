package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const transcriptExt = ".jsonl"

// ErrRootNotFound means the transcript root is missing or not a
// directory. Callers must treat this as a precondition failure.
var ErrRootNotFound = errors.New("transcript root not found")

type SessionFile struct {
	AbsPath    string
	RelPath    string // root-relative, posix separators
	Size       int64
	ModifiedMs int64
}

// CheckRoot validates the transcript root before any scan begins.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrRootNotFound, root)
	}
	return nil
}

// Scan enumerates every transcript file under root, at any depth.
// Unreadable entries are skipped with a warning; only a missing root
// aborts the scan.
func Scan(root string, logger *slog.Logger) ([]SessionFile, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var files []SessionFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("scan: skipping unreadable entry", "path", path, "err", err)
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != transcriptExt {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warn("scan: skipping unstatable file", "path", path, "err", err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, SessionFile{
			AbsPath:    path,
			RelPath:    filepath.ToSlash(rel),
			Size:       info.Size(),
			ModifiedMs: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	return files, nil
}

// ReadSessionFile returns the raw bytes of a root-relative transcript.
// Any path that escapes the root is rejected before the filesystem is
// touched.
func ReadSessionFile(root, rel string) ([]byte, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if !isUnder(root, abs) {
		return nil, fmt.Errorf("path escapes transcript root: %s", rel)
	}
	return os.ReadFile(abs)
}

// isUnder reports whether path is strictly inside dir after cleaning
// both paths.
func isUnder(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	sep := string(filepath.Separator)
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+sep)
}
