// Package filestore implements the Snapshot Store's file backend: one JSON
// file per (collection, contestId) pair, read, filtered/sorted in memory,
// mutated, and rewritten atomically under an exclusive per-file lock held
// for the entire read-modify-write cycle (spec §4.3). Intended for
// small-to-medium contests and tests; it must provide the same
// filter/sort/projection semantics as the document-database backend.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/metrics"
	"standings-replay-engine/internal/snapshotstore"
	"standings-replay-engine/internal/standings"
)

// FileStore is a Store backed by one JSON file per collection-contest pair
// under BaseDir.
type FileStore struct {
	baseDir string

	mu        sync.Mutex
	fileLocks map[string]*sync.Mutex

	metrics *metrics.StoreMetrics
}

// New creates a FileStore rooted at baseDir, creating the directory if it
// does not already exist.
func New(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create base dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, fileLocks: make(map[string]*sync.Mutex)}, nil
}

// SetMetrics attaches a StoreMetrics recorder; writes issued before this is
// set are not recorded.
func (fs *FileStore) SetMetrics(m *metrics.StoreMetrics) { fs.metrics = m }

// recordOp reports a write-path outcome if a StoreMetrics recorder is
// attached; it is a no-op otherwise.
func (fs *FileStore) recordOp(collection, outcome string) {
	if fs.metrics != nil {
		fs.metrics.IncrementOperation("file", collection, outcome)
	}
}

func (fs *FileStore) BaseSnapshots() snapshotstore.BaseSnapshotStore {
	return &baseSnapshotStore{fs: fs}
}

func (fs *FileStore) DeltaSnapshots() snapshotstore.DeltaSnapshotStore {
	return &deltaSnapshotStore{fs: fs}
}

func (fs *FileStore) StandingsState() snapshotstore.StandingsStateStore {
	return &standingsStateStore{fs: fs}
}

func (fs *FileStore) path(collection, contestID string) string {
	return filepath.Join(fs.baseDir, fmt.Sprintf("%s-%s.json", collection, contestID))
}

// lockFor returns (and lazily creates) the in-process mutex guarding a given
// collection-contest file, so concurrent goroutines in this process never
// interleave a read-modify-write on the same file.
func (fs *FileStore) lockFor(path string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.fileLocks[path]
	if !ok {
		m = &sync.Mutex{}
		fs.fileLocks[path] = m
	}
	return m
}

// withFileLock runs fn while holding both the in-process mutex for path and
// an OS-level exclusive flock on it, so the read-modify-write cycle is
// serialized across goroutines in this process and across processes sharing
// the data directory.
func withFileLock(fs *FileStore, path string, fn func() error) error {
	mu := fs.lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := ensureFileExists(path); err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "open lock file", err)
	}

	fd, err := syscall.Open(path, syscall.O_RDONLY, 0)
	if err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "open lock file", err)
	}
	defer syscall.Close(fd)

	if err := syscall.Flock(fd, syscall.LOCK_EX); err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "acquire file lock", err)
	}
	defer syscall.Flock(fd, syscall.LOCK_UN)

	return fn()
}

func ensureFileExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte("[]"))
	return err
}

func readJSONArray[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "read "+path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var docs []T
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, apierrors.NewStorage(apierrors.TagStoreFailure, "decode "+path, err)
	}
	return docs, nil
}

// writeJSONArrayAtomic writes docs to path via a temp file + rename, so a
// reader never observes a partially written file.
func writeJSONArrayAtomic[T any](path string, docs []T) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "encode "+path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "write "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apierrors.NewStorage(apierrors.TagStoreFailure, "rename "+tmp, err)
	}
	return nil
}

// matchesTimestamp reports whether ts satisfies the range/equality constraints of f.
// Handle/ContestID filtering is applied by the caller since this helper is
// shared across record shapes that carry them differently.
func matchesTimestamp(f snapshotstore.Filter, ts int) bool {
	if f.TimestampEq != nil && ts != *f.TimestampEq {
		return false
	}
	if f.TimestampLT != nil && !(ts < *f.TimestampLT) {
		return false
	}
	if f.TimestampLTE != nil && !(ts <= *f.TimestampLTE) {
		return false
	}
	if f.TimestampGT != nil && !(ts > *f.TimestampGT) {
		return false
	}
	if f.TimestampGTE != nil && !(ts >= *f.TimestampGTE) {
		return false
	}
	return true
}

func applySortLimit[T any](docs []T, q snapshotstore.Query, timestampOf func(T) int) []T {
	if q.Sort != snapshotstore.SortNone {
		sort.SliceStable(docs, func(i, j int) bool {
			ti, tj := timestampOf(docs[i]), timestampOf(docs[j])
			if q.Sort == snapshotstore.SortAscending {
				return ti < tj
			}
			return ti > tj
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}
