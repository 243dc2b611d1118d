// Package cache persists per-document OCR results on disk so a document is
// only ever processed once per quality and language setting. Entries are
// keyed by file content, not path: moving or renaming a document does not
// invalidate its cached result, while any edit to the bytes does.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// Key identifies one cache entry. Two jobs share an entry exactly when the
// file bytes, quality preset and OCR language all match.
type Key struct {
	Hash     string
	Quality  extract.Quality
	Language string
}

// Filename returns the cache file name for the key.
func (k Key) Filename() string {
	return fmt.Sprintf("%s_%s_%s.json", k.Hash, k.Quality, k.Language)
}

// KeyForFile hashes the file contents and builds the cache key for a job.
// The hash is streamed so multi-hundred-megabyte scans do not need to fit
// in memory.
func KeyForFile(job extract.Job) (Key, error) {
	const op = "KeyForFile"

	f, err := os.Open(job.Path)
	if err != nil {
		return Key{}, extract.WrapExtractError(op, err, "could not open document for hashing")
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return Key{}, extract.WrapExtractError(op, err, "could not hash document")
	}

	return Key{
		Hash:     hex.EncodeToString(h.Sum(nil)),
		Quality:  job.Quality,
		Language: job.Language,
	}, nil
}

// Store is a directory of JSON cache files implementing
// extract.ResultCache.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates the cache directory if needed and returns a store over
// it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache directory %s: %w", dir, err)
	}
	return &Store{dir: dir, log: logger.WithComponent("cache")}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the cache file path for a key.
func (s *Store) Path(key Key) string {
	return filepath.Join(s.dir, key.Filename())
}

// Load returns the cached entries for a job, or false when no valid entry
// exists. Unreadable or corrupt cache files are treated as a miss, never an
// error: the job simply reprocesses.
func (s *Store) Load(job extract.Job) ([]extract.PageEntry, bool) {
	key, err := KeyForFile(job)
	if err != nil {
		s.log.Warn().Err(err).Str("job", job.String()).Msg("Could not compute cache key")
		return nil, false
	}

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, false
	}

	var entries []extract.PageEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn().Err(err).Str("file", key.Filename()).Msg("Corrupt cache file, ignoring")
		return nil, false
	}
	if len(entries) == 0 {
		return nil, false
	}

	s.log.Debug().Str("file", key.Filename()).Int("entries", len(entries)).Msg("Cache hit")
	return entries, true
}

// Save writes the entries for a job. The write goes through a temp file in
// the same directory and a rename, so a crash mid-write can never leave a
// half-written JSON file that a later Load would have to reject.
func (s *Store) Save(job extract.Job, entries []extract.PageEntry) error {
	const op = "Save"

	key, err := KeyForFile(job)
	if err != nil {
		return extract.WrapExtractError(op, err, "")
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return extract.WrapExtractError(op, err, "could not encode cache entries")
	}

	tmp, err := os.CreateTemp(s.dir, key.Hash+"_*.tmp")
	if err != nil {
		return extract.WrapExtractError(op, err, "could not create cache temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return extract.WrapExtractError(op, err, "could not write cache temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return extract.WrapExtractError(op, err, "could not close cache temp file")
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		os.Remove(tmpName)
		return extract.WrapExtractError(op, err, "could not move cache file into place")
	}

	s.log.Debug().Str("file", key.Filename()).Int("entries", len(entries)).Msg("Cache saved")
	return nil
}

// Delete removes the cache entry for a job. A missing entry is not an
// error.
func (s *Store) Delete(job extract.Job) error {
	const op = "Delete"

	key, err := KeyForFile(job)
	if err != nil {
		return extract.WrapExtractError(op, err, "")
	}
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return extract.WrapExtractError(op, err, "could not delete cache file")
	}
	return nil
}

// Info summarizes the cache directory for display.
type Info struct {
	Dir        string
	Files      int
	TotalBytes int64
}

// Info walks the cache directory and reports its size.
func (s *Store) Info() (Info, error) {
	info := Info{Dir: s.dir}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return info, fmt.Errorf("could not read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.Files++
		info.TotalBytes += fi.Size()
	}
	return info, nil
}

// Clear removes every cache file and returns how many were deleted.
func (s *Store) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("could not read cache directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warn().Err(err).Str("file", e.Name()).Msg("Could not remove cache file")
			continue
		}
		removed++
	}
	s.log.Info().Int("removed", removed).Msg("Cache cleared")
	return removed, nil
}
