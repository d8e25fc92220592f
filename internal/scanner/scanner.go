package scanner

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"harmonium/internal/audiotypes"
	"harmonium/internal/catalog"
	"harmonium/internal/logging"
	"harmonium/internal/metrics"
	"harmonium/internal/workers"
)

// FingerprintMode selects how file change detection works.
type FingerprintMode string

const (
	// FingerprintMTime compares size and modification time only.
	FingerprintMTime FingerprintMode = "mtime"
	// FingerprintHash additionally hashes file contents, catching
	// rewrites that preserve size and mtime at the cost of reading
	// every file each pass.
	FingerprintHash FingerprintMode = "hash"
)

// ScannedFile is one audio file observed during a pass. Tags is nil
// for unchanged files (no extraction was attempted) and for files whose
// extraction failed; TagError carries the failure in the latter case.
type ScannedFile struct {
	Path        string // relative to the music root, slash-separated
	Fingerprint catalog.Fingerprint
	Changed     bool
	Tags        *TagInfo
	TagError    string
	FolderCover string // relative path of a folder image, "" if none
}

// Scanner walks the music root, fingerprints audio files, and extracts
// tags from the ones that changed since the last pass.
type Scanner struct {
	root    string
	tags    TagReader
	mode    FingerprintMode
	workers int
}

// New creates a scanner over root. A nil TagReader gets the default
// file-based implementation.
func New(root string, tags TagReader, mode FingerprintMode) *Scanner {
	if tags == nil {
		tags = FileTagReader{}
	}
	if mode != FingerprintHash {
		mode = FingerprintMTime
	}
	return &Scanner{
		root:    root,
		tags:    tags,
		mode:    mode,
		workers: workers.ForCPU(0),
	}
}

// Scan walks the root and returns every audio file found. Files whose
// fingerprint matches known are returned with Changed=false and no tag
// extraction; changed and new files are parsed by a worker pool. When
// full is set, every file is treated as changed.
//
// Unreadable directories are logged and skipped; only a failure to read
// the root itself fails the pass.
func (s *Scanner) Scan(ctx context.Context, known map[string]catalog.Fingerprint, full bool) ([]ScannedFile, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("music root unavailable: %w", err)
	}

	files, covers, err := s.walk(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ScannedFile, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.process(files[i], covers, known, full)
			}
		}()
	}

	for i := range files {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// walkedFile is one audio path found by the walk, with its stat info.
type walkedFile struct {
	relPath string
	absPath string
	size    int64
	mtimeNS int64
}

// walk lists every audio file under the root and the best folder image
// per directory.
func (s *Scanner) walk(ctx context.Context) ([]walkedFile, map[string]string, error) {
	var files []walkedFile
	covers := make(map[string]string) // dir relpath -> image relpath

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			logging.Warn("Skipping unreadable path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			// Hidden directories are never part of a library.
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		switch {
		case audiotypes.IsAudioFile(path):
			info, statErr := d.Info()
			if statErr != nil {
				logging.Warn("Skipping unstattable file %s: %v", path, statErr)
				return nil
			}
			files = append(files, walkedFile{
				relPath: rel,
				absPath: path,
				size:    info.Size(),
				mtimeNS: info.ModTime().UnixNano(),
			})
			metrics.ScanFilesWalked.Inc()
		case audiotypes.IsCoverImage(d.Name()):
			dir := filepath.ToSlash(filepath.Dir(rel))
			if existing, ok := covers[dir]; !ok || coverRank(d.Name()) < coverRank(filepath.Base(existing)) {
				covers[dir] = rel
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Deterministic order keeps passes reproducible.
	sort.Slice(files, func(i, j int) bool { return files[i].relPath < files[j].relPath })
	return files, covers, nil
}

func coverRank(name string) int {
	lower := strings.ToLower(name)
	for i, candidate := range audiotypes.CoverNames() {
		if lower == candidate {
			return i
		}
	}
	return len(audiotypes.CoverNames())
}

// process fingerprints one file and extracts tags if it changed.
func (s *Scanner) process(f walkedFile, covers map[string]string, known map[string]catalog.Fingerprint, full bool) ScannedFile {
	out := ScannedFile{
		Path: f.relPath,
		Fingerprint: catalog.Fingerprint{
			Path:    f.relPath,
			Size:    f.size,
			MTimeNS: f.mtimeNS,
		},
		FolderCover: covers[filepath.ToSlash(filepath.Dir(f.relPath))],
	}

	if s.mode == FingerprintHash {
		hash, err := hashFile(f.absPath)
		if err != nil {
			logging.Warn("Hashing %s failed: %v", f.relPath, err)
		} else {
			out.Fingerprint.ContentHash = hash
		}
	}

	prev, seen := known[f.relPath]
	if !full && seen && prev.Equal(out.Fingerprint) {
		// Unchanged files keep the previous tag error so broken files
		// are not retried every pass.
		out.Fingerprint.TagError = prev.TagError
		return out
	}
	out.Changed = true

	info, err := s.tags.ReadTags(f.absPath)
	metrics.ScanTagsParsed.Inc()
	if err != nil {
		metrics.ScanTagErrors.Inc()
		logging.Warn("Tag extraction failed for %s: %v", f.relPath, err)
		out.TagError = err.Error()
		out.Fingerprint.TagError = out.TagError
		return out
	}
	out.Tags = &info
	return out
}

func hashFile(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
