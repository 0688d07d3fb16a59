// Package scan discovers content sources under a site's content directory
// and fingerprints them for incremental builds. Hashing runs through a
// bounded worker pool; a JSON cache keyed by size and mtime avoids
// re-hashing files that have not changed.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultParallelism bounds concurrent hashing workers.
const defaultParallelism = 16

// defaultExtensions are the content file types picked up by a scan.
var defaultExtensions = []string{".md", ".markdown"}

// SourceFile is one discovered content file with its fingerprint.
type SourceFile struct {
	Path    string // absolute path on disk
	RelPath string // slash-separated, relative to the scan root
	Size    int64
	ModTime time.Time
	Hash    string // sha256 of the file contents
}

// Result is the outcome of one scan pass.
type Result struct {
	Files    []SourceFile // sorted by RelPath
	Hashed   int          // cache misses that required a full read
	Duration time.Duration
}

// Index maps RelPath to a cache entry for every scanned file. It is the
// "next" side of a Diff.
func (r *Result) Index() map[string]Entry {
	idx := make(map[string]Entry, len(r.Files))
	for _, f := range r.Files {
		idx[f.RelPath] = Entry{Size: f.Size, ModTime: f.ModTime.Unix(), Hash: f.Hash}
	}
	return idx
}

// Scanner walks a content tree and fingerprints matching files.
type Scanner struct {
	root        string
	cache       *Cache
	extensions  map[string]bool
	parallelism int
	log         *zap.Logger
}

// Options tunes a Scanner. Zero values fall back to defaults.
type Options struct {
	// Parallelism bounds concurrent hashing. Defaults to 16.
	Parallelism int

	// Extensions lists accepted file extensions (with leading dot).
	// Defaults to .md and .markdown.
	Extensions []string

	// Logger receives scan progress. Defaults to a nop logger.
	Logger *zap.Logger
}

// New returns a Scanner rooted at root, backed by cache. cache may be nil,
// in which case every file is hashed on every pass.
func New(root string, cache *Cache, opts Options) *Scanner {
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaultExtensions
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Scanner{
		root:        root,
		cache:       cache,
		extensions:  exts,
		parallelism: opts.Parallelism,
		log:         opts.Logger,
	}
}

// Scan walks the root, fingerprints every matching file, and returns the
// sorted result. Unreadable files are skipped with a warning; a missing
// root is an error.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	var (
		mu     sync.Mutex
		files  []SourceFile
		hashed int
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, s.parallelism)

	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("scan: skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			// Hidden directories never hold content. .git and .platen in
			// particular must not be walked.
			if strings.HasPrefix(name, ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || !s.extensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.log.Warn("scan: stat failed", zap.String("path", path), zap.Error(err))
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = name
		}
		rel = filepath.ToSlash(rel)

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			sf := SourceFile{
				Path:    path,
				RelPath: rel,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			}

			if s.cache != nil {
				if hash, hit := s.cache.Get(rel, info); hit {
					sf.Hash = hash
					mu.Lock()
					files = append(files, sf)
					mu.Unlock()
					return
				}
			}

			hash, err := hashFile(path)
			if err != nil {
				s.log.Warn("scan: hash failed", zap.String("path", path), zap.Error(err))
				return
			}
			sf.Hash = hash
			if s.cache != nil {
				s.cache.Update(rel, info, hash)
			}

			mu.Lock()
			files = append(files, sf)
			hashed++
			mu.Unlock()
		}()

		return nil
	})

	wg.Wait()

	if walkErr != nil {
		return nil, fmt.Errorf("scan: %w", walkErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	res := &Result{Files: files, Hashed: hashed, Duration: time.Since(start)}
	s.log.Debug("scan complete",
		zap.Int("files", len(files)),
		zap.Int("hashed", hashed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
