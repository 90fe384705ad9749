package ingest

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultSupportedExtensions names the file types NewFileSystemDiscoverer
// accepts when the caller doesn't supply its own allow-list, per spec
// §4.6 phase 1: plain text and the structured-text formats a chunker
// can reasonably split on sentence/paragraph boundaries.
var DefaultSupportedExtensions = []string{".txt", ".md", ".markdown", ".html", ".htm", ".json", ".csv"}

// Discoverer finds ingestible files under a root path, the
// collaborator IngestDirectory delegates to so callers can plug in
// alternative discovery (e.g. a remote listing) without changing the
// pipeline. Unsupported is every regular file that was walked but
// didn't match the discoverer's extension allow-list, so the caller
// can count it as a document error instead of silently dropping it.
type Discoverer interface {
	Discover(root string) (files []string, unsupported []string, err error)
}

// FileSystemDiscoverer walks the local filesystem, filtering by file
// extension.
type FileSystemDiscoverer struct {
	// Extensions is the allow-list, lower-cased, including the leading
	// dot (".md", ".txt"). A nil/empty list falls back to
	// DefaultSupportedExtensions rather than allowing every file, so an
	// unrecognized extension is always reported rather than silently
	// ingested or silently skipped.
	Extensions []string
}

// NewFileSystemDiscoverer returns a discoverer restricted to the given
// extensions, or DefaultSupportedExtensions if none are given.
func NewFileSystemDiscoverer(extensions ...string) *FileSystemDiscoverer {
	if len(extensions) == 0 {
		extensions = DefaultSupportedExtensions
	}
	return &FileSystemDiscoverer{Extensions: extensions}
}

func (d *FileSystemDiscoverer) Discover(root string) ([]string, []string, error) {
	var out, unsupported []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.allowed(path) {
			out = append(out, path)
		} else {
			unsupported = append(unsupported, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, unsupported, nil
}

func (d *FileSystemDiscoverer) allowed(path string) bool {
	exts := d.Extensions
	if len(exts) == 0 {
		exts = DefaultSupportedExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range exts {
		if ext == allowed {
			return true
		}
	}
	return false
}
