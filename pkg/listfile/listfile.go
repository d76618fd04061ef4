// Package listfile manages externally supplied archive listings.
//
// Game archives report their own contents through an embedded "(listfile)"
// entry, but those are frequently incomplete or missing in patch archives.
// Community-maintained listfiles fill the gap: a Registry maps an archive
// display name to a pre-built path list, which callers prefer over the
// archive's self-reported listing.
package listfile

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Registry holds listings keyed by archive display name. The zero value is
// not usable; create one with NewRegistry.
type Registry struct {
	listings map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{listings: make(map[string][]string)}
}

// Add associates a path list with an archive display name, replacing any
// existing listing for that name.
func (r *Registry) Add(name string, paths []string) {
	r.listings[strings.ToLower(name)] = paths
}

// Lookup returns the listing for an archive display name.
func (r *Registry) Lookup(name string) ([]string, bool) {
	paths, ok := r.listings[strings.ToLower(name)]
	return paths, ok
}

// Len returns the number of registered listings.
func (r *Registry) Len() int {
	return len(r.listings)
}

// Parse reads a newline-separated path list. Blank lines are skipped,
// carriage returns are tolerated, backslashes become forward slashes, and
// duplicates are dropped.
func Parse(reader io.Reader) []string {
	var out []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		path := strings.ReplaceAll(line, "\\", "/")
		key := strings.ToLower(path)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, path)
	}

	return out
}

// LoadDir loads every *.txt file under dir as a listing keyed by the file's
// stem, so "patch-2.txt" supplies the listing for an archive named "patch-2".
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading listfile directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}

		file, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("opening listfile %s: %w", entry.Name(), err)
		}
		paths := Parse(file)
		file.Close()

		r.Add(stem(entry.Name()), paths)
	}

	return nil
}

// LoadBundle loads listings from a compressed bundle. Community listfiles
// are distributed as zip or 7z bundles of text files; each member is keyed
// by its base-name stem like LoadDir.
func (r *Registry) LoadBundle(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return r.loadZipBundle(path)
	case ".7z":
		return r.loadSevenZipBundle(path)
	default:
		return fmt.Errorf("unsupported listfile bundle format: %s", filepath.Ext(path))
	}
}

func (r *Registry) loadZipBundle(path string) error {
	bundle, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening listfile bundle: %w", err)
	}
	defer bundle.Close()

	for _, member := range bundle.File {
		if !strings.EqualFold(filepath.Ext(member.Name), ".txt") {
			continue
		}

		reader, err := member.Open()
		if err != nil {
			return fmt.Errorf("reading bundle member %s: %w", member.Name, err)
		}
		paths := Parse(reader)
		reader.Close()

		r.Add(stem(member.Name), paths)
	}

	return nil
}

func (r *Registry) loadSevenZipBundle(path string) error {
	bundle, err := sevenzip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening listfile bundle: %w", err)
	}
	defer bundle.Close()

	for _, member := range bundle.File {
		if !strings.EqualFold(filepath.Ext(member.Name), ".txt") {
			continue
		}

		reader, err := member.Open()
		if err != nil {
			return fmt.Errorf("reading bundle member %s: %w", member.Name, err)
		}
		paths := Parse(reader)
		reader.Close()

		r.Add(stem(member.Name), paths)
	}

	return nil
}

// stem returns the base name without extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
