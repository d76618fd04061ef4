// Package pack merges multiple game archives into one virtual, override-aware
// file namespace.
//
// A Group owns every archive found under one root directory, ordered
// alphabetically by full path. That order defines override precedence: later
// (lexicographically greater) archive names shadow earlier ones for identical
// file paths, mirroring patch-archive naming where later-named archives carry
// newer data. Lookups therefore scan the archives in reverse construction
// order and stop at the first hit.
package pack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/WowDevTools/everlook/pkg/listfile"
	"github.com/WowDevTools/everlook/pkg/mpq"
)

// ErrRootNotFound means the group's root directory does not exist. It is the
// only construction failure that is fatal; unreadable archives are skipped.
var ErrRootNotFound = errors.New("package root directory not found")

// SkippedArchive records an archive that failed to open during construction.
type SkippedArchive struct {
	Path string
	Err  error
}

// Group presents a single override-aware namespace over the archives found
// under one root directory. Once constructed it is read-only and safe for
// concurrent readers.
type Group struct {
	name     string
	root     string
	archives []*mpq.Archive
	listings []namedListing
	skipped  []SkippedArchive
	cache    *cache
	log      *zap.Logger

	mu     sync.Mutex
	closed bool
}

// namedListing is one archive's stored listing. Listings are kept per
// archive, not in a name-keyed map: a recursive scan can legitimately find
// equally named archives in different subdirectories, and both listings must
// survive into the merged file list.
type namedListing struct {
	name  string
	paths []string
}

type options struct {
	registry *listfile.Registry
	log      *zap.Logger
	workers  int
	cache    bool
}

// Option configures group construction.
type Option func(*options)

// WithListfiles supplies externally maintained listings, preferred over an
// archive's self-reported listfile when one matches its display name.
func WithListfiles(registry *listfile.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithLogger sets the construction and query logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithOpenWorkers opens archives on n goroutines during construction. The
// canonical alphabetical order is preserved regardless of completion order.
func WithOpenWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithCache enables an in-memory byte cache for extracted files.
func WithCache(enabled bool) Option {
	return func(o *options) { o.cache = enabled }
}

// NewGroup scans root recursively for .mpq archives and opens them in
// ascending path order. Archives that fail to open are skipped and recorded;
// a missing root directory fails construction outright. A group that opened
// zero archives is valid and resolves nothing.
func NewGroup(name, root string, opts ...Option) (*Group, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	paths, err := scanArchives(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	group := &Group{
		name: name,
		root: root,
		log:  o.log,
	}
	if o.cache {
		group.cache = newCache()
	}

	for i, result := range openAll(paths, o.workers) {
		if result.err != nil {
			group.skipped = append(group.skipped, SkippedArchive{Path: paths[i], Err: result.err})
			o.log.Warn("skipping unreadable archive",
				zap.String("group", name),
				zap.String("path", paths[i]),
				zap.Error(result.err))
			continue
		}

		archive := result.archive
		group.archives = append(group.archives, archive)

		listing := archive.ListFiles()
		if o.registry != nil {
			if external, ok := o.registry.Lookup(archive.Name()); ok {
				listing = external
			}
		}
		for _, existing := range group.listings {
			if strings.EqualFold(existing.name, archive.Name()) {
				o.log.Warn("duplicate archive display name",
					zap.String("group", name),
					zap.String("archive", archive.Name()),
					zap.String("path", paths[i]))
				break
			}
		}
		group.listings = append(group.listings, namedListing{name: archive.Name(), paths: listing})

		o.log.Debug("opened archive",
			zap.String("group", name),
			zap.String("archive", archive.Name()),
			zap.Int("entries", archive.Count()),
			zap.Int("listed", len(listing)))
	}

	return group, nil
}

// scanArchives collects every .mpq file under root, sorted ascending by full
// path so the override order is deterministic.
func scanArchives(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(path), ".mpq") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

type openResult struct {
	archive *mpq.Archive
	err     error
}

// openAll opens every path, optionally in parallel. Results come back indexed
// by input position, so parallelism never perturbs override order.
func openAll(paths []string, workers int) []openResult {
	results := make([]openResult, len(paths))

	if workers <= 1 || len(paths) < 2 {
		for i, path := range paths {
			results[i].archive, results[i].err = mpq.Open(path)
		}
		return results
	}

	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].archive, results[i].err = mpq.Open(paths[i])
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Root returns the scanned root directory.
func (g *Group) Root() string {
	return g.root
}

// Archives returns the owned archives in construction (override) order.
func (g *Group) Archives() []*mpq.Archive {
	out := make([]*mpq.Archive, len(g.archives))
	copy(out, g.archives)
	return out
}

// Skipped returns the archives excluded during construction.
func (g *Group) Skipped() []SkippedArchive {
	out := make([]SkippedArchive, len(g.skipped))
	copy(out, g.skipped)
	return out
}

// Resolve returns the archive whose copy of path wins override resolution:
// the last archive in construction order that contains it. It returns nil
// when no archive contains the path.
func (g *Group) Resolve(path string) *mpq.Archive {
	for i := len(g.archives) - 1; i >= 0; i-- {
		if g.archives[i].Contains(path) {
			return g.archives[i]
		}
	}
	return nil
}

// FileExists reports whether any archive in the group contains path.
func (g *Group) FileExists(path string) bool {
	return g.Resolve(path) != nil
}

// Extract returns the winning copy of path. Absence is a normal outcome and
// reported through the bool, never as an error; unreadable entries in an
// otherwise resolvable archive are logged and reported as absent.
func (g *Group) Extract(path string) ([]byte, bool) {
	if g.cache != nil {
		if data, ok := g.cache.get(path); ok {
			return data, true
		}
	}

	archive := g.Resolve(path)
	if archive == nil {
		return nil, false
	}

	data, err := archive.Read(path)
	if err != nil {
		g.log.Warn("extracting resolved entry failed",
			zap.String("group", g.name),
			zap.String("archive", archive.Name()),
			zap.String("path", path),
			zap.Error(err))
		return nil, false
	}

	if g.cache != nil {
		g.cache.set(path, data)
	}
	return data, true
}

// ExtractFromArchive bypasses override resolution and reads path from the
// named archive only. It reports absence when that specific archive lacks
// the path, even if another archive in the group has it.
func (g *Group) ExtractFromArchive(archiveName, path string) ([]byte, bool) {
	for _, archive := range g.archives {
		if !strings.EqualFold(archive.Name(), archiveName) {
			continue
		}
		data, err := archive.Read(path)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

// MergedFileList returns the union of every archive's listing, deduplicated
// case-insensitively and sorted for deterministic output.
func (g *Group) MergedFileList() []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, listing := range g.listings {
		for _, path := range listing.paths {
			key := strings.ToLower(path)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, path)
		}
	}

	sort.Strings(merged)
	return merged
}

// Listing returns the stored listing for one archive display name. With
// duplicate display names the later archive's listing wins, consistent with
// override order.
func (g *Group) Listing(archiveName string) ([]string, bool) {
	for i := len(g.listings) - 1; i >= 0; i-- {
		if strings.EqualFold(g.listings[i].name, archiveName) {
			return g.listings[i].paths, true
		}
	}
	return nil, false
}

// CacheStats returns extraction cache hit/miss counters. Both are zero when
// the cache is disabled.
func (g *Group) CacheStats() (hits, misses int) {
	if g.cache == nil {
		return 0, 0
	}
	return g.cache.stats()
}

// Close closes every owned archive. It is safe to call more than once.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	var result *multierror.Error
	for _, archive := range g.archives {
		if err := archive.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing %s: %w", archive.Name(), err))
		}
	}
	if g.cache != nil {
		g.cache.clear()
	}

	return result.ErrorOrNil()
}
