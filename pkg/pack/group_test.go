package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/WowDevTools/everlook/pkg/listfile"
	"github.com/WowDevTools/everlook/pkg/mpq"
)

func makeArchive(t *testing.T, path string, files map[string][]byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	w := mpq.NewWriter(path)
	for name, data := range files {
		if err := w.Add(name, data); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("write archive %s: %v", path, err)
	}
}

func TestOverrideResolution(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "patch-1.mpq"), map[string][]byte{
		"a.txt":      []byte("old"),
		"only-1.txt": []byte("first"),
	})
	makeArchive(t, filepath.Join(root, "patch-2.mpq"), map[string][]byte{
		"a.txt": []byte("new"),
	})

	group, err := NewGroup("patches", root)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	// The lexicographically later archive wins for shared paths.
	winner := group.Resolve("a.txt")
	if winner == nil || winner.Name() != "patch-2" {
		t.Fatalf("expected patch-2 to win resolution, got %v", winner)
	}

	data, ok := group.Extract("a.txt")
	if !ok || string(data) != "new" {
		t.Errorf("Extract(a.txt) = %q, %v; want \"new\", true", data, ok)
	}

	// Paths present only in the earlier archive still resolve.
	if archive := group.Resolve("only-1.txt"); archive == nil || archive.Name() != "patch-1" {
		t.Errorf("expected only-1.txt to resolve to patch-1, got %v", archive)
	}

	// Bypassing resolution reads the shadowed copy.
	data, ok = group.ExtractFromArchive("patch-1", "a.txt")
	if !ok || string(data) != "old" {
		t.Errorf("ExtractFromArchive(patch-1, a.txt) = %q, %v; want \"old\", true", data, ok)
	}

	// The named-archive query never falls back to other archives.
	if _, ok := group.ExtractFromArchive("patch-2", "only-1.txt"); ok {
		t.Error("ExtractFromArchive(patch-2) should not fall back to patch-1")
	}
}

func TestAbsenceIsNotAnError(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "base.mpq"), map[string][]byte{"a.txt": []byte("x")})

	group, err := NewGroup("base", root)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	if group.FileExists("missing.txt") {
		t.Error("FileExists should be false for an absent path")
	}
	if data, ok := group.Extract("missing.txt"); ok || data != nil {
		t.Errorf("Extract of absent path = %q, %v; want nil, false", data, ok)
	}
	if group.Resolve("missing.txt") != nil {
		t.Error("Resolve of absent path should be nil")
	}
}

func TestMergedFileList(t *testing.T) {
	root := t.TempDir()
	files1 := map[string][]byte{
		"data/shared.txt": []byte("1"),
		"data/one.txt":    []byte("1"),
	}
	files2 := map[string][]byte{
		"Data/Shared.txt": []byte("2"), // same path, different case
		"data/two.txt":    []byte("2"),
	}
	makeArchive(t, filepath.Join(root, "patch-1.mpq"), files1)
	makeArchive(t, filepath.Join(root, "patch-2.mpq"), files2)

	group, err := NewGroup("patches", root)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	merged := group.MergedFileList()

	seen := make(map[string]struct{})
	for _, path := range merged {
		key := strings.ToLower(path)
		if _, dup := seen[key]; dup {
			t.Errorf("duplicate path in merged list: %s", path)
		}
		seen[key] = struct{}{}
	}

	// Superset of every archive's listing.
	for name := range files1 {
		if _, ok := seen[strings.ToLower(name)]; !ok {
			t.Errorf("merged list missing %s", name)
		}
	}
	for name := range files2 {
		if _, ok := seen[strings.ToLower(name)]; !ok {
			t.Errorf("merged list missing %s", name)
		}
	}
	if len(merged) != 3 {
		t.Errorf("expected 3 merged paths, got %d: %v", len(merged), merged)
	}
}

func TestCorruptArchiveIsSkipped(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "good.mpq"), map[string][]byte{"a.txt": []byte("ok")})
	if err := os.WriteFile(filepath.Join(root, "bad.mpq"), []byte("corrupt"), 0644); err != nil {
		t.Fatal(err)
	}

	group, err := NewGroup("mixed", root)
	if err != nil {
		t.Fatalf("construction should survive a corrupt archive: %v", err)
	}
	defer group.Close()

	if len(group.Archives()) != 1 {
		t.Fatalf("expected 1 opened archive, got %d", len(group.Archives()))
	}
	skipped := group.Skipped()
	if len(skipped) != 1 || filepath.Base(skipped[0].Path) != "bad.mpq" {
		t.Fatalf("expected bad.mpq to be skipped, got %v", skipped)
	}
	if !errors.Is(skipped[0].Err, mpq.ErrInvalidArchive) {
		t.Errorf("skip reason should wrap ErrInvalidArchive, got %v", skipped[0].Err)
	}

	if data, ok := group.Extract("a.txt"); !ok || string(data) != "ok" {
		t.Errorf("valid archive should still serve files, got %q, %v", data, ok)
	}
}

func TestAllCorruptYieldsEmptyGroup(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "bad.mpq"), []byte("corrupt"), 0644); err != nil {
		t.Fatal(err)
	}

	group, err := NewGroup("empty", root)
	if err != nil {
		t.Fatalf("a group with zero opened archives is valid: %v", err)
	}
	defer group.Close()

	if group.FileExists("anything") {
		t.Error("empty group should resolve nothing")
	}
	if merged := group.MergedFileList(); len(merged) != 0 {
		t.Errorf("empty group merged list should be empty, got %v", merged)
	}
}

func TestMissingRootIsFatal(t *testing.T) {
	_, err := NewGroup("nope", filepath.Join(t.TempDir(), "does-not-exist"))
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("expected ErrRootNotFound, got %v", err)
	}
}

func TestRecursiveScanOrder(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "Data", "base.mpq"), map[string][]byte{"a.txt": []byte("base")})
	makeArchive(t, filepath.Join(root, "Data", "patch.mpq"), map[string][]byte{"a.txt": []byte("patch")})

	group, err := NewGroup("nested", root)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	archives := group.Archives()
	if len(archives) != 2 {
		t.Fatalf("expected 2 archives from recursive scan, got %d", len(archives))
	}
	if archives[0].Name() != "base" || archives[1].Name() != "patch" {
		t.Errorf("unexpected order: %s, %s", archives[0].Name(), archives[1].Name())
	}

	if data, _ := group.Extract("a.txt"); string(data) != "patch" {
		t.Errorf("expected patch to win, got %q", data)
	}
}

func TestParallelOpenPreservesOrder(t *testing.T) {
	root := t.TempDir()
	names := []string{"patch-1", "patch-2", "patch-3", "patch-4", "patch-5"}
	for _, name := range names {
		makeArchive(t, filepath.Join(root, name+".mpq"), map[string][]byte{
			"a.txt": []byte(name),
		})
	}

	group, err := NewGroup("parallel", root, WithOpenWorkers(4))
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	archives := group.Archives()
	if len(archives) != len(names) {
		t.Fatalf("expected %d archives, got %d", len(names), len(archives))
	}
	for i, archive := range archives {
		if archive.Name() != names[i] {
			t.Errorf("archive %d: got %s, want %s", i, archive.Name(), names[i])
		}
	}

	if data, _ := group.Extract("a.txt"); string(data) != "patch-5" {
		t.Errorf("expected patch-5 to win, got %q", data)
	}
}

func TestExternalListfilePreferred(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "base.mpq"), map[string][]byte{
		"data/self.txt": []byte("x"),
	})

	registry := listfile.NewRegistry()
	registry.Add("base", []string{"data/external.txt"})

	group, err := NewGroup("base", root, WithListfiles(registry))
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	listing, ok := group.Listing("base")
	if !ok {
		t.Fatal("missing listing for base")
	}
	if len(listing) != 1 || listing[0] != "data/external.txt" {
		t.Errorf("external listing should be preferred, got %v", listing)
	}

	merged := group.MergedFileList()
	if len(merged) != 1 || merged[0] != "data/external.txt" {
		t.Errorf("merged list should come from external listing, got %v", merged)
	}
}

func TestExtractCache(t *testing.T) {
	root := t.TempDir()
	content := bytes.Repeat([]byte("payload "), 100)
	makeArchive(t, filepath.Join(root, "base.mpq"), map[string][]byte{"a.txt": content})

	group, err := NewGroup("base", root, WithCache(true))
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	for i := 0; i < 3; i++ {
		data, ok := group.Extract("a.txt")
		if !ok || !bytes.Equal(data, content) {
			t.Fatalf("extract %d failed", i)
		}
	}

	hits, misses := group.CacheStats()
	if hits != 2 || misses != 1 {
		t.Errorf("cache stats = %d hits, %d misses; want 2, 1", hits, misses)
	}
}

func TestCloseIdempotent(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "base.mpq"), map[string][]byte{"a.txt": []byte("x")})

	group, err := NewGroup("base", root)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}

	if err := group.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := group.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestOversizedTableCountsAreSkipped(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "base.mpq"), map[string][]byte{"a.txt": []byte("good")})

	// A 32-byte header claiming a billion-entry hash table. Opening it
	// must fail with a bounds error, not an allocation crash.
	raw := make([]byte, 32)
	copy(raw, "MPQ\x1a")
	binary.LittleEndian.PutUint32(raw[4:], 32)
	binary.LittleEndian.PutUint32(raw[8:], 32)
	binary.LittleEndian.PutUint16(raw[12:], 0)
	binary.LittleEndian.PutUint16(raw[14:], 3)
	binary.LittleEndian.PutUint32(raw[16:], 32)
	binary.LittleEndian.PutUint32(raw[20:], 32)
	binary.LittleEndian.PutUint32(raw[24:], 0x40000000)
	binary.LittleEndian.PutUint32(raw[28:], 0x40000000)
	if err := os.WriteFile(filepath.Join(root, "huge.mpq"), raw, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	group, err := NewGroup("base", root)
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	skipped := group.Skipped()
	if len(skipped) != 1 {
		t.Fatalf("skipped = %d archives, want 1", len(skipped))
	}
	if !errors.Is(skipped[0].Err, mpq.ErrInvalidArchive) {
		t.Errorf("skip reason = %v, want ErrInvalidArchive", skipped[0].Err)
	}

	data, ok := group.Extract("a.txt")
	if !ok || string(data) != "good" {
		t.Errorf("extract from surviving archive failed")
	}
}

func TestDuplicateDisplayNames(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "a", "base.mpq"), map[string][]byte{"data/a.txt": []byte("1")})
	makeArchive(t, filepath.Join(root, "b", "base.mpq"), map[string][]byte{"data/b.txt": []byte("2")})

	core, logs := observer.New(zap.WarnLevel)
	group, err := NewGroup("base", root, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	defer group.Close()

	merged := group.MergedFileList()
	want := map[string]bool{"data/a.txt": false, "data/b.txt": false}
	for _, path := range merged {
		if _, ok := want[path]; ok {
			want[path] = true
		}
	}
	for path, seen := range want {
		if !seen {
			t.Errorf("merged list missing %s", path)
		}
	}

	if logs.FilterMessage("duplicate archive display name").Len() == 0 {
		t.Errorf("expected a warning for the duplicate display name")
	}
}
