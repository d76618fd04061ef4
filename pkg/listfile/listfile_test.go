package listfile

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := "Data\\Sound\\music.wav\r\n" +
		"Interface/Glue/credits.lua\n" +
		"\r\n" +
		"DATA\\SOUND\\MUSIC.WAV\n" + // case-insensitive duplicate
		"World/Maps/Azeroth/Azeroth.wdt"

	paths := Parse(strings.NewReader(input))

	want := []string{
		"Data/Sound/music.wav",
		"Interface/Glue/credits.lua",
		"World/Maps/Azeroth/Azeroth.wdt",
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %d: %v", len(want), len(paths), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: got %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Add("patch-2", []string{"data/a.txt"})

	if _, ok := reg.Lookup("unknown"); ok {
		t.Error("lookup of unknown name should fail")
	}

	paths, ok := reg.Lookup("Patch-2") // display names are case-insensitive
	if !ok {
		t.Fatal("lookup of registered name failed")
	}
	if len(paths) != 1 || paths[0] != "data/a.txt" {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "patch-1.txt"), "data/old.txt\ndata/shared.txt\n")
	writeFile(t, filepath.Join(dir, "patch-2.txt"), "data/new.txt\n")
	writeFile(t, filepath.Join(dir, "notes.md"), "not a listfile")

	reg := NewRegistry()
	if err := reg.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}

	if reg.Len() != 2 {
		t.Fatalf("expected 2 listings, got %d", reg.Len())
	}
	paths, ok := reg.Lookup("patch-1")
	if !ok || len(paths) != 2 {
		t.Errorf("patch-1 listing wrong: %v (ok=%v)", paths, ok)
	}
}

func TestLoadDirMissing(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadZipBundle(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "listfiles.zip")

	f, err := os.Create(bundlePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	member, err := zw.Create("patch-3.txt")
	if err != nil {
		t.Fatal(err)
	}
	member.Write([]byte("data\\bundled.txt\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	reg := NewRegistry()
	if err := reg.LoadBundle(bundlePath); err != nil {
		t.Fatalf("load bundle: %v", err)
	}

	paths, ok := reg.Lookup("patch-3")
	if !ok || len(paths) != 1 || paths[0] != "data/bundled.txt" {
		t.Errorf("bundle listing wrong: %v (ok=%v)", paths, ok)
	}
}

func TestLoadBundleUnknownFormat(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadBundle("listfiles.rar"); err == nil {
		t.Error("expected error for unknown bundle format")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
