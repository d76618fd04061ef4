// Package mpq provides reading and writing of MPQ (Mo'PaQ) V1 archives, the
// container format used for World of Warcraft game data.
//
// The supported subset covers what game data archives actually use for
// regular entries: encrypted hash/block tables, zlib sector compression,
// single-unit files, and the embedded "(listfile)" path list. Per-file
// encryption and non-zlib compression schemes are reported as errors.
package mpq

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var headerMagic = [4]byte{'M', 'P', 'Q', 0x1A}

const (
	headerSize = 32

	// ListfileName is the conventional archive entry holding the path list.
	ListfileName = "(listfile)"

	baseSectorSize = 512

	flagImploded   = 0x00000100
	flagCompressed = 0x00000200
	flagEncrypted  = 0x00010000
	flagSingleUnit = 0x01000000
	flagExists     = 0x80000000

	hashEntryEmpty   = 0xFFFFFFFF
	hashEntryDeleted = 0xFFFFFFFE
)

// header is the fixed 32-byte V1 archive header.
type header struct {
	Magic           [4]byte
	HeaderSize      uint32
	ArchiveSize     uint32
	FormatVersion   uint16
	BlockSizeExp    uint16
	HashTablePos    uint32
	BlockTablePos   uint32
	HashTableCount  uint32
	BlockTableCount uint32
}

// hashEntry is one slot of the archive hash table.
type hashEntry struct {
	nameA      uint32
	nameB      uint32
	locale     uint32
	blockIndex uint32
}

// blockEntry describes where and how one entry is stored.
type blockEntry struct {
	filePos    uint32
	packedSize uint32
	fileSize   uint32
	flags      uint32
}

// Archive represents an opened MPQ archive.
type Archive struct {
	path   string
	file   *os.File
	size   int64
	header header

	hashTable  []hashEntry
	blockTable []blockEntry
	fileCount  int

	listOnce sync.Once
	listing  []string

	mu     sync.Mutex
	closed bool
}

// Open opens an MPQ archive for reading. The error wraps fs.ErrNotExist when
// no file exists at path, and ErrInvalidArchive or ErrUnsupportedVersion when
// the file cannot be parsed as a V1 archive.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	archive := &Archive{path: path, file: file, size: info.Size()}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, err
	}

	if err := archive.readTables(); err != nil {
		file.Close()
		return nil, err
	}

	return archive, nil
}

// Path returns the file-system path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Name returns the display name: the base file name without extension.
func (a *Archive) Name() string {
	base := filepath.Base(a.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Count returns the number of stored entries.
func (a *Archive) Count() int {
	return a.fileCount
}

// Close closes the archive. It is safe to call more than once.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return a.file.Close()
}

func (a *Archive) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := a.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrInvalidArchive, err)
	}

	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &a.header); err != nil {
		return fmt.Errorf("%w: decoding header: %v", ErrInvalidArchive, err)
	}

	if a.header.Magic != headerMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidArchive)
	}

	if a.header.FormatVersion != 0 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.FormatVersion)
	}

	count := a.header.HashTableCount
	if count == 0 || count&(count-1) != 0 {
		return fmt.Errorf("%w: hash table size %d is not a power of two", ErrInvalidArchive, count)
	}

	// Header-supplied counts and offsets are untrusted until proven to lie
	// inside the file; a hostile count would otherwise drive allocation.
	if !a.sectionFits(a.header.HashTablePos, int64(a.header.HashTableCount)*16) {
		return fmt.Errorf("%w: hash table outside file bounds", ErrInvalidArchive)
	}
	if !a.sectionFits(a.header.BlockTablePos, int64(a.header.BlockTableCount)*16) {
		return fmt.Errorf("%w: block table outside file bounds", ErrInvalidArchive)
	}

	return nil
}

// sectionFits reports whether n bytes at pos lie inside the archive file.
func (a *Archive) sectionFits(pos uint32, n int64) bool {
	return n >= 0 && int64(pos)+n <= a.size
}

func (a *Archive) readTables() error {
	hashWords, err := a.readEncryptedTable(a.header.HashTablePos, a.header.HashTableCount, "(hash table)")
	if err != nil {
		return err
	}

	blockWords, err := a.readEncryptedTable(a.header.BlockTablePos, a.header.BlockTableCount, "(block table)")
	if err != nil {
		return err
	}

	a.hashTable = make([]hashEntry, a.header.HashTableCount)
	for i := range a.hashTable {
		a.hashTable[i] = hashEntry{
			nameA:      hashWords[i*4],
			nameB:      hashWords[i*4+1],
			locale:     hashWords[i*4+2],
			blockIndex: hashWords[i*4+3],
		}
	}

	a.blockTable = make([]blockEntry, a.header.BlockTableCount)
	for i := range a.blockTable {
		a.blockTable[i] = blockEntry{
			filePos:    blockWords[i*4],
			packedSize: blockWords[i*4+1],
			fileSize:   blockWords[i*4+2],
			flags:      blockWords[i*4+3],
		}
		if a.blockTable[i].flags&flagExists != 0 {
			a.fileCount++
		}
	}

	return nil
}

// readEncryptedTable reads count 16-byte entries at pos and decrypts them
// with the well-known key for keyName.
func (a *Archive) readEncryptedTable(pos, count uint32, keyName string) ([]uint32, error) {
	buf := make([]byte, int(count)*16)
	if _, err := a.file.ReadAt(buf, int64(pos)); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidArchive, keyName, err)
	}

	words := make([]uint32, int(count)*4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}

	decryptBlock(words, hashString(keyName, hashFileKey))
	return words, nil
}

// find looks up the block entry for a path via hash table probing.
func (a *Archive) find(path string) (blockEntry, bool) {
	mask := a.header.HashTableCount - 1
	start := hashString(path, hashTableOffset) & mask
	nameA := hashString(path, hashNameA)
	nameB := hashString(path, hashNameB)

	for i := uint32(0); i <= mask; i++ {
		entry := a.hashTable[(start+i)&mask]
		if entry.blockIndex == hashEntryEmpty {
			break
		}
		if entry.blockIndex == hashEntryDeleted {
			continue
		}
		if entry.nameA != nameA || entry.nameB != nameB {
			continue
		}
		if entry.blockIndex >= uint32(len(a.blockTable)) {
			break
		}
		return a.blockTable[entry.blockIndex], true
	}

	return blockEntry{}, false
}

// Contains checks if a file exists in the archive. The lookup is
// case-insensitive and accepts either path separator; it never fails.
func (a *Archive) Contains(path string) bool {
	entry, ok := a.find(path)
	return ok && entry.flags&flagExists != 0
}

// Read reads a file from the archive. The result is all-or-nothing: a
// truncated or undecodable entry yields an error, never short data.
func (a *Archive) Read(path string) ([]byte, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	entry, ok := a.find(path)
	if !ok || entry.flags&flagExists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if entry.flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncryptedFile, path)
	}
	if entry.flags&flagImploded != 0 {
		return nil, fmt.Errorf("%w: %s uses PKWare implode", ErrUnsupportedCompression, path)
	}

	if entry.flags&flagCompressed == 0 {
		return a.readRaw(entry)
	}
	if entry.flags&flagSingleUnit != 0 {
		return a.readSingleUnit(entry)
	}
	return a.readSectors(entry)
}

func (a *Archive) readRaw(entry blockEntry) ([]byte, error) {
	if !a.sectionFits(entry.filePos, int64(entry.fileSize)) {
		return nil, fmt.Errorf("%w: entry outside file bounds", ErrInvalidArchive)
	}

	data := make([]byte, entry.fileSize)
	if _, err := a.file.ReadAt(data, int64(entry.filePos)); err != nil {
		return nil, fmt.Errorf("reading entry data: %w", err)
	}
	return data, nil
}

func (a *Archive) readSingleUnit(entry blockEntry) ([]byte, error) {
	if !a.sectionFits(entry.filePos, int64(entry.packedSize)) {
		return nil, fmt.Errorf("%w: entry outside file bounds", ErrInvalidArchive)
	}

	data := make([]byte, entry.packedSize)
	if _, err := a.file.ReadAt(data, int64(entry.filePos)); err != nil {
		return nil, fmt.Errorf("reading entry data: %w", err)
	}

	if entry.packedSize == entry.fileSize {
		return data, nil
	}
	return decompress(data, int(entry.fileSize))
}

func (a *Archive) readSectors(entry blockEntry) ([]byte, error) {
	if !a.sectionFits(entry.filePos, int64(entry.packedSize)) {
		return nil, fmt.Errorf("%w: entry outside file bounds", ErrInvalidArchive)
	}

	sectorSize := baseSectorSize << a.header.BlockSizeExp
	sectors := (int(entry.fileSize) + sectorSize - 1) / sectorSize

	// The sector offset table lives inside the packed region, so a declared
	// file size whose table would not fit marks the entry as malformed
	// before anything sized by it is allocated.
	if int64(sectors+1)*4 > int64(entry.packedSize) {
		return nil, fmt.Errorf("%w: sector table larger than packed entry", ErrInvalidArchive)
	}

	offsetBuf := make([]byte, (sectors+1)*4)
	if _, err := a.file.ReadAt(offsetBuf, int64(entry.filePos)); err != nil {
		return nil, fmt.Errorf("reading sector table: %w", err)
	}
	offsets := make([]uint32, sectors+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(offsetBuf[i*4:])
	}

	out := make([]byte, 0, entry.fileSize)
	for i := 0; i < sectors; i++ {
		start, end := offsets[i], offsets[i+1]
		if start > end || end > entry.packedSize {
			return nil, fmt.Errorf("%w: malformed sector table", ErrInvalidArchive)
		}

		raw := make([]byte, end-start)
		if _, err := a.file.ReadAt(raw, int64(entry.filePos)+int64(start)); err != nil {
			return nil, fmt.Errorf("reading sector %d: %w", i, err)
		}

		want := sectorSize
		if i == sectors-1 {
			want = int(entry.fileSize) - i*sectorSize
		}

		if len(raw) == want {
			out = append(out, raw...)
			continue
		}
		sector, err := decompress(raw, want)
		if err != nil {
			return nil, fmt.Errorf("sector %d: %w", i, err)
		}
		out = append(out, sector...)
	}

	return out, nil
}

// decompress decodes one compressed block. The leading byte is the
// compression mask; only zlib (0x02) is supported.
func decompress(data []byte, want int) ([]byte, error) {
	if want == 0 {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty compressed block", ErrInvalidArchive)
	}

	if data[0] != 0x02 {
		return nil, fmt.Errorf("%w: mask 0x%02x", ErrUnsupportedCompression, data[0])
	}

	reader, err := zlib.NewReader(bytes.NewReader(data[1:]))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer reader.Close()

	out := make([]byte, want)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out, nil
}

// ListFiles returns the archive's embedded path list, decoded from the
// "(listfile)" entry. The listing is materialized once and cached for the
// handle's lifetime; an archive without a listfile yields an empty slice.
// Paths are normalized to forward slashes; case is preserved.
func (a *Archive) ListFiles() []string {
	a.listOnce.Do(func() {
		data, err := a.Read(ListfileName)
		if err != nil {
			return
		}
		a.listing = parseListfile(data)
	})
	return a.listing
}

func parseListfile(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(line, "\\", "/"))
	}
	return out
}
