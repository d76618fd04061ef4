package mpq

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// Writer accumulates entries and emits a V1 archive when closed. Entries are
// stored single-unit, zlib-compressed when that actually shrinks them, and a
// "(listfile)" entry is generated from the added paths.
type Writer struct {
	path    string
	names   []string
	entries map[string][]byte
}

// NewWriter prepares a writer targeting path. Nothing is written until Close.
func NewWriter(path string) *Writer {
	return &Writer{
		path:    path,
		entries: make(map[string][]byte),
	}
}

// Add buffers one entry. Paths that differ only in case or separator style
// collide inside an archive, so adding such a duplicate is an error.
func (w *Writer) Add(name string, data []byte) error {
	key := normalizeKey(name)
	if key == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidEntryPath)
	}
	if _, ok := w.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}

	w.names = append(w.names, name)
	w.entries[key] = data
	return nil
}

// Close writes the archive to disk.
func (w *Writer) Close() error {
	type pending struct {
		name  string
		block blockEntry
		data  []byte
	}

	// Listfile uses native backslash separators, one path per line.
	var listing strings.Builder
	for _, name := range w.names {
		listing.WriteString(strings.ReplaceAll(name, "/", "\\"))
		listing.WriteString("\r\n")
	}

	all := make([]pending, 0, len(w.names)+1)
	for _, name := range w.names {
		all = append(all, pending{name: name, data: w.entries[normalizeKey(name)]})
	}
	all = append(all, pending{name: ListfileName, data: []byte(listing.String())})

	// Lay out payloads after the header, compressing where it helps.
	offset := uint32(headerSize)
	var payload bytes.Buffer
	for i := range all {
		raw := all[i].data
		stored := raw
		flags := uint32(flagExists)

		if compressed, ok := compressEntry(raw); ok {
			stored = compressed
			flags |= flagCompressed | flagSingleUnit
		}

		all[i].block = blockEntry{
			filePos:    offset,
			packedSize: uint32(len(stored)),
			fileSize:   uint32(len(raw)),
			flags:      flags,
		}
		payload.Write(stored)
		offset += uint32(len(stored))
	}

	hashCount := nextPow2(len(all))
	hashWords := make([]uint32, hashCount*4)
	for i := range hashWords {
		hashWords[i] = hashEntryEmpty
	}

	for i := range all {
		name := all[i].name
		start := hashString(name, hashTableOffset) & uint32(hashCount-1)

		placed := false
		for probe := 0; probe < hashCount; probe++ {
			slot := (start + uint32(probe)) & uint32(hashCount-1)
			if hashWords[slot*4+3] != hashEntryEmpty {
				continue
			}
			hashWords[slot*4] = hashString(name, hashNameA)
			hashWords[slot*4+1] = hashString(name, hashNameB)
			hashWords[slot*4+2] = 0
			hashWords[slot*4+3] = uint32(i)
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf("%w: %s", ErrTableFull, name)
		}
	}

	blockWords := make([]uint32, len(all)*4)
	for i := range all {
		blockWords[i*4] = all[i].block.filePos
		blockWords[i*4+1] = all[i].block.packedSize
		blockWords[i*4+2] = all[i].block.fileSize
		blockWords[i*4+3] = all[i].block.flags
	}

	encryptBlock(hashWords, hashString("(hash table)", hashFileKey))
	encryptBlock(blockWords, hashString("(block table)", hashFileKey))

	hashPos := offset
	blockPos := hashPos + uint32(len(hashWords)*4)
	total := blockPos + uint32(len(blockWords)*4)

	hdr := header{
		Magic:           headerMagic,
		HeaderSize:      headerSize,
		ArchiveSize:     total,
		FormatVersion:   0,
		BlockSizeExp:    3,
		HashTablePos:    hashPos,
		BlockTablePos:   blockPos,
		HashTableCount:  uint32(hashCount),
		BlockTableCount: uint32(len(all)),
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	if err := writeArchive(file, hdr, payload.Bytes(), hashWords, blockWords); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeArchive(file *os.File, hdr header, payload []byte, hashWords, blockWords []uint32) error {
	if err := binary.Write(file, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := file.Write(payload); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, hashWords); err != nil {
		return fmt.Errorf("writing hash table: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, blockWords); err != nil {
		return fmt.Errorf("writing block table: %w", err)
	}
	return nil
}

// compressEntry returns the stored form of an entry and whether compression
// was applied. The one-byte zlib mask counts toward the stored size.
func compressEntry(raw []byte) ([]byte, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var buf bytes.Buffer
	buf.WriteByte(0x02)
	zw := zlib.NewWriter(&buf)
	zw.Write(raw)
	zw.Close()

	if buf.Len() >= len(raw) {
		return nil, false
	}
	return buf.Bytes(), true
}

func normalizeKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "/", "\\"))
}

func nextPow2(n int) int {
	size := 4
	for size < n {
		size *= 2
	}
	return size
}
