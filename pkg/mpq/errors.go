package mpq

import "errors"

// Sentinel errors for archive operations. Use errors.Is in callers.
var (
	// ErrInvalidArchive means the file exists but is not an MPQ archive.
	ErrInvalidArchive = errors.New("invalid MPQ archive")
	// ErrUnsupportedVersion means the archive uses a format newer than V1.
	ErrUnsupportedVersion = errors.New("unsupported MPQ format version")
	// ErrFileNotFound means the archive has no entry with the given path.
	ErrFileNotFound = errors.New("file not found in archive")
	// ErrEncryptedFile means the entry is encrypted, which is not supported.
	ErrEncryptedFile = errors.New("encrypted entries not supported")
	// ErrUnsupportedCompression means the entry uses a compression scheme
	// other than zlib.
	ErrUnsupportedCompression = errors.New("unsupported compression scheme")
	// ErrClosed means the archive was already closed.
	ErrClosed = errors.New("archive already closed")
	// ErrDuplicateEntry means two writer inputs resolve to the same path.
	ErrDuplicateEntry = errors.New("duplicate entry path")
	// ErrInvalidEntryPath means a writer input path is empty or invalid.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrTableFull means the writer hash table cannot place an entry.
	ErrTableFull = errors.New("hash table full")
)
