package mpq

// MPQ hash/table encryption as used by all V1 archives. The crypt table and
// the string hash are the standard Blizzard algorithm; three hash types are
// used for hash-table placement (hashTableOffset) and name verification
// (hashNameA, hashNameB), and a fourth keys table encryption.

const (
	hashTableOffset = 0
	hashNameA       = 1
	hashNameB       = 2
	hashFileKey     = 3
)

var cryptTable [0x500]uint32

func init() {
	seed := uint32(0x00100001)
	for i := 0; i < 0x100; i++ {
		for j, k := i, 0; k < 5; j, k = j+0x100, k+1 {
			seed = (seed*125 + 3) % 0x2AAAAB
			temp1 := (seed & 0xFFFF) << 16
			seed = (seed*125 + 3) % 0x2AAAAB
			cryptTable[j] = temp1 | (seed & 0xFFFF)
		}
	}
}

// hashString hashes an archive path with the given hash type. Paths are
// case-insensitive and separator-insensitive inside an archive, so the name
// is folded to upper case with backslash separators before hashing.
func hashString(name string, hashType int) uint32 {
	seed1 := uint32(0x7FED7FED)
	seed2 := uint32(0xEEEEEEEE)

	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '/' {
			ch = '\\'
		}
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		seed1 = cryptTable[hashType*0x100+int(ch)] ^ (seed1 + seed2)
		seed2 = uint32(ch) + seed1 + seed2 + (seed2 << 5) + 3
	}

	return seed1
}

// decryptBlock decrypts a table in place. key comes from hashString with
// hashFileKey ("(hash table)" or "(block table)").
func decryptBlock(data []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)
	for i := range data {
		seed += cryptTable[0x400+int(key&0xFF)]
		ch := data[i] ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = ch + seed + (seed << 5) + 3
		data[i] = ch
	}
}

// encryptBlock is the inverse of decryptBlock.
func encryptBlock(data []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)
	for i := range data {
		seed += cryptTable[0x400+int(key&0xFF)]
		ch := data[i] ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = data[i] + seed + (seed << 5) + 3
		data[i] = ch
	}
}
