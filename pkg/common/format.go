package common

import "bytes"

// Cement library header, as written by the ATG toolchain
//
//	"ATG CORE CEMENT LIBRARY" padded with NULs to 32 bytes
var RcfFileStartBytes []byte = []byte("ATG CORE CEMENT LIBRARY\x00\x00\x00\x00\x00\x00\x00\x00\x00")

const (
	RcfHeaderLength      = 60
	RcfIndexRecordLength = 12
	RcfNamePrefixLength  = 16
	RcfNamePadding       = 4
	// Reserved bytes between the aligned end of the index table and the first filename record
	RcfFilenameTableSkip = 8
	// Upper bound on a stored name, including its terminator
	MaxNameLength = 1 << 16
)

type RcfArchiveHeader struct {
	Magic                   [32]byte
	DirectoryOffset         uint32
	DirectoryLength         uint32
	FilenameDirectoryOffset uint32
	FilenameDirectoryLength uint32
	FileCount               uint32
}

// HasCementSignature reports whether the magic matches the known ATG signature.
// It is informational; archives with other magic are still decoded.
func (h *RcfArchiveHeader) HasCementSignature() bool {
	return bytes.Equal(h.Magic[:], RcfFileStartBytes)
}

/*

Index records are 12 bytes each:

	Reserved uint32
	Offset   uint32
	Length   uint32

Filename records are variable length:

	Reserved   [3]uint32
	NameLength uint32 (includes the NUL terminator)
	Name       [NameLength-1]byte
	Padding    [4]byte

*/

type IndexEntry struct {
	Offset   uint32
	Length   uint32
	TablePos int // position of the record in the on-disk index table
}
