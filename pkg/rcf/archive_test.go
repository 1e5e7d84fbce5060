package rcf

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	common "github.com/beam-cloud/rcf/pkg/common"
)

func TestDecodeHeader(t *testing.T) {
	headerBytes := make([]byte, common.RcfHeaderLength)
	copy(headerBytes, common.RcfFileStartBytes)
	binary.LittleEndian.PutUint32(headerBytes[32:36], 0xdeadbeef)
	binary.LittleEndian.PutUint32(headerBytes[36:40], 60)
	binary.LittleEndian.PutUint32(headerBytes[40:44], 24)
	binary.LittleEndian.PutUint32(headerBytes[44:48], 2056)
	binary.LittleEndian.PutUint32(headerBytes[48:52], 52)
	binary.LittleEndian.PutUint32(headerBytes[52:56], 0xffffffff)
	binary.LittleEndian.PutUint32(headerBytes[56:60], 2)

	r := bytes.NewReader(append(headerBytes, 0xaa))
	header, err := NewRcfArchiver().DecodeHeader(r)
	require.NoError(t, err)

	assert.True(t, header.HasCementSignature())
	assert.Equal(t, uint32(60), header.DirectoryOffset)
	assert.Equal(t, uint32(24), header.DirectoryLength)
	assert.Equal(t, uint32(2056), header.FilenameDirectoryOffset)
	assert.Equal(t, uint32(52), header.FilenameDirectoryLength)
	assert.Equal(t, uint32(2), header.FileCount)

	// Cursor is left immediately after the header
	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(common.RcfHeaderLength), pos)
}

func TestDecodeHeaderUnknownMagic(t *testing.T) {
	headerBytes := make([]byte, common.RcfHeaderLength)
	copy(headerBytes, "SOME OTHER LIBRARY")
	binary.LittleEndian.PutUint32(headerBytes[56:60], 7)

	header, err := NewRcfArchiver().DecodeHeader(bytes.NewReader(headerBytes))
	require.NoError(t, err)
	assert.False(t, header.HasCementSignature())
	assert.Equal(t, uint32(7), header.FileCount)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	for _, size := range []int{0, 31, 56, common.RcfHeaderLength - 1} {
		_, err := NewRcfArchiver().DecodeHeader(bytes.NewReader(make([]byte, size)))
		require.Error(t, err, "size %d", size)
		assert.ErrorIs(t, err, common.ErrTruncatedField)
		assert.Equal(t, common.KindFormat, common.KindOf(err))
		assert.Contains(t, err.Error(), "header")
	}
}

func indexRecords(records ...[2]uint32) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		binary.Write(&buf, binary.LittleEndian, r[0])
		binary.Write(&buf, binary.LittleEndian, r[1])
	}
	return buf.Bytes()
}

func TestDecodeIndexSortsByOffset(t *testing.T) {
	data := indexRecords(
		[2]uint32{8192, 10},
		[2]uint32{2048, 5},
		[2]uint32{4096, 3},
		[2]uint32{2048, 0},
	)

	entries, err := NewRcfArchiver().DecodeIndex(bytes.NewReader(data), 4)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	expected := []common.IndexEntry{
		{Offset: 2048, Length: 5, TablePos: 1},
		{Offset: 2048, Length: 0, TablePos: 3},
		{Offset: 4096, Length: 3, TablePos: 2},
		{Offset: 8192, Length: 10, TablePos: 0},
	}
	assert.Equal(t, expected, entries)
}

func TestDecodeIndexEmpty(t *testing.T) {
	entries, err := NewRcfArchiver().DecodeIndex(bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecodeIndexTruncated(t *testing.T) {
	data := indexRecords([2]uint32{2048, 5})
	_, err := NewRcfArchiver().DecodeIndex(bytes.NewReader(data[:20]), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTruncatedField)
	assert.Contains(t, err.Error(), "index")
}

func filenameRecord(name []byte, nameLength uint32) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 12))
	binary.Write(&buf, binary.LittleEndian, nameLength)
	buf.Write(name)
	buf.Write(make([]byte, common.RcfNamePadding))
	return buf.Bytes()
}

func TestDecodeFilenamesKeepsTableOrder(t *testing.T) {
	var data []byte
	for _, name := range []string{`z\last.txt`, "a.txt", `textures\rock.dds`} {
		data = append(data, filenameRecord([]byte(name), uint32(len(name)+1))...)
	}

	r := bytes.NewReader(data)
	names, err := NewRcfArchiver().DecodeFilenames(r, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{`z\last.txt`, "a.txt", `textures\rock.dds`}, names)

	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), pos)
}

func TestDecodeFilenamesInvalidUTF8(t *testing.T) {
	data := filenameRecord([]byte("ok.txt"), 7)
	data = append(data, filenameRecord([]byte{'b', 0xff, 0xfe}, 4)...)

	_, err := NewRcfArchiver().DecodeFilenames(bytes.NewReader(data), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidFilename)
	assert.Equal(t, common.KindFormat, common.KindOf(err))
}

func TestDecodeFilenamesInvalidLength(t *testing.T) {
	for _, nameLength := range []uint32{0, common.MaxNameLength + 1} {
		data := filenameRecord(nil, nameLength)
		_, err := NewRcfArchiver().DecodeFilenames(bytes.NewReader(data), 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrInvalidNameLength)
	}
}

func TestDecodeFilenamesTruncatedName(t *testing.T) {
	data := filenameRecord([]byte("short"), 40)
	_, err := NewRcfArchiver().DecodeFilenames(bytes.NewReader(data), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTruncatedField)
	assert.Contains(t, err.Error(), "filenames")
}

func TestReadTablesLeavesCursorAligned(t *testing.T) {
	archive := testArchive{
		files: []testFile{
			{name: "a.txt", data: []byte("hello")},
			{name: `b\c.txt`, data: []byte("bye")},
		},
		indexOrder: []int{1, 0},
	}
	data, offsets := archive.build(t)

	r := bytes.NewReader(data)
	tables, err := NewRcfArchiver().ReadTables(r)
	require.NoError(t, err)

	assert.Equal(t, uint32(2), tables.Header.FileCount)
	assert.Equal(t, []string{"a.txt", `b\c.txt`}, tables.Filenames)
	require.Len(t, tables.Index, 2)
	assert.Equal(t, offsets[0], tables.Index[0].Offset)
	assert.Equal(t, offsets[1], tables.Index[1].Offset)

	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Zero(t, pos%common.SectorSize)
	assert.Equal(t, int64(offsets[0]), pos)
}
