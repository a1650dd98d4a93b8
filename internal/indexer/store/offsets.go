package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// The offsets sidecar is a 32-byte header followed by termCount+1
// little-endian uint64 line offsets into the .index file.
//
//	[0:4]   magic
//	[4:8]   version
//	[8:16]  term count
//	[16:20] CRC32 (IEEE) of the offset table
//	[20:32] reserved
const (
	OffsetsMagic   uint32 = 0x42534249
	OffsetsVersion uint32 = 1
	HeaderSize     int    = 32
)

// WriteOffsets atomically writes the sidecar for a file whose lines start
// at offsets[0..n-1] and which ends at offsets[n].
func WriteOffsets(path string, offsets []int64) error {
	if len(offsets) == 0 {
		return fmt.Errorf("offset table needs at least the end offset")
	}
	table := make([]byte, 8*len(offsets))
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(table[i*8:], uint64(off))
	}
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], OffsetsMagic)
	binary.LittleEndian.PutUint32(header[4:8], OffsetsVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(offsets)-1))
	binary.LittleEndian.PutUint32(header[16:20], crc32.ChecksumIEEE(table))

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating offsets file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("writing offsets header: %w", err)
	}
	if _, err := f.Write(table); err != nil {
		return fmt.Errorf("writing offsets table: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing offsets file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing offsets file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming offsets file: %w", err)
	}
	return nil
}

// ReadOffsets loads and verifies a sidecar written by WriteOffsets.
func ReadOffsets(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading offsets file: %w", err)
	}
	if len(data) < HeaderSize {
		return nil, apperrors.Corruptf("offsets %s: short header", path)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != OffsetsMagic {
		return nil, apperrors.Corruptf("offsets %s: bad magic bytes %x", path, magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != OffsetsVersion {
		return nil, apperrors.Corruptf("offsets %s: unsupported version %d", path, v)
	}
	count := binary.LittleEndian.Uint64(data[8:16])
	table := data[HeaderSize:]
	if uint64(len(table)) != 8*(count+1) {
		return nil, apperrors.Corruptf("offsets %s: %d table bytes for %d terms", path, len(table), count)
	}
	if crc := crc32.ChecksumIEEE(table); crc != binary.LittleEndian.Uint32(data[16:20]) {
		return nil, apperrors.Corruptf("offsets %s: checksum mismatch", path)
	}
	offsets := make([]int64, count+1)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(table[i*8:]))
		if i > 0 && offsets[i] <= offsets[i-1] {
			return nil, apperrors.Corruptf("offsets %s: offset %d not ascending", path, i)
		}
	}
	return offsets, nil
}

// ScanOffsets rebuilds the offset table, end offset included, by finding
// line starts in r. It is the fallback when the sidecar is missing.
func ScanOffsets(r io.Reader) ([]int64, error) {
	br := bufio.NewReaderSize(r, 256*1024)
	var offsets []int64
	var pos int64
	atLineStart := true
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if atLineStart {
				offsets = append(offsets, pos)
			}
			pos += int64(len(chunk))
			atLineStart = chunk[len(chunk)-1] == '\n'
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return append(offsets, pos), nil
		default:
			return nil, fmt.Errorf("scanning index: %w", err)
		}
	}
}
