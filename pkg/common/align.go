package common

import (
	"fmt"
	"io"
)

// SectorSize is the alignment of every table and payload in the data section.
const SectorSize int64 = 2048

// Padding returns the number of bytes between pos and the next multiple of sector.
func Padding(pos, sector int64) int64 {
	rem := pos % sector
	if rem == 0 {
		return 0
	}
	return sector - rem
}

// SkipToSector advances s to the next sector boundary and returns the bytes skipped.
func SkipToSector(s io.Seeker, sector int64) (int64, error) {
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("unable to get stream position: %w", err)
	}

	skip := Padding(pos, sector)
	if skip == 0 {
		return 0, nil
	}

	if _, err := s.Seek(skip, io.SeekCurrent); err != nil {
		return 0, fmt.Errorf("unable to skip %d padding bytes at %d: %w", skip, pos, err)
	}
	return skip, nil
}
