package rcf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"

	common "github.com/beam-cloud/rcf/pkg/common"
)

// VerifyOutput checks that every entry exists under root as a regular file of
// its declared length. Only directories holding entries are read, so unrelated
// content under root is never visited. When several entries share a path the
// last one wins, matching extraction order.
func VerifyOutput(root string, entries []Entry) error {
	expected := make(map[string]int64, len(entries))
	byDir := make(map[string][]string)
	for _, entry := range entries {
		rel := filepath.Clean(entry.Path)
		if _, seen := expected[rel]; !seen {
			dir := filepath.Dir(rel)
			byDir[dir] = append(byDir[dir], rel)
		}
		expected[rel] = int64(entry.Length)
	}

	found := make(map[string]int64, len(entries))
	var scratch []byte
	for dir, wanted := range byDir {
		osDirname := filepath.Join(root, dir)
		dirents, err := godirwalk.ReadDirents(osDirname, scratch)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return &common.ArchiveError{Stage: common.StageVerify, Kind: common.KindIO, Path: dir, Offset: -1, Err: err}
		}

		regular := make(map[string]bool, len(dirents))
		for _, de := range dirents {
			if de.IsRegular() {
				regular[filepath.Join(dir, de.Name())] = true
			}
		}

		for _, rel := range wanted {
			if !regular[rel] {
				continue
			}
			info, err := os.Lstat(filepath.Join(root, rel))
			if err != nil {
				return &common.ArchiveError{Stage: common.StageVerify, Kind: common.KindIO, Path: rel, Offset: -1, Err: err}
			}
			found[rel] = info.Size()
		}
	}

	for path, length := range expected {
		size, ok := found[path]
		if !ok {
			return &common.ArchiveError{
				Stage:  common.StageVerify,
				Kind:   common.KindData,
				Path:   path,
				Offset: -1,
				Err:    errors.New("extracted file is missing"),
			}
		}
		if size != length {
			return &common.ArchiveError{
				Stage:  common.StageVerify,
				Kind:   common.KindData,
				Path:   path,
				Offset: -1,
				Err:    fmt.Errorf("extracted file has %d bytes, expected %d", size, length),
			}
		}
	}

	return nil
}
