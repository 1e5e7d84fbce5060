package rcf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	common "github.com/beam-cloud/rcf/pkg/common"
)

type outputLock struct {
	path string
	lock *flock.Flock
}

// outputLockPath returns the lock file guarding root. It lives in the system
// temp dir, keyed by the absolute root, so it never shares a name with an
// extracted entry.
func outputLockPath(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("unable to resolve output directory %s: %w", root, err)
	}
	sum := sha256.Sum256([]byte(absRoot))
	return filepath.Join(os.TempDir(), fmt.Sprintf("rcf-%s.lock", hex.EncodeToString(sum[:8]))), nil
}

// lockOutput takes an advisory lock on the output root so two runs cannot
// interleave writes into the same tree.
func lockOutput(root string) (*outputLock, error) {
	lockPath, err := outputLockPath(root)
	if err != nil {
		return nil, err
	}
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("error while trying to acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", common.ErrOutputLocked, root)
	}

	return &outputLock{path: lockPath, lock: fileLock}, nil
}

func (l *outputLock) Release() error {
	defer os.Remove(l.path)
	return l.lock.Unlock()
}
