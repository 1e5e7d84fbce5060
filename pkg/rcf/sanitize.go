package rcf

import (
	"fmt"
	"path/filepath"
	"strings"

	common "github.com/beam-cloud/rcf/pkg/common"
)

// PathSanitizer maps a name stored in an archive to a relative output path.
// Implementations must never return a path that is absolute or that climbs
// above the directory it is joined to.
type PathSanitizer interface {
	Sanitize(stored string) (string, error)
}

// ComponentSanitizer walks the stored path component by component and keeps
// only plain names. Separators are backslashes as stored, though forward
// slashes are accepted too.
type ComponentSanitizer struct{}

func (ComponentSanitizer) Sanitize(stored string) (string, error) {
	normalized := strings.ReplaceAll(stored, "\\", "/")

	var components []string
	for _, component := range strings.Split(normalized, "/") {
		if !isNormalComponent(component) {
			continue
		}
		components = append(components, component)
	}

	if len(components) == 0 {
		return "", fmt.Errorf("%w: %q", common.ErrEmptyPath, stored)
	}

	return filepath.Join(components...), nil
}

func isNormalComponent(component string) bool {
	switch component {
	case "", ".", "..":
		return false
	}
	return !isDrivePrefix(component)
}

// isDrivePrefix matches DOS drive designators such as "C:".
func isDrivePrefix(component string) bool {
	if len(component) != 2 || component[1] != ':' {
		return false
	}
	c := component[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
