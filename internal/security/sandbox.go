package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateWorkspace checks that dir can hold generated files, creating it if missing.
// The filesystem root and the home directory are refused.
func ValidateWorkspace(dir string) error {
	if dir == "" {
		return errors.New("workspace directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid workspace path: %w", err)
	}
	if home, err := os.UserHomeDir(); abs == string(filepath.Separator) || (err == nil && abs == home) {
		return errors.New("cannot use root or home directory as workspace")
	}

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(abs, 0755)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("workspace path %s is not a directory", abs)
	}
	return nil
}

// IsPathSafe reports whether path stays within workspace once both are made absolute
// and existing symlinks are followed.
func IsPathSafe(path, workspace string) bool {
	absPath, err := realPath(path)
	if err != nil {
		return false
	}
	absWorkspace, err := realPath(workspace)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absWorkspace, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ResolveInside joins name onto workspace and fails if the result escapes it.
func ResolveInside(workspace, name string) (string, error) {
	path := filepath.Join(workspace, name)
	if !IsPathSafe(path, workspace) {
		return "", fmt.Errorf("path %q escapes %s", name, workspace)
	}
	return path, nil
}

// realPath resolves symlinks for the longest existing prefix of p.
func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	dir, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
