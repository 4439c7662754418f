package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrSearchFile = errors.New("could not search file")

// SearchFileUpward looks for a regular file named fileName in dir and its ancestors,
// and returns the path of the nearest one.
func SearchFileUpward(dir string, fileName string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSearchFile, err)
	}
	for {
		path := filepath.Join(abs, fileName)
		if s, err := os.Stat(path); err == nil && s.Mode().IsRegular() {
			return path, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w: %s is not found in %s or its parents", ErrSearchFile, fileName, dir)
		}
		abs = parent
	}
}
