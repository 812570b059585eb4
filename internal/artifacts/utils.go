package artifacts

import (
	"errors"
	"path/filepath"
	"strings"
)

const fileScheme = "file://"

// FileURI returns the file:// URI of path, made absolute when possible.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fileScheme + path
}

// PathFromURI returns the local path of a file:// URI.
func PathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return "", errors.New("not a file:// URI")
	}
	return strings.TrimPrefix(uri, fileScheme), nil
}
