package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotDirectory is returned when a path expected to be a directory is not.
var ErrNotDirectory = errors.New("not a directory")

// ValidateRoot returns the absolute, cleaned form of root after checking
// that it exists and is a directory.
func ValidateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("root path validation failed: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root path %s: %w", abs, ErrNotDirectory)
	}

	return filepath.Clean(abs), nil
}

// resolvePath joins a relative argument with the working directory and
// cleans the result. Absolute arguments are used as given.
func resolvePath(workDir, arg string) string {
	if arg == "" {
		return filepath.Clean(workDir)
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg)
	}
	return filepath.Join(workDir, arg)
}

// statDir returns an error unless path is an existing directory.
func statDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// listNames returns the names of the entries directly inside dir.
func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// openFile opens a regular file for reading. Directories are rejected.
func openFile(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: is a directory", path)
	}
	return f, info, nil
}
