// Package uploads stages uploaded audio files on the local filesystem.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrTooLarge    = errors.New("upload exceeds size limit")
	ErrInvalidName = errors.New("invalid upload name")
)

// LocalStore writes uploads under <root>/<job id>/<file name>.
type LocalStore struct {
	root     string
	maxBytes int64
}

// NewLocalStore creates root if necessary. maxBytes <= 0 disables the limit.
func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("uploads: make %q absolute: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("uploads: create %q: %w", abs, err)
	}
	return &LocalStore{root: abs, maxBytes: maxBytes}, nil
}

// Root returns the absolute staging directory.
func (s *LocalStore) Root() string { return s.root }

// Save copies r to the job's staging directory and returns the file path.
// A partial file is removed on failure.
func (s *LocalStore) Save(jobID, filename string, r io.Reader) (string, error) {
	name := cleanName(filename)
	if jobID == "" || name == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return "", fmt.Errorf("%w: job %q file %q", ErrInvalidName, jobID, filename)
	}

	dir := filepath.Join(s.root, jobID)
	full := filepath.Join(dir, name)
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer f.Close()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		os.Remove(full)
		return "", err
	}
	return full, nil
}

// RemoveJob deletes the job's staging directory.
func (s *LocalStore) RemoveJob(jobID string) error {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return fmt.Errorf("%w: job %q", ErrInvalidName, jobID)
	}
	return os.RemoveAll(filepath.Join(s.root, jobID))
}

func cleanName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
