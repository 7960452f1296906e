package persist

import (
	"os"
	"path/filepath"
)

// FileSink persists the blob to a single file on disk.
type FileSink struct {
	path string
	perm os.FileMode
}

// NewFileSink builds a FileSink writing to path with mode 0o600.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, perm: 0o600}
}

// Read returns the file's current contents, or (nil, nil) if it does not
// exist yet (the first bootstrap on a fresh install).
func (s *FileSink) Read() ([]byte, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return blob, nil
}

// Write atomically replaces the file's contents: it writes to a temp file
// in the same directory and renames over the target, so a crash mid-write
// never leaves a truncated blob behind.
func (s *FileSink) Write(blob []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".persist-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, s.perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
