package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempAsset is a uniquely named scratch file owned by one pipeline run.
// Release removes it and is safe to call on every exit path, including
// after a failed write.
type TempAsset struct {
	file *os.File
	path string
}

func newTempAsset(dir string) (*TempAsset, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(dir, "resize-"+uuid.New().String()+".png")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &TempAsset{file: f, path: path}, nil
}

func (t *TempAsset) Path() string {
	return t.path
}

// File exposes the open handle for writing the downloaded bytes.
func (t *TempAsset) File() *os.File {
	return t.file
}

// Reset rewinds the handle so the written bytes can be read back.
func (t *TempAsset) Reset() error {
	_, err := t.file.Seek(0, 0)
	return err
}

// Release closes and removes the asset. Idempotent.
func (t *TempAsset) Release() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	if t.path != "" {
		os.Remove(t.path)
		t.path = ""
	}
}
