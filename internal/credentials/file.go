package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// fileContents is the on-disk layout of a token file.
type fileContents struct {
	AccessToken string `json:"accessToken"`
	SavedAt     int64  `json:"savedAt,omitempty"`
}

// File keeps the token in a JSON file readable only by the owner. It is re-read
// on every Token call so an external login flow can rotate it.
type File struct {
	Path string
	now  func() time.Time
}

// NewFile returns a file-backed source.
func NewFile(path string) *File {
	return &File{Path: path, now: time.Now}
}

func (f *File) Token(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}

	var c fileContents
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", fmt.Errorf("parse credential file %s: %w", f.Path, err)
	}
	return usable(c.AccessToken, f.now())
}

func (f *File) Invalidate() {}

// Store writes tok with 0600 permissions, creating parent directories.
func (f *File) Store(tok string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	raw, err := json.Marshal(fileContents{AccessToken: tok, SavedAt: f.now().UnixMilli()})
	if err != nil {
		return err
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

// Delete removes the token file. A missing file is not an error.
func (f *File) Delete() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete credential file: %w", err)
	}
	return nil
}
