package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type storedKey struct {
	Service string `json:"service"`
	APIKey  string `json:"api_key"`
}

// FileSource persists a single provider key on disk.
type FileSource struct {
	path    string
	service string
}

func NewFileSource(path, service string) *FileSource {
	return &FileSource{path: path, service: service}
}

func (f *FileSource) Token(context.Context) (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("read credential file: %w", err)
	}
	var k storedKey
	if err := json.Unmarshal(b, &k); err != nil {
		return "", fmt.Errorf("parse credential file: %w", err)
	}
	if k.Service != "" && f.service != "" && k.Service != f.service {
		return "", fmt.Errorf("credential file holds %q, want %q: %w", k.Service, f.service, ErrNoCredential)
	}
	if strings.TrimSpace(k.APIKey) == "" {
		return "", ErrNoCredential
	}
	return k.APIKey, nil
}

// Store writes key atomically with owner-only permissions.
func (f *FileSource) Store(_ context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("invalid key")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(storedKey{Service: f.service, APIKey: key}, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileSource) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
