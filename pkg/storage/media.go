package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FolderCertificates is the media subdirectory for generated certificate images.
const FolderCertificates = "certificates"

// Media stores generated artifacts on local disk under a root directory and
// addresses them by relative path, so the same paths work as serving URLs.
type Media struct {
	root string
}

// NewMedia creates a media store rooted at dir and ensures the certificates
// subdirectory exists.
func NewMedia(dir string) (*Media, error) {
	if err := os.MkdirAll(filepath.Join(dir, FolderCertificates), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Media{root: dir}, nil
}

// Root returns the media root directory.
func (m *Media) Root() string { return m.root }

// CertificatePath returns the relative media path for a certificate code:
// certificates/certificate-<CODE>.png.
func (m *Media) CertificatePath(code string) string {
	return path.Join(FolderCertificates, "certificate-"+code+".png")
}

// Save writes data to the given relative path, replacing any existing file.
// The write goes through a temp file and rename so readers never observe a
// half-written image.
func (m *Media) Save(relPath string, data []byte) error {
	full, err := m.resolve(relPath)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename media file: %w", err)
	}
	return nil
}

// Open returns a reader for the given relative path. Caller must close it.
func (m *Media) Open(relPath string) (io.ReadCloser, error) {
	full, err := m.resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Exists reports whether the given relative path is present on disk.
func (m *Media) Exists(relPath string) bool {
	full, err := m.resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Remove deletes the file at the given relative path. Missing files are not an error.
func (m *Media) Remove(relPath string) error {
	full, err := m.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

// FullPath returns the absolute path for a relative media path.
func (m *Media) FullPath(relPath string) (string, error) {
	return m.resolve(relPath)
}

// resolve joins relPath under the root and rejects traversal outside it.
func (m *Media) resolve(relPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid media path %q", relPath)
	}
	return filepath.Join(m.root, clean), nil
}
