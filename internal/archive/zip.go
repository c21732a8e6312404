package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/acm-certify/backend/internal/models"
)

// FileOpener opens a stored certificate file by its media-relative path.
type FileOpener interface {
	Open(relPath string) (io.ReadCloser, error)
}

// WriteCertificates streams a ZIP of the given certificates to w without
// buffering the archive in memory. Certificates whose file is missing on disk
// are counted as skipped rather than failing the download.
func WriteCertificates(w io.Writer, files FileOpener, certs []models.Certificate) (entries, skipped int, err error) {
	zw := zip.NewWriter(w)
	for _, cert := range certs {
		f, err := files.Open(cert.FilePath)
		if err != nil {
			skipped++
			continue
		}
		entry, err := zw.Create(entryName(&cert))
		if err != nil {
			f.Close()
			return entries, skipped, fmt.Errorf("create zip entry: %w", err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			return entries, skipped, fmt.Errorf("write zip entry: %w", err)
		}
		f.Close()
		entries++
	}
	if err := zw.Close(); err != nil {
		return entries, skipped, fmt.Errorf("close zip: %w", err)
	}
	return entries, skipped, nil
}

func entryName(cert *models.Certificate) string {
	return fmt.Sprintf("%s - %s.png", cert.RecipientName, cert.Code)
}

// Filename builds the download name for a workshop's archive, with whitespace
// runs in the title collapsed to single underscores.
func Filename(workshopTitle string) string {
	title := strings.Join(strings.Fields(workshopTitle), "_")
	if title == "" {
		title = "workshop"
	}
	return title + "_certificates.zip"
}
