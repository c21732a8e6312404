package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/storage"
)

func seedMedia(t *testing.T, count int) (*storage.Media, []models.Certificate) {
	t.Helper()
	media, err := storage.NewMedia(t.TempDir())
	require.NoError(t, err)

	var certs []models.Certificate
	for i := 0; i < count; i++ {
		code := fmt.Sprintf("ACM-2026-%08d", i)
		rel := media.CertificatePath(code)
		require.NoError(t, media.Save(rel, []byte("png-bytes-"+code)))
		certs = append(certs, models.Certificate{
			Code:          code,
			RecipientName: fmt.Sprintf("Recipient %d", i),
			Status:        models.StatusGenerated,
			FilePath:      rel,
		})
	}
	return media, certs
}

func TestWriteCertificates(t *testing.T) {
	media, certs := seedMedia(t, 3)

	var buf bytes.Buffer
	entries, skipped, err := WriteCertificates(&buf, media, certs)
	require.NoError(t, err)
	require.Equal(t, 3, entries)
	require.Zero(t, skipped)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	require.Equal(t, "Recipient 0 - ACM-2026-00000000.png", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "png-bytes-ACM-2026-00000000", string(data))
}

func TestWriteCertificatesSkipsMissingFiles(t *testing.T) {
	media, certs := seedMedia(t, 3)
	certs = append(certs,
		models.Certificate{Code: "ACM-2026-GONE0001", RecipientName: "Gone", FilePath: "certificates/certificate-ACM-2026-GONE0001.png"},
		models.Certificate{Code: "ACM-2026-GONE0002", RecipientName: "Also Gone", FilePath: "certificates/certificate-ACM-2026-GONE0002.png"},
	)

	var buf bytes.Buffer
	entries, skipped, err := WriteCertificates(&buf, media, certs)
	require.NoError(t, err)
	require.Equal(t, 3, entries)
	require.Equal(t, 2, skipped)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "Intro_to_Go_certificates.zip", Filename("Intro  to \tGo"))
	require.Equal(t, "workshop_certificates.zip", Filename("   "))
}
