package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaSaveAndOpen(t *testing.T) {
	media, err := NewMedia(t.TempDir())
	require.NoError(t, err)

	rel := media.CertificatePath("ACM-2026-AB12CD34")
	require.Equal(t, "certificates/certificate-ACM-2026-AB12CD34.png", rel)
	require.False(t, media.Exists(rel))

	require.NoError(t, media.Save(rel, []byte("payload")))
	require.True(t, media.Exists(rel))

	f, err := media.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestMediaSaveOverwrites(t *testing.T) {
	media, err := NewMedia(t.TempDir())
	require.NoError(t, err)

	rel := media.CertificatePath("ACM-2026-OVERWRIT")
	require.NoError(t, media.Save(rel, []byte("one")))
	require.NoError(t, media.Save(rel, []byte("two")))

	f, err := media.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestMediaRejectsTraversal(t *testing.T) {
	media, err := NewMedia(t.TempDir())
	require.NoError(t, err)

	require.Error(t, media.Save("../escape.png", []byte("nope")))
	_, err = media.Open("../../etc/passwd")
	require.Error(t, err)
}

func TestMediaRemove(t *testing.T) {
	media, err := NewMedia(t.TempDir())
	require.NoError(t, err)

	rel := media.CertificatePath("ACM-2026-REMOVEME")
	require.NoError(t, media.Save(rel, []byte("x")))
	require.NoError(t, media.Remove(rel))
	require.False(t, media.Exists(rel))
}
