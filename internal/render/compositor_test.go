package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/storage"
)

func newTestCompositor(t *testing.T) (*Compositor, *storage.Media) {
	t.Helper()
	media, err := storage.NewMedia(t.TempDir())
	require.NoError(t, err)
	fonts, err := NewFontCache(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewCompositor(media, fonts, 5*time.Second, zap.NewNop()), media
}

// writeTemplatePNG writes a solid white template image and returns its path.
func writeTemplatePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testCert(code string) *models.Certificate {
	return &models.Certificate{
		ID:            uuid.New(),
		Code:          code,
		RecipientName: "Ada Lovelace",
	}
}

func testTemplate(imagePath string) *models.CertificateTemplate {
	return &models.CertificateTemplate{
		ID:       uuid.New(),
		ImageURL: imagePath,
		Name:     models.DefaultNamePlaceholder(),
		Code:     models.DefaultCodePlaceholder(),
	}
}

func TestRenderWritesDeterministicPNG(t *testing.T) {
	comp, media := newTestCompositor(t)
	tpl := testTemplate(writeTemplatePNG(t, 400, 200))
	cert := testCert("ACM-2026-AB12CD34")

	relPath, err := comp.Render(context.Background(), tpl, cert)
	require.NoError(t, err)
	require.Equal(t, "certificates/certificate-ACM-2026-AB12CD34.png", relPath)

	full, err := media.FullPath(relPath)
	require.NoError(t, err)
	first, err := os.ReadFile(full)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	require.Equal(t, 400, img.Bounds().Dx())
	require.Equal(t, 200, img.Bounds().Dy())

	// Re-render and compare bytes.
	_, err = comp.Render(context.Background(), tpl, cert)
	require.NoError(t, err)
	second, err := os.ReadFile(full)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRenderDrawsText(t *testing.T) {
	comp, media := newTestCompositor(t)
	tpl := testTemplate(writeTemplatePNG(t, 400, 200))
	// Dark text on a white canvas; the anchored regions must not stay blank.
	tpl.Name.Color = "#000000"
	tpl.Code.Color = "#000000"
	cert := testCert("ACM-2026-EF56GH78")

	relPath, err := comp.Render(context.Background(), tpl, cert)
	require.NoError(t, err)

	full, err := media.FullPath(relPath)
	require.NoError(t, err)
	f, err := os.Open(full)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	dark := 0
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && b < 0x8000 {
				dark++
			}
		}
	}
	require.Greater(t, dark, 0, "rendered image has no text pixels")
}

func TestRenderUnreadableTemplate(t *testing.T) {
	comp, _ := newTestCompositor(t)
	tpl := testTemplate(filepath.Join(t.TempDir(), "missing.png"))

	_, err := comp.Render(context.Background(), tpl, testCert("ACM-2026-MISSING1"))
	require.Error(t, err)
}

func TestRenderRejectsNonImageTemplate(t *testing.T) {
	comp, _ := newTestCompositor(t)
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := comp.Render(context.Background(), testTemplate(path), testCert("ACM-2026-NOTIMAGE"))
	require.Error(t, err)
}

// darkColumns returns the min and max x holding a dark pixel, or ok=false.
func darkColumns(img image.Image) (minX, maxX int, ok bool) {
	bounds := img.Bounds()
	minX, maxX = bounds.Max.X, bounds.Min.X
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && b < 0x8000 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				ok = true
			}
		}
	}
	return minX, maxX, ok
}

func TestRenderAlignmentAroundAnchor(t *testing.T) {
	// 200x100 canvas with the anchor at 50%/50%, i.e. pixel (100,50).
	comp, media := newTestCompositor(t)
	tplPath := writeTemplatePNG(t, 200, 100)

	renderAligned := func(alignment, code string) image.Image {
		t.Helper()
		tpl := testTemplate(tplPath)
		tpl.Name = models.PlaceholderSpec{X: 50, Y: 50, FontSize: 60, FontFamily: "Arial", Alignment: alignment, Color: "#000000"}
		cert := testCert(code)
		cert.RecipientName = "HI"
		cert.Code = "" // keep the code placeholder blank
		relPath, err := comp.Render(context.Background(), tpl, cert)
		require.NoError(t, err)
		full, err := media.FullPath(relPath)
		require.NoError(t, err)
		f, err := os.Open(full)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		return img
	}

	left := renderAligned(models.AlignLeft, "ACM-2026-ALIGNLFT")
	minX, _, ok := darkColumns(left)
	require.True(t, ok)
	require.GreaterOrEqual(t, minX, 95, "left-aligned text must start at the anchor")

	right := renderAligned(models.AlignRight, "ACM-2026-ALIGNRGT")
	_, maxX, ok := darkColumns(right)
	require.True(t, ok)
	require.LessOrEqual(t, maxX, 105, "right-aligned text must end at the anchor")

	center := renderAligned(models.AlignCenter, "ACM-2026-ALIGNCTR")
	minX, maxX, ok = darkColumns(center)
	require.True(t, ok)
	require.Less(t, minX, 100, "centered text must straddle the anchor")
	require.Greater(t, maxX, 100, "centered text must straddle the anchor")
}

func TestParseHexColor(t *testing.T) {
	require.Equal(t, color.RGBA{R: 26, G: 26, B: 46, A: 255}, parseHexColor("#1a1a2e"))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, parseHexColor("#fff"))
	require.Equal(t, color.Black, parseHexColor("nonsense"))
}

func TestFontCacheFallsBack(t *testing.T) {
	fonts, err := NewFontCache(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	f := fonts.Resolve("No Such Family")
	require.NotNil(t, f)
	// Same family resolves to the cached instance.
	require.Same(t, f, fonts.Resolve("no such family"))
}
