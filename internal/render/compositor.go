package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/storage"
)

// Placeholder font sizes are authored against a 500px-tall reference canvas
// and scale with the actual template height.
const referenceHeight = 500.0

const maxTemplateBytes = 20 << 20

// Compositor draws recipient name and code onto a template image and stores
// the finished certificate as a PNG under the media root. Rendering the same
// certificate against the same template twice produces identical bytes.
type Compositor struct {
	media  *storage.Media
	fonts  *FontCache
	client *http.Client
	logger *zap.Logger
}

// NewCompositor creates a compositor. fetchTimeout bounds template downloads.
func NewCompositor(media *storage.Media, fonts *FontCache, fetchTimeout time.Duration, logger *zap.Logger) *Compositor {
	return &Compositor{
		media:  media,
		fonts:  fonts,
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Render implements the generation service's renderer.
func (c *Compositor) Render(ctx context.Context, tpl *models.CertificateTemplate, cert *models.Certificate) (string, error) {
	base, err := c.loadTemplateImage(ctx, tpl.ImageURL)
	if err != nil {
		return "", fmt.Errorf("load template image: %w", err)
	}

	bounds := base.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, base, bounds.Min, draw.Src)

	if err := c.drawText(canvas, cert.RecipientName, tpl.Name); err != nil {
		return "", fmt.Errorf("draw recipient name: %w", err)
	}
	if err := c.drawText(canvas, cert.Code, tpl.Code); err != nil {
		return "", fmt.Errorf("draw code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("encode certificate: %w", err)
	}
	relPath := c.media.CertificatePath(cert.Code)
	if err := c.media.Save(relPath, buf.Bytes()); err != nil {
		return "", fmt.Errorf("store certificate: %w", err)
	}
	return relPath, nil
}

func (c *Compositor) loadTemplateImage(ctx context.Context, url string) (image.Image, error) {
	var reader io.ReadCloser
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("template fetch returned %d", resp.StatusCode)
		}
		reader = resp.Body
	} else {
		f, err := os.Open(url)
		if err != nil {
			return nil, err
		}
		reader = f
	}
	defer reader.Close()

	img, _, err := image.Decode(io.LimitReader(reader, maxTemplateBytes))
	if err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return img, nil
}

// drawText places one placeholder. X and Y are percentages of the template's
// width and height; the text is centered vertically on that anchor, and the
// alignment decides how it spreads horizontally.
func (c *Compositor) drawText(canvas *image.RGBA, text string, spec models.PlaceholderSpec) error {
	if text == "" {
		return nil
	}
	bounds := canvas.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	size := spec.FontSize * h / referenceHeight
	if size < 1 {
		size = 1
	}
	face, err := opentype.NewFace(c.fonts.Resolve(spec.FontFamily), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("build font face: %w", err)
	}
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(parseHexColor(spec.Color)),
		Face: face,
	}
	width := drawer.MeasureString(text)

	anchorX := fixed.Int26_6(math.Round(spec.X / 100 * w * 64))
	anchorY := spec.Y / 100 * h
	switch spec.Alignment {
	case models.AlignLeft:
		drawer.Dot.X = anchorX
	case models.AlignRight:
		drawer.Dot.X = anchorX - width
	default:
		drawer.Dot.X = anchorX - width/2
	}

	metrics := face.Metrics()
	// Baseline offset that centers the glyph box on the anchor.
	drawer.Dot.Y = fixed.Int26_6(math.Round(anchorY*64)) + (metrics.Ascent-metrics.Descent)/2

	drawer.DrawString(text)
	return nil
}

func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.Black
		}
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.Black
		}
		r, g, b = r*17, g*17, b*17
	default:
		return color.Black
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
