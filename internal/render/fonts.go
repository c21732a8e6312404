package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontCache resolves template font families to parsed fonts. Families map to
// .ttf files in the fonts directory; anything unresolved falls back to the
// bundled Go Regular so a missing font file never fails a render.
type FontCache struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	parsed   map[string]*opentype.Font
	fallback *opentype.Font
}

// NewFontCache creates a font cache over the given directory.
func NewFontCache(dir string, logger *zap.Logger) (*FontCache, error) {
	fallback, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse fallback font: %w", err)
	}
	return &FontCache{
		dir:      dir,
		logger:   logger,
		parsed:   make(map[string]*opentype.Font),
		fallback: fallback,
	}, nil
}

// Resolve returns the font for a family name, loading and caching it on first
// use.
func (fc *FontCache) Resolve(family string) *opentype.Font {
	key := fontSlug(family)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if f, ok := fc.parsed[key]; ok {
		return f
	}
	f := fc.load(family)
	fc.parsed[key] = f
	return f
}

func (fc *FontCache) load(family string) *opentype.Font {
	for _, name := range []string{fontSlug(family) + ".ttf", family + ".ttf"} {
		data, err := os.ReadFile(filepath.Join(fc.dir, name))
		if err != nil {
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			fc.logger.Warn("unparseable font file", zap.String("file", name), zap.Error(err))
			continue
		}
		return f
	}
	fc.logger.Warn("font family not found, using fallback", zap.String("family", family))
	return fc.fallback
}

func fontSlug(family string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(family)), " ", "-")
}
