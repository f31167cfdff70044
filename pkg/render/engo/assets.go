// pkg/render/engo/assets.go
package engo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/vector"

	"github.com/opd-ai/go-dronesim/pkg/render"
)

const (
	markerSize = 16
	fontURL    = "dronesim/gomono.ttf"
)

// markerColors tints each drawable kind.
var markerColors = map[render.DrawableKind]color.NRGBA{
	render.KindBody:       {255, 255, 255, 255},
	render.KindAttachment: {255, 200, 0, 255},
	render.KindTerrain:    {60, 160, 60, 255},
	render.KindScenery:    {120, 180, 255, 255},
}

// AssetManager owns the marker textures and the HUD font. Textures are
// generated, not loaded from disk.
type AssetManager struct {
	sprites map[render.DrawableKind]common.Drawable
	font    *common.Font
}

// NewAssetManager returns an empty manager; call LoadAssets once a GL
// context exists.
func NewAssetManager() *AssetManager {
	return &AssetManager{sprites: make(map[render.DrawableKind]common.Drawable)}
}

// LoadAssets uploads one marker texture per drawable kind and prepares the
// HUD font.
func (am *AssetManager) LoadAssets() error {
	for kind := range markerColors {
		img := markerImage(kind, markerSize)
		am.sprites[kind] = common.NewTextureSingle(common.NewImageObject(img))
	}

	if err := engo.Files.LoadReaderData(fontURL, bytes.NewReader(gomono.TTF)); err != nil {
		return fmt.Errorf("loading HUD font: %w", err)
	}
	am.font = &common.Font{URL: fontURL, FG: color.White, Size: 14}
	if err := am.font.CreatePreloaded(); err != nil {
		return fmt.Errorf("preparing HUD font: %w", err)
	}
	return nil
}

// Sprite returns the texture for kind, falling back to the body marker.
func (am *AssetManager) Sprite(kind render.DrawableKind) common.Drawable {
	if s, ok := am.sprites[kind]; ok {
		return s
	}
	return am.sprites[render.KindBody]
}

// Font returns the HUD font, or nil before LoadAssets.
func (am *AssetManager) Font() *common.Font {
	return am.font
}

// markerImage rasterizes the marker shape for kind: a triangle for the body,
// a diamond for attachments, a square for terrain and a disc for scenery.
func markerImage(kind render.DrawableKind, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	s := float32(size)

	z := vector.NewRasterizer(size, size)
	switch kind {
	case render.KindBody:
		z.MoveTo(s/2, 0)
		z.LineTo(s, s)
		z.LineTo(0, s)
	case render.KindAttachment:
		z.MoveTo(s/2, 0)
		z.LineTo(s, s/2)
		z.LineTo(s/2, s)
		z.LineTo(0, s/2)
	case render.KindTerrain:
		z.MoveTo(0, 0)
		z.LineTo(s, 0)
		z.LineTo(s, s)
		z.LineTo(0, s)
	default:
		const segments = 24
		r := s / 2
		z.MoveTo(s, r)
		for i := 1; i < segments; i++ {
			a := 2 * math.Pi * float64(i) / segments
			z.LineTo(r+r*float32(math.Cos(a)), r+r*float32(math.Sin(a)))
		}
	}
	z.ClosePath()

	c, ok := markerColors[kind]
	if !ok {
		c = markerColors[render.KindBody]
	}
	z.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{})
	return img
}
