// Package render draws the simulation space as a PNG choropleth.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"github.com/talgya/geo-schelling/internal/world"
)

// Palette maps region types to fill colours.
type Palette struct {
	Unoccupied colorful.Color
	Majority   colorful.Color
	Minority   colorful.Color
	Border     colorful.Color
}

// MustParseHex parses a "#rrggbb" colour or panics.
func MustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("MustParseHex: " + err.Error())
	}
	return c
}

// DefaultPalette returns the standard colours.
func DefaultPalette() Palette {
	return Palette{
		Unoccupied: MustParseHex("#f0f0f0"),
		Majority:   MustParseHex("#3288bd"),
		Minority:   MustParseHex("#d53e4f"),
		Border:     MustParseHex("#5e5e5e"),
	}
}

// Fill returns the colour for a region. Occupied regions are blended
// towards white by the share of their occupied neighbours that differ, so
// unsettled areas read as paler.
func (p Palette) Fill(t world.RegionType, similar, different int) colorful.Color {
	var base colorful.Color
	switch t {
	case world.Majority:
		base = p.Majority
	case world.Minority:
		base = p.Minority
	default:
		return p.Unoccupied
	}
	if similar+different == 0 {
		return base
	}
	mix := float64(different) / float64(similar+different)
	return base.BlendHcl(colorful.Color{R: 1, G: 1, B: 1}, mix*0.6).Clamped()
}

// PNGExporter renders the final space to an image file.
type PNGExporter struct {
	Path    string
	Size    int // Longest image side in pixels
	Palette Palette
}

// Export implements engine.Exporter.
func (e *PNGExporter) Export(ctx context.Context, space *world.Space) error {
	dc, err := Draw(ctx, space, e.Size, e.Palette)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(e.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := dc.SavePNG(e.Path); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	slog.Info("final state exported", "format", "png", "path", e.Path)
	return nil
}

// Draw paints every region into a new context whose longest side is size
// pixels, preserving the aspect ratio of the space's extent.
func Draw(ctx context.Context, space *world.Space, size int, pal Palette) (*gg.Context, error) {
	if size <= 0 {
		size = 1000
	}
	regions := space.Regions()
	if len(regions) == 0 {
		return nil, fmt.Errorf("nothing to draw")
	}

	bbox := regions[0].Geometry.Bound()
	for _, r := range regions[1:] {
		bbox = bbox.Union(r.Geometry.Bound())
	}
	w, h := bbox.Max[0]-bbox.Min[0], bbox.Max[1]-bbox.Min[1]
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("degenerate extent %v", bbox)
	}

	scale := float64(size) / max(w, h)
	width, height := int(w*scale)+1, int(h*scale)+1
	trans := func(p orb.Point) (float64, float64) {
		return scale * (p[0] - bbox.Min[0]), float64(height) - scale*(p[1]-bbox.Min[1])
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFillRuleEvenOdd()
	dc.SetLineWidth(0.5)

	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		similar, different := 0, 0
		for _, n := range space.Neighbors(r) {
			switch {
			case !n.Type.Occupied() || !r.Type.Occupied():
			case n.Type == r.Type:
				similar++
			default:
				different++
			}
		}

		for _, poly := range r.Geometry {
			for _, ring := range poly {
				dc.NewSubPath()
				for i, p := range ring {
					x, y := trans(p)
					if i == 0 {
						dc.MoveTo(x, y)
					} else {
						dc.LineTo(x, y)
					}
				}
				dc.ClosePath()
			}
		}
		dc.SetColor(pal.Fill(r.Type, similar, different))
		dc.FillPreserve()
		dc.SetColor(pal.Border)
		dc.Stroke()
	}
	return dc, nil
}
