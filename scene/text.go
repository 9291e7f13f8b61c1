package scene

import (
	"os"

	"github.com/mogaika/bmfont"
	"github.com/pkg/errors"
)

// GlyphQuad is one laid-out character: quad corners relative to the text
// origin (baseline left, y growing down) and texture coordinates into the
// font page.
type GlyphQuad struct {
	Char           rune
	X0, Y0, X1, Y1 float64
	U0, V0, U1, V1 float64
	Page           string
}

func LoadFont(path string) (*bmfont.Font, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read font %q", path)
	}
	font, err := bmfont.NewFontFromBuf(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse font %q", path)
	}
	return font, nil
}

// LayoutText positions the glyph quads for text at the given pixel size and
// returns them with the total advance width. Characters missing from the
// font are skipped.
func LayoutText(font *bmfont.Font, text string, size float64) ([]GlyphQuad, float64, error) {
	base := float64(font.Common.Base)
	if base <= 0 {
		return nil, 0, errors.Errorf("font has non-positive base %v", font.Common.Base)
	}
	scale := size / base

	chars := make(map[rune]*bmfont.Char, len(font.Chars))
	for i := range font.Chars {
		c := &font.Chars[i]
		chars[rune(c.Id)] = c
	}

	var quads []GlyphQuad
	cursor := 0.0
	for _, r := range text {
		c, ok := chars[r]
		if !ok {
			continue
		}
		x0 := cursor + float64(c.Xoffset)*scale
		y0 := (float64(c.Yoffset) - base) * scale
		quads = append(quads, GlyphQuad{
			Char: r,
			X0:   x0,
			Y0:   y0,
			X1:   x0 + float64(c.Width)*scale,
			Y1:   y0 + float64(c.Height)*scale,
			U0:   float64(c.X) / float64(font.Common.ScaleW),
			V0:   float64(c.Y) / float64(font.Common.ScaleH),
			U1:   float64(c.X+c.Width) / float64(font.Common.ScaleW),
			V1:   float64(c.Y+c.Height) / float64(font.Common.ScaleH),
			Page: font.Pages[c.Page],
		})
		cursor += float64(c.Xadvance) * scale
	}
	return quads, cursor, nil
}
