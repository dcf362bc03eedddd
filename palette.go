package cococonv

// Palette images for label planes.

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// labelPalette is the colormap shared by all written label images, so that a label value has
// the same color in every file. It is the PASCAL VOC colormap: the bits of the label value are
// spread, highest first, over the R, G and B channels.
var labelPalette = newLabelPalette(256)

func newLabelPalette(n int) color.Palette {
	p := make(color.Palette, n)
	for i := 0; i < n; i++ {
		var r, g, b uint8
		id := i
		for j := 0; j < 8; j++ {
			r |= uint8(id&1) << (7 - j)
			g |= uint8((id>>1)&1) << (7 - j)
			b |= uint8((id>>2)&1) << (7 - j)
			id >>= 3
		}
		p[i] = color.RGBA{r, g, b, 255}
	}
	return p
}

// LabelColor returns the palette color of a label value.
func LabelColor(label uint8) color.RGBA {
	return labelPalette[label].(color.RGBA)
}

// toPaletted converts the plane to a palette image.
func (p *LabelPlane) toPaletted(path string) (*image.Paletted, error) {
	img := image.NewPaletted(image.Rect(0, 0, p.Width, p.Height), labelPalette)
	for i, v := range p.Pix {
		if v < 0 || int(v) >= len(labelPalette) {
			return nil, &PaletteOverflowError{Path: path, Value: v}
		}
		img.Pix[i] = uint8(v)
	}
	return img, nil
}

// savePalettedPNG writes the plane to path as a palette PNG, using the label colormap.
func savePalettedPNG(path string, plane *LabelPlane) (err error) {
	img, err := plane.toPaletted(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(f, &err)

	return png.Encode(f, img)
}
