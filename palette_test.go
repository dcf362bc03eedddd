package cococonv

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelColor(t *testing.T) {
	tests := []struct {
		label uint8
		want  color.RGBA
	}{
		{0, color.RGBA{0, 0, 0, 255}},
		{1, color.RGBA{128, 0, 0, 255}},
		{2, color.RGBA{0, 128, 0, 255}},
		{3, color.RGBA{128, 128, 0, 255}},
		{4, color.RGBA{0, 0, 128, 255}},
		{8, color.RGBA{64, 0, 0, 255}},
		{255, color.RGBA{224, 224, 192, 255}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelColor(tt.label), "label %d", tt.label)
	}
}

func TestSavePalettedPNG(t *testing.T) {
	plane := NewLabelPlane(4, 2)
	copy(plane.Pix, []int32{0, 1, 2, 255, 3, 3, 0, 1})
	path := filepath.Join(t.TempDir(), "label.png")
	require.NoError(t, savePalettedPNG(path, plane))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	paletted, ok := img.(*image.Paletted)
	require.True(t, ok, "decoded %T", img)
	assert.Equal(t, image.Rect(0, 0, 4, 2), paletted.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, uint8(plane.At(x, y)), paletted.ColorIndexAt(x, y))
		}
	}
	assert.Equal(t, LabelColor(1), paletted.At(1, 0))
}

func TestSavePalettedPNG_Overflow(t *testing.T) {
	for _, v := range []int32{256, -1} {
		plane := NewLabelPlane(2, 1)
		plane.Pix[1] = v
		path := filepath.Join(t.TempDir(), "label.png")

		err := savePalettedPNG(path, plane)
		var overflow *PaletteOverflowError
		require.True(t, errors.As(err, &overflow), "got %v", err)
		assert.Equal(t, v, overflow.Value)
		assert.NoFileExists(t, path)
	}
}
