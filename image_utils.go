package cococonv

import (
	"bytes"
	"image"
	_ "image/jpeg" // Register the decoders for image.DecodeConfig.
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
)

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// decodeImageSize decodes the encoded image data and returns its width and height.
func decodeImageSize(data []byte) (width, height int, err error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}

	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
