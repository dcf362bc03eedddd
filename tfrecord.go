package cococonv

// Shard mode: images paired with their panoptic label images in sharded TFRecord files.

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	log "github.com/sirupsen/logrus"
)

// LabelPathFunc returns the path of the label image for an image file.
type LabelPathFunc func(imagePath string) string

// ShardOptions configure WriteShards.
type ShardOptions struct {
	NumShards   int
	ImageFormat string // Stored as image/format, e.g. "jpg".
	LabelFormat string // Stored as image/segmentation/class/format, e.g. "png".
}

// ListImages returns the sorted paths of the images of split, found in <cocoRoot>/<split>
// with file extension ext (without the dot).
func ListImages(cocoRoot, split, ext string) ([]string, error) {
	return filesByExtInDir(filepath.Join(cocoRoot, split), "."+ext)
}

// PanopticLabelPath returns a LabelPathFunc resolving image files of split to their panoptic
// label images in <cocoRoot>/annotations/panoptic_<split>.
func PanopticLabelPath(cocoRoot, split, labelFormat string) LabelPathFunc {
	dir := filepath.Join(cocoRoot, "annotations", "panoptic_"+split)
	return func(imagePath string) string {
		name := baseNoExt(imagePath) + "_label_ground-truth_coco-panoptic." + labelFormat
		return filepath.Join(dir, name)
	}
}

// ShardPath returns the path of shard shardIdx of numShards for split.
func ShardPath(outputDir, split string, shardIdx, numShards int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s-%05d-of-%05d.tfrecord", split, shardIdx,
		numShards))
}

// ShardSize returns the number of images per shard, ceil(total/numShards). The last shards
// may hold fewer images.
func ShardSize(total, numShards int) int {
	if numShards <= 0 {
		numShards = 1
	}
	return (total + numShards - 1) / numShards
}

// WriteShards converts the images and their label images to opts.NumShards TFRecord files in
// outputDir. Images are assigned to shards in contiguous blocks of ShardSize images.
//
// The first error aborts the conversion; shards written up to that point are left in place.
func WriteShards(imagePaths []string, outputDir, split string, opts ShardOptions,
	labelPath LabelPathFunc) (err error) {

	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = 1
	}
	total := len(imagePaths)
	shardSize := ShardSize(total, numShards)

	for shardIdx := 0; shardIdx < numShards; shardIdx++ {
		start := min(shardIdx*shardSize, total)
		end := min(start+shardSize, total)

		path := ShardPath(outputDir, split, shardIdx, numShards)
		if err := writeShard(path, imagePaths[start:end], start, total, opts, labelPath); err != nil {
			return err
		}
		log.Printf("Wrote %d examples to %s", end-start, path)
	}

	return nil
}

// writeShard writes the examples for imagePaths to a new TFRecord file at path. offset is the
// index of imagePaths[0] among all total images.
func writeShard(path string, imagePaths []string, offset, total int, opts ShardOptions,
	labelPath LabelPathFunc) (err error) {

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create shard at %q: %w", path, err)
	}
	defer closeWithErrCheck(file, &err)

	w := bufio.NewWriter(file)
	for i, imagePath := range imagePaths {
		log.Debugf("Converting image %d/%d to %s", offset+i+1, total, path)

		tfExample, err := toTFExample(imagePath, labelPath(imagePath), opts)
		if err != nil {
			return err
		}
		if err := writeTFRecordExample(w, tfExample); err != nil {
			return fmt.Errorf("failed to write example for %q: %w", imagePath, err)
		}
	}

	return w.Flush()
}

// toTFExample reads the image and its label image and packages both into an example. The two
// must have identical dimensions.
func toTFExample(imagePath, labelPath string, opts ShardOptions) (*tensorflow.Example, error) {
	imageID := baseNoExt(imagePath)

	imgData, err := readFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read the image: %w", err)
	}
	width, height, err := decodeImageSize(imgData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", imagePath, err)
	}

	if !fileExists(labelPath) {
		return nil, &MissingArtifactError{ImageID: imageID, Path: labelPath}
	}
	segData, err := readFile(labelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read the label: %w", err)
	}
	segWidth, segHeight, err := decodeImageSize(segData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", labelPath, err)
	}

	if width != segWidth || height != segHeight {
		return nil, &DimensionMismatchError{
			ImageID:    imageID,
			ImageWidth: width, ImageHeight: height,
			LabelWidth: segWidth, LabelHeight: segHeight,
		}
	}

	return imageSegToExample(imgData, imagePath, height, width, segData, opts), nil
}

// imageSegToExample builds the example for an image and its segmentation label image.
func imageSegToExample(imgData []byte, filename string, height, width int, segData []byte,
	opts ShardOptions) *tensorflow.Example {

	f := make(map[string]interface{}, 8)
	f["image/encoded"] = imgData
	f["image/filename"] = filename
	f["image/format"] = opts.ImageFormat
	f["image/height"] = height
	f["image/width"] = width
	f["image/channels"] = 3
	f["image/segmentation/class/encoded"] = segData
	f["image/segmentation/class/format"] = opts.LabelFormat

	return example.New(f)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}
