package cococonv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeCOCORoot creates <root>/<split> with n images of the given size and the matching panoptic
// label images, and returns the root and the sorted image paths.
func makeCOCORoot(t *testing.T, split string, n, width, height int) (string, []string) {
	t.Helper()
	root := t.TempDir()
	imageDir := filepath.Join(root, split)
	labelDir := filepath.Join(root, "annotations", "panoptic_"+split)
	require.NoError(t, os.MkdirAll(imageDir, 0755))
	require.NoError(t, os.MkdirAll(labelDir, 0755))

	img := imaging.New(width, height, color.NRGBA{40, 80, 120, 255})
	label := imaging.New(width, height, color.NRGBA{1, 0, 0, 255})
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%012d", i+1)
		require.NoError(t, imaging.Save(img, filepath.Join(imageDir, name+".jpg")))
		labelName := name + "_label_ground-truth_coco-panoptic.png"
		require.NoError(t, imaging.Save(label, filepath.Join(labelDir, labelName)))
	}

	images, err := ListImages(root, split, "jpg")
	require.NoError(t, err)
	require.Len(t, images, n)

	return root, images
}

// readTFRecords returns the payloads of all records in the file at path.
func readTFRecords(t *testing.T, path string) [][]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records [][]byte
	for len(data) > 0 {
		require.GreaterOrEqual(t, len(data), 12, "truncated record header in %s", path)
		n := int(binary.LittleEndian.Uint64(data[:8]))
		data = data[12:]
		require.GreaterOrEqual(t, len(data), n+4, "truncated record in %s", path)
		records = append(records, data[:n])
		data = data[n+4:]
	}
	return records
}

func exampleFeatures(t *testing.T, record []byte) map[string]*tensorflow.Feature {
	t.Helper()
	var e tensorflow.Example
	require.NoError(t, proto.Unmarshal(record, &e))
	return e.GetFeatures().GetFeature()
}

func bytesFeature(features map[string]*tensorflow.Feature, key string) []byte {
	values := features[key].GetBytesList().Value
	if len(values) != 1 {
		return nil
	}
	return values[0]
}

func int64Feature(features map[string]*tensorflow.Feature, key string) int64 {
	values := features[key].GetInt64List().Value
	if len(values) != 1 {
		return -1
	}
	return values[0]
}

var testShardOptions = ShardOptions{NumShards: 2, ImageFormat: "jpg", LabelFormat: "png"}

func TestShardSize(t *testing.T) {
	assert.Equal(t, 3, ShardSize(5, 2))
	assert.Equal(t, 1, ShardSize(2, 4))
	assert.Equal(t, 0, ShardSize(0, 3))
	assert.Equal(t, 25, ShardSize(100, 4))
	assert.Equal(t, 7, ShardSize(7, 0))
}

func TestShardPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "train-00001-of-00004.tfrecord"),
		ShardPath("out", "train", 1, 4))
	assert.Equal(t, filepath.Join("out", "val-00000-of-00001.tfrecord"),
		ShardPath("out", "val", 0, 1))
}

func TestPanopticLabelPath(t *testing.T) {
	labelPath := PanopticLabelPath("/data/coco", "val", "png")
	assert.Equal(t,
		filepath.Join("/data/coco", "annotations", "panoptic_val",
			"000000000139_label_ground-truth_coco-panoptic.png"),
		labelPath(filepath.Join("/data/coco", "val", "000000000139.jpg")))
}

func TestWriteShards(t *testing.T) {
	root, images := makeCOCORoot(t, "val", 5, 8, 6)
	outDir := t.TempDir()

	err := WriteShards(images, outDir, "val", testShardOptions, PanopticLabelPath(root, "val", "png"))
	require.NoError(t, err)

	first := readTFRecords(t, ShardPath(outDir, "val", 0, 2))
	second := readTFRecords(t, ShardPath(outDir, "val", 1, 2))
	require.Len(t, first, 3)
	require.Len(t, second, 2)

	// Images keep their order across shards.
	for i, record := range append(first, second...) {
		f := exampleFeatures(t, record)
		assert.Equal(t, images[i], string(bytesFeature(f, "image/filename")))
		assert.Equal(t, "jpg", string(bytesFeature(f, "image/format")))
		assert.Equal(t, "png", string(bytesFeature(f, "image/segmentation/class/format")))
		assert.Equal(t, int64(8), int64Feature(f, "image/width"))
		assert.Equal(t, int64(6), int64Feature(f, "image/height"))
		assert.Equal(t, int64(3), int64Feature(f, "image/channels"))

		imgData, err := os.ReadFile(images[i])
		require.NoError(t, err)
		assert.Equal(t, imgData, bytesFeature(f, "image/encoded"))

		segData, err := os.ReadFile(PanopticLabelPath(root, "val", "png")(images[i]))
		require.NoError(t, err)
		assert.Equal(t, segData, bytesFeature(f, "image/segmentation/class/encoded"))
	}
}

func TestWriteShards_MoreShardsThanImages(t *testing.T) {
	root, images := makeCOCORoot(t, "train", 2, 4, 4)
	outDir := t.TempDir()

	opts := testShardOptions
	opts.NumShards = 4
	err := WriteShards(images, outDir, "train", opts, PanopticLabelPath(root, "train", "png"))
	require.NoError(t, err)

	// Every shard file exists, trailing shards are empty.
	for i, want := range []int{1, 1, 0, 0} {
		path := ShardPath(outDir, "train", i, 4)
		require.FileExists(t, path)
		assert.Len(t, readTFRecords(t, path), want, path)
	}
}

func TestWriteShards_MissingLabel(t *testing.T) {
	root, images := makeCOCORoot(t, "val", 3, 4, 4)
	missing := PanopticLabelPath(root, "val", "png")(images[1])
	require.NoError(t, os.Remove(missing))

	err := WriteShards(images, t.TempDir(), "val", testShardOptions,
		PanopticLabelPath(root, "val", "png"))
	var missingErr *MissingArtifactError
	require.True(t, errors.As(err, &missingErr), "got %v", err)
	assert.Equal(t, missing, missingErr.Path)
	assert.Equal(t, "000000000002", missingErr.ImageID)
}

func TestWriteShards_DimensionMismatch(t *testing.T) {
	root, images := makeCOCORoot(t, "val", 2, 6, 4)
	labelPath := PanopticLabelPath(root, "val", "png")
	require.NoError(t, imaging.Save(imaging.New(4, 6, color.NRGBA{A: 255}), labelPath(images[0])))

	err := WriteShards(images, t.TempDir(), "val", testShardOptions, labelPath)
	var dimErr *DimensionMismatchError
	require.True(t, errors.As(err, &dimErr), "got %v", err)
	assert.Equal(t, "000000000001", dimErr.ImageID)
	assert.Equal(t, 6, dimErr.ImageWidth)
	assert.Equal(t, 4, dimErr.LabelWidth)
}

func TestListImages_MissingSplit(t *testing.T) {
	_, err := ListImages(t.TempDir(), "test", "jpg")
	assert.Error(t, err)
}
