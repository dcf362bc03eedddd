// Converts COCO segmentation datasets to sharded TFRecord files or to a VOC style directory
// layout of class, instance and unique id label planes.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sensorable/cococonv"
	log "github.com/sirupsen/logrus"
)

var (
	mode string // "tfrecord" or "voc".

	cocoRootPath     string   // The COCO dataset root directory.
	outputDirPath    string   // The output directory.
	splits           []string // The dataset splits to convert.
	metadataFilePath string   // Optional JSON category table.
	labelMapFilePath string   // Optional output path for the dense label map.

	numShardFiles int    // The number of shard files per split (tfrecord only).
	imageFormat   string // The image file extension.
	labelFormat   string // The label image file extension (tfrecord only).

	treatCrowdAsIgnore bool // Paint crowd regions with the ignore label.
	nameBits           int  // Zero-padded width of image ids in file names (voc only).
	compressIDs        bool // Write unique id planes as .npz (voc only).
	maxImages          int  // Limit on the images per split (voc only).
	verifyImages       bool // Verify the image sizes against the annotations (voc only).
	cleanOutputs       bool // Remove previous outputs before converting (voc only).
)

func init() {
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  tfrecord options:\t-coco-root <dir> -output-dir <dir>"+
			" [-num-shards] [-label-format]")
		_, _ = fmt.Fprintln(os.Stderr, "  voc options:\t\t-coco-root <dir> [-output-dir <dir>]"+
			" [-name-bits] [-compress] [-max-images] [-verify-images] [-clean]")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	printUsageAndExit := func(msg ...interface{}) {
		log.Print(msg...)
		flag.Usage()
		os.Exit(1)
	}

	flag.StringVar(&mode, "mode", "tfrecord", "The output `format` {tfrecord, voc}")
	flag.StringVar(&cocoRootPath, "coco-root", cocoRootPath, "The COCO dataset root `path`")
	flag.StringVar(&outputDirPath, "output-dir", outputDirPath,
		"The output directory `path` (voc defaults to <coco-root>/voc)")
	splitList := flag.String("splits", "train,val",
		"The comma-separated dataset splits (`split[,...]`) to convert")
	flag.StringVar(&metadataFilePath, "metadata", metadataFilePath,
		"The JSON category table `path` (empty uses the built-in table)")
	flag.StringVar(&labelMapFilePath, "label-map-file", labelMapFilePath,
		"If set, the dense id label map is written to this `path`")

	flag.IntVar(&numShardFiles, "num-shards", 4, "The number of shard files to create per split")
	flag.StringVar(&imageFormat, "image-format", "jpg", "The image file `extension`")
	flag.StringVar(&labelFormat, "label-format", "png", "The label image file `extension`")

	flag.BoolVar(&treatCrowdAsIgnore, "treat-crowd-as-ignore", true,
		"Whether to apply ignore labels to crowd pixels in the class labels")
	flag.IntVar(&nameBits, "name-bits", 7, "The number of `digits` image ids are zero-padded to")
	flag.BoolVar(&compressIDs, "compress", true, "Write unique id arrays as compressed .npz")
	flag.IntVar(&maxImages, "max-images", 0, "Convert at most this many images per split (0 for all)")
	flag.BoolVar(&verifyImages, "verify-images", false,
		"Check the size of every image file against the annotations")
	flag.BoolVar(&cleanOutputs, "clean", true, "Remove the outputs of a previous run first")
	logLevel := flag.String("log-level", "info", "The log `level` {debug, info, warn, error}")

	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		printUsageAndExit("Invalid -log-level: ", *logLevel)
	}
	log.SetLevel(level)

	if mode != "tfrecord" && mode != "voc" {
		printUsageAndExit("Unsupported output format: ", mode)
	}
	if cocoRootPath == "" {
		printUsageAndExit("Missing -coco-root")
	}
	cocoRootPath = filepath.Clean(cocoRootPath)
	if outputDirPath == "" {
		if mode == "tfrecord" {
			printUsageAndExit("Missing -output-dir")
		}
		outputDirPath = filepath.Join(cocoRootPath, "voc")
	}
	outputDirPath = filepath.Clean(outputDirPath)

	for _, s := range strings.Split(*splitList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			splits = append(splits, s)
		}
	}
	if len(splits) == 0 {
		printUsageAndExit("No dataset splits in -splits")
	}

	if numShardFiles <= 0 {
		printUsageAndExit("Invalid -num-shards: ", numShardFiles)
	}
	if nameBits < 0 {
		printUsageAndExit("Invalid -name-bits: ", nameBits)
	}
	if maxImages < 0 {
		printUsageAndExit("Invalid -max-images: ", maxImages)
	}
}

func main() {
	// Load the category table.
	metadata := cococonv.DefaultMetadata()
	info := cococonv.COCOPanopticInfo()
	if metadataFilePath != "" {
		m, err := cococonv.LoadMetadata(metadataFilePath)
		if err != nil {
			log.Fatal("Failed to load the category metadata: ", err)
		}
		metadata = m
		info.NumClasses = m.Len()
		info.ClassHasInstances = nil
	}
	if err := info.Validate(metadata); err != nil {
		log.Fatal("Invalid dataset info: ", err)
	}
	categories, err := metadata.IDMap()
	if err != nil {
		log.Fatal("Failed to build the category mapping: ", err)
	}

	if labelMapFilePath != "" {
		if err := metadata.WriteLabelMap(labelMapFilePath); err != nil {
			log.Fatal(err)
		}
		log.Print("Wrote the label map to ", labelMapFilePath)
	}

	switch mode {
	case "tfrecord":
		err = convertToTFRecord(info)
	case "voc":
		err = convertToVOC(info, categories)
	}
	if err != nil {
		log.Fatal("Conversion failed: ", err)
	}
}

func convertToTFRecord(info cococonv.DatasetInfo) error {
	if err := os.MkdirAll(outputDirPath, 0755); err != nil {
		return err
	}

	opts := cococonv.ShardOptions{
		NumShards:   numShardFiles,
		ImageFormat: imageFormat,
		LabelFormat: labelFormat,
	}
	for _, split := range splits {
		log.Printf("Starts processing dataset split %s", split)

		images, err := cococonv.ListImages(cocoRootPath, split, imageFormat)
		if err != nil {
			return err
		}
		warnOnSplitSize(info, split, len(images))

		labelPath := cococonv.PanopticLabelPath(cocoRootPath, split, labelFormat)
		if err := cococonv.WriteShards(images, outputDirPath, split, opts, labelPath); err != nil {
			return fmt.Errorf("split %s: %w", split, err)
		}
	}

	return nil
}

func convertToVOC(info cococonv.DatasetInfo, categories *cococonv.CategoryIDMap) error {
	layout := cococonv.NewVOCLayout(outputDirPath)
	if err := layout.Prepare(cleanOutputs, splits); err != nil {
		return err
	}

	for _, split := range splits {
		log.Printf("Starts processing dataset split %s", split)

		annotationsPath := filepath.Join(cocoRootPath, "annotations", "instances_"+split+".json")
		data, err := cococonv.LoadCOCO(annotationsPath)
		if err != nil {
			return err
		}
		if ids := data.UnmappedCategories(categories); len(ids) > 0 {
			log.Warnf("Categories %v of %s are not in the category table", ids, annotationsPath)
		}
		warnOnSplitSize(info, split, len(data.Images))

		opts := cococonv.VOCOptions{
			IDWidth:  nameBits,
			Compress: compressIDs,
			Rasterize: cococonv.RasterizeOptions{
				TreatCrowdAsIgnore: treatCrowdAsIgnore,
				IgnoreLabel:        info.IgnoreLabel,
			},
			MaxImages: maxImages,
		}
		if verifyImages {
			opts.ImageDir = filepath.Join(cocoRootPath, split)
		}

		err = cococonv.ConvertToVOC(data.Images, data.AnnotationsByImage(), layout, split, opts,
			categories)
		if err != nil {
			return fmt.Errorf("split %s: %w", split, err)
		}
	}

	return nil
}

func warnOnSplitSize(info cococonv.DatasetInfo, split string, n int) {
	if expected, ok := info.ExpectedSize(split); ok && expected != n {
		log.WithFields(log.Fields{"split": split, "expected": expected, "found": n}).
			Warn("Unexpected number of images")
	}
}
