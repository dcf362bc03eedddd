package cococonv

// Directory mode: label planes in a PASCAL VOC style directory layout.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// VOCLayout holds the output directories of the VOC style layout.
type VOCLayout struct {
	Root        string
	ClassDir    string // Palette PNGs of the class plane.
	InstanceDir string // Palette PNGs of the instance plane.
	IDDir       string // NumPy arrays of the unique id plane.
	ManifestDir string // One <split>.txt per split.
}

// NewVOCLayout returns the standard layout below root.
func NewVOCLayout(root string) VOCLayout {
	return VOCLayout{
		Root:        root,
		ClassDir:    filepath.Join(root, "SegmentationClass"),
		InstanceDir: filepath.Join(root, "SegmentationObject"),
		IDDir:       filepath.Join(root, "SegmentationId"),
		ManifestDir: filepath.Join(root, "ImageSets", "Segmentation"),
	}
}

// ManifestPath returns the path of the manifest of split.
func (l VOCLayout) ManifestPath(split string) string {
	return filepath.Join(l.ManifestDir, split+".txt")
}

// Prepare creates the output directories. If clean is set, label directories and the
// manifests of splits from a previous run are removed first, since manifests are only ever
// appended to.
func (l VOCLayout) Prepare(clean bool, splits []string) error {
	if clean {
		remove := []string{l.ClassDir, l.InstanceDir, l.IDDir}
		for _, split := range splits {
			remove = append(remove, l.ManifestPath(split))
		}
		for _, path := range remove {
			log.Printf("Removing %s", path)
			if err := os.RemoveAll(path); err != nil {
				return err
			}
		}
	}

	for _, dir := range []string{l.ClassDir, l.InstanceDir, l.IDDir, l.ManifestDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %q: %w", dir, err)
		}
	}

	return nil
}

// VOCOptions configure ConvertToVOC.
type VOCOptions struct {
	IDWidth   int  // Image ids are zero-padded to this many digits in file names.
	Compress  bool // Write unique id planes as .npz instead of .npy.
	Rasterize RasterizeOptions
	MaxImages int    // Only consider the first MaxImages images; 0 for all.
	ImageDir  string // If set, the dimensions of the image files in ImageDir are verified.
}

// PadImageID zero-pads id to width digits.
func PadImageID(id, width int) string {
	return fmt.Sprintf("%0*d", width, id)
}

// ConvertToVOC rasterises the annotations of each image and writes the label planes to the
// layout, appending the padded image id to the manifest of split. Images are processed in
// order; images without annotations are skipped.
func ConvertToVOC(images []COCOImage, annotationsByImage map[int][]AnnotationRecord,
	layout VOCLayout, split string, opts VOCOptions, categories *CategoryIDMap) (err error) {

	manifest, err := OpenManifest(layout.ManifestPath(split))
	if err != nil {
		return err
	}
	defer closeWithErrCheck(manifest, &err)

	start := time.Now()
	for i, img := range images {
		if opts.MaxImages > 0 && i >= opts.MaxImages {
			break
		}

		annotations := annotationsByImage[img.ID]
		if len(annotations) == 0 {
			log.Debugf("Skipping image %d without annotations", img.ID)
			continue
		}

		id := PadImageID(img.ID, opts.IDWidth)
		if err := convertImageToVOC(img, id, annotations, layout, opts, categories); err != nil {
			return fmt.Errorf("failed to convert image %d: %w", img.ID, err)
		}
		if err := manifest.Append(id); err != nil {
			return err
		}

		if i%100 == 0 && i > 0 {
			log.Printf("%d images processed in %d seconds", i, int(time.Since(start).Seconds()))
		}
	}

	log.Printf("Converted %d %s images to %s", manifest.Len(), split, layout.Root)
	return nil
}

// convertImageToVOC writes the label planes of a single image.
func convertImageToVOC(img COCOImage, id string, annotations []AnnotationRecord,
	layout VOCLayout, opts VOCOptions, categories *CategoryIDMap) error {

	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", img.Width, img.Height)
	}
	if opts.ImageDir != "" {
		if err := verifyImageSize(img, id, opts.ImageDir); err != nil {
			return err
		}
	}

	planes, err := Rasterize(annotations, img.Height, img.Width, opts.Rasterize, categories)
	if err != nil {
		return err
	}
	log.Debugf("Image %s: %d annotations, %d instances", id, len(annotations),
		planes.UniqueID.Max())

	if err := savePalettedPNG(filepath.Join(layout.ClassDir, id+".png"), planes.Class); err != nil {
		return err
	}
	if err := savePalettedPNG(filepath.Join(layout.InstanceDir, id+".png"), planes.Instance); err != nil {
		return err
	}

	if opts.Compress {
		return saveNPZ(filepath.Join(layout.IDDir, id+".npz"), planes.UniqueID)
	}
	return saveNPY(filepath.Join(layout.IDDir, id+".npy"), planes.UniqueID)
}

// verifyImageSize checks that the image file of img has the size recorded in the annotations.
func verifyImageSize(img COCOImage, id, imageDir string) error {
	path := filepath.Join(imageDir, img.FileName)
	if !fileExists(path) {
		return &MissingArtifactError{ImageID: id, Path: path}
	}

	config, _, err := decodeImageConfig(path)
	if err != nil {
		return fmt.Errorf("failed to decode the image metadata of %q: %w", path, err)
	}
	if config.Width != img.Width || config.Height != img.Height {
		return &DimensionMismatchError{
			ImageID:    id,
			ImageWidth: config.Width, ImageHeight: config.Height,
			LabelWidth: img.Width, LabelHeight: img.Height,
		}
	}

	return nil
}
