package cococonv

// Dataset properties.

import "fmt"

// DatasetInfo describes the properties of a dataset that the converters and downstream
// training code rely on.
type DatasetInfo struct {
	Name          string
	SplitsToSizes map[string]int // Expected number of images per split.
	NumClasses    int
	IgnoreLabel   int // Label value for pixels that are ignored in training.

	// Used to encode panoptic labels as semantic*divisor + instance.
	PanopticLabelDivisor int
	ClassHasInstances    []int // Dense ids of classes with instance annotations.

	IsVideoDataset bool
	Colormap       string
	IsDepthDataset bool
}

// COCOPanopticInfo returns the properties of the COCO panoptic dataset.
func COCOPanopticInfo() DatasetInfo {
	return DatasetInfo{
		Name:                 "coco_panoptic",
		SplitsToSizes:        map[string]int{"train": 118, "val": 5, "test": 30},
		NumClasses:           2,
		IgnoreLabel:          255,
		PanopticLabelDivisor: 256,
		ClassHasInstances:    []int{1, 2},
		Colormap:             "coco",
	}
}

// Validate checks that the dataset properties agree with the category table.
func (d DatasetInfo) Validate(m *Metadata) error {
	if d.NumClasses != m.Len() {
		return fmt.Errorf("dataset %q has %d classes but the metadata defines %d", d.Name,
			d.NumClasses, m.Len())
	}
	if d.IgnoreLabel > 0 && d.IgnoreLabel <= d.NumClasses {
		return fmt.Errorf("ignore label %d collides with a class id", d.IgnoreLabel)
	}
	if d.PanopticLabelDivisor > 0 && d.IgnoreLabel >= d.PanopticLabelDivisor {
		return fmt.Errorf("ignore label %d does not fit below the panoptic label divisor %d",
			d.IgnoreLabel, d.PanopticLabelDivisor)
	}
	for _, c := range d.ClassHasInstances {
		if c < 1 || c > d.NumClasses {
			return fmt.Errorf("instance class %d is not a dense class id", c)
		}
	}

	return nil
}

// ExpectedSize returns the expected number of images in split, if known.
func (d DatasetInfo) ExpectedSize(split string) (int, bool) {
	n, ok := d.SplitsToSizes[split]
	return n, ok
}
