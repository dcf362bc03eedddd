package cococonv

// Rasterisation of object annotations into class, instance and unique id label planes.

import "fmt"

// AnnotationRecord is a single object annotation of an image.
type AnnotationRecord struct {
	ID         int // Annotation id, for diagnostics only.
	ImageID    int
	CategoryID int // Original category id.
	IsCrowd    bool
	Mask       MaskSource
}

// LabelPlane is a 2-D array of label values, stored row-major.
type LabelPlane struct {
	Width, Height int
	Pix           []int32
}

// NewLabelPlane returns a zeroed width x height plane.
func NewLabelPlane(width, height int) *LabelPlane {
	return &LabelPlane{Width: width, Height: height, Pix: make([]int32, width*height)}
}

// At returns the value at (x, y).
func (p *LabelPlane) At(x, y int) int32 {
	return p.Pix[y*p.Width+x]
}

// paint sets all pixels of mask to v.
func (p *LabelPlane) paint(mask *Bitmask, v int32) {
	for i, set := range mask.Pix {
		if set {
			p.Pix[i] = v
		}
	}
}

// Max returns the largest value in the plane.
func (p *LabelPlane) Max() int32 {
	var m int32
	for _, v := range p.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

// LabelPlanes are the three aligned label planes of an image.
type LabelPlanes struct {
	Class    *LabelPlane // Dense category ids, 0 for background or the ignore label.
	Instance *LabelPlane // 1-based instance index within the category.
	UniqueID *LabelPlane // 1-based instance index within the image.
}

// RasterizeOptions control the treatment of crowd annotations.
type RasterizeOptions struct {
	TreatCrowdAsIgnore bool // Paint crowd regions with IgnoreLabel instead of as instances.
	IgnoreLabel        int
}

// Rasterize paints annotations, in order, onto zeroed height x width label planes. Where
// annotations overlap the later one wins.
//
// Crowd annotations are painted with opts.IgnoreLabel in the class plane only if
// opts.TreatCrowdAsIgnore is set; they neither get nor consume instance ids. All other
// annotations get the next instance index of their category and the next unique id.
func Rasterize(annotations []AnnotationRecord, height, width int, opts RasterizeOptions,
	categories *CategoryIDMap) (*LabelPlanes, error) {

	planes := &LabelPlanes{
		Class:    NewLabelPlane(width, height),
		Instance: NewLabelPlane(width, height),
		UniqueID: NewLabelPlane(width, height),
	}

	instanceCounts := make(map[int]int32, categories.Len())
	var uniqueCount int32

	for _, a := range annotations {
		dense, ok := categories.Dense(a.CategoryID)
		if !ok {
			return nil, &UnknownCategoryError{CategoryID: a.CategoryID, AnnotationID: a.ID}
		}
		if a.Mask == nil {
			return nil, fmt.Errorf("annotation %d has no segmentation", a.ID)
		}

		mask, err := a.Mask.Mask(height, width)
		if err != nil {
			return nil, fmt.Errorf("failed to decode the mask of annotation %d: %w", a.ID, err)
		}
		if mask.Width != width || mask.Height != height {
			return nil, fmt.Errorf("annotation %d: %w", a.ID, &DimensionMismatchError{
				ImageWidth: width, ImageHeight: height,
				LabelWidth: mask.Width, LabelHeight: mask.Height,
			})
		}

		if a.IsCrowd && opts.TreatCrowdAsIgnore {
			planes.Class.paint(mask, int32(opts.IgnoreLabel))
			continue
		}

		instanceCounts[dense]++
		uniqueCount++
		planes.Class.paint(mask, int32(dense))
		planes.Instance.paint(mask, instanceCounts[dense])
		planes.UniqueID.paint(mask, uniqueCount)
	}

	return planes, nil
}
