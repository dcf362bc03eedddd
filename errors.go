package cococonv

// Conversion errors. All of them are fatal for a conversion run.

import "fmt"

// DuplicateCategoryError reports two category descriptors with the same original id.
type DuplicateCategoryError struct {
	ID       int
	Name     string
	Previous string // Name of the descriptor that claimed ID first.
}

func (e *DuplicateCategoryError) Error() string {
	return fmt.Sprintf("duplicate category id %d (%q and %q)", e.ID, e.Previous, e.Name)
}

// UnknownCategoryError reports an annotation that references a category missing from the
// category map.
type UnknownCategoryError struct {
	CategoryID   int
	AnnotationID int
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("annotation %d references unknown category id %d", e.AnnotationID,
		e.CategoryID)
}

// DimensionMismatchError reports an image and a label artifact (or mask) of different sizes.
type DimensionMismatchError struct {
	ImageID                 string
	ImageWidth, ImageHeight int
	LabelWidth, LabelHeight int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch for %q: image is %dx%d, label is %dx%d", e.ImageID,
		e.ImageWidth, e.ImageHeight, e.LabelWidth, e.LabelHeight)
}

// MissingArtifactError reports a label file that does not exist for an image.
type MissingArtifactError struct {
	ImageID string
	Path    string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing label for %q: %s does not exist", e.ImageID, e.Path)
}

// PaletteOverflowError reports a label value that cannot be stored in a palette image.
type PaletteOverflowError struct {
	Path  string
	Value int32
}

func (e *PaletteOverflowError) Error() string {
	return fmt.Sprintf("cannot write %q: label value %d is outside the 256 color palette",
		e.Path, e.Value)
}
