package cococonv

// COCO instance annotation files.

import (
	"encoding/json"
	"fmt"
	"os"
)

// COCOImage is an entry of the "images" list of a COCO annotation file.
type COCOImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// COCOCategory is an entry of the "categories" list of a COCO annotation file.
type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

type cocoAnnotation struct {
	ID           int             `json:"id"`
	ImageID      int             `json:"image_id"`
	CategoryID   int             `json:"category_id"`
	IsCrowd      int             `json:"iscrowd"`
	Segmentation json.RawMessage `json:"segmentation"`
}

type cocoFile struct {
	Images      []COCOImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

// COCODataset holds the contents of a COCO annotation file, in file order.
type COCODataset struct {
	Images      []COCOImage
	Annotations []AnnotationRecord
	Categories  []COCOCategory
}

// LoadCOCO reads and parses the COCO instance annotation file at path.
func LoadCOCO(path string) (*COCODataset, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw cocoFile
	if err := json.Unmarshal(enc, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse COCO annotations from %q: %w", path, err)
	}

	data := &COCODataset{
		Images:      raw.Images,
		Annotations: make([]AnnotationRecord, len(raw.Annotations)),
		Categories:  raw.Categories,
	}
	for i, a := range raw.Annotations {
		mask, err := ParseSegmentation(a.Segmentation)
		if err != nil {
			return nil, fmt.Errorf("annotation %d in %q: %w", a.ID, path, err)
		}
		data.Annotations[i] = AnnotationRecord{
			ID:         a.ID,
			ImageID:    a.ImageID,
			CategoryID: a.CategoryID,
			IsCrowd:    a.IsCrowd != 0,
			Mask:       mask,
		}
	}

	return data, nil
}

// AnnotationsByImage groups the annotations by image id, keeping their file order.
func (d *COCODataset) AnnotationsByImage() map[int][]AnnotationRecord {
	byImage := make(map[int][]AnnotationRecord, len(d.Images))
	for _, a := range d.Annotations {
		byImage[a.ImageID] = append(byImage[a.ImageID], a)
	}
	return byImage
}

// UnmappedCategories returns the ids of the file's categories that have no dense id.
func (d *COCODataset) UnmappedCategories(categories *CategoryIDMap) []int {
	var ids []int
	for _, c := range d.Categories {
		if _, ok := categories.Dense(c.ID); !ok {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
