package cococonv

// Binary object masks from COCO segmentations.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
)

// Bitmask is a binary mask, stored row-major.
type Bitmask struct {
	Width, Height int
	Pix           []bool
}

// NewBitmask returns an empty width x height mask.
func NewBitmask(width, height int) *Bitmask {
	return &Bitmask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// At reports whether the pixel at (x, y) is set.
func (m *Bitmask) At(x, y int) bool {
	return m.Pix[y*m.Width+x]
}

// Set sets the pixel at (x, y) to v.
func (m *Bitmask) Set(x, y int, v bool) {
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of set pixels.
func (m *Bitmask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Mask returns m itself. It fails if m does not have the requested shape.
func (m *Bitmask) Mask(height, width int) (*Bitmask, error) {
	if m.Width != width || m.Height != height {
		return nil, &DimensionMismatchError{ImageWidth: width, ImageHeight: height,
			LabelWidth: m.Width, LabelHeight: m.Height}
	}
	return m, nil
}

// MaskSource resolves to the binary mask of an object in an image of the given size.
type MaskSource interface {
	Mask(height, width int) (*Bitmask, error)
}

// PolygonMask is a COCO polygon segmentation: one or more polygons, each a flat list of
// x1, y1, x2, y2, ... pixel coordinates. The mask is the union of all polygons.
type PolygonMask [][]float64

// Mask rasterises the polygons. A pixel is set if the polygons cover at least half of it.
func (p PolygonMask) Mask(height, width int) (*Bitmask, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	gc := draw2dimg.NewGraphicContext(canvas)
	gc.SetFillColor(color.RGBA{255, 255, 255, 255})
	gc.SetFillRule(draw2d.FillRuleWinding)

	// Each polygon is filled on its own so that overlapping polygons do not cancel out.
	for i, poly := range p {
		if len(poly)%2 != 0 {
			return nil, fmt.Errorf("polygon %d has an odd number of coordinates", i)
		}
		if len(poly) < 6 {
			continue // Degenerate.
		}

		gc.BeginPath()
		gc.MoveTo(poly[0], poly[1])
		for j := 2; j < len(poly); j += 2 {
			gc.LineTo(poly[j], poly[j+1])
		}
		gc.Close()
		gc.Fill()
	}

	mask := NewBitmask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if canvas.RGBAAt(x, y).A >= 128 {
				mask.Set(x, y, true)
			}
		}
	}

	return mask, nil
}

// RLEMask is a COCO run-length encoded segmentation. Runs alternate between unset and set
// pixels, starting with unset, in column-major order.
type RLEMask struct {
	Size   [2]int // Height, width.
	Counts []int
}

// Mask expands the runs into a bitmask.
func (r *RLEMask) Mask(height, width int) (*Bitmask, error) {
	if r.Size[0] != height || r.Size[1] != width {
		return nil, &DimensionMismatchError{ImageWidth: width, ImageHeight: height,
			LabelWidth: r.Size[1], LabelHeight: r.Size[0]}
	}

	mask := NewBitmask(width, height)
	total := width * height
	pos := 0
	for i, n := range r.Counts {
		if n < 0 || n > total-pos {
			return nil, fmt.Errorf("run %d of length %d exceeds the %dx%d mask", i, n, width,
				height)
		}
		if i%2 == 1 {
			for j := pos; j < pos+n; j++ {
				mask.Set(j/height, j%height, true)
			}
		}
		pos += n
	}

	return mask, nil
}

// decodeRLECounts decodes the compressed string form of COCO RLE counts.
//
// Every count is stored in 5 bit groups, offset by '0', with bit 0x20 marking continuation and
// the last group sign-extended. From the third count on, counts are stored as differences to
// the count two positions earlier.
func decodeRLECounts(s string) ([]int, error) {
	counts := make([]int, 0, len(s)/2)
	for p := 0; p < len(s); {
		var x int64
		k := uint(0)
		more := true
		for more {
			if p >= len(s) {
				return nil, fmt.Errorf("truncated RLE counts at offset %d", p)
			}
			c := int64(s[p]) - 48
			if c < 0 || c > 63 {
				return nil, fmt.Errorf("invalid RLE character %q at offset %d", s[p], p)
			}
			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << (5 * k)
			}
		}
		if m := len(counts); m > 2 {
			x += int64(counts[m-2])
		}
		if x < 0 {
			return nil, fmt.Errorf("negative run %d at index %d in RLE counts %q", x, len(counts), s)
		}
		counts = append(counts, int(x))
	}

	return counts, nil
}

// ParseSegmentation decodes the "segmentation" value of a COCO annotation, which is either a
// list of polygons or an RLE object with integer or compressed string counts.
func ParseSegmentation(raw json.RawMessage) (MaskSource, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty segmentation")
	}

	switch raw[0] {
	case '[':
		var polygons PolygonMask
		if err := json.Unmarshal(raw, &polygons); err != nil {
			return nil, fmt.Errorf("invalid polygon segmentation: %w", err)
		}
		return polygons, nil
	case '{':
		var rle struct {
			Size   [2]int          `json:"size"`
			Counts json.RawMessage `json:"counts"`
		}
		if err := json.Unmarshal(raw, &rle); err != nil {
			return nil, fmt.Errorf("invalid RLE segmentation: %w", err)
		}

		mask := &RLEMask{Size: rle.Size}
		counts := bytes.TrimSpace(rle.Counts)
		if len(counts) > 0 && counts[0] == '"' {
			var s string
			if err := json.Unmarshal(counts, &s); err != nil {
				return nil, fmt.Errorf("invalid RLE counts: %w", err)
			}
			var err error
			if mask.Counts, err = decodeRLECounts(s); err != nil {
				return nil, err
			}
		} else if err := json.Unmarshal(counts, &mask.Counts); err != nil {
			return nil, fmt.Errorf("invalid RLE counts: %w", err)
		}
		return mask, nil
	}

	return nil, fmt.Errorf("unsupported segmentation starting with %q", raw[0])
}
