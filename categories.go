package cococonv

// Category metadata and the mapping between original and dense category ids.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CategoryDescriptor describes a single category of the dataset.
type CategoryDescriptor struct {
	ID      int      `json:"id"`      // Original id, or the dense id in a reduced table.
	IsThing bool     `json:"isthing"` // Things have countable instances, stuff does not.
	Color   [3]uint8 `json:"color"`   // Display color (R, G, B).
	Name    string   `json:"name"`
}

// UnmarshalJSON accepts "isthing" as either a boolean or 0/1.
func (c *CategoryDescriptor) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      int             `json:"id"`
		IsThing json.RawMessage `json:"isthing"`
		Color   [3]uint8        `json:"color"`
		Name    string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch string(bytes.TrimSpace(raw.IsThing)) {
	case "", "null", "0", "false":
		c.IsThing = false
	case "1", "true":
		c.IsThing = true
	default:
		return fmt.Errorf("invalid isthing value %s for category %d", raw.IsThing, raw.ID)
	}
	c.ID = raw.ID
	c.Color = raw.Color
	c.Name = raw.Name

	return nil
}

// defaultCategories is the built-in category table.
var defaultCategories = []CategoryDescriptor{
	{ID: 1, IsThing: false, Color: [3]uint8{0, 113, 188}, Name: "horizontal_surface"},
	{ID: 2, IsThing: false, Color: [3]uint8{216, 82, 24}, Name: "vertical_surface"},
}

// Metadata is the immutable, ordered category table of a dataset.
type Metadata struct {
	categories []CategoryDescriptor
}

// NewMetadata returns Metadata holding a copy of categories. The order of categories defines
// the dense ids.
func NewMetadata(categories []CategoryDescriptor) *Metadata {
	return &Metadata{categories: copyDescriptors(categories)}
}

// DefaultMetadata returns the built-in category table.
func DefaultMetadata() *Metadata {
	return NewMetadata(defaultCategories)
}

// LoadMetadata reads a category table from a JSON file holding an array of descriptors.
func LoadMetadata(path string) (*Metadata, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("metadata file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat metadata file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("metadata file too large: %d bytes (max %d)", info.Size(),
			maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, err
	}
	var categories []CategoryDescriptor
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse metadata from %q: %w", path, err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories in %q", path)
	}

	return NewMetadata(categories), nil
}

// Categories returns a copy of the category table.
func (m *Metadata) Categories() []CategoryDescriptor {
	return copyDescriptors(m.categories)
}

// Len is the number of categories.
func (m *Metadata) Len() int {
	return len(m.categories)
}

// IDMap builds the CategoryIDMap for the table.
func (m *Metadata) IDMap() (*CategoryIDMap, error) {
	return NewCategoryIDMap(m.categories)
}

// WriteLabelMap writes the dense id label map to path in the text format of the TensorFlow
// object detection StringIntLabelMap.
func (m *Metadata) WriteLabelMap(path string) (err error) {
	reduced, err := ReduceDescriptors(m.categories)
	if err != nil {
		return err
	}

	for _, c := range reduced {
		if !isPrintableASCII(c.Name) {
			return fmt.Errorf("category %d: name %q is not printable ASCII", c.ID, c.Name)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create the label map file %q: %w", path, err)
	}
	defer closeWithErrCheck(file, &err)

	// For printable ASCII, %q only escapes '"' and '\\', as the protobuf text format does.
	for _, c := range reduced {
		if _, err := fmt.Fprintf(file, "item {\n  name: %q\n  id: %d\n}\n", c.Name, c.ID); err != nil {
			return fmt.Errorf("failed to write the label map %q: %w", path, err)
		}
	}

	return nil
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func copyDescriptors(descs []CategoryDescriptor) []CategoryDescriptor {
	out := make([]CategoryDescriptor, len(descs))
	copy(out, descs)
	return out
}

// BuildForwardMap maps each original category id to its dense id, the 1-based position of
// the descriptor in descs.
func BuildForwardMap(descs []CategoryDescriptor) (map[int]int, error) {
	forward := make(map[int]int, len(descs))
	for i, d := range descs {
		if prev, found := forward[d.ID]; found {
			return nil, &DuplicateCategoryError{ID: d.ID, Name: d.Name, Previous: descs[prev-1].Name}
		}
		forward[d.ID] = i + 1
	}

	return forward, nil
}

// BuildInverseMap returns the original ids indexed by dense id. Index 0 holds the 0 sentinel
// for unlabeled pixels.
func BuildInverseMap(descs []CategoryDescriptor) []int {
	inverse := make([]int, 1, len(descs)+1)
	for _, d := range descs {
		inverse = append(inverse, d.ID)
	}

	return inverse
}

// ReduceDescriptors returns a copy of descs with every ID replaced by its dense id.
func ReduceDescriptors(descs []CategoryDescriptor) ([]CategoryDescriptor, error) {
	forward, err := BuildForwardMap(descs)
	if err != nil {
		return nil, err
	}

	reduced := copyDescriptors(descs)
	for i := range reduced {
		reduced[i].ID = forward[reduced[i].ID]
	}

	return reduced, nil
}

// CategoryIDMap is the bidirectional mapping between original and dense category ids.
type CategoryIDMap struct {
	forward map[int]int
	inverse []int
}

// NewCategoryIDMap builds the mapping for descs.
func NewCategoryIDMap(descs []CategoryDescriptor) (*CategoryIDMap, error) {
	forward, err := BuildForwardMap(descs)
	if err != nil {
		return nil, err
	}

	return &CategoryIDMap{forward: forward, inverse: BuildInverseMap(descs)}, nil
}

// Dense returns the dense id for an original category id.
func (m *CategoryIDMap) Dense(original int) (int, bool) {
	dense, ok := m.forward[original]
	return dense, ok
}

// Original returns the original id for a dense id, or 0 if dense is out of range.
func (m *CategoryIDMap) Original(dense int) int {
	if dense <= 0 || dense >= len(m.inverse) {
		return 0
	}
	return m.inverse[dense]
}

// Len is the number of mapped categories.
func (m *CategoryIDMap) Len() int {
	return len(m.forward)
}
