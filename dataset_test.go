package cococonv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCOCOPanopticInfo_MatchesDefaultMetadata(t *testing.T) {
	info := COCOPanopticInfo()
	assert.NoError(t, info.Validate(DefaultMetadata()))

	n, ok := info.ExpectedSize("val")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = info.ExpectedSize("minival")
	assert.False(t, ok)
}

func TestDatasetInfo_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(d *DatasetInfo)
	}{
		{"class count", func(d *DatasetInfo) { d.NumClasses = 3 }},
		{"ignore label is a class", func(d *DatasetInfo) { d.IgnoreLabel = 2 }},
		{"ignore label above divisor", func(d *DatasetInfo) { d.PanopticLabelDivisor = 200 }},
		{"instance class out of range", func(d *DatasetInfo) { d.ClassHasInstances = []int{0, 1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := COCOPanopticInfo()
			tt.modify(&info)
			assert.Error(t, info.Validate(DefaultMetadata()))
		})
	}
}
