package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCropToFrame(t *testing.T) {
	roi := NewROI(250, -5, 10, 60, EdgeLeft, 10)
	c := roi.CropToFrame(200, 50)

	assert.Equal(t, 10, c.Left)
	assert.Equal(t, 199, c.Right)
	assert.Equal(t, 0, c.Top)
	assert.Equal(t, 49, c.Bottom)
	assert.Equal(t, roi.UID, c.UID)
}

func TestEdgeRotate(t *testing.T) {
	assert.Equal(t, EdgeTop, EdgeLeft.Rotate(1))
	assert.Equal(t, EdgeLeft, EdgeBottom.Rotate(1))
	assert.Equal(t, EdgeRight, EdgeLeft.Rotate(-2))
	assert.Equal(t, EdgeLeft, EdgeLeft.Rotate(4))
}

func TestROIMaps(t *testing.T) {
	roi := NewROI(0, 0, 10, 10, EdgeTop, 0, MapDiameter, MapRadius, MapLight)
	assert.Equal(t, 4, roi.NMaps())
	assert.True(t, roi.Has(MapLight))
	assert.False(t, roi.Has(MapSpine))
	assert.NotEmpty(t, roi.UID)
	assert.NotEqual(t, roi.UID, NewROI(0, 0, 10, 10, EdgeTop, 0).UID)
}

func TestROIYAML(t *testing.T) {
	roi := NewROI(1, 2, 30, 40, EdgeBottom, 87.5, MapSpine, MapRadius)

	out, err := yaml.Marshal(roi)
	require.NoError(t, err)
	assert.Contains(t, string(out), "seeding_edge: bottom")

	var back ROI
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, roi, back)

	err = yaml.Unmarshal([]byte("seeding_edge: diagonal"), &back)
	assert.Error(t, err)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.MinWidth = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.SpineSkipPixels = 2
	p.SpineSmoothPixels = 7
	assert.Equal(t, 3, p.Step())
	assert.Equal(t, 3, p.SmoothWindow())
}
