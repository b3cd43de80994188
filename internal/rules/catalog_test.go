package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_Defaults(t *testing.T) {
	c, err := NewCatalog(DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, []string{CityCenter, Commercial, Highway, Residential}, c.Categories())

	th, ok := c.ThresholdFor(Commercial)
	assert.True(t, ok)
	assert.Equal(t, 2, th)

	_, ok = c.ThresholdFor("parkingLot")
	assert.False(t, ok)
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name       string
		thresholds map[string]int
	}{
		{name: "zero threshold", thresholds: map[string]int{"highway": 0}},
		{name: "negative threshold", thresholds: map[string]int{"highway": -1}},
		{name: "blank category", thresholds: map[string]int{" ": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.thresholds)
			assert.Error(t, err)
		})
	}
}

func TestCatalog_IsImmutable(t *testing.T) {
	src := map[string]int{"highway": 4}
	c, err := NewCatalog(src)
	require.NoError(t, err)

	src["highway"] = 1
	src["residential"] = 1
	th, _ := c.ThresholdFor("highway")
	assert.Equal(t, 4, th)
	assert.Equal(t, 1, c.Len())

	cats := c.Categories()
	cats[0] = "mutated"
	assert.Equal(t, []string{"highway"}, c.Categories())
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds(" highway:4, cityCenter:3 ,,")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"highway": 4, "cityCenter": 3}, got)

	for _, bad := range []string{"highway", "highway:x", ":3"} {
		_, err := ParseThresholds(bad)
		assert.Error(t, err, bad)
	}
}
