package timeblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCoversLabDay(t *testing.T) {
	blocks := All()
	require.Len(t, blocks, 6)

	// Contiguous and non-overlapping, 07:00 through 17:30.
	assert.Equal(t, 7*60, blocks[0].StartMinute)
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].EndMinute, blocks[i].StartMinute)
	}
	assert.Equal(t, 17*60+30, blocks[len(blocks)-1].EndMinute)

	for _, b := range blocks {
		assert.Equal(t, 105, b.Minutes())
	}
}

func TestLookupDualRepresentation(t *testing.T) {
	byKey, err := Lookup("B2")
	require.NoError(t, err)

	byLabel, err := Lookup("08:45-10:30")
	require.NoError(t, err)

	assert.Equal(t, byKey, byLabel)
	assert.Equal(t, "08:45-10:30", byKey.Label())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("B7")
	var unknown *UnknownBlockError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "B7", unknown.Key)

	_, err = Lookup("07:00-09:00")
	assert.Error(t, err)
}

func TestTotalMinutes(t *testing.T) {
	total, err := TotalMinutes([]string{"B1", "B2", "B3"})
	require.NoError(t, err)
	assert.Equal(t, 315, total)

	_, err = TotalMinutes([]string{"B1", "nope"})
	assert.Error(t, err)
}
