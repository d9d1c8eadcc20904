package allot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOptionSlicesFields(t *testing.T) {
	sel, ok := DecodeOption("dgvlkkm")
	require.True(t, ok)
	assert.Equal(t, "D", sel.Group)
	assert.Equal(t, "G", sel.Type)
	assert.Equal(t, "VL", sel.Course)
	assert.Equal(t, "KKM", sel.College)
	assert.Equal(t, "", sel.Flag)
}

func TestDecodeOptionWithFlag(t *testing.T) {
	sel, ok := DecodeOption("PGVLKKMR")
	require.True(t, ok)
	assert.Equal(t, "R", sel.Flag)
}

func TestDecodeOptionShortCode(t *testing.T) {
	_, ok := DecodeOption("PGVLKK")
	assert.False(t, ok)

	_, ok = DecodeOption("")
	assert.False(t, ok)
}

func TestEncodeAllotCodeDoublesCategory(t *testing.T) {
	sel := Selector{Group: "B", Type: "G", Course: "VL", College: "KKM"}
	assert.Equal(t, "BGVLKKMSMSM", EncodeAllotCode(sel, CategoryOpen))
	assert.Len(t, EncodeAllotCode(sel, "SC"), 11)
}

func TestCodecRoundTrip(t *testing.T) {
	selectors := []Selector{
		{Group: "D", Type: "G", Course: "VL", College: "KKM"},
		{Group: "P", Type: "S", Course: "MD", College: "TVM", Flag: "R"},
		{Group: "B", Type: "G", Course: "PH", College: "EKM", Flag: "Y"},
	}
	for _, sel := range selectors {
		code := EncodeAllotCode(sel, "SC")
		key, ok := DecodeAllotCode(code)
		require.True(t, ok, "code %q", code)
		assert.Equal(t, sel.Group, key.Group)
		assert.Equal(t, sel.Type, key.Type)
		assert.Equal(t, sel.Course, key.Course)
		assert.Equal(t, sel.College, key.College)
		assert.Equal(t, Category("SC"), key.Category)
	}
}

func TestDecodeAllotCodeTooShort(t *testing.T) {
	_, ok := DecodeAllotCode("DGVLKKM")
	assert.False(t, ok)
}

func TestSeatKeyAllotCode(t *testing.T) {
	key := SeatKey{Group: "D", Type: "G", College: "KKM", Course: "VL", Category: "EZ"}
	assert.Equal(t, "DGVLKKMEZEZ", key.AllotCode())
}
