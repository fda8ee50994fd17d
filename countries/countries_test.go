package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"US", "US", true},
		{"us", "US", true},
		{"Netherlands", "NL", true},
		{"netherlands", "NL", true},
		{" Canada ", "CA", true},
		{"XX", "", false},
		{"Atlantis", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Code(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestName(t *testing.T) {
	name, ok := Name("de")
	require.True(t, ok)
	assert.Equal(t, "Germany", name)

	_, ok = Name("ZZ")
	assert.False(t, ok)
}

func TestNormalizeList(t *testing.T) {
	codes, err := NormalizeList("us, Netherlands ,CA")
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "NL", "CA"}, codes)

	_, err = NormalizeList("US,Atlantis,XX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Atlantis")
	assert.Contains(t, err.Error(), "XX")

	_, err = NormalizeList(" , ")
	require.Error(t, err)
}
