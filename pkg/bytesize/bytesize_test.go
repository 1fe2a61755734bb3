package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Size
	}{
		{"1024", 1024},
		{"64KB", 64 * KB},
		{"64KiB", 64 * KB},
		{"5MB", 5 * MB},
		{"1.5MB", Size(1.5 * float64(MB))},
		{"2 GB", 2 * GB},
		{"1tb", TB},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1XB", "-5MB"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input Size
		want  string
	}{
		{0, "0B"},
		{512, "512B"},
		{KB, "1KB"},
		{64 * KB, "64KB"},
		{5 * MB, "5MB"},
		{GB, "1GB"},
		{KB + 1, "1025B"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.input))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []Size{64 * KB, 5 * MB, 3 * GB} {
		parsed, err := Parse(Format(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}
