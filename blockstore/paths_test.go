package blockstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentFilename(t *testing.T) {
	name, err := segmentFilename(Block, 7)
	require.NoError(t, err)
	assert.Equal(t, "blk00007.dat", name)

	name, err = segmentFilename(Undo, 42)
	require.NoError(t, err)
	assert.Equal(t, "blu00042.dat", name)

	name, err = segmentFilename(Merkle, 0)
	require.NoError(t, err)
	assert.Equal(t, "blm00000.dat", name)
}

func TestSegmentFilenameTooLarge(t *testing.T) {
	_, err := segmentFilename(Block, maxSegmentNumber+1)
	assert.ErrorIs(t, err, ErrRange)
}

func TestParseSegmentFilenameRoundTrip(t *testing.T) {
	for _, t2 := range payloadTypes {
		name, err := segmentFilename(t2, 123)
		require.NoError(t, err)

		gotType, gotSegment, ok := parseSegmentFilename(name)
		require.True(t, ok)
		assert.Equal(t, t2, gotType)
		assert.Equal(t, uint32(123), gotSegment)
	}
}

func TestParseSegmentFilenameRejectsGarbage(t *testing.T) {
	cases := []string{
		"not-a-segment",
		"blk1234.dat",
		"blk123456.dat",
		"xyz00001.dat",
		"blk00001.txt",
	}
	for _, name := range cases {
		_, _, ok := parseSegmentFilename(name)
		assert.False(t, ok, "expected %q to be rejected", name)
	}
}
