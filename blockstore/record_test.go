package blockstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRecordRoundTrip(t *testing.T) {
	rec, err := NewBlockRecord(3, 128, 64)
	require.NoError(t, err)

	got, err := DecodeBlockRecord(rec.Encode())
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestBlockRecordRangeCheck(t *testing.T) {
	_, err := NewBlockRecord(-1, 0, 0)
	assert.ErrorIs(t, err, ErrRange)

	_, err = NewBlockRecord(0, 0, 1<<32)
	assert.ErrorIs(t, err, ErrRange)
}

func TestDecodeBlockRecordWrongSize(t *testing.T) {
	_, err := DecodeBlockRecord([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrRange)
}

func TestFileRecordRoundTrip(t *testing.T) {
	rec, err := NewFileRecord(5, 4096, 8192)
	require.NoError(t, err)

	got, err := DecodeFileRecord(rec.Encode())
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFileRecordRangeCheck(t *testing.T) {
	_, err := NewFileRecord(0, -1, 0)
	assert.ErrorIs(t, err, ErrRange)
}

func TestDecodeFileRecordWrongSize(t *testing.T) {
	_, err := DecodeFileRecord(make([]byte, 11))
	assert.ErrorIs(t, err, ErrRange)
}
