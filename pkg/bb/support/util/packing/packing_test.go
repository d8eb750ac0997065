package packing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/packing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	created := time.Unix(1700000000, 0).UTC()

	buf := packing.NewBuffer(64)
	buf.Pack16(0xBEEF)
	buf.Pack32(42)
	buf.Pack64(1 << 40)
	buf.PackTime(created)
	buf.PackStr("hello")
	buf.PackStr("") // absent strings are a bare zero length

	rd := packing.FromBytes(buf.Bytes())

	v16, err := rd.Unpack16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), v16)

	v32, err := rd.Unpack32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v32)

	v64, err := rd.Unpack64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	ts, err := rd.UnpackTime()
	require.NoError(t, err)
	assert.Equal(t, created, ts)

	s, err := rd.UnpackStr()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	s, err = rd.UnpackStr()
	require.NoError(t, err)
	assert.Empty(t, s)

	assert.Zero(t, rd.Remaining())
}

func TestPackTime_ZeroTime(t *testing.T) {
	buf := packing.NewBuffer(8)
	buf.PackTime(time.Time{})

	rd := packing.FromBytes(buf.Bytes())
	ts, err := rd.UnpackTime()
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestUnpack_ShortReadIsTruncated(t *testing.T) {
	rd := packing.FromBytes([]byte{0x01})

	_, err := rd.Unpack16()
	// One byte left, two needed.
	assert.ErrorIs(t, err, exception.ErrTruncated)

	_, err = packing.FromBytes(nil).Unpack32()
	assert.ErrorIs(t, err, exception.ErrTruncated)

	_, err = packing.FromBytes([]byte{1, 2, 3}).Unpack64()
	assert.ErrorIs(t, err, exception.ErrTruncated)
}

func TestUnpackStr_LengthBeyondDataIsTruncated(t *testing.T) {
	buf := packing.NewBuffer(16)
	buf.Pack32(100) // declared length far beyond the actual data
	buf.PackStr("x")

	rd := packing.FromBytes(buf.Bytes())
	_, err := rd.UnpackStr()
	assert.ErrorIs(t, err, exception.ErrTruncated)
}

func TestSetUint32At_Backpatch(t *testing.T) {
	buf := packing.NewBuffer(16)
	buf.Pack16(7)
	off := buf.Offset()
	buf.Pack32(0) // placeholder
	buf.PackStr("rec")
	buf.SetUint32At(off, 3)

	rd := packing.FromBytes(buf.Bytes())
	_, err := rd.Unpack16()
	require.NoError(t, err)
	count, err := rd.Unpack32()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)
}
