package buffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainContiguous(t *testing.T) {
	b1 := WrapBuffer([]byte("hello "))
	b2 := WrapBuffer([]byte("world"))

	c := NewChain()
	c.Append(NewSlice(b1, 0, b1.Len()))
	c.Append(NewSlice(b2, 0, b2.Len()))

	require.Equal(t, 11, c.Len())
	assert.Equal(t, "hello world", string(c.Flatten()))

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)
	assert.Equal(t, "hello world", buf.String())
}

func TestChainSub(t *testing.T) {
	b1 := WrapBuffer([]byte("0123456789"))
	c := NewChain()
	c.Append(NewSlice(b1, 0, 5))
	c.Append(NewSlice(b1, 5, 5))

	sub := c.Sub(3, 4)
	assert.Equal(t, "3456", string(sub.Flatten()))

	sub2 := c.Sub(0, 10)
	assert.Equal(t, "0123456789", string(sub2.Flatten()))
}

func TestBufferPoolRoundTrip(t *testing.T) {
	b := NewBuffer(64)
	assert.Equal(t, 64, b.Len())
	b.Bytes()[0] = 0xAB
	b.Release()

	b2 := NewBuffer(64)
	assert.Equal(t, 64, b2.Len())
	b2.Release()
}
