// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func bufferPtr(b *Buffer) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.buf))
}

func TestBufferBasicOperations(t *testing.T) {
	a := NewRegionAllocator(alignedRegion(1024))
	buf := NewBuffer(a)

	require.Equal(t, 0, buf.Len())
	require.Equal(t, 0, buf.Cap())
	require.Equal(t, "", buf.String())
	require.Equal(t, []byte{}, buf.Bytes())

	n, err := buf.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", buf.String())
	require.True(t, a.Owns(bufferPtr(buf)))

	require.NoError(t, buf.WriteByte(' '))
	require.Equal(t, "hello ", buf.String())

	n, err = buf.WriteString("world")
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 11, buf.Len())
	require.Equal(t, []byte("hello world"), buf.Bytes())
}

func TestBufferReadOperations(t *testing.T) {
	buf := NewBuffer(NewRegionAllocator(alignedRegion(1024)))
	_, err := buf.WriteString("hello world")
	require.NoError(t, err)

	p := make([]byte, 5)
	n, err := buf.Read(p)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), p)
	require.Equal(t, " world", buf.String())

	c, err := buf.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(' '), c)

	p = make([]byte, 10)
	n, err = buf.Read(p)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("world"), p[:n])

	n, err = buf.Read(p)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 0, n)

	_, err = buf.ReadByte()
	require.Equal(t, io.EOF, err)
}

func TestBufferNext(t *testing.T) {
	buf := NewBuffer(NewRegionAllocator(alignedRegion(1024)))
	_, err := buf.WriteString("hello world")
	require.NoError(t, err)

	require.Equal(t, []byte("hello"), buf.Next(5))
	require.Equal(t, " world", buf.String())
	require.Equal(t, []byte(" world"), buf.Next(10))
	require.Equal(t, 0, buf.Len())
	require.Equal(t, []byte{}, buf.Next(5))
	require.Equal(t, []byte{}, buf.Next(-1))
}

func TestBufferTruncate(t *testing.T) {
	buf := NewBuffer(NewRegionAllocator(alignedRegion(1024)))
	_, err := buf.WriteString("hello world")
	require.NoError(t, err)

	buf.Next(1)
	buf.Truncate(4)
	require.Equal(t, "ello", buf.String())

	buf.Truncate(0)
	require.Equal(t, "", buf.String())

	require.Panics(t, func() { buf.Truncate(-1) })
	require.Panics(t, func() { buf.Truncate(10) })
}

func TestBufferResetKeepsStorage(t *testing.T) {
	a := NewRegionAllocator(alignedRegion(1024))
	buf := NewBuffer(a)
	_, err := buf.WriteString("hello world")
	require.NoError(t, err)
	ptr := bufferPtr(buf)

	buf.Reset()
	require.Equal(t, 0, buf.Len())
	require.Equal(t, []byte{}, buf.Bytes())

	_, err = buf.WriteString("new data")
	require.NoError(t, err)
	require.Equal(t, "new data", buf.String())
	require.Equal(t, ptr, bufferPtr(buf))
}

func TestBufferGrowthMovesIntoFallback(t *testing.T) {
	a := NewRegionAllocator(alignedRegion(256))
	buf := NewBuffer(a)

	_, err := buf.WriteString(strings.Repeat("a", 200))
	require.NoError(t, err)
	require.True(t, a.Owns(bufferPtr(buf)))
	require.Equal(t, 200, buf.Cap())

	_, err = buf.WriteString(strings.Repeat("b", 300))
	require.NoError(t, err)
	require.Equal(t, 500, buf.Len())
	require.GreaterOrEqual(t, buf.Cap(), 500)
	require.False(t, a.Owns(bufferPtr(buf)))
	require.Equal(t, strings.Repeat("a", 200)+strings.Repeat("b", 300), buf.String())

	// The region block the buffer grew out of is free again.
	require.Equal(t, 1, a.FreeBlocks())
}

func TestBufferSlidesUnreadBytes(t *testing.T) {
	a := NewRegionAllocator(alignedRegion(1024))
	buf := NewBuffer(a)
	_, err := buf.WriteString("0123456789")
	require.NoError(t, err)
	ptr := bufferPtr(buf)

	buf.Next(8)
	_, err = buf.WriteString("abcdefgh")
	require.NoError(t, err)
	require.Equal(t, "89abcdefgh", buf.String())
	require.Equal(t, ptr, bufferPtr(buf))
	require.Equal(t, 10, buf.Cap())
}

func TestBufferFree(t *testing.T) {
	a := NewRegionAllocator(alignedRegion(1024))
	buf := NewBuffer(a)
	_, err := buf.WriteString("scratch")
	require.NoError(t, err)
	ptr := bufferPtr(buf)

	buf.Free()
	require.Equal(t, 0, buf.Len())
	require.Equal(t, 0, buf.Cap())
	require.Equal(t, 1, a.FreeBlocks())

	_, err = buf.WriteString("again")
	require.NoError(t, err)
	require.Equal(t, ptr, bufferPtr(buf))
}

func TestBufferWithoutAllocator(t *testing.T) {
	buf := NewBuffer(nil)

	_, err := buf.WriteString("hello world")
	require.NoError(t, err)
	_, err = buf.WriteString(strings.Repeat("z", 1000))
	require.NoError(t, err)
	require.Equal(t, 1011, buf.Len())

	p := make([]byte, 5)
	n, err := buf.Read(p)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), p)
	buf.Free()
	require.Equal(t, 0, buf.Len())
}

func TestBufferWriteTo(t *testing.T) {
	buf := NewBuffer(NewRegionAllocator(alignedRegion(1024)))
	_, err := buf.WriteString("hello world")
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := buf.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(11), n)
	require.Equal(t, "hello world", out.String())
	require.Equal(t, 0, buf.Len())

	n, err = buf.WriteTo(&out)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestBufferReadFrom(t *testing.T) {
	a := NewRegionAllocator(alignedRegion(4096))
	buf := NewBuffer(a)
	data := strings.Repeat("interpreter chunk ", 1000)

	n, err := buf.ReadFrom(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, data, buf.String())

	n, err = buf.ReadFrom(strings.NewReader(""))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, len(data), buf.Len())
}

type errorReader struct {
	data []byte
	err  error
}

func (er *errorReader) Read(p []byte) (n int, err error) {
	if len(er.data) == 0 {
		return 0, er.err
	}
	n = copy(p, er.data)
	er.data = er.data[n:]
	return n, nil
}

func TestBufferReadFromWithError(t *testing.T) {
	buf := NewBuffer(NewRegionAllocator(alignedRegion(1024)))
	boom := errors.New("read failed")

	n, err := buf.ReadFrom(&errorReader{data: []byte("partial"), err: boom})
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(7), n)
	require.Equal(t, "partial", buf.String())
}

func TestBufferInterfaces(t *testing.T) {
	var _ io.Writer = (*Buffer)(nil)
	var _ io.Reader = (*Buffer)(nil)
	var _ io.ByteReader = (*Buffer)(nil)
	var _ io.ByteWriter = (*Buffer)(nil)
	var _ io.StringWriter = (*Buffer)(nil)
	var _ io.WriterTo = (*Buffer)(nil)
	var _ io.ReaderFrom = (*Buffer)(nil)
}

func BenchmarkBufferWrite(b *testing.B) {
	a := NewRegionAllocator(make([]byte, 1024*1024))
	data := []byte(strings.Repeat("x", 100))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := NewBuffer(a)
		for j := 0; j < 100; j++ {
			_, _ = buf.Write(data)
		}
		buf.Free()
		a.Reset()
	}
}

func BenchmarkStandardBytesBufferWrite(b *testing.B) {
	data := []byte(strings.Repeat("x", 100))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		for j := 0; j < 100; j++ {
			_, _ = buf.Write(data)
		}
	}
}
