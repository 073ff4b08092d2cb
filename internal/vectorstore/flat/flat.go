// Package flat is an exact nearest-neighbour index over a dense float32 matrix
// using squared L2 distance, with a compact little-endian binary encoding.
package flat

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"docrag/internal/domain"
)

const (
	magic   = "DRFLAT"
	version = uint32(1)
	// maxRows bounds allocations when decoding untrusted headers.
	maxRows = 1 << 26
	maxDim  = 1 << 16
	// readChunk is the initial matrix capacity when decoding.
	readChunk = 1 << 16
)

// ErrBadEncoding is returned by ReadFrom for malformed input.
var ErrBadEncoding = errors.New("flat: bad encoding")

// Index holds vectors row-major. It is not safe for concurrent mutation;
// callers build it once and then only search it.
type Index struct {
	dim  int
	data []float32
}

// Neighbor is one search result.
type Neighbor struct {
	Row      int
	Distance float64
}

func New(dim int) *Index { return &Index{dim: dim} }

func (x *Index) Dimension() int { return x.dim }

func (x *Index) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Add appends vectors as new rows.
func (x *Index) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) != x.dim {
			return &domain.DimensionMismatchError{Index: x.dim, Query: len(v)}
		}
	}
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	return nil
}

// Row returns the stored vector for row i.
func (x *Index) Row(i int) []float32 {
	return x.data[i*x.dim : (i+1)*x.dim]
}

// Search returns the k nearest rows by squared L2 distance, closest first.
// Equal distances keep row order.
func (x *Index) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != x.dim {
		return nil, &domain.DimensionMismatchError{Index: x.dim, Query: len(query)}
	}
	n := x.Len()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	all := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		all[i] = Neighbor{Row: i, Distance: SquaredL2(query, x.Row(i))}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if k > n {
		k = n
	}
	return all[:k], nil
}

// WriteTo encodes the index as magic, version, dim, rows, then the matrix.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	header := make([]byte, 0, len(magic)+12)
	header = append(header, magic...)
	header = binary.LittleEndian.AppendUint32(header, version)
	header = binary.LittleEndian.AppendUint32(header, uint32(x.dim))
	header = binary.LittleEndian.AppendUint32(header, uint32(x.Len()))
	n, err := bw.Write(header)
	written += int64(n)
	if err != nil {
		return written, err
	}
	buf := make([]byte, 4)
	for _, f := range x.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		n, err := bw.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// EncodedSize is the number of bytes WriteTo produces for rows vectors of dim.
func EncodedSize(dim, rows int) int64 {
	return int64(len(magic)) + 12 + 4*int64(dim)*int64(rows)
}

// ReadFrom decodes an index written by WriteTo, replacing x's contents.
// The matrix grows as rows arrive, so a damaged header cannot force a
// large allocation.
func (x *Index) ReadFrom(r io.Reader) (int64, error) {
	return x.decode(r, -1)
}

// ReadSized is ReadFrom for input of known length. The header must describe
// exactly size bytes or nothing beyond it is read.
func (x *Index) ReadSized(r io.Reader, size int64) (int64, error) {
	return x.decode(r, size)
}

func (x *Index) decode(r io.Reader, size int64) (int64, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(magic)+12)
	n, err := io.ReadFull(br, header)
	read := int64(n)
	if err != nil {
		return read, fmt.Errorf("%w: header: %v", ErrBadEncoding, err)
	}
	if string(header[:len(magic)]) != magic {
		return read, fmt.Errorf("%w: bad magic", ErrBadEncoding)
	}
	rest := header[len(magic):]
	if v := binary.LittleEndian.Uint32(rest[0:4]); v != version {
		return read, fmt.Errorf("%w: unsupported version %d", ErrBadEncoding, v)
	}
	dim := int(binary.LittleEndian.Uint32(rest[4:8]))
	rows := int(binary.LittleEndian.Uint32(rest[8:12]))
	if dim <= 0 || dim > maxDim || rows > maxRows {
		return read, fmt.Errorf("%w: dim=%d rows=%d", ErrBadEncoding, dim, rows)
	}
	if size >= 0 && EncodedSize(dim, rows) != size {
		return read, fmt.Errorf("%w: header describes %d bytes, have %d", ErrBadEncoding, EncodedSize(dim, rows), size)
	}
	total := dim * rows
	data := make([]float32, 0, min(total, readChunk))
	buf := make([]byte, 4)
	for len(data) < total {
		n, err := io.ReadFull(br, buf)
		read += int64(n)
		if err != nil {
			return read, fmt.Errorf("%w: truncated matrix: %v", ErrBadEncoding, err)
		}
		data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return read, fmt.Errorf("%w: trailing data", ErrBadEncoding)
	}
	x.dim = dim
	x.data = data
	return read, nil
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
