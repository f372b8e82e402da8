package geom

import (
	"errors"
	"fmt"
)

// Geometries with at least this many vertices or indices use 32-bit indices.
const MaxUint16Vertices = 65535

var (
	ErrIndexCount = errors.New("geom: index count must be a multiple of 3")
	ErrIndexRange = errors.New("geom: index references a vertex out of range")
)

// An IndexBuffer lists triangle vertex indices; every 3 consecutive entries
// form a triangle.
type IndexBuffer interface {
	Len() int
	At(i int) uint32
}

// 16-bit index storage.
type Uint16Indices []uint16

func (b Uint16Indices) Len() int        { return len(b) }
func (b Uint16Indices) At(i int) uint32 { return uint32(b[i]) }

// 32-bit index storage.
type Uint32Indices []uint32

func (b Uint32Indices) Len() int        { return len(b) }
func (b Uint32Indices) At(i int) uint32 { return b[i] }

// Pack an index list into the narrowest index buffer able to address
// vertexCount vertices.
func NewIndexBuffer(indices []uint32, vertexCount int) (IndexBuffer, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w; got %d indices", ErrIndexCount, len(indices))
	}

	for i, index := range indices {
		if int(index) >= vertexCount {
			return nil, fmt.Errorf("%w: index %d at offset %d; vertex count %d", ErrIndexRange, index, i, vertexCount)
		}
	}

	if vertexCount >= MaxUint16Vertices || len(indices) >= MaxUint16Vertices {
		return Uint32Indices(append([]uint32(nil), indices...)), nil
	}

	packed := make(Uint16Indices, len(indices))
	for i, index := range indices {
		packed[i] = uint16(index)
	}
	return packed, nil
}

// Generate the implicit index buffer of a non-indexed geometry.
func SequentialIndices(vertexCount int) IndexBuffer {
	count := vertexCount - vertexCount%3
	if count >= MaxUint16Vertices {
		out := make(Uint32Indices, count)
		for i := range out {
			out[i] = uint32(i)
		}
		return out
	}

	out := make(Uint16Indices, count)
	for i := range out {
		out[i] = uint16(i)
	}
	return out
}
