// Package mesh holds flat triangle mesh buffers as handed to the renderer.
package mesh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

// MaxUint16Vertices is the largest vertex count addressable with 16-bit indices.
const MaxUint16Vertices = 65535

// Buffers is a triangle mesh. Position and Normal hold 3 floats per vertex,
// UV holds 2 and Indices holds 3 per triangle.
type Buffers struct {
	Position []float32 `json:"position"`
	Normal   []float32 `json:"normal"`
	UV       []float32 `json:"uv"`
	Indices  []uint32  `json:"indices"`
}

// VertexCount returns the number of vertices.
func (b *Buffers) VertexCount() int {
	return len(b.Position) / 3
}

// TriangleCount returns the number of triangles.
func (b *Buffers) TriangleCount() int {
	return len(b.Indices) / 3
}

// IsEmpty returns true if the mesh has no triangles.
func (b *Buffers) IsEmpty() bool {
	return len(b.Indices) == 0
}

// IndexWidth returns the index size in bits needed for the current vertex count.
func (b *Buffers) IndexWidth() int {
	if b.VertexCount() <= MaxUint16Vertices {
		return 16
	}
	return 32
}

// Validate checks buffer lengths and index bounds.
func (b *Buffers) Validate() error {
	if len(b.Position)%3 != 0 {
		return fmt.Errorf("position length %d is not a multiple of 3", len(b.Position))
	}
	n := b.VertexCount()
	if len(b.Normal) != len(b.Position) {
		return fmt.Errorf("normal length %d, want %d", len(b.Normal), len(b.Position))
	}
	if b.UV != nil && len(b.UV) != 2*n {
		return fmt.Errorf("uv length %d, want %d", len(b.UV), 2*n)
	}
	if len(b.Indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(b.Indices))
	}
	for i, idx := range b.Indices {
		if int(idx) >= n {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (b *Buffers) Clone() *Buffers {
	return &Buffers{
		Position: append([]float32(nil), b.Position...),
		Normal:   append([]float32(nil), b.Normal...),
		UV:       append([]float32(nil), b.UV...),
		Indices:  append([]uint32(nil), b.Indices...),
	}
}

// ComputeNormals fills Normal with area weighted vertex normals.
func (b *Buffers) ComputeNormals() {
	n := b.VertexCount()
	if cap(b.Normal) >= 3*n {
		b.Normal = b.Normal[:3*n]
		clear(b.Normal)
	} else {
		b.Normal = make([]float32, 3*n)
	}

	p := b.Position
	for f := 0; f+2 < len(b.Indices); f += 3 {
		i1, i2, i3 := b.Indices[f]*3, b.Indices[f+1]*3, b.Indices[f+2]*3
		ax, ay, az := p[i2]-p[i1], p[i2+1]-p[i1+1], p[i2+2]-p[i1+2]
		bx, by, bz := p[i3]-p[i1], p[i3+1]-p[i1+1], p[i3+2]-p[i1+2]
		// The unnormalized cross product carries twice the triangle area.
		cx := ay*bz - az*by
		cy := az*bx - ax*bz
		cz := ax*by - ay*bx
		for _, i := range [3]uint32{i1, i2, i3} {
			b.Normal[i] += cx
			b.Normal[i+1] += cy
			b.Normal[i+2] += cz
		}
	}

	for i := 0; i < len(b.Normal); i += 3 {
		x, y, z := b.Normal[i], b.Normal[i+1], b.Normal[i+2]
		l := math32.Sqrt(x*x + y*y + z*z)
		if l == 0 {
			continue
		}
		b.Normal[i], b.Normal[i+1], b.Normal[i+2] = x/l, y/l, z/l
	}
}

// EncodeIndices returns the indices as little-endian bytes at IndexWidth.
func (b *Buffers) EncodeIndices() []byte {
	if b.IndexWidth() == 16 {
		out := make([]byte, 2*len(b.Indices))
		for i, idx := range b.Indices {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(idx))
		}
		return out
	}
	out := make([]byte, 4*len(b.Indices))
	for i, idx := range b.Indices {
		binary.LittleEndian.PutUint32(out[4*i:], idx)
	}
	return out
}

// EncodeFloats returns v as little-endian float32 bytes.
func EncodeFloats(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

// Plane returns a flat grid over [-1,1]² at z = 0 split into
// widthSegments × heightSegments quads, facing +z.
func Plane(widthSegments, heightSegments int) *Buffers {
	widthSegments = max(widthSegments, 1)
	heightSegments = max(heightSegments, 1)
	cols, rows := widthSegments+1, heightSegments+1

	b := &Buffers{
		Position: make([]float32, 0, 3*cols*rows),
		Normal:   make([]float32, 0, 3*cols*rows),
		UV:       make([]float32, 0, 2*cols*rows),
		Indices:  make([]uint32, 0, 6*widthSegments*heightSegments),
	}
	for j := 0; j < rows; j++ {
		v := float32(j) / float32(heightSegments)
		for i := 0; i < cols; i++ {
			u := float32(i) / float32(widthSegments)
			b.Position = append(b.Position, u*2-1, v*2-1, 0)
			b.Normal = append(b.Normal, 0, 0, 1)
			b.UV = append(b.UV, u, v)
		}
	}
	for j := 0; j < heightSegments; j++ {
		for i := 0; i < widthSegments; i++ {
			a := uint32(j*cols + i)
			c := a + uint32(cols)
			b.Indices = append(b.Indices, a, a+1, c+1, a, c+1, c)
		}
	}
	return b
}
