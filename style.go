package flint

import "github.com/hajimehoshi/ebiten/v2"

// MeshStyle describes how a drawable's geometry is shaded: an optional custom
// shader, an optional texture, and the sampling parameters. The zero value is
// the untextured default pipeline.
//
// Two styles are batch-compatible when they would produce identical GPU
// state: the same shader identity, and either both untextured or the same
// root texture sampled the same way.
type MeshStyle struct {
	Shader    *ebiten.Shader // nil selects the default pipeline
	Texture   *Texture       // nil renders solid vertex colors
	Smoothing Smoothing
	Repeat    bool // tile texcoords outside the source region
}

// CanBatchWith reports whether geometry drawn with s can merge into the same
// draw call as geometry drawn with other. The relation is symmetric.
func (s MeshStyle) CanBatchWith(other MeshStyle) bool {
	if s.Shader != other.Shader {
		return false
	}
	if s.Texture == nil || other.Texture == nil {
		return s.Texture == nil && other.Texture == nil
	}
	return s.Texture.Root() == other.Texture.Root() &&
		s.Smoothing == other.Smoothing &&
		s.Repeat == other.Repeat
}

// sourceImage returns the image geometry with this style samples from:
// the texture's root image, or the shared white pixel when untextured.
func (s MeshStyle) sourceImage() *ebiten.Image {
	if s.Texture != nil {
		return s.Texture.Image()
	}
	return WhitePixel
}

// ebitenAddress returns the sampling address mode for this style.
func (s MeshStyle) ebitenAddress() ebiten.Address {
	if s.Repeat {
		return ebiten.AddressRepeat
	}
	return ebiten.AddressUnsafe
}

// Batch accumulates compatible geometry into one vertex/index pair, the unit
// of a single draw call. Vertices are copied (transformed into batch space on
// the way in) and index triples are offset by the running vertex count, so
// source buffers stay untouched and reusable.
//
// Indices are 32-bit: a batch routinely exceeds the 65536-vertex ceiling a
// u16 buffer would impose, and the submission layer takes 32-bit indices
// natively.
type Batch struct {
	verts   *VertexBuffer
	indices []uint32
	style   MeshStyle
	blend   BlendMode
	active  bool
}

// NewBatch creates an empty accumulator whose vertex storage uses the given
// alpha encoding.
func NewBatch(premultiplied bool) *Batch {
	return &Batch{verts: NewVertexBuffer(0, premultiplied)}
}

// Begin resets the accumulator and pins the style and blend mode every
// subsequent Add must be compatible with.
func (b *Batch) Begin(style MeshStyle, blend BlendMode) {
	b.verts.Resize(0)
	b.indices = b.indices[:0]
	b.style = style
	b.blend = blend
	b.active = true
}

// CanAccept reports whether geometry with the given style and blend mode may
// be added without breaking the batch.
func (b *Batch) CanAccept(style MeshStyle, blend BlendMode) bool {
	return b.active && b.blend == blend && b.style.CanBatchWith(style)
}

// Add merges geometry into the batch: count vertices from geom starting at
// start, transformed by m (nil for identity), plus the index triples
// rebased onto the batch's running vertex count. indices refer to geom's
// local numbering.
func (b *Batch) Add(geom *VertexBuffer, indices []uint16, m *Matrix, start, count int) {
	if !b.active {
		panic("flint: batch add before Begin")
	}
	base := b.verts.Len()
	b.verts.Resize(base + count)
	geom.CopyTo(b.verts, start, count, base, m)
	for _, idx := range indices {
		b.indices = append(b.indices, uint32(base)+uint32(idx))
	}
}

// Len returns the accumulated vertex count.
func (b *Batch) Len() int {
	return b.verts.Len()
}

// NumIndices returns the accumulated index count.
func (b *Batch) NumIndices() int {
	return len(b.indices)
}

// IsEmpty reports whether nothing has been added since Begin.
func (b *Batch) IsEmpty() bool {
	return len(b.indices) == 0
}

// Vertices exposes the merged vertex buffer. Valid until the next Begin.
func (b *Batch) Vertices() *VertexBuffer {
	return b.verts
}

// Indices exposes the merged index list. Valid until the next Begin.
func (b *Batch) Indices() []uint32 {
	return b.indices
}

// Style returns the batch's pinned style.
func (b *Batch) Style() MeshStyle {
	return b.style
}

// BlendMode returns the batch's pinned blend mode.
func (b *Batch) BlendMode() BlendMode {
	return b.blend
}
