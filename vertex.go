package flint

import (
	"fmt"

	"github.com/chewxy/math32"
)

// minPremultipliedAlpha is the smallest alpha a premultiplied buffer stores.
// A fully zeroed premultiplied color cannot be unpremultiplied, so alpha is
// clamped to 5/255 at write time.
const minPremultipliedAlpha = 5.0 / 255.0

// Vertex is one entry of a VertexBuffer: position, texture coordinate, and an
// RGBA color with 8-bit channels. Texture coordinates are in source-image
// pixels, matching the submission layer's convention.
type Vertex struct {
	X, Y       float32
	U, V       float32
	R, G, B, A uint8
}

// defaultVertex is what Resize fills new entries with: zero position and
// texcoord, opaque white color. Opaque white is identical under both alpha
// encodings, so no flag-dependent fill is needed.
var defaultVertex = Vertex{R: 255, G: 255, B: 255, A: 255}

// VertexBuffer is a resizable ordered sequence of vertices. The buffer-level
// premultiplied-alpha flag decides how colors are stored: when set, RGB
// channels are scaled by alpha at write time and unscaled when read back as
// logical color.
//
// A VertexBuffer is exclusively owned by the drawable that produces its
// geometry; batching copies data rather than sharing buffers.
type VertexBuffer struct {
	verts         []Vertex
	premultiplied bool
}

// NewVertexBuffer creates a buffer with count default vertices.
func NewVertexBuffer(count int, premultiplied bool) *VertexBuffer {
	vb := &VertexBuffer{premultiplied: premultiplied}
	vb.Resize(count)
	return vb
}

// Len returns the number of vertices.
func (vb *VertexBuffer) Len() int {
	return len(vb.verts)
}

// Resize sets the vertex count. Growing appends default (opaque white)
// vertices; shrinking truncates without releasing backing storage.
func (vb *VertexBuffer) Resize(count int) {
	if count < 0 {
		panic("flint: negative vertex count")
	}
	if count <= len(vb.verts) {
		vb.verts = vb.verts[:count]
		return
	}
	for len(vb.verts) < count {
		vb.verts = append(vb.verts, defaultVertex)
	}
}

// PremultipliedAlpha reports whether stored colors are premultiplied.
func (vb *VertexBuffer) PremultipliedAlpha() bool {
	return vb.premultiplied
}

// SetPremultipliedAlpha switches the buffer's alpha encoding, rewriting every
// vertex once (premultiplying or unpremultiplying stored RGB).
func (vb *VertexBuffer) SetPremultipliedAlpha(premultiplied bool) {
	if premultiplied == vb.premultiplied {
		return
	}
	for i := range vb.verts {
		v := &vb.verts[i]
		if premultiplied {
			a := float32(v.A) / 255
			if a < minPremultipliedAlpha {
				a = minPremultipliedAlpha
				v.A = uint8(math32.Round(a * 255))
			}
			v.R = uint8(math32.Round(float32(v.R) * a))
			v.G = uint8(math32.Round(float32(v.G) * a))
			v.B = uint8(math32.Round(float32(v.B) * a))
		} else if v.A > 0 {
			inv := 255 / float32(v.A)
			v.R = clampByte(float32(v.R) * inv)
			v.G = clampByte(float32(v.G) * inv)
			v.B = clampByte(float32(v.B) * inv)
		}
	}
	vb.premultiplied = premultiplied
}

func clampByte(f float32) uint8 {
	f = math32.Round(f)
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

func (vb *VertexBuffer) checkIndex(i int) {
	if i < 0 || i >= len(vb.verts) {
		panic(fmt.Sprintf("flint: vertex index %d out of range [0, %d)", i, len(vb.verts)))
	}
}

func (vb *VertexBuffer) checkRange(start, count int) {
	if start < 0 || count < 0 || start+count > len(vb.verts) {
		panic(fmt.Sprintf("flint: vertex range [%d, %d) out of range [0, %d)", start, start+count, len(vb.verts)))
	}
}

// SetPosition sets the position of vertex i.
func (vb *VertexBuffer) SetPosition(i int, x, y float32) {
	vb.checkIndex(i)
	vb.verts[i].X = x
	vb.verts[i].Y = y
}

// Position returns the position of vertex i.
func (vb *VertexBuffer) Position(i int) (x, y float32) {
	vb.checkIndex(i)
	return vb.verts[i].X, vb.verts[i].Y
}

// SetTexCoord sets the texture coordinate of vertex i.
func (vb *VertexBuffer) SetTexCoord(i int, u, v float32) {
	vb.checkIndex(i)
	vb.verts[i].U = u
	vb.verts[i].V = v
}

// TexCoord returns the texture coordinate of vertex i.
func (vb *VertexBuffer) TexCoord(i int) (u, v float32) {
	vb.checkIndex(i)
	return vb.verts[i].U, vb.verts[i].V
}

// minAlpha returns the lowest alpha the buffer can store: 5/255 under
// premultiplication, 0 otherwise.
func (vb *VertexBuffer) minAlpha() float64 {
	if vb.premultiplied {
		return minPremultipliedAlpha
	}
	return 0
}

// SetColor stores c with the given alpha at vertex i, premultiplying when the
// buffer flag is set. Alpha is clamped to [minAlpha, 1]. c's own A channel is
// ignored; alpha is passed separately.
func (vb *VertexBuffer) SetColor(i int, c Color, alpha float64) {
	vb.checkIndex(i)
	vb.storeColor(&vb.verts[i], c, alpha)
}

// SetColorAll stores c with the given alpha at every vertex.
func (vb *VertexBuffer) SetColorAll(c Color, alpha float64) {
	for i := range vb.verts {
		vb.storeColor(&vb.verts[i], c, alpha)
	}
}

func (vb *VertexBuffer) storeColor(v *Vertex, c Color, alpha float64) {
	lo := vb.minAlpha()
	if alpha < lo {
		alpha = lo
	} else if alpha > 1 {
		alpha = 1
	}
	r, g, b := clamp01(c.R), clamp01(c.G), clamp01(c.B)
	if vb.premultiplied {
		r *= alpha
		g *= alpha
		b *= alpha
	}
	v.R = uint8(r*255 + 0.5)
	v.G = uint8(g*255 + 0.5)
	v.B = uint8(b*255 + 0.5)
	v.A = uint8(alpha*255 + 0.5)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ColorAt returns the logical (unpremultiplied) color of vertex i, including
// its alpha in the A component.
func (vb *VertexBuffer) ColorAt(i int) Color {
	vb.checkIndex(i)
	v := vb.verts[i]
	c := Color{
		R: float64(v.R) / 255,
		G: float64(v.G) / 255,
		B: float64(v.B) / 255,
		A: float64(v.A) / 255,
	}
	if vb.premultiplied && v.A > 0 {
		inv := 255 / float64(v.A)
		c.R = clamp01(c.R * inv)
		c.G = clamp01(c.G * inv)
		c.B = clamp01(c.B * inv)
	}
	return c
}

// AlphaAt returns the alpha of vertex i in [0, 1].
func (vb *VertexBuffer) AlphaAt(i int) float64 {
	vb.checkIndex(i)
	return float64(vb.verts[i].A) / 255
}

// SetAlpha sets the alpha of vertex i, keeping the logical color unchanged.
func (vb *VertexBuffer) SetAlpha(i int, alpha float64) {
	vb.checkIndex(i)
	c := vb.ColorAt(i)
	vb.storeColor(&vb.verts[i], c, alpha)
}

// ScaleAlpha multiplies the alpha of count vertices starting at start by
// factor, clamping the result to [minAlpha, 1]. Under premultiplication each
// affected color is unpremultiplied, rescaled, and re-premultiplied; stored
// RGB is never multiplied directly, because clamping would otherwise skew the
// logical color.
func (vb *VertexBuffer) ScaleAlpha(factor float64, start, count int) {
	vb.checkRange(start, count)
	if factor == 1 {
		return
	}
	for i := start; i < start+count; i++ {
		c := vb.ColorAt(i)
		vb.storeColor(&vb.verts[i], c, c.A*factor)
	}
}

// Bounds computes the axis-aligned bounding rectangle of count positions
// starting at start, transforming each through m first when m is non-nil.
// An empty range yields an empty-but-valid zero rectangle.
func (vb *VertexBuffer) Bounds(m *Matrix, start, count int) Rect {
	vb.checkRange(start, count)
	if count == 0 {
		return Rect{}
	}

	minX := math32.Inf(1)
	minY := math32.Inf(1)
	maxX := math32.Inf(-1)
	maxY := math32.Inf(-1)

	for i := start; i < start+count; i++ {
		v := vb.verts[i]
		x, y := v.X, v.Y
		if m != nil {
			fx, fy := m.TransformPoint(float64(x), float64(y))
			x, y = float32(fx), float32(fy)
		}
		minX = math32.Min(minX, x)
		minY = math32.Min(minY, y)
		maxX = math32.Max(maxX, x)
		maxY = math32.Max(maxY, y)
	}

	return Rect{
		X:      float64(minX),
		Y:      float64(minY),
		Width:  float64(maxX - minX),
		Height: float64(maxY - minY),
	}
}

// CopyTo copies count vertices starting at srcStart into target beginning at
// dstOffset. When m is non-nil, positions are transformed during the copy;
// texture coordinates and colors are copied unchanged. Panics when the target
// lacks capacity from dstOffset — clamping would silently corrupt geometry.
// Both buffers must use the same premultiplied-alpha encoding.
func (vb *VertexBuffer) CopyTo(target *VertexBuffer, srcStart, count, dstOffset int, m *Matrix) {
	vb.checkRange(srcStart, count)
	if dstOffset < 0 || dstOffset+count > target.Len() {
		panic(fmt.Sprintf("flint: vertex copy of %d vertices at offset %d exceeds target capacity %d",
			count, dstOffset, target.Len()))
	}
	if debugEnabled() && vb.premultiplied != target.premultiplied {
		panic("flint: vertex copy between buffers with different alpha encodings")
	}

	copy(target.verts[dstOffset:dstOffset+count], vb.verts[srcStart:srcStart+count])
	if m != nil {
		for i := dstOffset; i < dstOffset+count; i++ {
			v := &target.verts[i]
			x, y := m.TransformPoint(float64(v.X), float64(v.Y))
			v.X = float32(x)
			v.Y = float32(y)
		}
	}
}

// At returns the raw stored vertex i, colors in the buffer's own encoding.
func (vb *VertexBuffer) At(i int) Vertex {
	vb.checkIndex(i)
	return vb.verts[i]
}

// TintRange multiplies the stored colors of count vertices starting at start
// by tint. The multiply happens directly in the buffer's encoding: under
// premultiplication RGB picks up tint.A as well, so logical color and alpha
// both scale by the tint.
func (vb *VertexBuffer) TintRange(tint Color, start, count int) {
	vb.checkRange(start, count)
	fa := clamp01(tint.A)
	fr := clamp01(tint.R)
	fg := clamp01(tint.G)
	fb := clamp01(tint.B)
	if vb.premultiplied {
		fr *= fa
		fg *= fa
		fb *= fa
	}
	for i := start; i < start+count; i++ {
		v := &vb.verts[i]
		v.R = uint8(float64(v.R)*fr + 0.5)
		v.G = uint8(float64(v.G)*fg + 0.5)
		v.B = uint8(float64(v.B)*fb + 0.5)
		v.A = uint8(float64(v.A)*fa + 0.5)
	}
}

// TransformPositions applies m to count positions in place starting at start.
func (vb *VertexBuffer) TransformPositions(m *Matrix, start, count int) {
	vb.checkRange(start, count)
	for i := start; i < start+count; i++ {
		v := &vb.verts[i]
		x, y := m.TransformPoint(float64(v.X), float64(v.Y))
		v.X = float32(x)
		v.Y = float32(y)
	}
}
