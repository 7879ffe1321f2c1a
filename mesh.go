package flint

import "math"

// quadIndices is the two-triangle index layout shared by every quad. Copied
// into nodes so batching can rebase without aliasing surprises.
var quadIndices = []uint16{0, 1, 2, 1, 3, 2}

// buildQuad creates the geometry for an untextured w x h rectangle: four
// opaque-white premultiplied vertices anchored at the origin, texcoords on
// the shared white pixel.
func buildQuad(w, h float64) (*VertexBuffer, []uint16) {
	vb := NewVertexBuffer(4, true)
	vb.SetPosition(0, 0, 0)
	vb.SetPosition(1, float32(w), 0)
	vb.SetPosition(2, 0, float32(h))
	vb.SetPosition(3, float32(w), float32(h))
	for i := 0; i < 4; i++ {
		vb.SetTexCoord(i, 0.5, 0.5)
	}
	inds := make([]uint16, len(quadIndices))
	copy(inds, quadIndices)
	return vb, inds
}

// buildTexturedQuad creates a quad sized to the texture's logical dimensions,
// with texcoords covering its region in root-native pixels.
func buildTexturedQuad(tex *Texture) (*VertexBuffer, []uint16) {
	vb := NewVertexBuffer(4, tex.PremultipliedAlpha())
	w := float32(tex.Width())
	h := float32(tex.Height())
	r := tex.Region()
	u0, v0 := float32(r.X), float32(r.Y)
	u1, v1 := float32(r.X+r.Width), float32(r.Y+r.Height)

	vb.SetPosition(0, 0, 0)
	vb.SetPosition(1, w, 0)
	vb.SetPosition(2, 0, h)
	vb.SetPosition(3, w, h)
	vb.SetTexCoord(0, u0, v0)
	vb.SetTexCoord(1, u1, v0)
	vb.SetTexCoord(2, u0, v1)
	vb.SetTexCoord(3, u1, v1)

	inds := make([]uint16, len(quadIndices))
	copy(inds, quadIndices)
	return vb, inds
}

// SetTexture swaps the texture of a quad node created by NewImage or NewQuad,
// rewriting positions and texcoords for the new region. Pass nil to revert to
// an untextured quad (positions keep the previous size).
func (n *Node) SetTexture(tex *Texture) {
	if n.Kind != KindQuad {
		panic("flint: SetTexture on a non-quad node")
	}
	if tex == nil {
		n.Style.Texture = nil
		for i := 0; i < 4; i++ {
			n.Geometry.SetTexCoord(i, 0.5, 0.5)
		}
		return
	}
	n.Style.Texture = tex
	w := float32(tex.Width())
	h := float32(tex.Height())
	r := tex.Region()
	n.Geometry.SetPosition(0, 0, 0)
	n.Geometry.SetPosition(1, w, 0)
	n.Geometry.SetPosition(2, 0, h)
	n.Geometry.SetPosition(3, w, h)
	n.Geometry.SetTexCoord(0, float32(r.X), float32(r.Y))
	n.Geometry.SetTexCoord(1, float32(r.X+r.Width), float32(r.Y))
	n.Geometry.SetTexCoord(2, float32(r.X), float32(r.Y+r.Height))
	n.Geometry.SetTexCoord(3, float32(r.X+r.Width), float32(r.Y+r.Height))
}

// NewPolygon creates an untextured polygon mesh from the given points using
// fan triangulation (convex polygons). Color comes from the vertex colors.
func NewPolygon(name string, points []Vec2, c Color) *Node {
	vb, inds := buildPolygonFan(points, nil)
	if vb == nil {
		vb = NewVertexBuffer(0, true)
	}
	vb.SetColorAll(c, c.A)
	return NewMesh(name, vb, inds, MeshStyle{})
}

// NewPolygonTextured creates a textured polygon mesh. Texcoords map the
// points' bounding box onto the texture region, top-left to bottom-right.
func NewPolygonTextured(name string, points []Vec2, tex *Texture) *Node {
	vb, inds := buildPolygonFan(points, tex)
	if vb == nil {
		vb = NewVertexBuffer(0, tex.PremultipliedAlpha())
	}
	return NewMesh(name, vb, inds, MeshStyle{Texture: tex})
}

// NewCircle creates an untextured circle mesh centered at the origin,
// fan-triangulated with the given segment count (minimum 3).
func NewCircle(name string, radius float64, segments int, c Color) *Node {
	if segments < 3 {
		segments = 3
	}
	pts := make([]Vec2, segments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(segments)
		pts[i] = Vec2{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
	return NewPolygon(name, pts, c)
}

// SetPolygonPoints rebuilds a polygon node's geometry from a new point list,
// reusing the node's vertex buffer. Texcoord mapping follows the node's
// current texture (or the white pixel when untextured).
func SetPolygonPoints(n *Node, points []Vec2) {
	if n.Kind != KindMesh {
		panic("flint: SetPolygonPoints on a non-mesh node")
	}
	vb, inds := buildPolygonFan(points, n.Style.Texture)
	if vb == nil {
		n.Geometry.Resize(0)
		n.Indices = n.Indices[:0]
		return
	}
	n.Geometry.Resize(vb.Len())
	vb.CopyTo(n.Geometry, 0, vb.Len(), 0, nil)
	if cap(n.Indices) >= len(inds) {
		n.Indices = n.Indices[:len(inds)]
		copy(n.Indices, inds)
	} else {
		n.Indices = inds
	}
}

// buildPolygonFan generates a fan-triangulated polygon: N vertices,
// 3*(N-2) indices, vertex 0 as the hub. Returns nil for fewer than 3 points.
func buildPolygonFan(points []Vec2, tex *Texture) (*VertexBuffer, []uint16) {
	n := len(points)
	if n < 3 {
		return nil, nil
	}

	premult := true
	if tex != nil {
		premult = tex.PremultipliedAlpha()
	}
	vb := NewVertexBuffer(n, premult)
	inds := make([]uint16, (n-2)*3)

	var minX, minY, maxX, maxY float64
	var region Rect
	if tex != nil {
		minX, minY = points[0].X, points[0].Y
		maxX, maxY = minX, minY
		for i := 1; i < n; i++ {
			minX = math.Min(minX, points[i].X)
			maxX = math.Max(maxX, points[i].X)
			minY = math.Min(minY, points[i].Y)
			maxY = math.Max(maxY, points[i].Y)
		}
		region = tex.Region()
	}

	for i, p := range points {
		vb.SetPosition(i, float32(p.X), float32(p.Y))
		if tex != nil {
			var u, v float64
			if bbW := maxX - minX; bbW > 0 {
				u = (p.X - minX) / bbW * region.Width
			}
			if bbH := maxY - minY; bbH > 0 {
				v = (p.Y - minY) / bbH * region.Height
			}
			vb.SetTexCoord(i, float32(region.X+u), float32(region.Y+v))
		} else {
			// Untextured: sample the center of the white pixel.
			vb.SetTexCoord(i, 0.5, 0.5)
		}
	}

	for i := 0; i < n-2; i++ {
		inds[i*3+0] = 0
		inds[i*3+1] = uint16(i + 1)
		inds[i*3+2] = uint16(i + 2)
	}

	return vb, inds
}
