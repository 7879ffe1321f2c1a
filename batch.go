package flint

import "github.com/hajimehoshi/ebiten/v2"

// submit iterates the sorted commands, coalescing batch-compatible runs into
// single DrawTriangles32 calls. Incompatible styles, blend changes, offscreen
// result quads, and deferred filter passes all force a flush.
func (r *Renderer) submit(target *ebiten.Image) {
	if len(r.commands) == 0 {
		return
	}
	if r.batch == nil {
		r.batch = NewBatch(true)
	}

	inRun := false
	for i := range r.commands {
		cmd := &r.commands[i]

		if cmd.finalFilter != nil {
			r.flushBatch(target)
			inRun = false
			cmd.finalFilter.RenderPass(&r.fc, cmd.finalPass, cmd.finalSrc, target, geoM(cmd.transform))
			r.numDrawCalls++
			continue
		}

		if cmd.directImage != nil {
			r.flushBatch(target)
			inRun = false
			r.submitDirect(target, cmd)
			continue
		}

		if cmd.excludeFromBatch || !inRun ||
			!r.batch.CanAccept(cmd.style, cmd.blend) ||
			r.batch.Vertices().PremultipliedAlpha() != cmd.geom.PremultipliedAlpha() {
			r.flushBatch(target)
			r.batch.Begin(cmd.style, cmd.blend)
			r.batch.Vertices().SetPremultipliedAlpha(cmd.geom.PremultipliedAlpha())
			inRun = true
		}

		base := r.batch.Len()
		count := cmd.geom.Len()
		r.batch.Add(cmd.geom, cmd.indices, &cmd.transform, 0, count)
		if cmd.tint != ColorWhite {
			r.batch.Vertices().TintRange(cmd.tint, base, count)
		}
	}

	r.flushBatch(target)
}

// flushBatch converts the accumulated vertices to ebiten's layout and issues
// one DrawTriangles32 call (DrawTrianglesShader32 for custom-shader styles).
func (r *Renderer) flushBatch(target *ebiten.Image) {
	if r.batch == nil || r.batch.IsEmpty() {
		return
	}

	vb := r.batch.Vertices()
	premult := vb.PremultipliedAlpha()
	r.batchVerts = r.batchVerts[:0]
	for i := 0; i < vb.Len(); i++ {
		v := vb.At(i)
		ca := float32(v.A) / 255
		cr := float32(v.R) / 255
		cg := float32(v.G) / 255
		cb := float32(v.B) / 255
		if !premult {
			cr *= ca
			cg *= ca
			cb *= ca
		}
		r.batchVerts = append(r.batchVerts, ebiten.Vertex{
			DstX: v.X, DstY: v.Y,
			SrcX: v.U, SrcY: v.V,
			ColorR: cr, ColorG: cg, ColorB: cb, ColorA: ca,
		})
	}

	style := r.batch.Style()
	blend := r.batch.BlendMode()

	if style.Shader != nil {
		var op ebiten.DrawTrianglesShaderOptions
		op.Blend = blend.EbitenBlend()
		op.Images[0] = style.sourceImage()
		target.DrawTrianglesShader32(r.batchVerts, r.batch.Indices(), style.Shader, &op)
	} else {
		var op ebiten.DrawTrianglesOptions
		op.Blend = blend.EbitenBlend()
		op.Filter = style.Smoothing.ebitenFilter()
		op.Address = style.ebitenAddress()
		op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
		target.DrawTriangles32(r.batchVerts, r.batch.Indices(), style.sourceImage(), &op)
	}

	r.numDrawCalls++
	r.batch.Begin(style, blend)
}

// submitDirect draws an offscreen result as a positioned quad. The pooled
// source may be larger than the content (slot quantization), so the quad
// covers only (directW, directH).
func (r *Renderer) submitDirect(target *ebiten.Image, cmd *RenderCommand) {
	w := float64(cmd.directW)
	h := float64(cmd.directH)

	ca := float32(cmd.tint.A)
	cr := float32(cmd.tint.R) * ca
	cg := float32(cmd.tint.G) * ca
	cb := float32(cmd.tint.B) * ca

	lx := [4]float64{0, w, 0, w}
	ly := [4]float64{0, 0, h, h}

	r.batchVerts = r.batchVerts[:0]
	for i := 0; i < 4; i++ {
		x, y := cmd.transform.TransformPoint(lx[i], ly[i])
		r.batchVerts = append(r.batchVerts, ebiten.Vertex{
			DstX: float32(x), DstY: float32(y),
			SrcX: float32(lx[i]), SrcY: float32(ly[i]),
			ColorR: cr, ColorG: cg, ColorB: cb, ColorA: ca,
		})
	}

	var op ebiten.DrawTrianglesOptions
	op.Blend = cmd.blend.EbitenBlend()
	op.Filter = ebiten.FilterLinear
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	target.DrawTriangles32(r.batchVerts, directQuadIndices[:], cmd.directImage, &op)
	r.numDrawCalls++
}

var directQuadIndices = [6]uint32{0, 1, 2, 1, 3, 2}

// geoM converts a Matrix to an ebiten.GeoM.
func geoM(m Matrix) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m.A)
	g.SetElement(1, 0, m.B)
	g.SetElement(0, 1, m.C)
	g.SetElement(1, 1, m.D)
	g.SetElement(0, 2, m.TX)
	g.SetElement(1, 2, m.TY)
	return g
}
