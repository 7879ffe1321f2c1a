package flint

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// RenderCommand is a single draw instruction emitted during scene traversal.
// Commands are value types in a reused buffer; slices reference node-owned
// storage, never copies.
type RenderCommand struct {
	transform Matrix
	geom      *VertexBuffer
	indices   []uint16
	style     MeshStyle
	blend     BlendMode
	tint      Color // composite tint; A carries the world alpha product

	renderLayer uint8
	globalOrder int
	treeOrder   int // assigned during traversal for stable sort

	// Offscreen results. directImage is a filtered/masked/cached subtree
	// rendered to a texture; it is drawn as a positioned quad and never
	// merges with neighboring geometry.
	directImage      *ebiten.Image
	directW, directH int
	excludeFromBatch bool

	// Deferred final filter pass: when the last pass of a chain is eligible
	// to draw straight into the real target, it is carried here and executed
	// at submission time so ordering is preserved.
	finalFilter Filter
	finalPass   int
	finalSrc    *ebiten.Image
}

// Renderer turns a node tree into sorted, batched draw calls. It owns the
// per-frame command buffers and the offscreen machinery; texture pool and
// shader registry are stage-owned and shared in.
type Renderer struct {
	pool     *TexturePool
	fc       FilterContext
	scale    float64 // content scale (native pixels per logical unit)
	viewport Rect    // stage rect in the invoking space; zero disables clamping

	commands []RenderCommand
	sortBuf  []RenderCommand

	// Offscreen renders swap in a fresh command buffer; nesting is a stack.
	cmdStack [][]RenderCommand
	freeBufs [][]RenderCommand

	// Pooled textures holding this frame's uncached offscreen results,
	// released after submission.
	deferred []*ebiten.Image

	batch      *Batch
	batchVerts []ebiten.Vertex

	// Per-frame stats, read by debug logging.
	numCommands  int
	numDrawCalls int
}

// NewRenderer creates a renderer drawing at the given content scale.
func NewRenderer(pool *TexturePool, shaders *ShaderRegistry, contentScale float64) *Renderer {
	if contentScale <= 0 {
		contentScale = 1
	}
	return &Renderer{
		pool:  pool,
		fc:    FilterContext{Shaders: shaders, Pool: pool},
		scale: contentScale,
	}
}

// Render traverses root, sorts the emitted commands, and submits them to
// target. viewport is the visible stage rectangle used to clamp offscreen
// bounds; pass the stage rect for a full render.
func (r *Renderer) Render(root *Node, target *ebiten.Image, viewport Rect) {
	r.viewport = viewport
	r.commands = r.commands[:0]
	r.numDrawCalls = 0
	treeOrder := 0
	// The base transform maps logical stage units to target pixels.
	r.traverse(root, Matrix{A: r.scale, D: r.scale}, 1.0, false, &treeOrder, root)
	r.mergeSort()
	r.numCommands = len(r.commands)
	r.submit(target)
	r.releaseDeferred()
}

func (r *Renderer) releaseDeferred() {
	for i, img := range r.deferred {
		r.pool.Release(img)
		r.deferred[i] = nil
	}
	r.deferred = r.deferred[:0]
}

// traverse walks the tree depth-first, refreshing world transforms and
// emitting commands for renderable nodes. stageRoot identifies the render
// root so its offscreen bounds use the full viewport.
func (r *Renderer) traverse(n *Node, parentTransform Matrix, parentAlpha float64, parentRecomputed bool, treeOrder *int, stageRoot *Node) {
	if !n.Visible {
		return
	}

	recompute := n.worldDirty || n.isDirty() || parentRecomputed
	if recompute {
		n.worldTransform = mulMatrix(parentTransform, n.LocalMatrix())
		n.worldAlpha = parentAlpha * n.Alpha
		n.worldDirty = false
	}

	if n.mask != nil || n.cacheEnabled || len(n.Filters) > 0 {
		r.renderOffscreenNode(n, n.worldTransform, n.worldAlpha, treeOrder, n == stageRoot)
		return
	}

	r.emitCommand(n, n.worldTransform, n.worldAlpha, treeOrder)

	if len(n.children) == 0 {
		return
	}
	for _, child := range n.sortedChildrenList() {
		r.traverse(child, n.worldTransform, n.worldAlpha, recompute, treeOrder, stageRoot)
	}
}

// emitCommand appends a draw command for a single renderable node.
func (r *Renderer) emitCommand(n *Node, transform Matrix, alpha float64, treeOrder *int) {
	if !n.Renderable || n.Kind == KindContainer {
		return
	}
	if n.Geometry == nil || n.Geometry.Len() == 0 || len(n.Indices) == 0 {
		return
	}
	*treeOrder++
	r.commands = append(r.commands, RenderCommand{
		transform:   transform,
		geom:        n.Geometry,
		indices:     n.Indices,
		style:       n.Style,
		blend:       n.Blend,
		tint:        Color{R: n.Tint.R, G: n.Tint.G, B: n.Tint.B, A: n.Tint.A * alpha},
		renderLayer: n.RenderLayer,
		globalOrder: n.GlobalOrder,
		treeOrder:   *treeOrder,
	})
}

// --- Offscreen pipeline ---

// renderOffscreenNode handles nodes with masks, filters, or a result cache.
// Pipeline: bounds → cache check → render subtree at forced alpha 1 →
// mask composite → filter passes → cache store / deferred release → emit a
// positioned quad command (or a deferred direct-to-target final pass).
func (r *Renderer) renderOffscreenNode(n *Node, world Matrix, worldAlpha float64, treeOrder *int, isStageRoot bool) {
	// Cache hit: reuse the stored texture untouched. Placement comes from the
	// offset and scale captured at cache time, so later subtree edits cannot
	// shift a sticky cache.
	if n.cacheEnabled && n.cacheTexture != nil && !n.cacheDirty {
		cres := n.cacheTexture.Scale()
		placement := mulMatrix(world, Matrix{A: 1 / cres, D: 1 / cres, TX: n.cacheOffset.X, TY: n.cacheOffset.Y})
		region := n.cacheTexture.Region()
		r.emitDirect(n, placement, worldAlpha, treeOrder, n.cacheTexture.Image(), int(region.Width), int(region.Height))
		return
	}

	bounds := r.offscreenBounds(n, world, isStageRoot)
	if bounds.IsEmpty() {
		return
	}

	// Degrade resolution uniformly rather than fail when the padded bounds
	// exceed the maximum texture size.
	res := r.scale * n.FilterResolution
	res *= r.pool.FitScale(bounds.Width*res, bounds.Height*res)
	w := int(math.Ceil(bounds.Width * res))
	h := int(math.Ceil(bounds.Height * res))
	if w <= 0 || h <= 0 {
		return
	}

	// placement maps offscreen pixels back into the invoking space.
	placement := mulMatrix(world, Matrix{A: 1 / res, D: 1 / res, TX: bounds.X, TY: bounds.Y})

	// offset maps subtree-local coordinates to offscreen pixels: projection
	// in texture pixel space, modelview at the bounds origin.
	offset := Matrix{A: res, D: res, TX: -bounds.X * res, TY: -bounds.Y * res}

	// Subtree renders at alpha 1; the composite alpha is applied once when
	// the result quad is drawn.
	rt := r.pool.Acquire(w, h)
	r.renderSubtreeTo(n, rt, offset)
	result := rt

	if n.mask != nil {
		maskRT := r.pool.Acquire(w, h)
		r.renderSubtreeTo(n.mask, maskRT, offset)
		var op ebiten.DrawImageOptions
		op.Blend = BlendMask.EbitenBlend()
		result.DrawImage(maskRT, &op)
		r.pool.Release(maskRT)
	}

	// Filter chain: ping-pong through pooled textures. The last pass of the
	// last filter may be deferred to submission time and drawn straight into
	// the real target, but only when nothing else (alpha, blend, caching)
	// would need the intermediate result.
	directFinal := !n.cacheEnabled &&
		n.Blend == BlendNormal &&
		worldAlpha == 1 &&
		n.Tint == ColorWhite &&
		len(n.Filters) > 0

	for fi, f := range n.Filters {
		passes := f.NumPasses()
		for p := 0; p < passes; p++ {
			last := fi == len(n.Filters)-1 && p == passes-1
			if last && directFinal {
				r.deferred = append(r.deferred, result)
				*treeOrder++
				r.commands = append(r.commands, RenderCommand{
					blend:            BlendNormal,
					tint:             ColorWhite,
					renderLayer:      n.RenderLayer,
					globalOrder:      n.GlobalOrder,
					treeOrder:        *treeOrder,
					excludeFromBatch: true,
					transform:        placement,
					finalFilter:      f,
					finalPass:        p,
					finalSrc:         result,
				})
				return
			}
			dst := r.pool.Acquire(w, h)
			f.RenderPass(&r.fc, p, result, dst, ebiten.GeoM{})
			r.pool.Release(result)
			result = dst
		}
	}

	if n.cacheEnabled {
		// Detach the result from the pool; the node owns it until the cache
		// is invalidated or disposed. The pooled image may be larger than the
		// content (slot quantization), so the texture region limits it.
		if n.cacheTexture != nil {
			n.cacheTexture.Dispose()
		}
		n.cacheTexture = &Texture{
			image:         result,
			region:        Rect{Width: float64(w), Height: float64(h)},
			scale:         res,
			premultiplied: true,
		}
		n.cacheOffset = Vec2{X: bounds.X, Y: bounds.Y}
		n.cacheDirty = false
		r.emitDirect(n, placement, worldAlpha, treeOrder, result, w, h)
		return
	}

	r.deferred = append(r.deferred, result)
	r.emitDirect(n, placement, worldAlpha, treeOrder, result, w, h)
}

// emitDirect appends a command drawing an offscreen result as a positioned
// quad in the invoking space.
func (r *Renderer) emitDirect(n *Node, placement Matrix, alpha float64, treeOrder *int, img *ebiten.Image, w, h int) {
	*treeOrder++
	r.commands = append(r.commands, RenderCommand{
		transform:        placement,
		blend:            n.Blend,
		tint:             Color{R: n.Tint.R, G: n.Tint.G, B: n.Tint.B, A: n.Tint.A * alpha},
		renderLayer:      n.RenderLayer,
		globalOrder:      n.GlobalOrder,
		treeOrder:        *treeOrder,
		directImage:      img,
		directW:          w,
		directH:          h,
		excludeFromBatch: true,
	})
}

// offscreenBounds returns the subtree's padded bounds in n's local space.
// The stage root uses the full viewport; other nodes use their subtree
// bounds clamped to the visible stage (skipped for caching passes, which
// must capture everything).
func (r *Renderer) offscreenBounds(n *Node, world Matrix, isStageRoot bool) Rect {
	if isStageRoot && !r.viewport.IsEmpty() {
		return r.viewport
	}

	bounds := subtreeBounds(n)
	if bounds.IsEmpty() {
		return Rect{}
	}

	// The viewport is in logical stage units while world maps local space to
	// target pixels, so scale the viewport up before inverting. Nested
	// offscreen passes run in texture pixel space where the stage viewport
	// has no meaning; they capture the full subtree bounds.
	if !n.cacheEnabled && !r.viewport.IsEmpty() && len(r.cmdStack) == 0 {
		if inv, err := world.Inverted(); err == nil {
			vp := r.viewport
			vp.X *= r.scale
			vp.Y *= r.scale
			vp.Width *= r.scale
			vp.Height *= r.scale
			bounds = bounds.Intersect(inv.BoundsOf(vp))
			if bounds.IsEmpty() {
				return Rect{}
			}
		}
	}

	pad := filterChainPadding(n.Filters)
	bounds.X -= pad.Left
	bounds.Y -= pad.Top
	bounds.Width += pad.Left + pad.Right
	bounds.Height += pad.Top + pad.Bottom

	// Round outward to whole units so texel edges stay stable.
	x0 := math.Floor(bounds.X)
	y0 := math.Floor(bounds.Y)
	x1 := math.Ceil(bounds.X + bounds.Width)
	y1 := math.Ceil(bounds.Y + bounds.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// subtreeBounds computes the bounding rectangle of n and its descendants in
// n's local coordinate space (n's own transform excluded).
func subtreeBounds(n *Node) Rect {
	var bounds Rect
	first := true
	subtreeBoundsWalk(n, MatrixIdentity, &bounds, &first)
	return bounds
}

func subtreeBoundsWalk(n *Node, local Matrix, bounds *Rect, first *bool) {
	if n.Geometry != nil && n.Geometry.Len() > 0 && n.Kind != KindContainer {
		aabb := n.Geometry.Bounds(&local, 0, n.Geometry.Len())
		if !aabb.IsEmpty() {
			if *first {
				*bounds = aabb
				*first = false
			} else {
				*bounds = bounds.Union(aabb)
			}
		}
	}
	for _, child := range n.children {
		childLocal := mulMatrix(local, child.LocalMatrix())
		subtreeBoundsWalk(child, childLocal, bounds, first)
	}
}

// --- Subtree rendering (offscreen targets) ---

// renderSubtreeTo renders n's subtree into target with the given offset
// transform, using a pushed command buffer so the main pass is undisturbed.
// Reentrant: a filtered node inside a filtered subtree pushes again.
func (r *Renderer) renderSubtreeTo(n *Node, target *ebiten.Image, offset Matrix) {
	r.pushCommands()

	treeOrder := 0
	// The node's own geometry renders at the offset origin; its local
	// transform is applied by the composite quad, not here.
	r.emitCommand(n, offset, 1.0, &treeOrder)
	for _, child := range n.sortedChildrenList() {
		r.subtreeWalk(child, offset, 1.0, &treeOrder)
	}

	r.mergeSort()
	r.submit(target)
	r.popCommands()
}

// subtreeWalk mirrors traverse but composes explicit transforms instead of
// touching the nodes' cached world state, and keeps alpha forced relative to
// the subtree root.
func (r *Renderer) subtreeWalk(n *Node, parentTransform Matrix, parentAlpha float64, treeOrder *int) {
	if !n.Visible {
		return
	}
	transform := mulMatrix(parentTransform, n.LocalMatrix())
	alpha := parentAlpha * n.Alpha

	if n.mask != nil || n.cacheEnabled || len(n.Filters) > 0 {
		r.renderOffscreenNode(n, transform, alpha, treeOrder, false)
		return
	}

	r.emitCommand(n, transform, alpha, treeOrder)
	for _, child := range n.sortedChildrenList() {
		r.subtreeWalk(child, transform, alpha, treeOrder)
	}
}

func (r *Renderer) pushCommands() {
	r.cmdStack = append(r.cmdStack, r.commands)
	if n := len(r.freeBufs); n > 0 {
		r.commands = r.freeBufs[n-1][:0]
		r.freeBufs = r.freeBufs[:n-1]
	} else {
		r.commands = nil
	}
}

func (r *Renderer) popCommands() {
	r.freeBufs = append(r.freeBufs, r.commands[:0])
	n := len(r.cmdStack)
	r.commands = r.cmdStack[n-1]
	r.cmdStack = r.cmdStack[:n-1]
}

// --- Ordering ---

// commandLessOrEqual reports whether a sorts before or with b. Layer first,
// then global order, then tree order; <= on treeOrder keeps the sort stable.
func commandLessOrEqual(a, b *RenderCommand) bool {
	if a.renderLayer != b.renderLayer {
		return a.renderLayer < b.renderLayer
	}
	if a.globalOrder != b.globalOrder {
		return a.globalOrder < b.globalOrder
	}
	return a.treeOrder <= b.treeOrder
}

// mergeSort sorts r.commands in place using r.sortBuf as scratch space.
// Bottom-up: zero allocations once the scratch buffer reaches high water.
func (r *Renderer) mergeSort() {
	n := len(r.commands)
	if n <= 1 {
		return
	}
	if cap(r.sortBuf) < n {
		r.sortBuf = make([]RenderCommand, n)
	}
	r.sortBuf = r.sortBuf[:n]

	a := r.commands
	b := r.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(r.commands, r.sortBuf)
	}
}

// mergeRun merges sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []RenderCommand, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if commandLessOrEqual(&src[i], &src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}
