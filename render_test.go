package flint

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func testRenderer() *Renderer {
	return NewRenderer(NewTexturePool(), NewShaderRegistry(), 1)
}

func TestCommandOrdering(t *testing.T) {
	a := &RenderCommand{renderLayer: 0, globalOrder: 5, treeOrder: 9}
	b := &RenderCommand{renderLayer: 1, globalOrder: 0, treeOrder: 1}
	if !commandLessOrEqual(a, b) || commandLessOrEqual(b, a) {
		t.Error("render layer must dominate global order")
	}

	c := &RenderCommand{globalOrder: 1, treeOrder: 9}
	d := &RenderCommand{globalOrder: 2, treeOrder: 1}
	if !commandLessOrEqual(c, d) || commandLessOrEqual(d, c) {
		t.Error("global order must dominate tree order")
	}

	e := &RenderCommand{treeOrder: 1}
	f := &RenderCommand{treeOrder: 2}
	if !commandLessOrEqual(e, f) || commandLessOrEqual(f, e) {
		t.Error("tree order must break ties")
	}
	if !commandLessOrEqual(e, e) {
		t.Error("ordering must be reflexive for stability")
	}
}

func TestMergeSortOrdersCommands(t *testing.T) {
	r := testRenderer()
	// Shuffled input across layers and global orders; treeOrder encodes the
	// expected final position.
	r.commands = []RenderCommand{
		{renderLayer: 1, globalOrder: 0, treeOrder: 5},
		{renderLayer: 0, globalOrder: 2, treeOrder: 3},
		{renderLayer: 0, globalOrder: 0, treeOrder: 1},
		{renderLayer: 1, globalOrder: 3, treeOrder: 6},
		{renderLayer: 0, globalOrder: 0, treeOrder: 2},
		{renderLayer: 0, globalOrder: 2, treeOrder: 4},
	}
	r.mergeSort()
	for i := range r.commands {
		if r.commands[i].treeOrder != i+1 {
			t.Fatalf("position %d holds treeOrder %d", i, r.commands[i].treeOrder)
		}
	}
}

func TestSubtreeBoundsUnion(t *testing.T) {
	root := NewContainer("root")
	a := NewQuad("a", 10, 10, ColorWhite)
	b := NewQuad("b", 10, 10, ColorWhite)
	b.SetPosition(20, 5)
	root.AddChild(a)
	root.AddChild(b)

	assertRect(t, "union", subtreeBounds(root), Rect{X: 0, Y: 0, Width: 30, Height: 15})

	// The subtree root's own transform is excluded: bounds are in its local space.
	root.SetPosition(100, 100)
	assertRect(t, "local space", subtreeBounds(root), Rect{X: 0, Y: 0, Width: 30, Height: 15})
}

func TestOffscreenBoundsPadsAndRounds(t *testing.T) {
	r := testRenderer()
	n := NewQuad("n", 10, 10, ColorWhite)
	n.Filters = []Filter{NewBlurFilter(2)}

	got := r.offscreenBounds(n, MatrixIdentity, false)
	assertRect(t, "padded bounds", got, Rect{X: -2, Y: -2, Width: 14, Height: 14})
}

func TestOffscreenBoundsViewportClamp(t *testing.T) {
	r := testRenderer()
	r.viewport = Rect{Width: 100, Height: 100}
	n := NewQuad("n", 500, 10, ColorWhite)
	n.Filters = []Filter{NewOutlineFilter(1, ColorWhite)}

	got := r.offscreenBounds(n, MatrixIdentity, false)
	assertRect(t, "clamped bounds", got, Rect{X: -1, Y: -1, Width: 102, Height: 12})

	// Caching captures the full subtree regardless of visibility.
	n.SetCached(true)
	got = r.offscreenBounds(n, MatrixIdentity, false)
	if got.Width < 500 {
		t.Errorf("cached bounds width %v, want full subtree", got.Width)
	}
}

func TestOffscreenBoundsViewportClampAtContentScale(t *testing.T) {
	// The viewport is logical stage units; world maps local space to target
	// pixels. At content scale 2 the whole logical viewport must survive the
	// clamp, not half of it.
	r := NewRenderer(NewTexturePool(), NewShaderRegistry(), 2)
	r.viewport = Rect{Width: 100, Height: 100}
	n := NewQuad("n", 500, 10, ColorWhite)
	n.Filters = []Filter{NewOutlineFilter(1, ColorWhite)}

	got := r.offscreenBounds(n, Matrix{A: 2, D: 2}, false)
	assertRect(t, "clamped bounds", got, Rect{X: -1, Y: -1, Width: 102, Height: 12})
}

func TestOffscreenBoundsNestedPassSkipsClamp(t *testing.T) {
	// Inside a subtree render the transforms live in offscreen texture pixel
	// space, where the stage viewport means nothing; the full bounds win.
	r := testRenderer()
	r.viewport = Rect{Width: 100, Height: 100}
	n := NewQuad("n", 500, 10, ColorWhite)
	n.Filters = []Filter{NewOutlineFilter(1, ColorWhite)}

	r.pushCommands()
	got := r.offscreenBounds(n, MatrixIdentity, false)
	r.popCommands()
	assertRect(t, "unclamped bounds", got, Rect{X: -1, Y: -1, Width: 502, Height: 12})
}

func TestTraverseBatchRuns(t *testing.T) {
	root := NewContainer("root")
	root.AddChild(NewQuad("a", 10, 10, ColorWhite))
	root.AddChild(NewQuad("b", 10, 10, ColorWhite))
	tex := NewTexture(ebiten.NewImage(8, 8), 1, true)
	root.AddChild(NewImage("c", tex))

	r := testRenderer()
	treeOrder := 0
	r.traverse(root, MatrixIdentity, 1, false, &treeOrder, root)
	r.mergeSort()

	if len(r.commands) != 3 {
		t.Fatalf("commands = %d, want 3", len(r.commands))
	}
	if got := countBatches(r.commands); got != 2 {
		t.Errorf("batches = %d, want 2 (two solid quads merge, textured breaks)", got)
	}
}

func TestTraverseSkipsInvisibleAndContainers(t *testing.T) {
	root := NewContainer("root")
	hidden := NewQuad("hidden", 10, 10, ColorWhite)
	hidden.Visible = false
	nonRenderable := NewQuad("ghost", 10, 10, ColorWhite)
	nonRenderable.Renderable = false
	root.AddChild(hidden)
	root.AddChild(nonRenderable)
	root.AddChild(NewContainer("group"))

	r := testRenderer()
	treeOrder := 0
	r.traverse(root, MatrixIdentity, 1, false, &treeOrder, root)
	if len(r.commands) != 0 {
		t.Errorf("commands = %d, want 0", len(r.commands))
	}
}

func TestTraverseWorldAlphaProduct(t *testing.T) {
	root := NewContainer("root")
	mid := NewContainer("mid")
	mid.Alpha = 0.5
	leaf := NewQuad("leaf", 10, 10, ColorWhite)
	leaf.Alpha = 0.5
	root.AddChild(mid)
	mid.AddChild(leaf)

	r := testRenderer()
	treeOrder := 0
	r.traverse(root, MatrixIdentity, 1, false, &treeOrder, root)
	if len(r.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(r.commands))
	}
	assertNear(t, "tint alpha", r.commands[0].tint.A, 0.25)
}

func TestTraverseWorldTransformComposes(t *testing.T) {
	root := NewContainer("root")
	mid := NewContainer("mid")
	mid.SetPosition(10, 0)
	leaf := NewQuad("leaf", 4, 4, ColorWhite)
	leaf.SetPosition(0, 5)
	root.AddChild(mid)
	mid.AddChild(leaf)

	r := testRenderer()
	treeOrder := 0
	r.traverse(root, Matrix{A: 2, D: 2}, 1, false, &treeOrder, root)
	x, y := r.commands[0].transform.TransformPoint(0, 0)
	assertNear(t, "x", x, 20)
	assertNear(t, "y", y, 10)
}

func TestTraverseDefersFinalFilterPass(t *testing.T) {
	root := NewContainer("root")
	n := NewQuad("n", 10, 10, ColorWhite)
	n.Filters = []Filter{NewBlurFilter(2)}
	root.AddChild(n)

	r := testRenderer()
	treeOrder := 0
	r.traverse(root, MatrixIdentity, 1, false, &treeOrder, root)

	if len(r.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(r.commands))
	}
	cmd := r.commands[0]
	if cmd.finalFilter == nil || cmd.finalPass != 1 || cmd.finalSrc == nil {
		t.Errorf("final blur pass not deferred: %+v", cmd)
	}
	if !cmd.excludeFromBatch {
		t.Error("deferred pass must not merge into a batch")
	}
}

func TestTraverseFilteredTranslucentUsesDirectQuad(t *testing.T) {
	root := NewContainer("root")
	n := NewQuad("n", 10, 10, ColorWhite)
	n.Alpha = 0.5
	n.Filters = []Filter{NewBlurFilter(2)}
	root.AddChild(n)

	r := testRenderer()
	treeOrder := 0
	r.traverse(root, MatrixIdentity, 1, false, &treeOrder, root)

	if len(r.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(r.commands))
	}
	cmd := r.commands[0]
	if cmd.finalFilter != nil {
		t.Error("translucent result must not draw straight to target")
	}
	if cmd.directImage == nil {
		t.Error("filtered result must be a direct quad")
	}
	assertNear(t, "tint alpha", cmd.tint.A, 0.5)
}

func TestStageRenderSmoke(t *testing.T) {
	stage := NewStage(64, 64, 1)
	defer stage.Dispose()
	stage.Root().AddChild(NewQuad("a", 10, 10, Color{R: 1, A: 1}))
	stage.Root().AddChild(NewQuad("b", 10, 10, Color{G: 1, A: 1}))
	tex := NewTexture(ebiten.NewImage(8, 8), 1, true)
	stage.Root().AddChild(NewImage("c", tex))

	screen := ebiten.NewImage(64, 64)
	stage.Render(screen)
	if stage.renderer.numDrawCalls != 2 {
		t.Errorf("draw calls = %d, want 2", stage.renderer.numDrawCalls)
	}

	// The counter is per frame, not a lifetime total.
	stage.Render(screen)
	if stage.renderer.numDrawCalls != 2 {
		t.Errorf("draw calls after second frame = %d, want 2", stage.renderer.numDrawCalls)
	}
}

func TestStageRenderFilteredNode(t *testing.T) {
	stage := NewStage(64, 64, 1)
	defer stage.Dispose()
	n := NewQuad("n", 20, 20, Color{B: 1, A: 1})
	n.Filters = []Filter{NewColorMatrixFilter(), NewBlurFilter(3)}
	stage.Root().AddChild(n)

	screen := ebiten.NewImage(64, 64)
	stage.Render(screen)
	if stage.renderer.numCommands != 1 {
		t.Errorf("commands = %d, want 1 composite", stage.renderer.numCommands)
	}
}

func TestStageRenderMaskedNode(t *testing.T) {
	stage := NewStage(64, 64, 1)
	defer stage.Dispose()
	n := NewQuad("n", 20, 20, ColorWhite)
	n.SetMask(NewCircle("mask", 10, 16, ColorWhite))
	stage.Root().AddChild(n)

	screen := ebiten.NewImage(64, 64)
	stage.Render(screen)
}

func TestStageRenderCachedNodeReuses(t *testing.T) {
	stage := NewStage(64, 64, 1)
	defer stage.Dispose()
	n := NewQuad("n", 20, 20, ColorWhite)
	n.SetCached(true)
	stage.Root().AddChild(n)

	screen := ebiten.NewImage(64, 64)
	stage.Render(screen)
	first := n.cacheTexture
	if first == nil {
		t.Fatal("cache texture not captured")
	}
	stage.Render(screen)
	if n.cacheTexture != first {
		t.Error("cached texture re-rendered without invalidation")
	}

	n.InvalidateCache()
	stage.Render(screen)
	if n.cacheTexture == nil {
		t.Error("cache texture missing after re-render")
	}
}

func TestStageRenderDisposedPanics(t *testing.T) {
	stage := NewStage(64, 64, 1)
	stage.Dispose()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic rendering a disposed stage")
		}
	}()
	stage.Render(ebiten.NewImage(64, 64))
}

func TestStageToTexture(t *testing.T) {
	stage := NewStage(64, 64, 1)
	defer stage.Dispose()
	n := NewQuad("n", 10, 12, ColorWhite)
	stage.Root().AddChild(n)

	tex := stage.ToTexture(n)
	defer tex.Dispose()
	assertNear(t, "width", tex.Width(), 10)
	assertNear(t, "height", tex.Height(), 12)
}

func BenchmarkRenderQuads(b *testing.B) {
	stage := NewStage(640, 480, 1)
	defer stage.Dispose()
	for i := 0; i < 100; i++ {
		q := NewQuad("q", 8, 8, ColorWhite)
		q.SetPosition(float64(i%20)*16, float64(i/20)*16)
		stage.Root().AddChild(q)
	}
	screen := ebiten.NewImage(640, 480)
	b.ReportAllocs()
	for b.Loop() {
		stage.Render(screen)
	}
}
