// Package flint is a retained-mode 2D scene-graph renderer for [Ebitengine].
//
// Flint provides the transform hierarchy, vertex-level geometry with
// premultiplied-alpha color handling, draw-call batching, and a multi-pass
// filter pipeline that sits between a game's scene description and the GPU.
//
// # Scene graph
//
// Every visual element is a [Node]. Nodes form a tree rooted at
// [Stage.Root]. Children inherit their parent's transform and alpha.
// Create nodes with typed constructors: [NewContainer], [NewQuad],
// [NewImage], [NewMesh], [NewGlyphRun], [NewPolygon], and [NewCircle].
//
//	stage := flint.NewStage(640, 480, 1)
//	box := flint.NewQuad("box", 80, 40, flint.Color{R: 0.3, G: 0.7, B: 1, A: 1})
//	box.SetPosition(100, 50)
//	stage.Root().AddChild(box)
//
// Implement [ebiten.Game] yourself and call [Stage.Render] from Draw:
//
//	func (g *Game) Draw(screen *ebiten.Image) { g.stage.Render(screen) }
//
// # Batching
//
// During rendering the tree is flattened into commands, stably sorted by
// (RenderLayer, GlobalOrder, tree order), and consecutive commands whose
// [MeshStyle] values are compatible merge into single draw calls. Keeping
// quads on shared atlas textures and adjacent in sort order is the main
// lever for draw-call counts; [Stage.SetDebugMode] reports them per frame.
//
// # Filters, masks, caching
//
// A node may carry a chain of [Filter] values ([ColorMatrixFilter],
// [BlurFilter], [OutlineFilter], or a [CustomShaderFilter] wrapping a Kage
// shader), a mask node, or a sticky result cache ([Node.SetCached]). All
// three render the subtree into pooled offscreen textures and composite the
// result back as a positioned quad.
//
// Flint is single-threaded by design: all API calls must happen on the
// game loop goroutine.
//
// [Ebitengine]: https://ebitengine.org
package flint
