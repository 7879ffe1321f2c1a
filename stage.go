package flint

import (
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Stage owns a node tree and the resources needed to render it: the texture
// pool, the shader registry, and the renderer. Nothing is process-global;
// multiple stages coexist and Dispose releases everything a stage created.
type Stage struct {
	root          *Node
	width, height float64
	contentScale  float64
	pool          *TexturePool
	shaders       *ShaderRegistry
	renderer      *Renderer
	disposed      bool
}

// NewStage creates a stage of the given logical size. contentScale is the
// ratio of target pixels to logical units (pass 1 when they match).
func NewStage(width, height, contentScale float64) *Stage {
	if contentScale <= 0 {
		contentScale = 1
	}
	pool := NewTexturePool()
	shaders := NewShaderRegistry()
	return &Stage{
		root:         NewContainer("root"),
		width:        width,
		height:       height,
		contentScale: contentScale,
		pool:         pool,
		shaders:      shaders,
		renderer:     NewRenderer(pool, shaders, contentScale),
	}
}

// Root returns the stage's root container node.
func (s *Stage) Root() *Node {
	return s.root
}

// Size returns the logical stage dimensions.
func (s *Stage) Size() (w, h float64) {
	return s.width, s.height
}

// SetSize changes the logical stage dimensions.
func (s *Stage) SetSize(w, h float64) {
	s.width = w
	s.height = h
}

// ContentScale returns the target-pixels-per-logical-unit factor.
func (s *Stage) ContentScale() float64 {
	return s.contentScale
}

// Pool returns the stage's render texture pool.
func (s *Stage) Pool() *TexturePool {
	return s.pool
}

// Shaders returns the stage's shader registry.
func (s *Stage) Shaders() *ShaderRegistry {
	return s.shaders
}

// SetMaxTextureSize sets the device texture limit used by the offscreen
// pipeline; oversized passes degrade resolution instead of failing.
func (s *Stage) SetMaxTextureSize(size int) {
	s.pool.SetMaxTextureSize(size)
}

// SetDebugMode enables fail-fast tree checks and per-frame stats on stderr.
func (s *Stage) SetDebugMode(enabled bool) {
	globalDebug = enabled
}

// Render draws the stage's tree into screen. Call once per frame from the
// game's draw callback.
func (s *Stage) Render(screen *ebiten.Image) {
	if s.disposed {
		panic("flint: render on disposed stage")
	}

	var stats debugStats
	var t0 time.Time
	if globalDebug {
		t0 = time.Now()
	}

	viewport := Rect{Width: s.width, Height: s.height}
	s.renderer.Render(s.root, screen, viewport)

	if globalDebug {
		stats.renderTime = time.Since(t0)
		stats.commandCount = s.renderer.numCommands
		stats.drawCalls = s.renderer.numDrawCalls
		debugLog(stats)
	}
}

// ToTexture renders n's subtree to a new caller-owned texture at the stage's
// content scale. The texture is not pooled; dispose it when done.
func (s *Stage) ToTexture(n *Node) *Texture {
	bounds := subtreeBounds(n)
	res := s.contentScale
	w := int(math.Ceil(bounds.Width * res))
	h := int(math.Ceil(bounds.Height * res))
	if w <= 0 || h <= 0 {
		return NewTexture(ebiten.NewImage(1, 1), res, true)
	}
	img := ebiten.NewImage(w, h)
	offset := Matrix{A: res, D: res, TX: -bounds.X * res, TY: -bounds.Y * res}
	s.renderer.renderSubtreeTo(n, img, offset)
	return NewTexture(img, res, true)
}

// Dispose releases the stage's tree, pooled textures, and shaders.
func (s *Stage) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.root.Dispose()
	s.pool.Dispose()
	s.shaders.Dispose()
}
