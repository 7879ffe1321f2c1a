package flint

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Padding is the extra margin, in logical units, a filter needs around its
// input so the effect is not clipped at the texture edge.
type Padding struct {
	Left, Top, Right, Bottom float64
}

// PaddingAll returns uniform padding on every side.
func PaddingAll(p float64) Padding {
	return Padding{Left: p, Top: p, Right: p, Bottom: p}
}

func (p Padding) add(other Padding) Padding {
	return Padding{
		Left:   p.Left + other.Left,
		Top:    p.Top + other.Top,
		Right:  p.Right + other.Right,
		Bottom: p.Bottom + other.Bottom,
	}
}

// Filter is a visual effect applied to a node's rendered output. A filter
// runs as one or more passes; each pass reads the previous result and writes
// a new texture. The final pass of the final filter in a chain may be pointed
// straight at the real render target, in which case geom carries the
// placement transform (it is identity for intermediate passes).
type Filter interface {
	// NumPasses returns how many passes this filter needs (at least 1).
	NumPasses() int
	// RenderPass draws pass number pass (0-based) from src into dst.
	RenderPass(fc *FilterContext, pass int, src, dst *ebiten.Image, geom ebiten.GeoM)
	// Padding returns the margin required around the input.
	Padding() Padding
}

// FilterContext carries the per-stage resources filters draw with. Filters
// never hold stage state themselves, so one filter instance can serve nodes
// on different stages.
type FilterContext struct {
	Shaders *ShaderRegistry
	Pool    *TexturePool
}

// --- Shader registry ---

// ShaderRegistry compiles Kage shaders once per stage and owns their
// lifetime. Keys are caller-chosen names; compiling the same name twice
// returns the first result regardless of source.
type ShaderRegistry struct {
	shaders map[string]*ebiten.Shader
}

// NewShaderRegistry creates an empty registry.
func NewShaderRegistry() *ShaderRegistry {
	return &ShaderRegistry{shaders: make(map[string]*ebiten.Shader)}
}

// Ensure returns the compiled shader for name, compiling src on first use.
// Compilation failure is a programming error in the shader source and panics.
func (r *ShaderRegistry) Ensure(name string, src string) *ebiten.Shader {
	if s, ok := r.shaders[name]; ok {
		return s
	}
	s, err := ebiten.NewShader([]byte(src))
	if err != nil {
		panic("flint: failed to compile shader " + name + ": " + err.Error())
	}
	r.shaders[name] = s
	return s
}

// Dispose deallocates every compiled shader.
func (r *ShaderRegistry) Dispose() {
	for _, s := range r.shaders {
		s.Deallocate()
	}
	r.shaders = make(map[string]*ebiten.Shader)
}

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine stores premultiplied alpha;
// shaders un-premultiply before processing and re-premultiply output.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	// 4x5 color matrix, row-major, offsets in elements 4, 9, 14, 19.
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

const blurShaderSrc = `//kage:unit pixels
package main

var Dir vec2
var Step float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	// 9-tap Gaussian along Dir, taps Step apart. Weights sum to 1.
	sum := imageSrc0At(src) * 0.1974
	sum += imageSrc0At(src + Dir*Step) * 0.1747
	sum += imageSrc0At(src - Dir*Step) * 0.1747
	sum += imageSrc0At(src + Dir*Step*2.0) * 0.1210
	sum += imageSrc0At(src - Dir*Step*2.0) * 0.1210
	sum += imageSrc0At(src + Dir*Step*3.0) * 0.0656
	sum += imageSrc0At(src - Dir*Step*3.0) * 0.0656
	sum += imageSrc0At(src + Dir*Step*4.0) * 0.0400
	sum += imageSrc0At(src - Dir*Step*4.0) * 0.0400
	return sum
}
`

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix transformation in one pass.
// The matrix is stored in row-major order: [R_r, R_g, R_b, R_a, R_offset,
// G_r, ...]. The zero value is not usable; use NewColorMatrixFilter.
type ColorMatrixFilter struct {
	Matrix    [20]float64
	uniforms  map[string]any
	matrixF32 [20]float32 // persistent buffer to avoid per-frame slice escape
	shaderOp  ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{uniforms: make(map[string]any, 1)}
	f.uniforms["Matrix"] = f.matrixF32[:]
	f.Matrix[0] = 1
	f.Matrix[6] = 1
	f.Matrix[12] = 1
	f.Matrix[18] = 1
	return f
}

// SetBrightness sets the matrix to adjust brightness by the given offset [-1, 1].
func (f *ColorMatrixFilter) SetBrightness(b float64) {
	f.Matrix = [20]float64{
		1, 0, 0, 0, b,
		0, 1, 0, 0, b,
		0, 0, 1, 0, b,
		0, 0, 0, 1, 0,
	}
}

// SetContrast sets the matrix to adjust contrast. c=1 is normal, 0=gray.
func (f *ColorMatrixFilter) SetContrast(c float64) {
	t := (1.0 - c) / 2.0
	f.Matrix = [20]float64{
		c, 0, 0, 0, t,
		0, c, 0, 0, t,
		0, 0, c, 0, t,
		0, 0, 0, 1, 0,
	}
}

// SetSaturation sets the matrix to adjust saturation. s=1 is normal, 0=grayscale.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	f.Matrix = [20]float64{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// SetGrayscale is shorthand for SetSaturation(0).
func (f *ColorMatrixFilter) SetGrayscale() {
	f.SetSaturation(0)
}

// NumPasses returns 1.
func (f *ColorMatrixFilter) NumPasses() int { return 1 }

// RenderPass applies the color matrix from src into dst.
func (f *ColorMatrixFilter) RenderPass(fc *FilterContext, pass int, src, dst *ebiten.Image, geom ebiten.GeoM) {
	shader := fc.Shaders.Ensure("flint/colormatrix", colorMatrixShaderSrc)
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.GeoM = geom
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns zero; color transforms don't expand the image bounds.
func (f *ColorMatrixFilter) Padding() Padding { return Padding{} }

// --- BlurFilter ---

// BlurFilter is a separable Gaussian blur: a horizontal pass followed by a
// vertical pass, each a 9-tap directional kernel whose tap spacing scales
// with the radius.
type BlurFilter struct {
	Radius   float64
	uniforms map[string]any
	dirF32   [2]float32
	shaderOp ebiten.DrawRectShaderOptions
}

// NewBlurFilter creates a blur filter with the given radius in logical units.
func NewBlurFilter(radius float64) *BlurFilter {
	if radius < 0 {
		radius = 0
	}
	f := &BlurFilter{Radius: radius, uniforms: make(map[string]any, 2)}
	f.uniforms["Dir"] = f.dirF32[:]
	return f
}

// NumPasses returns 2: horizontal, then vertical.
func (f *BlurFilter) NumPasses() int { return 2 }

// RenderPass runs one directional blur pass.
func (f *BlurFilter) RenderPass(fc *FilterContext, pass int, src, dst *ebiten.Image, geom ebiten.GeoM) {
	shader := fc.Shaders.Ensure("flint/blur", blurShaderSrc)
	if pass == 0 {
		f.dirF32[0], f.dirF32[1] = 1, 0
	} else {
		f.dirF32[0], f.dirF32[1] = 0, 1
	}
	// The kernel reaches 4 taps out; spread them across the radius.
	f.uniforms["Step"] = float32(math.Max(f.Radius/4, 0.5))
	bounds := src.Bounds()
	f.shaderOp.GeoM = geom
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding covers the kernel's reach on every side: four taps at the clamped
// step, so small radii still get the 2 px the 0.5 step floor samples.
func (f *BlurFilter) Padding() Padding {
	return PaddingAll(math.Max(f.Radius, 2))
}

// --- OutlineFilter ---

// OutlineFilter draws the source at 8 cardinal/diagonal offsets in the
// outline color, then the original on top. Works at any thickness.
type OutlineFilter struct {
	Thickness float64
	Color     Color
	imgOp     ebiten.DrawImageOptions
}

// NewOutlineFilter creates an outline filter.
func NewOutlineFilter(thickness float64, c Color) *OutlineFilter {
	return &OutlineFilter{Thickness: thickness, Color: c}
}

// NumPasses returns 1.
func (f *OutlineFilter) NumPasses() int { return 1 }

// RenderPass draws the 8-direction offset outline behind the source.
func (f *OutlineFilter) RenderPass(fc *FilterContext, pass int, src, dst *ebiten.Image, geom ebiten.GeoM) {
	t := f.Thickness
	offsets := [8][2]float64{
		{-t, 0}, {t, 0}, {0, -t}, {0, t},
		{-t, -t}, {t, -t}, {-t, t}, {t, t},
	}

	op := &f.imgOp
	for _, off := range offsets {
		op.GeoM.Reset()
		op.GeoM.Translate(off[0], off[1])
		op.GeoM.Concat(geom)
		op.ColorScale.Reset()
		op.ColorScale.Scale(
			float32(f.Color.R*f.Color.A),
			float32(f.Color.G*f.Color.A),
			float32(f.Color.B*f.Color.A),
			float32(f.Color.A),
		)
		dst.DrawImage(src, op)
	}

	op.GeoM = geom
	op.ColorScale.Reset()
	dst.DrawImage(src, op)
}

// Padding returns the outline thickness on every side.
func (f *OutlineFilter) Padding() Padding {
	return PaddingAll(f.Thickness)
}

// --- CustomShaderFilter ---

// CustomShaderFilter wraps a user-provided Kage shader. Images[0] is filled
// with the pass source; the user may set Images[1] and Images[2] for
// additional textures. Passes selects how many times the shader runs
// (default 1); the shader can distinguish passes via the Pass uniform.
type CustomShaderFilter struct {
	Shader   *ebiten.Shader
	Uniforms map[string]any
	Images   [3]*ebiten.Image
	Passes   int
	padding  Padding
	shaderOp ebiten.DrawRectShaderOptions
}

// NewCustomShaderFilter creates a custom shader filter with the given shader
// and padding requirement.
func NewCustomShaderFilter(shader *ebiten.Shader, padding Padding) *CustomShaderFilter {
	return &CustomShaderFilter{
		Shader:   shader,
		Uniforms: make(map[string]any),
		Passes:   1,
		padding:  padding,
	}
}

// NumPasses returns the configured pass count (minimum 1).
func (f *CustomShaderFilter) NumPasses() int {
	if f.Passes < 1 {
		return 1
	}
	return f.Passes
}

// RenderPass runs the user shader with src as Images[0].
func (f *CustomShaderFilter) RenderPass(fc *FilterContext, pass int, src, dst *ebiten.Image, geom ebiten.GeoM) {
	f.Uniforms["Pass"] = float32(pass)
	bounds := src.Bounds()
	f.shaderOp.GeoM = geom
	f.shaderOp.Images[0] = src
	f.shaderOp.Images[1] = f.Images[1]
	f.shaderOp.Images[2] = f.Images[2]
	f.shaderOp.Uniforms = f.Uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), f.Shader, &f.shaderOp)
}

// Padding returns the padding set at construction time.
func (f *CustomShaderFilter) Padding() Padding { return f.padding }

// --- Chain helpers ---

// filterChainPadding sums the padding of every filter in the chain. The
// offscreen texture is sized once for the whole chain, so margins accumulate.
func filterChainPadding(filters []Filter) Padding {
	var pad Padding
	for _, f := range filters {
		pad = pad.add(f.Padding())
	}
	return pad
}
