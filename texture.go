package flint

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Texture wraps an ebiten.Image with a content scale factor and a region.
// A root texture owns its image; sub-textures share the root's image and
// select a rectangular region of it. Batching compatibility is decided by
// root identity, so quads cut from one atlas page merge into one draw call.
type Texture struct {
	image         *ebiten.Image
	root          *Texture
	region        Rect // native pixels within the root image
	scale         float64
	premultiplied bool
	disposed      bool
}

// NewTexture wraps img as a root texture. scale is the ratio of native pixels
// to logical units (2 for a @2x asset); premultiplied reports the image's
// alpha encoding.
func NewTexture(img *ebiten.Image, scale float64, premultiplied bool) *Texture {
	if img == nil {
		panic("flint: nil image for texture")
	}
	if scale <= 0 {
		scale = 1
	}
	b := img.Bounds()
	return &Texture{
		image:         img,
		region:        Rect{Width: float64(b.Dx()), Height: float64(b.Dy())},
		scale:         scale,
		premultiplied: premultiplied,
	}
}

// NewSubTexture selects a region of parent, in parent-native pixels. The
// sub-texture shares the parent's image and scale; disposing it is a no-op.
func NewSubTexture(parent *Texture, region Rect) *Texture {
	region.X += parent.region.X
	region.Y += parent.region.Y
	return &Texture{
		image:         parent.image,
		root:          parent.Root(),
		region:        region,
		scale:         parent.scale,
		premultiplied: parent.premultiplied,
	}
}

// Root returns the root texture (itself for a root).
func (t *Texture) Root() *Texture {
	if t.root != nil {
		return t.root
	}
	return t
}

// Image returns the underlying ebiten image shared by the whole root family.
func (t *Texture) Image() *ebiten.Image {
	return t.image
}

// Region returns the texture's region in native pixels of the root image.
func (t *Texture) Region() Rect {
	return t.region
}

// Scale returns the native-pixels-per-logical-unit factor.
func (t *Texture) Scale() float64 {
	return t.scale
}

// PremultipliedAlpha reports the image's alpha encoding.
func (t *Texture) PremultipliedAlpha() bool {
	return t.premultiplied
}

// Width returns the logical width (native width divided by scale).
func (t *Texture) Width() float64 {
	return t.region.Width / t.scale
}

// Height returns the logical height.
func (t *Texture) Height() float64 {
	return t.region.Height / t.scale
}

// NativeWidth returns the width in native pixels.
func (t *Texture) NativeWidth() float64 {
	return t.region.Width
}

// NativeHeight returns the height in native pixels.
func (t *Texture) NativeHeight() float64 {
	return t.region.Height
}

// Dispose releases the underlying image. Only root textures release; for a
// sub-texture this is a no-op because the root owns the image.
func (t *Texture) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	if t.root == nil && t.image != nil {
		t.image.Deallocate()
	}
	t.image = nil
}

// IsDisposed reports whether Dispose was called.
func (t *Texture) IsDisposed() bool {
	return t.disposed
}

// --- Render texture pool ---

// poolSlotStep is the quantization granularity for pooled render textures.
// Requested dimensions round up to the next multiple so nearby sizes share
// buckets, trading a little memory for far fewer distinct allocations.
const poolSlotStep = 64

// defaultMaxTextureSize caps pooled texture dimensions when the caller does
// not supply a device limit.
const defaultMaxTextureSize = 4096

// TexturePool manages reusable offscreen ebiten.Images keyed by quantized
// dimensions. After warmup, Acquire/Release are zero-alloc. Pooled images are
// unmanaged: they skip ebiten's automatic atlasing, which offscreen render
// targets of churning sizes would only pollute.
type TexturePool struct {
	buckets        map[uint64][]*ebiten.Image
	maxTextureSize int
}

// NewTexturePool creates a pool capped at the default maximum texture size.
func NewTexturePool() *TexturePool {
	return &TexturePool{maxTextureSize: defaultMaxTextureSize}
}

// SetMaxTextureSize overrides the dimension cap (the device texture limit).
func (p *TexturePool) SetMaxTextureSize(size int) {
	if size < poolSlotStep {
		size = poolSlotStep
	}
	p.maxTextureSize = size
}

// MaxTextureSize returns the current dimension cap.
func (p *TexturePool) MaxTextureSize() int {
	return p.maxTextureSize
}

// FitScale returns the uniform factor (at most 1) that shrinks a w x h
// request until both dimensions fit under the cap. Oversized offscreen
// passes degrade resolution instead of failing.
func (p *TexturePool) FitScale(w, h float64) float64 {
	max := float64(p.maxTextureSize)
	scale := 1.0
	if w > max {
		scale = max / w
	}
	if h*scale > max {
		scale = max / h
	}
	return scale
}

// quantize rounds n up to the next poolSlotStep multiple, clamped to the cap.
func (p *TexturePool) quantize(n int) int {
	if n < 1 {
		n = 1
	}
	q := (n + poolSlotStep - 1) / poolSlotStep * poolSlotStep
	if q > p.maxTextureSize {
		q = p.maxTextureSize
	}
	return q
}

func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image with at least (w, h) pixels,
// subject to the size cap. Callers needing more than the cap must pre-shrink
// via FitScale.
func (p *TexturePool) Acquire(w, h int) *ebiten.Image {
	qw := p.quantize(w)
	qh := p.quantize(h)
	key := poolKey(qw, qh)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, qw, qh),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. The image is cleared on
// next Acquire, not here (avoids redundant GPU work if released then
// immediately re-acquired). Images whose dimensions no longer match a pool
// slot (after a cap change) are deallocated instead.
func (p *TexturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != p.quantize(w) || h != p.quantize(h) {
		img.Deallocate()
		return
	}
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[poolKey(w, h)] = append(p.buckets[poolKey(w, h)], img)
}

// Dispose deallocates every pooled image. Outstanding acquired images are
// unaffected.
func (p *TexturePool) Dispose() {
	for _, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
	}
	p.buckets = nil
}
