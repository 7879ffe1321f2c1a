package flint

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestCanBatchWithUntextured(t *testing.T) {
	a := MeshStyle{}
	b := MeshStyle{Smoothing: SmoothingLinear}
	if !a.CanBatchWith(b) {
		t.Error("two untextured styles must batch regardless of smoothing")
	}
}

func TestCanBatchWithSharedRoot(t *testing.T) {
	atlas := NewTexture(ebiten.NewImage(64, 64), 1, true)
	a := MeshStyle{Texture: NewSubTexture(atlas, Rect{X: 0, Y: 0, Width: 32, Height: 32})}
	b := MeshStyle{Texture: NewSubTexture(atlas, Rect{X: 32, Y: 0, Width: 32, Height: 32})}
	if !a.CanBatchWith(b) || !b.CanBatchWith(a) {
		t.Error("sub-textures of one atlas must batch, symmetrically")
	}
}

func TestCanBatchWithMismatches(t *testing.T) {
	atlas := NewTexture(ebiten.NewImage(64, 64), 1, true)
	other := NewTexture(ebiten.NewImage(64, 64), 1, true)
	tex := MeshStyle{Texture: atlas}
	plain := MeshStyle{}

	if tex.CanBatchWith(plain) || plain.CanBatchWith(tex) {
		t.Error("textured and untextured must not batch")
	}
	if tex.CanBatchWith(MeshStyle{Texture: other}) {
		t.Error("different root textures must not batch")
	}
	if tex.CanBatchWith(MeshStyle{Texture: atlas, Smoothing: SmoothingLinear}) {
		t.Error("different smoothing must not batch")
	}
	if tex.CanBatchWith(MeshStyle{Texture: atlas, Repeat: true}) {
		t.Error("different address modes must not batch")
	}

	shader, err := ebiten.NewShader([]byte(passthroughShaderSrc))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if tex.CanBatchWith(MeshStyle{Texture: atlas, Shader: shader}) {
		t.Error("different shader identities must not batch")
	}
}

const passthroughShaderSrc = `
//kage:unit pixels

package main

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	return color
}
`

func TestBatchMergesQuads(t *testing.T) {
	quad, indices := buildQuad(10, 10)
	b := NewBatch(true)
	b.Begin(MeshStyle{}, BlendNormal)

	b.Add(quad, indices, nil, 0, quad.Len())
	m := MatrixIdentity
	m.Translate(20, 0)
	b.Add(quad, indices, &m, 0, quad.Len())

	if b.Len() != 8 {
		t.Fatalf("Len = %d, want 8", b.Len())
	}
	if b.NumIndices() != 12 {
		t.Fatalf("NumIndices = %d, want 12", b.NumIndices())
	}
	got := b.Indices()[6:]
	want := []uint32{4, 5, 6, 5, 7, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rebased indices = %v, want %v", got, want)
		}
	}

	// Second quad's positions went through the transform.
	x, _ := b.Vertices().Position(4)
	assertNear(t, "x", float64(x), 20)

	// Source geometry is untouched.
	if x, _ := quad.Position(0); x != 0 {
		t.Errorf("source quad mutated: x = %v", x)
	}
}

func TestBatchAddBeforeBeginPanics(t *testing.T) {
	quad, indices := buildQuad(10, 10)
	b := NewBatch(true)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Add before Begin")
		}
	}()
	b.Add(quad, indices, nil, 0, quad.Len())
}

func TestBatchCanAccept(t *testing.T) {
	b := NewBatch(true)
	if b.CanAccept(MeshStyle{}, BlendNormal) {
		t.Error("inactive batch must not accept")
	}
	b.Begin(MeshStyle{}, BlendNormal)
	if !b.CanAccept(MeshStyle{}, BlendNormal) {
		t.Error("matching style and blend must be accepted")
	}
	if b.CanAccept(MeshStyle{}, BlendAdd) {
		t.Error("different blend mode must not be accepted")
	}
}

func TestBatchBeginResets(t *testing.T) {
	quad, indices := buildQuad(10, 10)
	b := NewBatch(true)
	b.Begin(MeshStyle{}, BlendNormal)
	b.Add(quad, indices, nil, 0, quad.Len())
	b.Begin(MeshStyle{}, BlendAdd)
	if !b.IsEmpty() || b.Len() != 0 {
		t.Errorf("Begin did not reset: len %d, indices %d", b.Len(), b.NumIndices())
	}
	if b.BlendMode() != BlendAdd {
		t.Errorf("BlendMode = %v, want BlendAdd", b.BlendMode())
	}
}
