package flint

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestPaddingAll(t *testing.T) {
	p := PaddingAll(3)
	if p.Left != 3 || p.Top != 3 || p.Right != 3 || p.Bottom != 3 {
		t.Errorf("PaddingAll(3) = %+v", p)
	}
}

func TestFilterChainPaddingAccumulates(t *testing.T) {
	chain := []Filter{
		NewBlurFilter(8),
		NewOutlineFilter(2, Color{R: 1, A: 1}),
	}
	pad := filterChainPadding(chain)
	if pad.Left != 10 || pad.Top != 10 || pad.Right != 10 || pad.Bottom != 10 {
		t.Errorf("chain padding = %+v, want 10 per side", pad)
	}
}

func TestColorMatrixFilterDefaults(t *testing.T) {
	f := NewColorMatrixFilter()
	if f.NumPasses() != 1 {
		t.Errorf("NumPasses = %d, want 1", f.NumPasses())
	}
	// Identity: ones on the channel diagonal, zero offsets.
	for i, want := range map[int]float64{0: 1, 6: 1, 12: 1, 18: 1} {
		if f.Matrix[i] != want {
			t.Errorf("Matrix[%d] = %v, want %v", i, f.Matrix[i], want)
		}
	}
	if f.Matrix[4] != 0 || f.Matrix[19] != 0 {
		t.Error("identity matrix has nonzero offsets")
	}
	if (f.Padding() != Padding{}) {
		t.Error("color matrix must not pad")
	}
}

func TestColorMatrixFilterSaturationRowsSumToOne(t *testing.T) {
	f := NewColorMatrixFilter()
	f.SetSaturation(0)
	for row := 0; row < 3; row++ {
		sum := f.Matrix[row*5] + f.Matrix[row*5+1] + f.Matrix[row*5+2]
		assertNear(t, "row weight sum", sum, 1)
	}
	// Grayscale: all three rows share the luminance weights.
	if f.Matrix[0] != f.Matrix[5] || f.Matrix[1] != f.Matrix[6] {
		t.Error("grayscale rows differ")
	}
}

func TestBlurFilter(t *testing.T) {
	f := NewBlurFilter(6)
	if f.NumPasses() != 2 {
		t.Errorf("NumPasses = %d, want 2 (horizontal + vertical)", f.NumPasses())
	}
	pad := f.Padding()
	if pad.Left != 6 || pad.Bottom != 6 {
		t.Errorf("Padding = %+v, want 6 per side", pad)
	}

	if g := NewBlurFilter(-5); g.Radius != 0 {
		t.Errorf("negative radius = %v, want clamp to 0", g.Radius)
	}

	// The tap step never drops below 0.5, so the kernel reaches 2 px even for
	// small radii and padding must reserve that much.
	if got := NewBlurFilter(1).Padding(); got != PaddingAll(2) {
		t.Errorf("small-radius Padding = %+v, want 2 per side", got)
	}
}

func TestOutlineFilter(t *testing.T) {
	f := NewOutlineFilter(2, Color{R: 1, A: 1})
	if f.NumPasses() != 1 {
		t.Errorf("NumPasses = %d, want 1", f.NumPasses())
	}
	if f.Padding() != PaddingAll(2) {
		t.Errorf("Padding = %+v, want 2 per side", f.Padding())
	}
}

func TestCustomShaderFilterMinimumPasses(t *testing.T) {
	f := NewCustomShaderFilter(nil, PaddingAll(1))
	if f.NumPasses() != 1 {
		t.Errorf("NumPasses = %d, want default 1", f.NumPasses())
	}
	f.Passes = 3
	if f.NumPasses() != 3 {
		t.Errorf("NumPasses = %d, want 3", f.NumPasses())
	}
	f.Passes = 0
	if f.NumPasses() != 1 {
		t.Errorf("NumPasses = %d, want floor 1", f.NumPasses())
	}
}

func TestShaderRegistryEnsureCompilesOnce(t *testing.T) {
	r := NewShaderRegistry()
	a := r.Ensure("test/passthrough", passthroughShaderSrc)
	b := r.Ensure("test/passthrough", passthroughShaderSrc)
	if a == nil || a != b {
		t.Error("Ensure must return the same compiled shader for one name")
	}

	other := r.Ensure("test/other", passthroughShaderSrc)
	if other == a {
		t.Error("distinct names must compile distinct shaders")
	}
}

func TestShaderRegistryEnsureBadSourcePanics(t *testing.T) {
	r := NewShaderRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on invalid shader source")
		}
	}()
	r.Ensure("test/bad", "this is not kage")
}

func TestBuiltinShadersCompile(t *testing.T) {
	for name, src := range map[string]string{
		"colormatrix": colorMatrixShaderSrc,
		"blur":        blurShaderSrc,
	} {
		if _, err := ebiten.NewShader([]byte(src)); err != nil {
			t.Errorf("%s shader does not compile: %v", name, err)
		}
	}
}
