package flint

import (
	"testing"

	"github.com/tanema/gween/ease"
)

func TestTweenPosition(t *testing.T) {
	n := NewContainer("n")
	g := TweenPosition(n, 100, 50, 1, ease.Linear)

	g.Update(0.5)
	assertNear(t, "X midway", n.X, 50)
	assertNear(t, "Y midway", n.Y, 25)
	if g.Done {
		t.Error("Done before the duration elapsed")
	}

	g.Update(0.5)
	assertNear(t, "X final", n.X, 100)
	assertNear(t, "Y final", n.Y, 50)
	if !g.Done {
		t.Error("not Done after the full duration")
	}
}

func TestTweenAlphaAndRotation(t *testing.T) {
	n := NewContainer("n")
	n.Alpha = 1
	a := TweenAlpha(n, 0, 2, ease.Linear)
	a.Update(1)
	assertNear(t, "Alpha midway", n.Alpha, 0.5)

	r := TweenRotation(n, 1, 1, ease.Linear)
	r.Update(1)
	assertNear(t, "Rotation final", n.Rotation, 1)
}

func TestTweenStopsOnDisposedTarget(t *testing.T) {
	n := NewContainer("n")
	g := TweenPosition(n, 100, 100, 1, ease.Linear)
	g.Update(0.25)
	n.Dispose()
	g.Update(0.25)
	if !g.Done {
		t.Error("tween must stop when the target is disposed")
	}
	assertNear(t, "X frozen", n.X, 25)
}

func TestTweenUpdateAfterDoneIsNoop(t *testing.T) {
	n := NewContainer("n")
	g := TweenAlpha(n, 0, 1, ease.Linear)
	g.Update(2)
	if !g.Done {
		t.Fatal("not Done after overshoot")
	}
	g.Update(1)
	assertNear(t, "Alpha stays", n.Alpha, 0)
}

func TestTweenMarksTransformDirty(t *testing.T) {
	n := NewContainer("n")
	_ = n.LocalMatrix() // prime the cache
	g := TweenPosition(n, 10, 0, 1, ease.Linear)
	g.Update(0.5)
	m := n.LocalMatrix()
	assertNear(t, "TX reflects tween", m.TX, 5)
}
