package flint

import "math"

// matrixCacheState tracks whether a Transform's cached local matrix is valid.
// Kept as an explicit enum so the invalidation dependencies are enumerable:
// every setter that changes a contributing attribute moves the state to
// matrixDirty, and LocalMatrix is the only recompute point.
type matrixCacheState uint8

const (
	matrixClean matrixCacheState = iota
	matrixDirty
)

// Transform holds the local transform state every scene-graph node owns:
// position, scale, rotation, skew, and pivot, plus a lazily derived Matrix.
// It is a value embedded in Node by composition, never shared across nodes.
type Transform struct {
	X, Y           float64
	ScaleX, ScaleY float64
	Rotation       float64 // radians, normalized to (-π, π]
	SkewX, SkewY   float64
	PivotX, PivotY float64

	local Matrix
	cache matrixCacheState
}

// initTransform sets the defaults for a freshly created node.
func (t *Transform) initTransform() {
	t.ScaleX = 1
	t.ScaleY = 1
	t.cache = matrixDirty
}

// normalizeAngle maps an angle in radians into (-π, π].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// LocalMatrix returns the transform's matrix, recomputing it if a contributing
// attribute changed since the last read. A fast trig-only path is used when
// both skew components are zero; otherwise the matrix is built by composing
// scale, skew, rotate, and translate, followed by the pivot correction.
func (t *Transform) LocalMatrix() Matrix {
	if t.cache == matrixDirty {
		t.recomputeLocal()
		t.cache = matrixClean
	}
	return t.local
}

func (t *Transform) recomputeLocal() {
	if t.SkewX == 0 && t.SkewY == 0 {
		sin, cos := math.Sincos(t.Rotation)
		a := t.ScaleX * cos
		b := t.ScaleX * sin
		c := -t.ScaleY * sin
		d := t.ScaleY * cos
		t.local = Matrix{
			A: a, B: b, C: c, D: d,
			TX: t.X - t.PivotX*a - t.PivotY*c,
			TY: t.Y - t.PivotX*b - t.PivotY*d,
		}
		return
	}

	m := MatrixIdentity
	m.Scale(t.ScaleX, t.ScaleY)
	m.Skew(t.SkewX, t.SkewY)
	m.Rotate(t.Rotation)
	m.Translate(t.X, t.Y)
	if t.PivotX != 0 || t.PivotY != 0 {
		m.TX -= t.PivotX*m.A + t.PivotY*m.C
		m.TY -= t.PivotX*m.B + t.PivotY*m.D
	}
	t.local = m
}

// SetLocalMatrix assigns the matrix directly, back-computing position, scale,
// rotation, and skew from the six scalars. The pivot is reset to zero (it is
// redundant once a matrix is assigned). Decomposition is lossy for non-trivial
// skew: when the decomposed skewX and skewY are exactly equal they collapse
// into a pure rotation and the skew fields are zeroed; otherwise the skew is
// preserved and rotation is reported as zero. The equality is an exact float
// compare, which is a known precision edge case for near-equal skews produced
// by accumulated matrix math.
func (t *Transform) SetLocalMatrix(m Matrix) {
	t.X = m.TX
	t.Y = m.TY
	t.PivotX = 0
	t.PivotY = 0

	skewX := math.Atan2(-m.C, m.D)
	skewY := math.Atan2(m.B, m.A)
	t.ScaleX = math.Hypot(m.A, m.B)
	t.ScaleY = math.Hypot(m.C, m.D)

	if skewX == skewY {
		t.Rotation = normalizeAngle(skewY)
		t.SkewX = 0
		t.SkewY = 0
	} else {
		t.Rotation = 0
		t.SkewX = skewX
		t.SkewY = skewY
	}

	t.local = m
	t.cache = matrixClean
}

// --- Transform property setters ---
// Each setter marks the cached matrix dirty. Node wraps these where world
// invalidation must also propagate.

// SetPosition sets X and Y.
func (t *Transform) SetPosition(x, y float64) {
	t.X = x
	t.Y = y
	t.cache = matrixDirty
}

// SetScale sets ScaleX and ScaleY.
func (t *Transform) SetScale(sx, sy float64) {
	t.ScaleX = sx
	t.ScaleY = sy
	t.cache = matrixDirty
}

// SetRotation sets the rotation in radians, normalized to (-π, π].
func (t *Transform) SetRotation(r float64) {
	t.Rotation = normalizeAngle(r)
	t.cache = matrixDirty
}

// SetSkew sets SkewX and SkewY in radians.
func (t *Transform) SetSkew(sx, sy float64) {
	t.SkewX = sx
	t.SkewY = sy
	t.cache = matrixDirty
}

// SetPivot sets PivotX and PivotY.
func (t *Transform) SetPivot(px, py float64) {
	t.PivotX = px
	t.PivotY = py
	t.cache = matrixDirty
}

// MarkDirty marks the cached matrix as stale, forcing recomputation on the
// next LocalMatrix read. Useful after bulk-setting fields directly.
func (t *Transform) MarkDirty() {
	t.cache = matrixDirty
}

// isDirty reports whether the cached matrix needs recomputation.
func (t *Transform) isDirty() bool {
	return t.cache == matrixDirty
}

// --- Hierarchy composition ---

// maxAncestorDepth bounds the ancestor walk in TransformToSpace, defending
// against cycles and malformed graphs.
const maxAncestorDepth = 32

// TransformToSpace computes the matrix that maps this node's local coordinates
// into target's local coordinate space. The two nodes must belong to the same
// tree; if no common ancestor is found within maxAncestorDepth levels, this is
// a fatal usage error and the call panics. Inverting a degenerate (zero-scale)
// chain returns ErrSingularTransform.
func (n *Node) TransformToSpace(target *Node) (Matrix, error) {
	switch {
	case target == n:
		return MatrixIdentity, nil
	case target == n.Parent:
		return n.LocalMatrix(), nil
	case n == target.Parent:
		inv := target.LocalMatrix()
		if err := inv.Invert(); err != nil {
			return Matrix{}, err
		}
		return inv, nil
	}

	ancestor := commonAncestor(n, target)
	if ancestor == nil {
		panic("flint: nodes do not share a common ancestor")
	}

	up := accumulateToAncestor(n, ancestor)
	down := accumulateToAncestor(target, ancestor)
	if err := down.Invert(); err != nil {
		return Matrix{}, err
	}
	up.Append(down)
	return up, nil
}

// commonAncestor returns the nearest node that is an ancestor of both a and b
// (either node counts as its own ancestor), or nil if none is found within
// maxAncestorDepth levels on either side.
func commonAncestor(a, b *Node) *Node {
	for p, i := a, 0; p != nil && i < maxAncestorDepth; p, i = p.Parent, i+1 {
		for q, j := b, 0; q != nil && j < maxAncestorDepth; q, j = q.Parent, j+1 {
			if p == q {
				return p
			}
		}
	}
	return nil
}

// accumulateToAncestor composes local matrices from n up to (but excluding)
// ancestor, mapping n-local coordinates into ancestor-local coordinates.
// Returns identity when n == ancestor.
func accumulateToAncestor(n, ancestor *Node) Matrix {
	m := MatrixIdentity
	for p := n; p != ancestor; p = p.Parent {
		m.Append(p.LocalMatrix())
	}
	return m
}
