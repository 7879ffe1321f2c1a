package flint

import (
	"errors"
	"math"
)

// ErrSingularTransform is returned when a Matrix with a near-zero determinant
// is inverted. Callers must treat this as a failure; the matrix is left
// unchanged rather than replaced with garbage or identity.
var ErrSingularTransform = errors.New("flint: cannot invert singular transform")

// singularEpsilon is the determinant threshold below which a matrix is
// considered non-invertible.
const singularEpsilon = 1e-12

// MatrixEpsilon is the default per-component tolerance for Matrix.Equals.
const MatrixEpsilon = 1e-6

// Matrix is a 2D affine transform with the layout
//
//	| A  C  TX |
//	| B  D  TY |
//	| 0  0   1 |
//
// A point (x, y) maps to (A*x + C*y + TX, B*x + D*y + TY). Matrices are plain
// values; methods with pointer receivers mutate in place.
type Matrix struct {
	A, B, C, D, TX, TY float64
}

// MatrixIdentity is the identity transform.
var MatrixIdentity = Matrix{A: 1, D: 1}

// Identity resets m to the identity transform.
func (m *Matrix) Identity() {
	*m = MatrixIdentity
}

// CopyFrom copies all six components from other.
func (m *Matrix) CopyFrom(other *Matrix) {
	*m = *other
}

// Determinant returns A*D - C*B.
func (m Matrix) Determinant() float64 {
	return m.A*m.D - m.C*m.B
}

// mulMatrix returns outer * inner: the transform that applies inner first,
// then outer.
func mulMatrix(outer, inner Matrix) Matrix {
	return Matrix{
		A:  outer.A*inner.A + outer.C*inner.B,
		B:  outer.B*inner.A + outer.D*inner.B,
		C:  outer.A*inner.C + outer.C*inner.D,
		D:  outer.B*inner.C + outer.D*inner.D,
		TX: outer.A*inner.TX + outer.C*inner.TY + outer.TX,
		TY: outer.B*inner.TX + outer.D*inner.TY + outer.TY,
	}
}

// Append post-multiplies: other's space is applied after this transform.
// m becomes other ∘ m.
func (m *Matrix) Append(other Matrix) {
	*m = mulMatrix(other, *m)
}

// Prepend pre-multiplies: other's space is applied before this transform.
// m becomes m ∘ other.
func (m *Matrix) Prepend(other Matrix) {
	*m = mulMatrix(*m, other)
}

// Translate appends a translation by (dx, dy).
func (m *Matrix) Translate(dx, dy float64) {
	m.TX += dx
	m.TY += dy
}

// Scale appends a scale by (sx, sy).
func (m *Matrix) Scale(sx, sy float64) {
	m.A *= sx
	m.C *= sx
	m.TX *= sx
	m.B *= sy
	m.D *= sy
	m.TY *= sy
}

// Rotate appends a rotation by angle radians. Rotate(0) is a no-op.
func (m *Matrix) Rotate(angle float64) {
	if angle == 0 {
		return
	}
	sin, cos := math.Sincos(angle)
	a := cos*m.A - sin*m.B
	b := sin*m.A + cos*m.B
	c := cos*m.C - sin*m.D
	d := sin*m.C + cos*m.D
	tx := cos*m.TX - sin*m.TY
	ty := sin*m.TX + cos*m.TY
	m.A, m.B, m.C, m.D, m.TX, m.TY = a, b, c, d, tx, ty
}

// Skew appends a skew by (skewX, skewY) radians.
func (m *Matrix) Skew(skewX, skewY float64) {
	if skewX == 0 && skewY == 0 {
		return
	}
	sinX, cosX := math.Sincos(skewX)
	sinY, cosY := math.Sincos(skewY)
	a := m.A*cosY - m.B*sinX
	b := m.A*sinY + m.B*cosX
	c := m.C*cosY - m.D*sinX
	d := m.C*sinY + m.D*cosX
	tx := m.TX*cosY - m.TY*sinX
	ty := m.TX*sinY + m.TY*cosX
	m.A, m.B, m.C, m.D, m.TX, m.TY = a, b, c, d, tx, ty
}

// Invert replaces m with its inverse. When the determinant is (near) zero the
// matrix is left untouched and ErrSingularTransform is returned.
func (m *Matrix) Invert() error {
	det := m.Determinant()
	if det > -singularEpsilon && det < singularEpsilon {
		return ErrSingularTransform
	}
	invDet := 1.0 / det
	a := m.D * invDet
	b := -m.B * invDet
	c := -m.C * invDet
	d := m.A * invDet
	tx := -(a*m.TX + c*m.TY)
	ty := -(b*m.TX + d*m.TY)
	m.A, m.B, m.C, m.D, m.TX, m.TY = a, b, c, d, tx, ty
	return nil
}

// Inverted returns the inverse of m without mutating it.
func (m Matrix) Inverted() (Matrix, error) {
	inv := m
	if err := inv.Invert(); err != nil {
		return Matrix{}, err
	}
	return inv, nil
}

// TransformPoint applies the transform to the point (x, y).
func (m Matrix) TransformPoint(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.TX, m.B*x + m.D*y + m.TY
}

// TransformVector applies only the linear part of the transform (no translation).
func (m Matrix) TransformVector(x, y float64) (float64, float64) {
	return m.A*x + m.C*y, m.B*x + m.D*y
}

// Equals reports whether every component of m is within epsilon of other.
// Pass 0 to use MatrixEpsilon. Never an exact float compare.
func (m Matrix) Equals(other Matrix, epsilon float64) bool {
	if epsilon <= 0 {
		epsilon = MatrixEpsilon
	}
	return math.Abs(m.A-other.A) <= epsilon &&
		math.Abs(m.B-other.B) <= epsilon &&
		math.Abs(m.C-other.C) <= epsilon &&
		math.Abs(m.D-other.D) <= epsilon &&
		math.Abs(m.TX-other.TX) <= epsilon &&
		math.Abs(m.TY-other.TY) <= epsilon
}

// BoundsOf returns the axis-aligned bounding rectangle of r after transforming
// its four corners by m.
func (m Matrix) BoundsOf(r Rect) Rect {
	x0, y0 := m.TransformPoint(r.X, r.Y)
	x1, y1 := m.TransformPoint(r.X+r.Width, r.Y)
	x2, y2 := m.TransformPoint(r.X, r.Y+r.Height)
	x3, y3 := m.TransformPoint(r.X+r.Width, r.Y+r.Height)

	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
