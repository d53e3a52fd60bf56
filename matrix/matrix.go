// Package matrix implements the 4x4 transformation matrices used to
// place surfaces and outputs and to map screen coordinates back into
// surface space.
//
// Matrices are row-major and operate on row vectors, so m.Multiply(n)
// yields a matrix that applies m first and n second. Building a
// placement with Identity().Scale(w, h, 1).Translate(x, y, 0) therefore
// maps the unit square onto the rectangle (x, y, w, h).
package matrix

import "math"

// Matrix is a row-major 4x4 matrix.
type Matrix [16]float64

// Vector is a homogeneous coordinate.
type Vector [4]float64

// Point returns the homogeneous vector for the 2D point (x, y).
func Point(x, y float64) Vector {
	return Vector{x, y, 0, 1}
}

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Multiply returns m·n.
func (m Matrix) Multiply(n Matrix) Matrix {
	var r Matrix
	for i := range r {
		row, col := i/4, i%4
		for j := 0; j < 4; j++ {
			r[i] += m[row*4+j] * n[j*4+col]
		}
	}
	return r
}

// Translate returns m followed by a translation by (x, y, z).
func (m Matrix) Translate(x, y, z float64) Matrix {
	return m.Multiply(Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	})
}

// Scale returns m followed by a scale by (x, y, z).
func (m Matrix) Scale(x, y, z float64) Matrix {
	return m.Multiply(Matrix{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	})
}

// Transform applies m to v.
func (m Matrix) Transform(v Vector) Vector {
	var r Vector
	for i := range r {
		for j := 0; j < 4; j++ {
			r[i] += v[j] * m[i+j*4]
		}
	}
	return r
}

// Invert returns the inverse of m. The second return value is false if
// m is singular.
func (m Matrix) Invert() (Matrix, bool) {
	// Gauss-Jordan elimination with partial pivoting on [m | I].
	a := m
	inv := Identity()
	for col := 0; col < 4; col++ {
		pivot := col
		for row := col + 1; row < 4; row++ {
			if math.Abs(a[row*4+col]) > math.Abs(a[pivot*4+col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot*4+col]) < 1e-12 {
			return Matrix{}, false
		}
		if pivot != col {
			swapRows(&a, pivot, col)
			swapRows(&inv, pivot, col)
		}

		p := a[col*4+col]
		for j := 0; j < 4; j++ {
			a[col*4+j] /= p
			inv[col*4+j] /= p
		}

		for row := 0; row < 4; row++ {
			if row == col {
				continue
			}
			f := a[row*4+col]
			if f == 0 {
				continue
			}
			for j := 0; j < 4; j++ {
				a[row*4+j] -= f * a[col*4+j]
				inv[row*4+j] -= f * inv[col*4+j]
			}
		}
	}

	return inv, true
}

func swapRows(m *Matrix, i, j int) {
	for k := 0; k < 4; k++ {
		m[i*4+k], m[j*4+k] = m[j*4+k], m[i*4+k]
	}
}

// ApproxEqual reports whether every element of m is within eps of the
// corresponding element of n.
func (m Matrix) ApproxEqual(n Matrix, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-n[i]) > eps {
			return false
		}
	}
	return true
}

// Float32 returns m converted to single precision, as expected by
// shader uniforms.
func (m Matrix) Float32() (r [16]float32) {
	for i, v := range m {
		r[i] = float32(v)
	}
	return r
}
