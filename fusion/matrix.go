package fusion

import "math"

// Matrix3 is a row-major 3x3 rotation matrix mapping device frame to world
// frame. Value semantics keep the per-sample hot path allocation-free.
type Matrix3 [9]float64

var Identity = Matrix3{
	1, 0, 0,
	0, 1, 0,
	0, 0, 1,
}

// Transpose is also the inverse for orthonormal (rotation) matrices.
func (m Matrix3) Transpose() Matrix3 {
	return Matrix3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Mul returns m x n.
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	var out Matrix3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3+0]*n[0*3+c] + m[r*3+1]*n[1*3+c] + m[r*3+2]*n[2*3+c]
		}
	}
	return out
}

// Apply rotates a vector: m x v.
func (m Matrix3) Apply(v [3]float64) [3]float64 {
	return [3]float64{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Column returns column c as a vector; columns are the device axes
// expressed in the world frame.
func (m Matrix3) Column(c int) [3]float64 {
	return [3]float64{m[c], m[3+c], m[6+c]}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm(v [3]float64) float64 {
	return math.Sqrt(dot(v, v))
}

func scale(v [3]float64, s float64) [3]float64 {
	return [3]float64{v[0] * s, v[1] * s, v[2] * s}
}
