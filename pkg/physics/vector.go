// pkg/physics/vector.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform applies m to v extended with the homogeneous coordinate w.
// Use w=1 for points and w=0 for directions.
func Transform(m mgl64.Mat4, v mgl64.Vec3, w float64) mgl64.Vec3 {
	return m.Mul4x1(v.Vec4(w)).Vec3()
}

// Finite reports whether every component of v is a finite number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
