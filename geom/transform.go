package geom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is an affine frame: three basis vectors plus a position. The
// intermediate format stores it as a {right,up,front,position} mapping of
// 3-vectors; the scene format stores it flat as 12 numbers.
type Transform struct {
	Right    Vec3
	Up       Vec3
	Front    Vec3
	Position Vec3
}

// Identity returns the identity frame.
func Identity() Transform {
	return Transform{
		Right:    Vec3{1, 0, 0},
		Up:       Vec3{0, 1, 0},
		Front:    Vec3{0, 0, 1},
		Position: Vec3{0, 0, 0},
	}
}

// To12 flattens the transform in intermediate row-major order:
// right, up, front, position.
func (t Transform) To12() [12]float64 {
	return [12]float64{
		t.Right.X, t.Right.Y, t.Right.Z,
		t.Up.X, t.Up.Y, t.Up.Z,
		t.Front.X, t.Front.Y, t.Front.Z,
		t.Position.X, t.Position.Y, t.Position.Z,
	}
}

// From12 is the inverse of To12.
func From12(n [12]float64) Transform {
	return Transform{
		Right:    Vec3{n[0], n[1], n[2]},
		Up:       Vec3{n[3], n[4], n[5]},
		Front:    Vec3{n[6], n[7], n[8]},
		Position: Vec3{n[9], n[10], n[11]},
	}
}

// SwapMajor converts between the intermediate row-major 3x4 layout and the
// scene literal's column-major rotation layout by transposing the first nine
// elements. The position triplet keeps its place. Applying it twice returns
// the input.
func SwapMajor(n [12]float64) [12]float64 {
	return [12]float64{
		n[0], n[3], n[6],
		n[1], n[4], n[7],
		n[2], n[5], n[8],
		n[9], n[10], n[11],
	}
}

// TransformFromMap decodes a {right,up,front,position} mapping of 3-vectors.
func TransformFromMap(m map[string]any) (Transform, error) {
	var t Transform
	for _, f := range []struct {
		key string
		dst *Vec3
	}{{"right", &t.Right}, {"up", &t.Up}, {"front", &t.Front}, {"position", &t.Position}} {
		raw, ok := m[f.key]
		if !ok {
			return Transform{}, fmt.Errorf("transform missing %q vector", f.key)
		}
		sub, ok := raw.(map[string]any)
		if !ok {
			return Transform{}, fmt.Errorf("transform %q is not a vector mapping", f.key)
		}
		v, err := Vec3FromMap(sub)
		if err != nil {
			return Transform{}, fmt.Errorf("transform %q: %w", f.key, err)
		}
		*f.dst = v
	}
	return t, nil
}

// Map renders the transform back into the intermediate format's mapping.
func (t Transform) Map() map[string]any {
	return map[string]any{
		"right":    t.Right.Map(),
		"up":       t.Up.Map(),
		"front":    t.Front.Map(),
		"position": t.Position.Map(),
	}
}

// mat4 builds a homogeneous matrix whose rows are right, up, front and
// position, padded with 0 (1 for position). mgl64 stores column-major, so
// the literal below lists columns.
func (t Transform) mat4() mgl64.Mat4 {
	return mgl64.Mat4{
		t.Right.X, t.Up.X, t.Front.X, t.Position.X,
		t.Right.Y, t.Up.Y, t.Front.Y, t.Position.Y,
		t.Right.Z, t.Up.Z, t.Front.Z, t.Position.Z,
		0, 0, 0, 1,
	}
}

func fromMat4(m mgl64.Mat4) Transform {
	return Transform{
		Right:    Vec3{m.At(0, 0), m.At(0, 1), m.At(0, 2)},
		Up:       Vec3{m.At(1, 0), m.At(1, 1), m.At(1, 2)},
		Front:    Vec3{m.At(2, 0), m.At(2, 1), m.At(2, 2)},
		Position: Vec3{m.At(3, 0), m.At(3, 1), m.At(3, 2)},
	}
}

// Compose expresses child (given in parent's local space) in the space the
// parent itself lives in: child-matrix x parent-matrix with row vectors.
func Compose(child, parent Transform) Transform {
	return fromMat4(child.mat4().Mul4(parent.mat4()))
}

// WorldToLocal reprojects a world-space point into t's local frame.
func (t Transform) WorldToLocal(p Vec3) Vec3 {
	// Row-vector convention: local = world * M^-1, equivalently (M^-1)^T * world.
	inv := t.mat4().Inv().Transpose()
	v := inv.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return Vec3{v[0], v[1], v[2]}
}

// LocalToWorld maps a point in t's local frame into world space.
func (t Transform) LocalToWorld(p Vec3) Vec3 {
	m := t.mat4().Transpose()
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return Vec3{v[0], v[1], v[2]}
}

// RotatedX90 returns t with an extra +90 degree rotation about X applied to
// the basis, used to lay volume polygons horizontal.
func (t Transform) RotatedX90() Transform {
	rot := Transform{
		Right: Vec3{1, 0, 0},
		Up:    Vec3{0, 0, 1},
		Front: Vec3{0, -1, 0},
	}
	return Compose(rot, t)
}
