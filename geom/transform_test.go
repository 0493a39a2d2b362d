package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqVec(a, b Vec3) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps
}

func TestSwapMajorTwiceIsIdentity(t *testing.T) {
	n := [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	got := SwapMajor(SwapMajor(n))
	if got != n {
		t.Fatalf("double swap changed sequence: %v", got)
	}
}

func TestSwapMajorTransposesRotation(t *testing.T) {
	n := [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 20, 30}
	got := SwapMajor(n)
	want := [12]float64{1, 4, 7, 2, 5, 8, 3, 6, 9, 10, 20, 30}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestComposeWithIdentity(t *testing.T) {
	tr := Transform{
		Right:    Vec3{0, 0, -1},
		Up:       Vec3{0, 1, 0},
		Front:    Vec3{1, 0, 0},
		Position: Vec3{4, 5, 6},
	}
	for _, got := range []Transform{Compose(tr, Identity()), Compose(Identity(), tr)} {
		if !almostEqVec(got.Right, tr.Right) || !almostEqVec(got.Up, tr.Up) ||
			!almostEqVec(got.Front, tr.Front) || !almostEqVec(got.Position, tr.Position) {
			t.Fatalf("identity composition changed transform: %+v", got)
		}
	}
}

func TestWorldToLocalInvertsLocalToWorld(t *testing.T) {
	parent := Transform{
		Right:    Vec3{0, 0, 1},
		Up:       Vec3{0, 1, 0},
		Front:    Vec3{-1, 0, 0},
		Position: Vec3{10, -2, 3},
	}
	p := Vec3{7, 8, 9}
	world := parent.LocalToWorld(p)
	back := parent.WorldToLocal(world)
	if !almostEqVec(back, p) {
		t.Fatalf("round trip moved point: %+v -> %+v", p, back)
	}
}

func TestPolygonCentroidAndLocalization(t *testing.T) {
	points := []Vec3{
		{0, 6, 0},
		{0, 6, 10},
		{10, 6, 10},
		{10, 6, 0},
	}
	center, local, err := LocalizePolygon(points)
	if err != nil {
		t.Fatalf("localize: %v", err)
	}
	if !almostEqVec(center, Vec3{5, 6, 5}) {
		t.Fatalf("centroid = %+v, want (5,6,5)", center)
	}
	want := []Vec2{{-5, -5}, {-5, 5}, {5, 5}, {5, -5}}
	for i, p := range local {
		if math.Abs(p.X-want[i].X) > eps || math.Abs(p.Y-want[i].Y) > eps {
			t.Fatalf("local[%d] = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestLocalizePolygonRejectsNonCoplanar(t *testing.T) {
	points := []Vec3{
		{0, 6, 0},
		{0, 7, 10},
		{10, 6, 10},
	}
	if _, _, err := LocalizePolygon(points); err == nil {
		t.Fatal("expected non-coplanar rejection")
	}
}

func TestTransformMapRoundTrip(t *testing.T) {
	tr := Transform{
		Right:    Vec3{1, 0, 0},
		Up:       Vec3{0, 1, 0},
		Front:    Vec3{0, 0, 1},
		Position: Vec3{10, 20, 30},
	}
	back, err := TransformFromMap(tr.Map())
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if back != tr {
		t.Fatalf("round trip changed transform: %+v", back)
	}
}
