package geom

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vec2 is a 2D coordinate, used for polygon points expressed in a node's
// local XZ plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is a 3D coordinate in either world or local space. The x/y/z json
// field names are the fixed correspondence with the intermediate format.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Vec3FromMap decodes a {x,y,z} mapping as produced by the intermediate
// format. Missing keys are an error, extra keys are ignored.
func Vec3FromMap(m map[string]any) (Vec3, error) {
	var v Vec3
	for _, f := range []struct {
		key string
		dst *float64
	}{{"x", &v.X}, {"y", &v.Y}, {"z", &v.Z}} {
		raw, ok := m[f.key]
		if !ok {
			return Vec3{}, fmt.Errorf("vector missing %q component", f.key)
		}
		n, ok := toFloat(raw)
		if !ok {
			return Vec3{}, fmt.Errorf("vector component %q is not a number: %v", f.key, raw)
		}
		*f.dst = n
	}
	return v, nil
}

// Map renders the vector back into the intermediate format's mapping.
func (v Vec3) Map() map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

const coplanarEpsilon = 1e-4

// PolygonCentroid averages X and Z over the points; Y is taken from the
// first point since volume polygons are assumed coplanar in Y.
func PolygonCentroid(points []Vec3) Vec3 {
	if len(points) == 0 {
		return Vec3{}
	}
	var c Vec3
	for _, p := range points {
		c.X += p.X
		c.Z += p.Z
	}
	c.X /= float64(len(points))
	c.Z /= float64(len(points))
	c.Y = points[0].Y
	return c
}

// LocalizePolygon re-expresses the world-space polygon in centroid-local XZ
// space, mapping (x,z) offsets to 2D points. Points that do not share the
// first point's Y are rejected instead of producing skewed geometry.
func LocalizePolygon(points []Vec3) (Vec3, []Vec2, error) {
	if len(points) == 0 {
		return Vec3{}, nil, fmt.Errorf("empty polygon")
	}
	center := PolygonCentroid(points)
	local := make([]Vec2, 0, len(points))
	for i, p := range points {
		if math.Abs(p.Y-center.Y) > coplanarEpsilon {
			return Vec3{}, nil, fmt.Errorf("polygon point %d not coplanar: y=%v, expected %v", i, p.Y, center.Y)
		}
		local = append(local, Vec2{p.X - center.X, p.Z - center.Z})
	}
	return center, local, nil
}
