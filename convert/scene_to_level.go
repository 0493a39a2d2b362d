package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/geom"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/level"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/property"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/tscn"
)

// defaultPolygonDepth compensates for the scene format's own default: a
// collision polygon with no depth attribute still has depth 1 in the engine,
// so the reverse direction must assume it too.
const defaultPolygonDepth = 1.0

// instanceObj is one emitted intermediate instance; plain map so unknown
// recovered properties slot in beside the identity keys.
type instanceObj map[string]any

// ConvertScene walks a parsed scene back into the intermediate layer/instance
// JSON. Node failures are logged and skip that node only; siblings still
// convert. Returns the encoded document and the number of skipped nodes.
func ConvertScene(ctx *Context, scene *tscn.Scene) ([]byte, int, error) {
	root := scene.Root()
	if root == nil {
		return nil, 0, fmt.Errorf("%w: scene has no root node", ErrStructural)
	}

	layers := map[string][]instanceObj{}
	var layerOrder []string
	byIndex := map[int]instanceObj{}
	skipped := 0

	addTo := func(layer string, obj instanceObj) {
		if _, ok := layers[layer]; !ok {
			layerOrder = append(layerOrder, layer)
		}
		layers[layer] = append(layers[layer], obj)
	}

	for _, n := range scene.Nodes {
		switch {
		case n.Parent == "": // root
		case n.Parent == ".":
			if scene.AssetType(n) == "" && !hasPaths(n) {
				// Plain grouping node; its children form a layer.
				addLayer(layers, &layerOrder, n.Name)
				continue
			}
			// An instance placed directly under the root lands in a
			// catch-all layer.
			obj, err := convertNode(ctx, scene, n)
			if err != nil {
				ctx.Log.Errorf("node %s: %v", n.Path(), err)
				skipped++
				continue
			}
			if obj != nil {
				byIndex[n.Index] = obj
				addTo("Default", obj)
			}
		default:
			parent, ok := scene.NodeAt(n.Parent)
			if !ok || parent.Parent != "." || scene.AssetType(parent) != "" || hasPaths(parent) {
				// Not a direct child of a layer node; curve children are
				// folded in by the waypoint pass below.
				continue
			}
			obj, err := convertNode(ctx, scene, n)
			if err != nil {
				ctx.Log.Errorf("node %s: %v", n.Path(), err)
				skipped++
				continue
			}
			if obj != nil {
				byIndex[n.Index] = obj
				addTo(parent.Name, obj)
			}
		}
	}

	// Second pass: fold curve nodes back into their referencing parents.
	for _, n := range scene.Nodes {
		if _, ok := n.Attr("point_count"); !ok {
			continue
		}
		if err := foldPathNode(ctx, scene, n, byIndex); err != nil {
			ctx.Log.Errorf("node %s: %v", n.Path(), err)
			skipped++
		}
	}

	out := map[string][]instanceObj{}
	for _, name := range layerOrder {
		out[name] = layers[name]
	}
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, skipped, err
	}
	return data, skipped, nil
}

func addLayer(layers map[string][]instanceObj, order *[]string, name string) {
	if _, ok := layers[name]; !ok {
		layers[name] = []instanceObj{}
		*order = append(*order, name)
	}
}

func hasPaths(n *tscn.Node) bool {
	_, ok := n.Attr("paths")
	return ok
}

// convertNode reverses one placed node. A nil object with nil error means
// the node carries nothing worth emitting.
func convertNode(ctx *Context, scene *tscn.Scene, n *tscn.Node) (instanceObj, error) {
	if hasPaths(n) {
		return convertWaypointParent(ctx, n)
	}

	key := scene.AssetType(n)
	if key == "" {
		return nil, fmt.Errorf("%w: node has no resource binding", ErrReference)
	}
	asset, ok := ctx.Assets[key]
	if !ok {
		return nil, fmt.Errorf("%w: no asset type %q for node binding", ErrReference, key)
	}
	cat, ok := asset.Category()
	if !ok {
		return nil, fmt.Errorf("%w: asset type %q declares no category", ErrSchema, key)
	}

	obj := instanceObj{"type": key, "name": n.Name}
	consumed := map[string]bool{"script": true}

	switch cat {
	case level.CategorySpatial, level.CategoryOBBVolume:
		tr, err := nodeTransform(n)
		if err != nil {
			return nil, err
		}
		putTransform(obj, tr)
		consumed["transform"] = true

	case level.CategoryVolume:
		if _, ok := n.Attr("shape"); ok {
			if err := reverseShapeVolume(scene, n, obj); err != nil {
				return nil, err
			}
			consumed["shape"] = true
			consumed["transform"] = true
		} else {
			if err := reversePolygonVolume(n, obj, true); err != nil {
				return nil, err
			}
			for _, k := range []string{"transform", "polygon", "depth", "margin"} {
				consumed[k] = true
			}
		}

	case level.CategoryPolygonVolume:
		if err := reversePolygonVolume(n, obj, false); err != nil {
			return nil, err
		}
		for _, k := range []string{"transform", "polygon", "height"} {
			consumed[k] = true
		}

	case level.CategoryWaypointPath:
		wp, err := convertWaypointParent(ctx, n)
		if err != nil {
			return nil, err
		}
		wp["type"] = key
		return wp, nil
	}

	recoverProps(ctx, asset, n, obj, consumed)
	return obj, nil
}

// convertWaypointParent emits the frame of a path-owning node; its points
// are filled in by the curve-folding pass.
func convertWaypointParent(ctx *Context, n *tscn.Node) (instanceObj, error) {
	obj := instanceObj{"name": n.Name}
	if key := strings.ToLower(n.Name); key != "" {
		if _, ok := ctx.Assets[key]; ok {
			obj["type"] = key
		}
	}
	tr, err := nodeTransform(n)
	if err != nil {
		return nil, err
	}
	putTransform(obj, tr)
	return obj, nil
}

// foldPathNode validates a curve node against its single referencing parent
// and writes the parent-local sample positions onto the parent's object.
func foldPathNode(ctx *Context, scene *tscn.Scene, n *tscn.Node, byIndex map[int]instanceObj) error {
	edges := scene.RefProps[n.Index]
	if len(edges) == 0 {
		return fmt.Errorf("%w: curve node has no referencing parent", ErrReference)
	}
	if len(edges) > 1 {
		return fmt.Errorf("%w: curve node referenced by %d parents", ErrReference, len(edges))
	}
	edge := edges[0]
	if edge.Prop != "paths" {
		ctx.Log.Warnf("node %s: referenced through unexpected property %q", n.Path(), edge.Prop)
	}
	parentObj, ok := byIndex[edge.Node]
	if !ok {
		return fmt.Errorf("%w: referencing parent was not converted", ErrReference)
	}
	tr, err := transformFromObj(parentObj)
	if err != nil {
		return fmt.Errorf("%w: referencing parent: %v", ErrReference, err)
	}

	countVal, _ := n.Attr("point_count")
	count, ok := countVal.Number()
	if !ok || count < 1 {
		return fmt.Errorf("%w: point_count must be a positive number", ErrSchema)
	}
	pointsVal, ok := n.Attr("points")
	if !ok || pointsVal.Kind != tscn.KindArray {
		return fmt.Errorf("%w: curve node has no points array", ErrSchema)
	}
	want := int(count) * 9
	if len(pointsVal.List) != want {
		return fmt.Errorf("%w: points array has %d values, want %d", ErrSchema, len(pointsVal.List), want)
	}

	// Nine numbers per sample; only the middle (position) triplet matters.
	points := make([]any, 0, int(count))
	for i := 0; i < len(pointsVal.List); i += 9 {
		var pos geom.Vec3
		for j, dst := range []*float64{&pos.X, &pos.Y, &pos.Z} {
			f, ok := pointsVal.List[i+3+j].Number()
			if !ok {
				return fmt.Errorf("%w: points element %d is not numeric", ErrSchema, i+3+j)
			}
			*dst = f
		}
		local := tr.WorldToLocal(pos)
		points = append(points, local.Map())
	}
	parentObj["points"] = points
	return nil
}

// reverseShapeVolume reconstructs a box volume from its collision shape
// sub-resource: the four bottom corners and the top-center axis point, all
// in world space.
func reverseShapeVolume(scene *tscn.Scene, n *tscn.Node, obj instanceObj) error {
	shapeVal, _ := n.Attr("shape")
	if shapeVal.Kind != tscn.KindCall || shapeVal.Call != "SubResource" || len(shapeVal.List) != 1 {
		return fmt.Errorf("%w: shape is not a sub-resource handle", ErrReference)
	}
	sub, ok := scene.SubByID[subHandleKey(shapeVal.List[0])]
	if !ok {
		return fmt.Errorf("%w: shape sub-resource not declared", ErrReference)
	}
	sizeVal, ok := sub.Attr("size")
	if !ok {
		return fmt.Errorf("%w: shape sub-resource has no size", ErrSchema)
	}
	size, err := property.Vec3FromScene(sizeVal)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	tr, err := nodeTransform(n)
	if err != nil {
		return err
	}

	hx, hy, hz := size.X/2, size.Y/2, size.Z/2
	local := []geom.Vec3{
		{X: -hx, Y: -hy, Z: -hz},
		{X: -hx, Y: -hy, Z: hz},
		{X: hx, Y: -hy, Z: hz},
		{X: hx, Y: -hy, Z: -hz},
		{Y: hy},
	}
	points := make([]any, 0, len(local))
	for _, p := range local {
		points = append(points, tr.LocalToWorld(p).Map())
	}
	obj["points"] = points
	return nil
}

// reversePolygonVolume reconstructs world-space points from a node's local
// 2D polygon. depth-compensated volumes re-center height below the node's
// translation; flat polygons keep the translation Y.
func reversePolygonVolume(n *tscn.Node, obj instanceObj, depthCompensated bool) error {
	polyVal, ok := n.Attr("polygon")
	if !ok {
		return fmt.Errorf("%w: volume node has no polygon", ErrSchema)
	}
	local, err := polygonPoints(polyVal)
	if err != nil {
		return err
	}
	if len(local) < 3 {
		return fmt.Errorf("%w: polygon has %d points, need at least 3", ErrSchema, len(local))
	}
	tr, err := nodeTransform(n)
	if err != nil {
		return err
	}

	var height float64
	if depthCompensated {
		height = defaultPolygonDepth
		if d, ok := n.Attr("depth"); ok {
			if f, ok := d.Number(); ok {
				height = f
			}
		}
	} else if h, ok := n.Attr("height"); ok {
		if f, ok := h.Number(); ok {
			height = f
		}
	}

	y := tr.Position.Y - height/2
	points := make([]any, 0, len(local))
	for _, p := range local {
		points = append(points, geom.Vec3{
			X: tr.Position.X + p.X,
			Y: y,
			Z: tr.Position.Z + p.Y,
		}.Map())
	}
	obj["points"] = points
	obj["height"] = height
	return nil
}

// polygonPoints flattens a PackedVector2Array literal into 2D points.
func polygonPoints(v tscn.Value) ([]geom.Vec2, error) {
	if v.Kind != tscn.KindCall || v.Call != "PackedVector2Array" || len(v.List)%2 != 0 {
		return nil, fmt.Errorf("%w: polygon is not a packed 2D array", ErrSchema)
	}
	out := make([]geom.Vec2, 0, len(v.List)/2)
	for i := 0; i < len(v.List); i += 2 {
		x, okX := v.List[i].Number()
		y, okY := v.List[i+1].Number()
		if !okX || !okY {
			return nil, fmt.Errorf("%w: polygon component %d is not numeric", ErrSchema, i)
		}
		out = append(out, geom.Vec2{X: x, Y: y})
	}
	return out, nil
}

// recoverProps decodes every unconsumed node attribute through the asset's
// declared property schema; undeclared attributes are dropped with a warning.
func recoverProps(ctx *Context, asset *level.Asset, n *tscn.Node, obj instanceObj, consumed map[string]bool) {
	for _, a := range n.Attrs {
		if consumed[a.Key] {
			continue
		}
		proto, ok := asset.Props[a.Key]
		if !ok {
			ctx.Log.Warnf("node %s: attribute %q not declared on asset %q, dropped",
				n.Path(), a.Key, asset.Type)
			continue
		}
		raw, err := proto.ToIntermediate(a.Value)
		if err != nil {
			ctx.Log.Warnf("node %s: attribute %q: %v, dropped", n.Path(), a.Key, err)
			continue
		}
		obj[a.Key] = raw
	}
}

// nodeTransform reads the node's transform literal, undoing the major-order
// swap.
func nodeTransform(n *tscn.Node) (geom.Transform, error) {
	v, ok := n.Attr("transform")
	if !ok {
		return geom.Transform{}, fmt.Errorf("%w: node has no transform", ErrSchema)
	}
	tr, err := property.TransformFromScene(v)
	if err != nil {
		return geom.Transform{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return tr, nil
}

// putTransform decomposes a transform into the intermediate schema's four
// vector keys.
func putTransform(obj instanceObj, tr geom.Transform) {
	obj["right"] = tr.Right.Map()
	obj["up"] = tr.Up.Map()
	obj["front"] = tr.Front.Map()
	obj["position"] = tr.Position.Map()
}

// transformFromObj rebuilds a transform from an already-converted instance
// object; each of the four vector keys must be present.
func transformFromObj(obj instanceObj) (geom.Transform, error) {
	var tr geom.Transform
	for _, f := range []struct {
		key string
		dst *geom.Vec3
	}{
		{"right", &tr.Right}, {"up", &tr.Up},
		{"front", &tr.Front}, {"position", &tr.Position},
	} {
		raw, ok := obj[f.key]
		if !ok {
			return tr, fmt.Errorf("missing %q", f.key)
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return tr, fmt.Errorf("%q is not a vector", f.key)
		}
		v, err := geom.Vec3FromMap(m)
		if err != nil {
			return tr, err
		}
		*f.dst = v
	}
	return tr, nil
}

// subHandleKey renders a SubResource argument (int or string id) into the
// scene's sub-resource map key.
func subHandleKey(v tscn.Value) string {
	switch v.Kind {
	case tscn.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case tscn.KindString:
		return v.Str
	}
	return v.String()
}
