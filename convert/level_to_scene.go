package convert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/geom"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/level"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/property"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/tscn"
)

// collisionMargin is the fixed margin emitted on volume collision shapes.
const collisionMargin = 0.04

// ConvertLevel synthesizes a scene from a resolved level. A conversion
// error aborts the whole file for this direction; instances the resolution
// engine already reported as unresolved are skipped, not fatal.
func ConvertLevel(ctx *Context, lvl *level.Level) (*tscn.Scene, error) {
	scene := tscn.NewScene()
	alloc := NewHandleAllocator()
	refs := refResolver{ctx: ctx, alloc: alloc}

	scene.AddNode(&tscn.Node{Name: nodeName(lvl.Name), Type: "Node3D", Instance: -1, Script: -1})
	for _, layerName := range lvl.LayerOrder {
		layer := lvl.Layers[layerName]
		scene.AddNode(&tscn.Node{
			Name: nodeName(layerName), Type: "Node3D", Parent: ".",
			Instance: -1, Script: -1,
		})
		for _, in := range layer.Instances {
			if err := convertInstance(ctx, scene, alloc, refs, lvl, nodeName(layerName), in); err != nil {
				return nil, fmt.Errorf("level %s: layer %s: instance %s: %w",
					lvl.Name, layerName, in.ID, err)
			}
		}
	}
	scene.SetExtResources(alloc.ExtResources())
	return scene, nil
}

func convertInstance(ctx *Context, scene *tscn.Scene, alloc *HandleAllocator, refs refResolver, lvl *level.Level, layerPath string, in *level.Instance) error {
	if in.Props == nil {
		// Already reported by the resolution engine.
		ctx.Log.Warnf("level %s: instance %s left unresolved, skipped", lvl.Name, in.ID)
		return nil
	}
	asset := ctx.Assets[in.Type]
	if !asset.AllowedIn(lvl.Name) {
		ctx.Log.Debugf("level %s: instance %s: type %q restricted to other levels, skipped",
			lvl.Name, in.ID, in.Type)
		return nil
	}
	cat, ok := asset.Category()
	if !ok {
		ctx.Log.Warnf("level %s: instance %s: type %q declares no category, skipped",
			lvl.Name, in.ID, in.Type)
		return nil
	}

	node := &tscn.Node{Name: nodeName(displayName(in)), Parent: layerPath, Instance: -1, Script: -1}
	consumed := map[string]bool{"name": true}

	switch cat {
	case level.CategorySpatial, level.CategoryOBBVolume:
		tr, err := takeTransform(in)
		if err != nil {
			return err
		}
		node.SetAttr("transform", transformValue(tr))
		if h, ok := ctx.wireHandle(alloc, asset); ok {
			node.Instance = h
		} else {
			node.Type = "Node3D"
		}

	case level.CategoryVolume:
		if err := volumeAttrs(node, in, true); err != nil {
			return err
		}
		node.Type = "CollisionPolygon3D"
		if h, ok := ctx.wireHandle(alloc, asset); ok {
			node.Script = h
		}

	case level.CategoryPolygonVolume:
		if err := volumeAttrs(node, in, false); err != nil {
			return err
		}
		node.Type = "CollisionPolygon3D"
		if h, ok := ctx.wireHandle(alloc, asset); ok {
			node.Instance = h
		}

	case level.CategoryWaypointPath:
		tr, err := takeTransform(in)
		if err != nil {
			return err
		}
		node.Type = "Node3D"
		node.SetAttr("transform", transformValue(tr))
		pathName := node.Name + "Path"
		node.SetAttr("paths", tscn.ArrayVal(tscn.CallVal("NodePath", tscn.Str(pathName))))
		scene.AddNode(node)
		consumed["points"] = true
		if err := appendPathNode(scene, node, pathName, in, tr); err != nil {
			return err
		}
		return emitRemainingProps(ctx, node, in, refs, consumed)
	}

	scene.AddNode(node)
	return emitRemainingProps(ctx, node, in, refs, consumed)
}

// emitRemainingProps renders every resolved property not consumed by the
// category step as a plain node attribute, in sorted order for stable
// output.
func emitRemainingProps(ctx *Context, node *tscn.Node, in *level.Instance, refs refResolver, consumed map[string]bool) error {
	keys := make([]string, 0, len(in.Props))
	for k := range in.Props {
		if consumed[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := in.Props[k]
		v, err := p.SceneValue(refs)
		if err != nil {
			ctx.Log.Warnf("instance %s: property %q: %v, dropped", in.ID, k, err)
			continue
		}
		node.SetAttr(k, v)
	}
	return nil
}

// takeTransform consumes the right/up/front/position vector properties and
// combines them into a single transform. A combined transform property is
// accepted in their place.
func takeTransform(in *level.Instance) (geom.Transform, error) {
	if p, ok := in.TakeProp("transform"); ok {
		if t, ok := p.GetVal().(geom.Transform); ok {
			return t, nil
		}
		return geom.Transform{}, fmt.Errorf("%w: transform property is not a transform", ErrSchema)
	}
	var tr geom.Transform
	for _, f := range []struct {
		key string
		dst *geom.Vec3
	}{
		{"right", &tr.Right}, {"up", &tr.Up},
		{"front", &tr.Front}, {"position", &tr.Position},
	} {
		p, ok := in.TakeProp(f.key)
		if !ok {
			return tr, fmt.Errorf("%w: transform vector %q missing", ErrSchema, f.key)
		}
		v, ok := p.GetVal().(geom.Vec3)
		if !ok {
			return tr, fmt.Errorf("%w: transform vector %q is not a vector", ErrSchema, f.key)
		}
		*f.dst = v
	}
	return tr, nil
}

// volumeAttrs consumes the instance's point list (plus height) and emits the
// centroid-local polygon. rotated lays the polygon horizontal with the
// floor-collision +90 degree X rotation and adds depth and margin.
func volumeAttrs(node *tscn.Node, in *level.Instance, rotated bool) error {
	points, err := takePoints(in, 3)
	if err != nil {
		return err
	}
	var height float64
	if p, ok := in.TakeProp("height"); ok {
		height, _ = p.GetVal().(float64)
	} else if rotated {
		return fmt.Errorf("%w: volume instance missing height", ErrSchema)
	}

	center, local, err := geom.LocalizePolygon(points)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	tr := geom.Identity()
	tr.Position = center.Add(geom.Vec3{Y: height / 2})
	if rotated {
		tr = tr.RotatedX90()
	}
	node.SetAttr("transform", transformValue(tr))

	flat := make([]tscn.Value, 0, len(local)*2)
	for _, p := range local {
		flat = append(flat, tscn.Num(p.X), tscn.Num(p.Y))
	}
	node.SetAttr("polygon", tscn.CallVal("PackedVector2Array", flat...))
	if rotated {
		node.SetAttr("depth", tscn.Num(height))
		node.SetAttr("margin", tscn.Num(collisionMargin))
	}
	return nil
}

// appendPathNode emits the curve child of a waypoint-path instance: nine
// numbers per sample (in-tangent, position, out-tangent), positions mapped
// from the instance's local frame into world space.
func appendPathNode(scene *tscn.Scene, parent *tscn.Node, name string, in *level.Instance, tr geom.Transform) error {
	points, err := takePoints(in, 1)
	if err != nil {
		return err
	}
	flat := make([]tscn.Value, 0, len(points)*9)
	for _, p := range points {
		world := tr.LocalToWorld(p)
		flat = append(flat,
			tscn.Num(0), tscn.Num(0), tscn.Num(0),
			tscn.Num(world.X), tscn.Num(world.Y), tscn.Num(world.Z),
			tscn.Num(0), tscn.Num(0), tscn.Num(0),
		)
	}
	pathNode := &tscn.Node{
		Name: name, Type: "Path3D", Parent: parent.Path(),
		Instance: -1, Script: -1,
	}
	pathNode.SetAttr("point_count", tscn.IntVal(int64(len(points))))
	pathNode.SetAttr("points", tscn.ArrayVal(flat...))
	scene.AddNode(pathNode)
	return nil
}

// takePoints consumes the points array property and requires at least min
// entries.
func takePoints(in *level.Instance, min int) ([]geom.Vec3, error) {
	p, ok := in.TakeProp("points")
	if !ok {
		return nil, fmt.Errorf("%w: instance has no point list", ErrSchema)
	}
	seq, ok := p.GetVal().([]any)
	if !ok {
		return nil, fmt.Errorf("%w: point list is not an array", ErrSchema)
	}
	points := make([]geom.Vec3, 0, len(seq))
	for i, e := range seq {
		v, ok := e.(geom.Vec3)
		if !ok {
			return nil, fmt.Errorf("%w: point %d is not a vector", ErrSchema, i)
		}
		points = append(points, v)
	}
	if len(points) < min {
		return nil, fmt.Errorf("%w: %d points, need at least %d", ErrSchema, len(points), min)
	}
	return points, nil
}

func transformValue(tr geom.Transform) tscn.Value {
	p, _ := property.Create("transform", "transform")
	p, _ = p.SetVal(tr)
	v, _ := p.SceneValue(nil)
	return v
}

func displayName(in *level.Instance) string {
	if in.Name != "" {
		return in.Name
	}
	return in.ID
}

// nodeName strips the characters the scene format forbids in node names.
func nodeName(s string) string {
	r := strings.NewReplacer("/", "_", ".", "_", ":", "_", "@", "_", "\"", "")
	out := r.Replace(s)
	if out == "" {
		return "Node"
	}
	return out
}
