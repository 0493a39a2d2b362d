package convert

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/level"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/property"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/tscn"
)

const testAssetTypes = `{
  "AssetTypes": [
    {
      "type": "Crate",
      "directory": "Objects",
      "constants": {"Category": "Spatial"},
      "properties": [
        {"name": "amount", "type": "int", "default": 50},
        {"name": "meta", "type": "raw"}
      ]
    },
    {"type": "Bunker", "directory": "Objects", "constants": {"Category": "Spatial"}},
    {"type": "Flag", "directory": "Objects", "constants": {"Category": "Spatial"}},
    {"type": "Zone", "directory": "Scripts", "constants": {"Category": "Volume"}},
    {"type": "Sector", "directory": "Areas", "constants": {"Category": "PolygonVolume"}},
    {"type": "Patrol", "constants": {"Category": "WaypointPath"}}
  ]
}`

func testContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "asset_types.json")
	if err := os.WriteFile(path, []byte(testAssetTypes), 0o644); err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	assets, err := level.LoadAssetTypes(path, log)
	if err != nil {
		t.Fatal(err)
	}
	res := level.NewResources()
	for _, f := range []string{"crate.tscn", "bunker.tscn", "flag.tscn", "sector.tscn", "zone.gd"} {
		res.Add("src/"+f, "dst/"+f)
	}
	return NewContext(log, assets, res)
}

func parseTestLevel(t *testing.T, name, body string) *level.Level {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	lvl, err := level.ParseLevel(name, path)
	if err != nil {
		t.Fatal(err)
	}
	return lvl
}

func convertTestLevel(t *testing.T, ctx *Context, body string) *tscn.Scene {
	t.Helper()
	lvl := parseTestLevel(t, "berlin", body)
	level.ResolveLevel(lvl, ctx.Assets, ctx.Log)
	scene, err := ConvertLevel(ctx, lvl)
	if err != nil {
		t.Fatal(err)
	}
	return scene
}

func TestHandleAllocationFirstUseOrder(t *testing.T) {
	ctx := testContext(t)
	body := `{"Objects": [` +
		spatial("Crate", "a1") + "," +
		spatial("Bunker", "b1") + "," +
		spatial("Crate", "a2") + "," +
		spatial("Flag", "c1") +
		`]}`
	scene := convertTestLevel(t, ctx, body)

	want := []string{"res://Objects/crate.tscn", "res://Objects/bunker.tscn", "res://Objects/flag.tscn"}
	if len(scene.Ext) != len(want) {
		t.Fatalf("got %d ext resources, want %d", len(scene.Ext), len(want))
	}
	for i, p := range want {
		if scene.Ext[i].ID != i || scene.Ext[i].Path != p {
			t.Errorf("ext[%d] = id %d path %q, want id %d path %q",
				i, scene.Ext[i].ID, scene.Ext[i].Path, i, p)
		}
	}
}

func spatial(typ, id string) string {
	return `{
      "type": "` + typ + `", "id": "` + id + `", "name": "` + id + `",
      "right": {"x": 1, "y": 0, "z": 0},
      "up": {"x": 0, "y": 1, "z": 0},
      "front": {"x": 0, "y": 0, "z": 1},
      "position": {"x": 0, "y": 0, "z": 0}
    }`
}

func TestVolumeCentroidTransform(t *testing.T) {
	ctx := testContext(t)
	body := `{"Zones": [{
      "type": "Zone", "id": "z1", "name": "Combat",
      "height": 0,
      "points": [
        {"x": 0, "y": 6, "z": 0},
        {"x": 0, "y": 6, "z": 10},
        {"x": 10, "y": 6, "z": 10},
        {"x": 10, "y": 6, "z": 0}
      ]
    }]}`
	scene := convertTestLevel(t, ctx, body)

	node, ok := scene.NodeAt("Zones/Combat")
	if !ok {
		t.Fatal("volume node not emitted")
	}
	trVal, ok := node.Attr("transform")
	if !ok {
		t.Fatal("volume node has no transform")
	}
	tr, err := property.TransformFromScene(trVal)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Position.X != 5 || tr.Position.Y != 6 || tr.Position.Z != 5 {
		t.Errorf("position = %+v, want (5, 6, 5)", tr.Position)
	}

	poly, ok := node.Attr("polygon")
	if !ok || poly.Call != "PackedVector2Array" {
		t.Fatalf("polygon attr missing or wrong constructor: %v", poly)
	}
	want := []float64{-5, -5, -5, 5, 5, 5, 5, -5}
	if len(poly.List) != len(want) {
		t.Fatalf("polygon has %d components, want %d", len(poly.List), len(want))
	}
	for i, w := range want {
		got, _ := poly.List[i].Number()
		if got != w {
			t.Errorf("polygon[%d] = %v, want %v", i, got, w)
		}
	}

	if d, ok := node.Attr("depth"); !ok {
		t.Error("volume node missing depth")
	} else if f, _ := d.Number(); f != 0 {
		t.Errorf("depth = %v, want 0", f)
	}
	if m, ok := node.Attr("margin"); !ok {
		t.Error("volume node missing margin")
	} else if f, _ := m.Number(); f != collisionMargin {
		t.Errorf("margin = %v, want %v", f, collisionMargin)
	}
	if node.Script < 0 {
		t.Error("volume node should wire its script resource")
	}
}

func TestSpatialRoundTrip(t *testing.T) {
	ctx := testContext(t)
	body := `{"Objects": [{
      "type": "Crate", "id": "c1", "name": "Forward",
      "amount": 75,
      "meta": "PackedStringArray(\"alpha\")",
      "right": {"x": 1, "y": 0, "z": 0},
      "up": {"x": 0, "y": 1, "z": 0},
      "front": {"x": 0, "y": 0, "z": 1},
      "position": {"x": 10, "y": 20, "z": 30}
    }]}`
	scene := convertTestLevel(t, ctx, body)

	node, ok := scene.NodeAt("Objects/Forward")
	if !ok {
		t.Fatal("instance node not emitted")
	}
	meta, ok := node.Attr("meta")
	if !ok {
		t.Fatal("meta attribute not emitted")
	}
	if meta.Kind != tscn.KindRaw || meta.String() != `PackedStringArray("alpha")` {
		t.Fatalf("meta renders as %s, want the opaque text unquoted", meta.String())
	}

	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("%d nodes skipped", skipped)
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	objects := out["Objects"]
	if len(objects) != 1 {
		t.Fatalf("got %d instances, want 1", len(objects))
	}
	inst := objects[0]
	if inst["type"] != "crate" || inst["name"] != "Forward" {
		t.Errorf("identity = %v/%v", inst["type"], inst["name"])
	}
	pos, ok := inst["position"].(map[string]any)
	if !ok {
		t.Fatal("position missing")
	}
	if pos["x"] != 10.0 || pos["y"] != 20.0 || pos["z"] != 30.0 {
		t.Errorf("position = %v", pos)
	}
	if inst["amount"] != 75.0 {
		t.Errorf("amount = %v, want 75", inst["amount"])
	}
	if inst["meta"] != `PackedStringArray("alpha")` {
		t.Errorf("meta = %v, want the opaque text back", inst["meta"])
	}
}

const waypointSceneWithTransform = `[gd_scene format=3]

[node name="Berlin" type="Node3D"]

[node name="Waypoints" type="Node3D" parent="."]

[node name="Patrol" type="Node3D" parent="Waypoints"]
transform = Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 10, 0, 0)
paths = [NodePath("Path")]

[node name="Path" type="Path3D" parent="Waypoints/Patrol"]
point_count = 2
points = [0, 0, 0, 11, 2, 3, 0, 0, 0, 0, 0, 0, 14, 5, 6, 0, 0, 0]
`

const waypointSceneNoTransform = `[gd_scene format=3]

[node name="Berlin" type="Node3D"]

[node name="Waypoints" type="Node3D" parent="."]

[node name="Patrol" type="Node3D" parent="Waypoints"]
paths = [NodePath("Path")]

[node name="Path" type="Path3D" parent="Waypoints/Patrol"]
point_count = 2
points = [0, 0, 0, 11, 2, 3, 0, 0, 0, 0, 0, 0, 14, 5, 6, 0, 0, 0]
`

func TestWaypointReprojection(t *testing.T) {
	ctx := testContext(t)
	scene, err := tscn.Parse("waypoints.tscn", []byte(waypointSceneWithTransform))
	if err != nil {
		t.Fatal(err)
	}
	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("%d nodes skipped", skipped)
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out["Waypoints"]) != 1 {
		t.Fatalf("got %d waypoint instances, want 1", len(out["Waypoints"]))
	}
	inst := out["Waypoints"][0]
	if inst["type"] != "patrol" {
		t.Errorf("type = %v, want patrol", inst["type"])
	}
	points, ok := inst["points"].([]any)
	if !ok {
		t.Fatal("points unset on waypoint parent")
	}
	// Parent sits at (10, 0, 0); world samples (11,2,3) and (14,5,6) land
	// one frame over.
	want := [][3]float64{{1, 2, 3}, {4, 5, 6}}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d", len(points), len(want))
	}
	for i, w := range want {
		p := points[i].(map[string]any)
		for j, k := range []string{"x", "y", "z"} {
			if got := p[k].(float64); math.Abs(got-w[j]) > 1e-9 {
				t.Errorf("point %d %s = %v, want %v", i, k, got, w[j])
			}
		}
	}
}

func TestWaypointWithoutParentTransformFails(t *testing.T) {
	ctx := testContext(t)
	scene, err := tscn.Parse("waypoints.tscn", []byte(waypointSceneNoTransform))
	if err != nil {
		t.Fatal(err)
	}
	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		t.Fatal(err)
	}
	if skipped == 0 {
		t.Fatal("expected skipped nodes when the parent carries no transform")
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	for _, inst := range out["Waypoints"] {
		if _, ok := inst["points"]; ok {
			t.Error("points must stay unset when reprojection fails")
		}
	}
}

const polygonVolumeScene = `[gd_scene load_steps=2 format=3]

[ext_resource path="res://Scripts/zone.gd" type="Script" id=0]

[node name="Berlin" type="Node3D"]

[node name="Zones" type="Node3D" parent="."]

[node name="Combat" type="CollisionPolygon3D" parent="Zones" script=ExtResource(0)]
transform = Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 5, 0)
polygon = PackedVector2Array(-1, -1, -1, 1, 1, 1)
`

func TestPolygonDepthDefault(t *testing.T) {
	ctx := testContext(t)
	scene, err := tscn.Parse("zones.tscn", []byte(polygonVolumeScene))
	if err != nil {
		t.Fatal(err)
	}
	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("%d nodes skipped", skipped)
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	inst := out["Zones"][0]
	if inst["height"] != 1.0 {
		t.Errorf("height = %v, want the format default 1", inst["height"])
	}
	points := inst["points"].([]any)
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	first := points[0].(map[string]any)
	if first["y"] != 4.5 {
		t.Errorf("point y = %v, want 4.5 (translation minus half depth)", first["y"])
	}
	if first["x"] != -1.0 || first["z"] != -1.0 {
		t.Errorf("point = %v, want (-1, 4.5, -1)", first)
	}
}

const shapeVolumeScene = `[gd_scene load_steps=3 format=3]

[ext_resource path="res://Scripts/zone.gd" type="Script" id=0]

[sub_resource type="BoxShape3D" id=1]
size = Vector3(4, 2, 6)

[node name="Berlin" type="Node3D"]

[node name="Zones" type="Node3D" parent="."]

[node name="Box" type="CollisionShape3D" parent="Zones" script=ExtResource(0)]
transform = Transform3D(0, 0, 1, 0, 1, 0, -1, 0, 0, 10, 3, 20)
shape = SubResource(1)
`

func TestShapeVolumeCorners(t *testing.T) {
	ctx := testContext(t)
	scene, err := tscn.Parse("zones.tscn", []byte(shapeVolumeScene))
	if err != nil {
		t.Fatal(err)
	}
	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("%d nodes skipped", skipped)
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	inst := out["Zones"][0]
	points := inst["points"].([]any)
	if len(points) != 5 {
		t.Fatalf("got %d points, want 4 corners plus the axis point", len(points))
	}

	// The node is rotated 90 degrees about Y, so the box's 6-long Z side
	// lands on world X and the 4-long X side on world Z.
	want := [][3]float64{
		{7, 2, 22}, {13, 2, 22}, {13, 2, 18}, {7, 2, 18}, {10, 4, 20},
	}
	for i, w := range want {
		p := points[i].(map[string]any)
		for j, k := range []string{"x", "y", "z"} {
			if got := p[k].(float64); math.Abs(got-w[j]) > 1e-9 {
				t.Errorf("point %d %s = %v, want %v", i, k, got, w[j])
			}
		}
	}
}

func TestLevelRestrictionFiltersInstances(t *testing.T) {
	ctx := testContext(t)
	ctx.Assets["crate"].Restrict = []string{"kursk"}
	body := `{"Objects": [` + spatial("Crate", "a1") + "," + spatial("Bunker", "b1") + `]}`
	scene := convertTestLevel(t, ctx, body)

	if _, ok := scene.NodeAt("Objects/a1"); ok {
		t.Error("restricted instance should be filtered from this level")
	}
	if _, ok := scene.NodeAt("Objects/b1"); !ok {
		t.Error("unrestricted instance missing")
	}
}

func TestMissingShapeSkipsNodeOnly(t *testing.T) {
	ctx := testContext(t)
	broken := `[gd_scene load_steps=2 format=3]

[ext_resource path="res://Scripts/zone.gd" type="Script" id=0]

[node name="Berlin" type="Node3D"]

[node name="Zones" type="Node3D" parent="."]

[node name="Bad" type="CollisionShape3D" parent="Zones" script=ExtResource(0)]
transform = Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0)
shape = SubResource(9)

[node name="Good" type="CollisionPolygon3D" parent="Zones" script=ExtResource(0)]
transform = Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 5, 0)
polygon = PackedVector2Array(-1, -1, -1, 1, 1, 1)
`
	scene, err := tscn.Parse("zones.tscn", []byte(broken))
	if err != nil {
		t.Fatal(err)
	}
	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out["Zones"]) != 1 {
		t.Fatalf("got %d surviving instances, want 1", len(out["Zones"]))
	}
	if out["Zones"][0]["name"] != "Good" {
		t.Errorf("survivor = %v, want Good", out["Zones"][0]["name"])
	}
}
