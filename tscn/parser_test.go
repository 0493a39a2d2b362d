package tscn

import (
	"strings"
	"testing"
)

const sampleScene = `[gd_scene load_steps=3 format=3]

[ext_resource path="res://Objects/ammo_crate.tscn" type="PackedScene" id=0]
[ext_resource path="res://Scripts/combat_volume.gd" type="Script" id=1]

[sub_resource type="BoxShape3D" id=1]
size = Vector3(4, 2, 6)

[node name="Level" type="Node3D"]

[node name="AmmoCrate" parent="." instance=ExtResource(0)]
transform = Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 10, 20, 30)

[node name="Patrol" type="Path3D" parent="."]
waypoints = [NodePath("Waypoint1"), NodePath("Waypoint2")]

[node name="Waypoint1" type="Node3D" parent="Patrol"]
[node name="Waypoint2" type="Node3D" parent="Patrol"]
`

func TestParseTransformLiteral(t *testing.T) {
	s, err := Parse("sample.tscn", []byte(sampleScene))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n, ok := s.NodeAt("AmmoCrate")
	if !ok {
		t.Fatal("AmmoCrate node missing")
	}
	v, ok := n.Attr("transform")
	if !ok {
		t.Fatal("transform attribute missing")
	}
	if v.Kind != KindCall || v.Call != "Transform3D" || len(v.List) != 12 {
		t.Fatalf("unexpected transform value: %s", v.String())
	}
	want := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1, 10, 20, 30}
	for i, arg := range v.List {
		n, ok := arg.Number()
		if !ok || n != want[i] {
			t.Fatalf("arg %d = %s, want %v", i, arg.String(), want[i])
		}
	}
	if got := v.String(); got != "Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 10, 20, 30)" {
		t.Fatalf("re-serialized literal = %q", got)
	}
}

func TestParseResources(t *testing.T) {
	s, err := Parse("sample.tscn", []byte(sampleScene))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Ext) != 2 {
		t.Fatalf("ext resources = %d, want 2", len(s.Ext))
	}
	if got := s.ExtByID[0].Stem(); got != "ammo_crate" {
		t.Fatalf("stem = %q", got)
	}
	sub, ok := s.SubByID["1"]
	if !ok {
		t.Fatal("sub resource missing")
	}
	if sub.Type != "BoxShape3D" {
		t.Fatalf("sub type = %q", sub.Type)
	}
	size, ok := sub.Attr("size")
	if !ok || size.Kind != KindCall || size.Call != "Vector3" {
		t.Fatalf("size attr = %v", size)
	}
}

func TestAssetTypeFromResourceStem(t *testing.T) {
	s, err := Parse("sample.tscn", []byte(sampleScene))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n, _ := s.NodeAt("AmmoCrate")
	if got := s.AssetType(n); got != "ammo_crate" {
		t.Fatalf("asset type = %q, want ammo_crate", got)
	}
}

func TestNodePathSecondPass(t *testing.T) {
	s, err := Parse("sample.tscn", []byte(sampleScene))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	patrol, _ := s.NodeAt("Patrol")
	targets := patrol.PathRefs["waypoints"]
	if len(targets) != 2 {
		t.Fatalf("resolved targets = %d, want 2", len(targets))
	}
	w1, _ := s.NodeAt("Patrol/Waypoint1")
	edges := s.RefProps[w1.Index]
	if len(edges) != 1 || edges[0].Node != patrol.Index || edges[0].Prop != "waypoints" {
		t.Fatalf("reverse edges = %+v", edges)
	}
}

func TestParseObjectBlock(t *testing.T) {
	src := `[gd_scene format=3]

[node name="Root" type="Node3D"]
metadata = {"team": 1, "tags": ["a", "b"], "nested": {"ok": true}}
`
	s, err := Parse("obj.tscn", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, ok := s.Root().Attr("metadata")
	if !ok || v.Kind != KindObject || len(v.Entries) != 3 {
		t.Fatalf("metadata = %v", v)
	}
	if got := v.String(); got != `{"team": 1, "tags": ["a", "b"], "nested": {"ok": true}}` {
		t.Fatalf("rendered object = %s", got)
	}
}

func TestParseMalformedHeader(t *testing.T) {
	_, err := Parse("bad.tscn", []byte("[node name=\"X\"\ntransform = 1\n"))
	if err == nil {
		t.Fatal("expected parse failure for malformed header")
	}
	if !strings.Contains(err.Error(), "bad.tscn") {
		t.Fatalf("diagnostic should name the file: %v", err)
	}
}

func TestParseUnbalancedArray(t *testing.T) {
	_, err := Parse("bad.tscn", []byte("[gd_scene format=3]\n\n[node name=\"X\"]\npoints = [1, 2, 3\n"))
	if err == nil {
		t.Fatal("expected parse failure for unbalanced array")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	s, err := Parse("sample.tscn", []byte(sampleScene))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	again, err := Parse("sample2.tscn", s.Marshal())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again.Nodes) != len(s.Nodes) || len(again.Ext) != len(s.Ext) || len(again.Subs) != len(s.Subs) {
		t.Fatalf("round trip changed structure")
	}
	n, _ := again.NodeAt("AmmoCrate")
	v, _ := n.Attr("transform")
	if v.String() != "Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, 10, 20, 30)" {
		t.Fatalf("round trip changed literal: %s", v.String())
	}
}
