// Package property implements the typed value model shared by both
// conversion directions: a closed tagged union of property kinds with
// per-kind coercion from untyped intermediate values and per-kind scene
// literal rendering.
package property

import (
	"fmt"
	"strings"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/geom"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/tscn"
)

// Kind enumerates the closed set of property kinds.
type Kind int

const (
	Invalid Kind = iota
	String
	Int
	Float
	Vector3
	Transform
	Selection
	Reference
	Raw
	Array
)

var kindNames = map[Kind]string{
	Invalid:   "invalid",
	String:    "string",
	Int:       "int",
	Float:     "float",
	Vector3:   "vec3",
	Transform: "transform",
	Selection: "selection",
	Reference: "reference",
	Raw:       "raw",
	Array:     "array",
}

func (k Kind) String() string { return kindNames[k] }

// ParseKind maps a declared type name onto a Kind. Unknown names yield
// Invalid; the caller decides whether that is fatal.
func ParseKind(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "text":
		return String
	case "int", "integer":
		return Int
	case "float", "number":
		return Float
	case "vec3", "vector3", "vector":
		return Vector3
	case "transform":
		return Transform
	case "selection", "select", "enum":
		return Selection
	case "ref", "reference":
		return Reference
	case "raw":
		return Raw
	case "array", "list":
		return Array
	}
	return Invalid
}

// capabilities lists the optional declaration fields each kind legally
// accepts. Fields outside the table log a warning and are dropped.
var capabilities = map[Kind]struct {
	minMax     bool
	selections bool
}{
	Int:       {minMax: true},
	Float:     {minMax: true},
	Selection: {selections: true},
}

// AcceptsMinMax reports whether the kind may carry numeric bounds.
func (k Kind) AcceptsMinMax() bool { return capabilities[k].minMax }

// AcceptsSelections reports whether the kind may carry allowed values.
func (k Kind) AcceptsSelections() bool { return capabilities[k].selections }

// RefResolver maps a named object id onto an allocated resource handle.
// Implemented by the emitter's handle table.
type RefResolver interface {
	HandleFor(id string) (int, bool)
}

// Property is one typed property: declaration metadata plus an optional
// current value. SetVal returns copies, so asset prototypes stay immutable.
type Property struct {
	ID         string
	Kind       Kind
	Elem       Kind // element kind for Array, fixed at creation
	Default    any
	Min, Max   *float64
	Selections []string

	val    any
	hasVal bool
}

// Create constructs a default-valued property of the requested kind name.
// Unknown kinds return an Invalid property and an error; the converter
// boundary logs it and carries on.
func Create(kindName, id string) (Property, error) {
	k := ParseKind(kindName)
	if k == Invalid {
		return Property{ID: id}, fmt.Errorf("unknown property kind %q", kindName)
	}
	return Property{ID: id, Kind: k}, nil
}

// HasVal reports whether a current value has been applied.
func (p Property) HasVal() bool { return p.hasVal }

// GetVal returns the decoded native value, or the default when no value has
// been set.
func (p Property) GetVal() any {
	if p.hasVal {
		return p.val
	}
	return p.Default
}

// SetVal returns a copy of p with raw coerced into the kind's storage type.
func (p Property) SetVal(raw any) (Property, error) {
	v, err := coerce(p, raw)
	if err != nil {
		return p, fmt.Errorf("property %q (%s): %w", p.ID, p.Kind, err)
	}
	out := p
	out.val = v
	out.hasVal = true
	return out, nil
}

func coerce(p Property, raw any) (any, error) {
	switch p.Kind {
	case String:
		switch s := raw.(type) {
		case string:
			return s, nil
		case float64, int, int64:
			return fmt.Sprint(s), nil
		}
		return nil, fmt.Errorf("cannot store %T as string", raw)
	case Int:
		n, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("cannot store %T as int", raw)
		}
		return int64(n), nil
	case Float:
		n, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("cannot store %T as float", raw)
		}
		return n, nil
	case Selection:
		if n, ok := toFloat(raw); ok {
			return int64(n), nil
		}
		// A selection may be named instead of indexed.
		if s, ok := raw.(string); ok {
			for i, sel := range p.Selections {
				if strings.EqualFold(sel, s) {
					return int64(i), nil
				}
			}
			return nil, fmt.Errorf("%q is not a declared selection", s)
		}
		return nil, fmt.Errorf("cannot store %T as selection", raw)
	case Vector3:
		switch v := raw.(type) {
		case geom.Vec3:
			return v, nil
		case map[string]any:
			return geom.Vec3FromMap(v)
		}
		return nil, fmt.Errorf("cannot store %T as vector", raw)
	case Transform:
		switch v := raw.(type) {
		case geom.Transform:
			return v, nil
		case map[string]any:
			return geom.TransformFromMap(v)
		}
		return nil, fmt.Errorf("cannot store %T as transform", raw)
	case Reference:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("cannot store %T as reference", raw)
		}
		return s, nil
	case Raw:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	case Array:
		seq, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot store %T as array", raw)
		}
		elem := Property{ID: p.ID, Kind: p.Elem, Selections: p.Selections}
		out := make([]any, 0, len(seq))
		for i, e := range seq {
			v, err := coerce(elem, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("kind %s holds no value", p.Kind)
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
	}
	return 0, false
}

// SceneLiteral renders the current value in the scene format's literal
// syntax. refs is consulted only by Reference properties and may be nil
// otherwise.
func (p Property) SceneLiteral(refs RefResolver) (string, error) {
	v, err := p.sceneValue(refs)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// SceneValue renders the current value as a parsed scene value, usable as a
// node attribute.
func (p Property) SceneValue(refs RefResolver) (tscn.Value, error) {
	return p.sceneValue(refs)
}

func (p Property) sceneValue(refs RefResolver) (tscn.Value, error) {
	if p.GetVal() == nil {
		return tscn.Null(), nil
	}
	// Defaults come straight from the declaration JSON, so coerce whatever
	// is current into the kind's storage type before rendering.
	val, err := coerce(p, p.GetVal())
	if err != nil {
		return tscn.Value{}, err
	}
	switch p.Kind {
	case String:
		return tscn.Str(val.(string)), nil
	case Int, Selection:
		return tscn.IntVal(val.(int64)), nil
	case Float:
		return numberValue(val.(float64)), nil
	case Vector3:
		v := val.(geom.Vec3)
		return tscn.CallVal("Vector3", numberValue(v.X), numberValue(v.Y), numberValue(v.Z)), nil
	case Transform:
		t := val.(geom.Transform)
		n := geom.SwapMajor(t.To12())
		args := make([]tscn.Value, len(n))
		for i, f := range n {
			args[i] = numberValue(f)
		}
		return tscn.CallVal("Transform3D", args...), nil
	case Reference:
		id := val.(string)
		if refs == nil {
			return tscn.Value{}, fmt.Errorf("property %q: reference %q has no handle table", p.ID, id)
		}
		h, ok := refs.HandleFor(id)
		if !ok {
			return tscn.Value{}, fmt.Errorf("property %q: reference %q has no allocated handle", p.ID, id)
		}
		return tscn.CallVal("ExtResource", tscn.IntVal(int64(h))), nil
	case Raw:
		// Opaque text passes through unquoted.
		s, _ := val.(string)
		return tscn.RawVal(s), nil
	case Array:
		seq := val.([]any)
		elem := Property{ID: p.ID, Kind: p.Elem, Selections: p.Selections}
		out := make([]tscn.Value, 0, len(seq))
		for _, e := range seq {
			ep, err := elem.SetVal(e)
			if err != nil {
				return tscn.Value{}, err
			}
			v, err := ep.sceneValue(refs)
			if err != nil {
				return tscn.Value{}, err
			}
			out = append(out, v)
		}
		return tscn.ArrayVal(out...), nil
	}
	return tscn.Value{}, fmt.Errorf("property %q: kind %s has no scene literal", p.ID, p.Kind)
}

func numberValue(f float64) tscn.Value { return tscn.Num(f) }

// FromSceneLiteral performs the inverse of SceneLiteral: it decodes an
// already-tokenized scene value into the property's native storage and
// returns the updated copy.
func (p Property) FromSceneLiteral(v tscn.Value) (Property, error) {
	raw, err := intermediateValue(p, v)
	if err != nil {
		return p, fmt.Errorf("property %q (%s): %w", p.ID, p.Kind, err)
	}
	return p.SetVal(raw)
}

// ToIntermediate decodes a scene value into the native intermediate
// representation without storing it.
func (p Property) ToIntermediate(v tscn.Value) (any, error) {
	return intermediateValue(p, v)
}

func intermediateValue(p Property, v tscn.Value) (any, error) {
	switch p.Kind {
	case String, Reference:
		if v.Kind != tscn.KindString {
			return nil, fmt.Errorf("expected string literal, got %s", v.String())
		}
		return v.Str, nil
	case Int, Selection:
		if n, ok := v.Number(); ok {
			return int64(n), nil
		}
		return nil, fmt.Errorf("expected numeric literal, got %s", v.String())
	case Float:
		if n, ok := v.Number(); ok {
			return n, nil
		}
		return nil, fmt.Errorf("expected numeric literal, got %s", v.String())
	case Vector3:
		vec, err := Vec3FromScene(v)
		if err != nil {
			return nil, err
		}
		return vec, nil
	case Transform:
		t, err := TransformFromScene(v)
		if err != nil {
			return nil, err
		}
		return t, nil
	case Raw:
		return v.String(), nil
	case Array:
		if v.Kind != tscn.KindArray {
			return nil, fmt.Errorf("expected array literal, got %s", v.String())
		}
		elem := Property{ID: p.ID, Kind: p.Elem, Selections: p.Selections}
		out := make([]any, 0, len(v.List))
		for i, e := range v.List {
			raw, err := intermediateValue(elem, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, raw)
		}
		return out, nil
	}
	return nil, fmt.Errorf("kind %s has no intermediate value", p.Kind)
}

// Vec3FromScene decodes a Vector3(x, y, z) literal.
func Vec3FromScene(v tscn.Value) (geom.Vec3, error) {
	if v.Kind != tscn.KindCall || v.Call != "Vector3" || len(v.List) != 3 {
		return geom.Vec3{}, fmt.Errorf("expected Vector3 literal, got %s", v.String())
	}
	var out [3]float64
	for i, a := range v.List {
		n, ok := a.Number()
		if !ok {
			return geom.Vec3{}, fmt.Errorf("Vector3 component %d is not numeric", i)
		}
		out[i] = n
	}
	return geom.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// TransformFromScene decodes a Transform3D literal, undoing the major-order
// swap applied on emission.
func TransformFromScene(v tscn.Value) (geom.Transform, error) {
	if v.Kind != tscn.KindCall || v.Call != "Transform3D" || len(v.List) != 12 {
		return geom.Transform{}, fmt.Errorf("expected Transform3D literal, got %s", v.String())
	}
	var n [12]float64
	for i, a := range v.List {
		f, ok := a.Number()
		if !ok {
			return geom.Transform{}, fmt.Errorf("Transform3D component %d is not numeric", i)
		}
		n[i] = f
	}
	return geom.From12(geom.SwapMajor(n)), nil
}
