package level

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/property"
)

// Instance is one placed occurrence of an asset inside a layer. Raw holds
// the untyped JSON values; Props is populated by the resolution engine.
type Instance struct {
	ID   string
	Name string
	Type string // lowercase asset-type key

	Raw   map[string]gjson.Result
	Props map[string]property.Property
}

// Prop returns a resolved property by name.
func (in *Instance) Prop(name string) (property.Property, bool) {
	p, ok := in.Props[name]
	return p, ok
}

// TakeProp removes and returns a resolved property, used when a converter
// consumes source properties to synthesize a combined one.
func (in *Instance) TakeProp(name string) (property.Property, bool) {
	p, ok := in.Props[name]
	if ok {
		delete(in.Props, name)
	}
	return p, ok
}

// Layer is a named ordered sequence of instances.
type Layer struct {
	Name      string
	Instances []*Instance
}

// Level is the parsed form of one intermediate JSON level file.
type Level struct {
	Name   string
	Source string
	Dest   string
	Layers map[string]*Layer

	// LayerOrder preserves file order so emission is reproducible.
	LayerOrder []string
}

// identity keys are stripped from an instance object before the remaining
// keys are treated as generic properties.
var identityKeys = map[string]bool{"type": true, "id": true, "name": true}

// ParseLevel reads one intermediate JSON level file: an object keyed by
// layer name, each holding an array of instance objects.
func ParseLevel(name, path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("level %s: malformed JSON", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("level %s: top level must be an object of layers", path)
	}

	lvl := &Level{
		Name:   name,
		Source: path,
		Layers: map[string]*Layer{},
	}
	var parseErr error
	root.ForEach(func(layerName, instances gjson.Result) bool {
		if !instances.IsArray() {
			parseErr = fmt.Errorf("level %s: layer %q is not an instance array", path, layerName.String())
			return false
		}
		layer := &Layer{Name: layerName.String()}
		instances.ForEach(func(_, obj gjson.Result) bool {
			layer.Instances = append(layer.Instances, instanceFromJSON(obj))
			return true
		})
		lvl.Layers[layer.Name] = layer
		lvl.LayerOrder = append(lvl.LayerOrder, layer.Name)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return lvl, nil
}

func instanceFromJSON(obj gjson.Result) *Instance {
	in := &Instance{
		ID:   obj.Get("id").String(),
		Name: obj.Get("name").String(),
		Type: strings.ToLower(obj.Get("type").String()),
		Raw:  map[string]gjson.Result{},
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if identityKeys[key] {
			return true
		}
		in.Raw[key] = v
		return true
	})
	return in
}
