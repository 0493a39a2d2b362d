package level

import (
	"github.com/sirupsen/logrus"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/property"
)

// injectedProps are the identity/transform primitives every placed instance
// implicitly carries, whether or not its asset declares them.
func injectedProps() map[string]property.Property {
	props := map[string]property.Property{}
	add := func(kind, id string) property.Property {
		p, _ := property.Create(kind, id)
		return p
	}
	props["name"] = add("string", "name")
	for _, v := range []string{"right", "up", "front", "position"} {
		props[v] = add("vec3", v)
	}
	props["transform"] = add("transform", "transform")
	props["height"] = add("float", "height")
	points := add("array", "points")
	points.Elem = property.Vector3
	props["points"] = points
	return props
}

// ResolveLevel walks Level -> Layer -> Instance and binds every raw value
// to its declared property type. Unknown keys are dropped with a warning;
// an instance whose asset type is not loaded stays unresolved and is
// reported as an error. Returns the number of instances left unresolved.
func ResolveLevel(lvl *Level, assets map[string]*Asset, log *logrus.Logger) int {
	unresolved := 0
	for _, layerName := range lvl.LayerOrder {
		layer := lvl.Layers[layerName]
		for _, in := range layer.Instances {
			asset, ok := assets[in.Type]
			if !ok {
				log.Errorf("level %s: layer %s: instance %s has unknown asset type %q",
					lvl.Name, layer.Name, in.ID, in.Type)
				unresolved++
				continue
			}
			resolveInstance(in, asset, lvl.Name, log)
		}
	}
	return unresolved
}

func resolveInstance(in *Instance, asset *Asset, levelName string, log *logrus.Logger) {
	// Effective dictionary: declared props overlaid on the injected set.
	effective := injectedProps()
	for k, p := range asset.Props {
		effective[k] = p
	}

	in.Props = map[string]property.Property{}
	for key, raw := range in.Raw {
		proto, ok := effective[key]
		if !ok {
			log.Warnf("level %s: instance %s (%s): property %q not declared, dropped",
				levelName, in.ID, in.Type, key)
			continue
		}
		resolved, err := proto.SetVal(raw.Value())
		if err != nil {
			log.Warnf("level %s: instance %s (%s): %v, dropped", levelName, in.ID, in.Type, err)
			continue
		}
		in.Props[key] = resolved
	}
}
