// Package level builds the intermediate-side object graphs: asset-type
// declarations, parsed levels with layers and placed instances, and the
// engine that binds untyped instance values to declared property types.
package level

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/property"
)

// Category selects which geometry-synthesis strategy applies to an asset.
type Category string

const (
	CategorySpatial       Category = "Spatial"
	CategoryVolume        Category = "Volume"
	CategoryPolygonVolume Category = "PolygonVolume"
	CategoryOBBVolume     Category = "OBBVolume"
	CategoryWaypointPath  Category = "WaypointPath"
)

// ParseCategory folds case and reports whether the name is a known category.
func ParseCategory(name string) (Category, bool) {
	for _, c := range []Category{
		CategorySpatial, CategoryVolume, CategoryPolygonVolume,
		CategoryOBBVolume, CategoryWaypointPath,
	} {
		if strings.EqualFold(name, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Asset is one declared placeable kind: constant metadata plus a property
// schema. Created once when asset-type definitions load, immutable after
// except for the late-bound project directory.
type Asset struct {
	Type      string // lowercase key
	Consts    map[string]string
	Props     map[string]property.Property
	Directory string
	Restrict  []string // case-folded level names this type is limited to
}

// Category returns the asset's declared category constant.
func (a *Asset) Category() (Category, bool) {
	return ParseCategory(a.Consts["category"])
}

// AllowedIn reports whether the asset may appear in the named level. An
// empty restriction list allows every level.
func (a *Asset) AllowedIn(levelName string) bool {
	if len(a.Restrict) == 0 {
		return true
	}
	folded := strings.ToLower(levelName)
	for _, r := range a.Restrict {
		if r == folded {
			return true
		}
	}
	return false
}

// assetTypesKey is the fixed top-level key of the asset-type schema.
const assetTypesKey = "AssetTypes"

// LoadAssetTypes parses an asset-type definition file. A definition missing
// its type name or declaring an unknown property kind is skipped with an
// error log; the rest of the file still loads.
func LoadAssetTypes(path string, log *logrus.Logger) (map[string]*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("asset types %s: malformed JSON", path)
	}
	defs := gjson.GetBytes(data, assetTypesKey)
	if !defs.IsArray() {
		return nil, fmt.Errorf("asset types %s: missing %q list", path, assetTypesKey)
	}

	assets := make(map[string]*Asset)
	defs.ForEach(func(_, def gjson.Result) bool {
		a, err := assetFromDef(def, log)
		if err != nil {
			log.Errorf("asset types %s: %v", path, err)
			return true
		}
		assets[a.Type] = a
		return true
	})
	return assets, nil
}

func assetFromDef(def gjson.Result, log *logrus.Logger) (*Asset, error) {
	name := def.Get("type").String()
	if name == "" {
		return nil, fmt.Errorf("definition missing \"type\"")
	}
	a := &Asset{
		Type:      strings.ToLower(name),
		Consts:    map[string]string{},
		Props:     map[string]property.Property{},
		Directory: def.Get("directory").String(),
	}
	def.Get("constants").ForEach(func(k, v gjson.Result) bool {
		a.Consts[strings.ToLower(k.String())] = v.String()
		return true
	})
	def.Get("levels").ForEach(func(_, v gjson.Result) bool {
		a.Restrict = append(a.Restrict, strings.ToLower(v.String()))
		return true
	})

	var firstErr error
	def.Get("properties").ForEach(func(_, pd gjson.Result) bool {
		p, err := propertyFromDef(pd)
		if err != nil {
			firstErr = fmt.Errorf("asset %q: %w", a.Type, err)
			return false
		}
		// Declaration fields the kind does not legally accept are dropped
		// with a warning, not fatal.
		if (p.Min != nil || p.Max != nil) && !p.Kind.AcceptsMinMax() {
			log.Warnf("asset %q: property %q (%s) does not accept min/max", a.Type, p.ID, p.Kind)
			p.Min, p.Max = nil, nil
		}
		if len(p.Selections) > 0 && !p.Kind.AcceptsSelections() && p.Elem != property.Selection {
			log.Warnf("asset %q: property %q (%s) does not accept selections", a.Type, p.ID, p.Kind)
			p.Selections = nil
		}
		a.Props[p.ID] = p
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return a, nil
}

func propertyFromDef(pd gjson.Result) (property.Property, error) {
	id := pd.Get("name").String()
	p, err := property.Create(pd.Get("type").String(), id)
	if err != nil {
		return p, err
	}
	if d := pd.Get("default"); d.Exists() {
		p.Default = d.Value()
	}
	if e := pd.Get("element"); e.Exists() && p.Kind == property.Array {
		p.Elem = property.ParseKind(e.String())
	}
	if m := pd.Get("min"); m.Exists() {
		v := m.Float()
		p.Min = &v
	}
	if m := pd.Get("max"); m.Exists() {
		v := m.Float()
		p.Max = &v
	}
	pd.Get("selections").ForEach(func(_, s gjson.Result) bool {
		p.Selections = append(p.Selections, s.String())
		return true
	})
	return p, nil
}
