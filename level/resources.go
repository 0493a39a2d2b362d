package level

import (
	"path/filepath"
	"strings"
)

// Resource is a filesystem artifact (mesh, script, scene) identified by its
// lowercase filename stem.
type Resource struct {
	Stem   string
	Ext    string // without the dot, lowercase
	Source string
	Dest   string
}

// Resources groups resources by asset-type key then by extension, backing
// "does this type have a .tscn / .gd?" lookups during resource wiring.
type Resources struct {
	byStem map[string]map[string]Resource
}

func NewResources() *Resources {
	return &Resources{byStem: map[string]map[string]Resource{}}
}

// Add registers one (source, destination) pair supplied by the directory
// walker. Later additions with the same stem and extension win.
func (r *Resources) Add(source, dest string) {
	base := filepath.Base(source)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	if r.byStem[stem] == nil {
		r.byStem[stem] = map[string]Resource{}
	}
	r.byStem[stem][ext] = Resource{Stem: stem, Ext: ext, Source: source, Dest: dest}
}

// Lookup finds the resource for an asset-type key and extension.
func (r *Resources) Lookup(typeKey, ext string) (Resource, bool) {
	res, ok := r.byStem[strings.ToLower(typeKey)][strings.ToLower(ext)]
	return res, ok
}

// Has reports whether the asset type has a resource with the extension.
func (r *Resources) Has(typeKey, ext string) bool {
	_, ok := r.Lookup(typeKey, ext)
	return ok
}
