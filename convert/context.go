package convert

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/level"
)

// Context carries the per-run registries and the logger handle threaded
// through every conversion call. Registries are built once per run and
// treated as read-only while emission loops are running.
type Context struct {
	Log    *logrus.Logger
	Assets map[string]*level.Asset
	Res    *level.Resources

	// ResBase prefixes generated resource references, e.g. "res://".
	ResBase string
}

// NewContext wires a context; a nil logger gets a default one.
func NewContext(log *logrus.Logger, assets map[string]*level.Asset, res *level.Resources) *Context {
	if log == nil {
		log = logrus.New()
	}
	if res == nil {
		res = level.NewResources()
	}
	return &Context{Log: log, Assets: assets, Res: res, ResBase: "res://"}
}

// categoryExt maps a category onto the resource extension its nodes wire.
// Types whose category is absent from the map allocate no handle and are
// silently omitted from wiring.
var categoryExt = map[level.Category]string{
	level.CategorySpatial:       "tscn",
	level.CategoryPolygonVolume: "tscn",
	level.CategoryOBBVolume:     "tscn",
	level.CategoryVolume:        "gd",
}

// resPath builds the generated reference path for a resource destination.
func (c *Context) resPath(asset *level.Asset, ext string) string {
	dir := asset.Directory
	name := asset.Type + "." + ext
	if dir == "" {
		return c.ResBase + name
	}
	return c.ResBase + path.Join(dir, name)
}

// wireHandle allocates (or reuses) the ext-resource handle for an asset
// type, or reports false when the type has no eligible resource file.
func (c *Context) wireHandle(alloc *HandleAllocator, asset *level.Asset) (int, bool) {
	cat, ok := asset.Category()
	if !ok {
		return 0, false
	}
	ext, ok := categoryExt[cat]
	if !ok {
		return 0, false
	}
	if !c.Res.Has(asset.Type, ext) {
		return 0, false
	}
	resType := "PackedScene"
	if ext == "gd" {
		resType = "Script"
	}
	return alloc.Alloc(asset.Type, c.resPath(asset, ext), resType), true
}

// refResolver adapts the context + allocator pair into the property layer's
// reference resolver, allocating handles on demand for referenced types.
type refResolver struct {
	ctx   *Context
	alloc *HandleAllocator
}

func (r refResolver) HandleFor(id string) (int, bool) {
	key := strings.ToLower(id)
	if h, ok := r.alloc.HandleFor(key); ok {
		return h, ok
	}
	asset, ok := r.ctx.Assets[key]
	if !ok {
		return 0, false
	}
	return r.ctx.wireHandle(r.alloc, asset)
}
