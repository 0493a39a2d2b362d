package tscn

import (
	"path"
	"strconv"
	"strings"
)

// ExtResource is one external resource declaration. Handles are integers
// allocated in first-use order by the emitter.
type ExtResource struct {
	ID   int
	Type string
	Path string
}

// Stem returns the lowercase filename stem of the resource path, which is
// how a node's asset type is recovered.
func (e ExtResource) Stem() string {
	base := path.Base(e.Path)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

// Attr is one key = value line, kept in file order for stable re-emission.
type Attr struct {
	Key   string
	Value Value
}

// SubResource is one inline typed resource block.
type SubResource struct {
	ID    string
	IDLit Value
	Type  string
	Attrs []Attr
}

func (r *SubResource) Attr(key string) (Value, bool) {
	for _, a := range r.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Node is one scene node. Instance and Script hold ext-resource handles, -1
// when absent.
type Node struct {
	Name     string
	Type     string
	Parent   string // scene path of the parent; empty for the root node
	Instance int
	Script   int
	Attrs    []Attr
	Index    int
	path     string

	// PathRefs holds, per attribute, the node indexes an array of node-path
	// handles resolved to in the second pass.
	PathRefs map[string][]int
}

// Path is the node's scene path ("." for the root).
func (n *Node) Path() string {
	return n.path
}

func (n *Node) Attr(key string) (Value, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return Value{}, false
}

// SetAttr replaces or appends an attribute, preserving emission order.
func (n *Node) SetAttr(key string, v Value) {
	for i, a := range n.Attrs {
		if a.Key == key {
			n.Attrs[i].Value = v
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: v})
}

// RefEdge records that node Node references some other node through the
// named array-of-node-paths property.
type RefEdge struct {
	Node int
	Prop string
}

// Scene is a fully parsed scene file: resource tables, the depth-first
// flattened node list, and the reverse reference edges built in pass two.
type Scene struct {
	LoadSteps int
	Format    int

	Ext     []ExtResource
	ExtByID map[int]ExtResource

	Subs    []*SubResource
	SubByID map[string]*SubResource

	Nodes  []*Node
	byPath map[string]*Node

	// RefProps maps a node's index to the (node, property) pairs that point
	// at it. Needed because node paths can reference siblings declared later
	// in the file, so resolution is a second pass.
	RefProps map[int][]RefEdge
}

// NewScene returns an empty scene ready for node and resource insertion.
func NewScene() *Scene { return newScene() }

func newScene() *Scene {
	return &Scene{
		Format:   3,
		ExtByID:  map[int]ExtResource{},
		SubByID:  map[string]*SubResource{},
		byPath:   map[string]*Node{},
		RefProps: map[int][]RefEdge{},
	}
}

// NodeAt returns the node with the given scene path.
func (s *Scene) NodeAt(p string) (*Node, bool) {
	n, ok := s.byPath[p]
	return n, ok
}

// Root returns the scene root node, nil for an empty scene.
func (s *Scene) Root() *Node {
	if n, ok := s.byPath["."]; ok {
		return n
	}
	return nil
}

// AssetType derives a node's semantic type from the filename stem of its
// instance (or script) resource, not from the declared engine class.
func (s *Scene) AssetType(n *Node) string {
	for _, id := range []int{n.Instance, n.Script} {
		if id < 0 {
			continue
		}
		if res, ok := s.ExtByID[id]; ok {
			return res.Stem()
		}
	}
	return ""
}

// AddNode appends a node to the flattened list, deriving its scene path
// from its parent, and returns it.
func (s *Scene) AddNode(n *Node) *Node {
	s.addNode(n)
	return n
}

// SetExtResources installs the emitter's handle table.
func (s *Scene) SetExtResources(res []ExtResource) {
	s.Ext = res
	s.ExtByID = map[int]ExtResource{}
	for _, r := range res {
		s.ExtByID[r.ID] = r
	}
}

// AddSubResource appends an inline resource with an integer id literal.
func (s *Scene) AddSubResource(sub *SubResource) {
	if sub.IDLit.Kind == KindNull {
		sub.IDLit = IntVal(int64(len(s.Subs) + 1))
		sub.ID = subKey(sub.IDLit)
	}
	s.Subs = append(s.Subs, sub)
	s.SubByID[sub.ID] = sub
}

func (s *Scene) addNode(n *Node) {
	if n.Parent == "" {
		n.path = "."
	} else if n.Parent == "." {
		n.path = n.Name
	} else {
		n.path = n.Parent + "/" + n.Name
	}
	n.Index = len(s.Nodes)
	s.Nodes = append(s.Nodes, n)
	s.byPath[n.path] = n
}

// resolvePathRefs is the second pass: any attribute whose value is an array
// of NodePath handles is resolved against the flattened list, and the
// reverse edge recorded. Paths that resolve to no node are left out; the
// converter decides whether that is fatal for the node.
func (s *Scene) resolvePathRefs() {
	for _, n := range s.Nodes {
		for _, a := range n.Attrs {
			targets, ok := nodePathArray(a.Value)
			if !ok {
				continue
			}
			for _, rel := range targets {
				abs := joinScenePath(n.path, rel)
				target, found := s.byPath[abs]
				if !found {
					continue
				}
				if n.PathRefs == nil {
					n.PathRefs = map[string][]int{}
				}
				n.PathRefs[a.Key] = append(n.PathRefs[a.Key], target.Index)
				s.RefProps[target.Index] = append(s.RefProps[target.Index], RefEdge{Node: n.Index, Prop: a.Key})
			}
		}
	}
}

// nodePathArray reports whether v is a non-empty array of NodePath calls and
// returns the path strings.
func nodePathArray(v Value) ([]string, bool) {
	if v.Kind != KindArray || len(v.List) == 0 {
		return nil, false
	}
	paths := make([]string, 0, len(v.List))
	for _, e := range v.List {
		if e.Kind != KindCall || e.Call != "NodePath" || len(e.List) != 1 || e.List[0].Kind != KindString {
			return nil, false
		}
		paths = append(paths, e.List[0].Str)
	}
	return paths, true
}

func joinScenePath(base, rel string) string {
	if base == "." {
		return rel
	}
	return path.Join(base, rel)
}

// subKey normalizes a sub-resource id literal (int or string) into a map key.
func subKey(v Value) string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	}
	return v.String()
}
