package tscn

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// Parse tokenizes and structures a scene file. A malformed header or an
// unbalanced array/object aborts the whole file; the returned error names
// the offending line.
//
// Right-hand-side values are disambiguated by token shape in the priority
// order string > int > float > bool > array > complex call > null > object.
func Parse(name string, src []byte) (*Scene, error) {
	toks, err := tokenize(name, src)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	p := &parser{
		toks:   toks,
		syms:   tscnLexer.Symbols(),
		source: name,
	}
	scene := newScene()
	for !p.eof() {
		if err := p.parseSection(scene); err != nil {
			return nil, err
		}
	}
	scene.resolvePathRefs()
	return scene, nil
}

// ParseFile reads and parses a scene file from disk.
func ParseFile(path string) (*Scene, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src)
}

type parser struct {
	toks   []lexer.Token
	i      int
	syms   map[string]lexer.TokenType
	source string
}

func (p *parser) eof() bool { return p.i >= len(p.toks) }

func (p *parser) peek() lexer.Token {
	if p.eof() {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.toks[p.i]
}

func (p *parser) next() lexer.Token {
	t := p.peek()
	p.i++
	return t
}

func (p *parser) errf(t lexer.Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if t.EOF() {
		return fmt.Errorf("scene %s: %s at end of file", p.source, msg)
	}
	return fmt.Errorf("scene %s:%d: %s (near %q)", p.source, t.Pos.Line, msg, t.Value)
}

func (p *parser) isPunct(t lexer.Token, ch string) bool {
	return t.Type == p.syms["Punct"] && t.Value == ch
}

func (p *parser) expectPunct(ch string) (lexer.Token, error) {
	t := p.next()
	if !p.isPunct(t, ch) {
		return t, p.errf(t, "expected %q", ch)
	}
	return t, nil
}

func (p *parser) expectIdent() (lexer.Token, error) {
	t := p.next()
	if t.Type != p.syms["Ident"] {
		return t, p.errf(t, "expected identifier")
	}
	return t, nil
}

func (p *parser) expectString() (string, error) {
	t := p.next()
	if t.Type != p.syms["String"] {
		return "", p.errf(t, "expected quoted string")
	}
	s, err := strconv.Unquote(t.Value)
	if err != nil {
		return "", p.errf(t, "bad string literal")
	}
	return s, nil
}

// parseSection reads one bracketed header and its attribute body.
func (p *parser) parseSection(s *Scene) error {
	if _, err := p.expectPunct("["); err != nil {
		return err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return err
	}
	header, err := p.parseAttrs("]")
	if err != nil {
		return err
	}
	body, err := p.parseBody()
	if err != nil {
		return err
	}

	switch nameTok.Value {
	case "gd_scene":
		return p.buildHeader(s, header)
	case "ext_resource":
		return p.buildExtResource(s, nameTok, header)
	case "sub_resource":
		return p.buildSubResource(s, nameTok, header, body)
	case "node":
		return p.buildNode(s, nameTok, header, body)
	}
	return p.errf(nameTok, "unknown section %q", nameTok.Value)
}

// parseAttrs reads key = value pairs until the terminator punct.
func (p *parser) parseAttrs(until string) ([]Attr, error) {
	var attrs []Attr
	for {
		t := p.peek()
		if p.isPunct(t, until) {
			p.next()
			return attrs, nil
		}
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attr{Key: key.Value, Value: v})
	}
}

// parseBody reads key = value lines until the next bracketed header or EOF.
func (p *parser) parseBody() ([]Attr, error) {
	var attrs []Attr
	for {
		t := p.peek()
		if t.EOF() || p.isPunct(t, "[") {
			return attrs, nil
		}
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attr{Key: key.Value, Value: v})
	}
}

func (p *parser) parseValue() (Value, error) {
	t := p.peek()
	switch {
	case t.Type == p.syms["String"]:
		p.next()
		s, err := strconv.Unquote(t.Value)
		if err != nil {
			return Value{}, p.errf(t, "bad string literal")
		}
		return Str(s), nil
	case t.Type == p.syms["Int"]:
		p.next()
		n, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return Value{}, p.errf(t, "bad integer literal")
		}
		return IntVal(n), nil
	case t.Type == p.syms["Float"]:
		p.next()
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return Value{}, p.errf(t, "bad float literal")
		}
		return FloatVal(f), nil
	case t.Type == p.syms["Ident"]:
		return p.parseIdentValue()
	case p.isPunct(t, "["):
		return p.parseArray()
	case p.isPunct(t, "{"):
		return p.parseObject()
	case p.isPunct(t, "&"):
		// StringName spelling &"name"; decays to a plain string.
		p.next()
		s, err := p.expectString()
		if err != nil {
			return Value{}, err
		}
		return Str(s), nil
	}
	return Value{}, p.errf(t, "expected value")
}

func (p *parser) parseIdentValue() (Value, error) {
	t := p.next()
	switch t.Value {
	case "true":
		return BoolVal(true), nil
	case "false":
		return BoolVal(false), nil
	case "null":
		return Null(), nil
	}
	// Identifier( args ) complex literal.
	if _, err := p.expectPunct("("); err != nil {
		return Value{}, p.errf(t, "bare identifier %q is not a value", t.Value)
	}
	call := Value{Kind: KindCall, Call: t.Value}
	for {
		if p.isPunct(p.peek(), ")") {
			p.next()
			return call, nil
		}
		if len(call.List) > 0 {
			if _, err := p.expectPunct(","); err != nil {
				return Value{}, err
			}
		}
		arg, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		call.List = append(call.List, arg)
	}
}

func (p *parser) parseArray() (Value, error) {
	open := p.next() // consume '['
	arr := Value{Kind: KindArray}
	for {
		t := p.peek()
		if t.EOF() {
			return Value{}, p.errf(open, "unbalanced array")
		}
		if p.isPunct(t, "]") {
			p.next()
			return arr, nil
		}
		if len(arr.List) > 0 {
			if _, err := p.expectPunct(","); err != nil {
				return Value{}, err
			}
		}
		el, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		arr.List = append(arr.List, el)
	}
}

func (p *parser) parseObject() (Value, error) {
	open := p.next() // consume '{'
	obj := Value{Kind: KindObject}
	for {
		t := p.peek()
		if t.EOF() {
			return Value{}, p.errf(open, "unbalanced object block")
		}
		if p.isPunct(t, "}") {
			p.next()
			return obj, nil
		}
		if len(obj.Entries) > 0 {
			if _, err := p.expectPunct(","); err != nil {
				return Value{}, err
			}
		}
		key, err := p.expectString()
		if err != nil {
			return Value{}, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return Value{}, err
		}
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		obj.Entries = append(obj.Entries, Entry{Key: key, Value: v})
	}
}

func attrLookup(attrs []Attr, key string) (Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return Value{}, false
}

func (p *parser) buildHeader(s *Scene, header []Attr) error {
	if v, ok := attrLookup(header, "load_steps"); ok && v.Kind == KindInt {
		s.LoadSteps = int(v.Int)
	}
	if v, ok := attrLookup(header, "format"); ok && v.Kind == KindInt {
		s.Format = int(v.Int)
	}
	return nil
}

func (p *parser) buildExtResource(s *Scene, at lexer.Token, header []Attr) error {
	res := ExtResource{ID: -1}
	if v, ok := attrLookup(header, "path"); ok && v.Kind == KindString {
		res.Path = v.Str
	}
	if v, ok := attrLookup(header, "type"); ok && v.Kind == KindString {
		res.Type = v.Str
	}
	if v, ok := attrLookup(header, "id"); ok && v.Kind == KindInt {
		res.ID = int(v.Int)
	}
	if res.ID < 0 || res.Path == "" {
		return p.errf(at, "ext_resource needs an integer id and a path")
	}
	s.Ext = append(s.Ext, res)
	s.ExtByID[res.ID] = res
	return nil
}

func (p *parser) buildSubResource(s *Scene, at lexer.Token, header, body []Attr) error {
	idLit, ok := attrLookup(header, "id")
	if !ok {
		return p.errf(at, "sub_resource needs an id")
	}
	sub := &SubResource{
		ID:    subKey(idLit),
		IDLit: idLit,
		Attrs: body,
	}
	if v, ok := attrLookup(header, "type"); ok && v.Kind == KindString {
		sub.Type = v.Str
	}
	s.Subs = append(s.Subs, sub)
	s.SubByID[sub.ID] = sub
	return nil
}

func (p *parser) buildNode(s *Scene, at lexer.Token, header, body []Attr) error {
	n := &Node{Instance: -1, Script: -1, Attrs: body}
	if v, ok := attrLookup(header, "name"); ok && v.Kind == KindString {
		n.Name = v.Str
	}
	if n.Name == "" {
		return p.errf(at, "node needs a name")
	}
	if v, ok := attrLookup(header, "type"); ok && v.Kind == KindString {
		n.Type = v.Str
	}
	if v, ok := attrLookup(header, "parent"); ok && v.Kind == KindString {
		n.Parent = v.Str
	}
	if v, ok := attrLookup(header, "instance"); ok {
		id, err := extResourceHandle(v)
		if err != nil {
			return p.errf(at, "node %q: %v", n.Name, err)
		}
		n.Instance = id
	}
	// script can appear either as a header attribute or a body line.
	if v, ok := attrLookup(header, "script"); ok {
		id, err := extResourceHandle(v)
		if err != nil {
			return p.errf(at, "node %q: %v", n.Name, err)
		}
		n.Script = id
	} else if v, ok := attrLookup(body, "script"); ok {
		if id, err := extResourceHandle(v); err == nil {
			n.Script = id
		}
	}
	s.addNode(n)
	return nil
}

// extResourceHandle decodes an ExtResource(n) literal.
func extResourceHandle(v Value) (int, error) {
	if v.Kind != KindCall || v.Call != "ExtResource" || len(v.List) != 1 || v.List[0].Kind != KindInt {
		return -1, fmt.Errorf("expected ExtResource(id) literal, got %s", v.String())
	}
	return int(v.List[0].Int), nil
}
