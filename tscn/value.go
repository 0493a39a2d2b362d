package tscn

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the closed set of right-hand-side value shapes the scene
// grammar allows.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindCall
	KindObject
	// KindRaw is never produced by the parser; it carries opaque text the
	// writer must emit untouched.
	KindRaw
)

// Entry is one "key": value pair inside an object block, kept in file order.
type Entry struct {
	Key   string
	Value Value
}

// Value is one parsed attribute value. Exactly the fields implied by Kind
// are meaningful; Call reuses List for its arguments.
type Value struct {
	Kind    ValueKind
	Str     string
	Int     int64
	Float   float64
	Bool    bool
	List    []Value
	Call    string
	Entries []Entry
}

func Null() Value             { return Value{Kind: KindNull} }
func Str(s string) Value      { return Value{Kind: KindString, Str: s} }
func IntVal(n int64) Value    { return Value{Kind: KindInt, Int: n} }
func FloatVal(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func BoolVal(b bool) Value    { return Value{Kind: KindBool, Bool: b} }
func ArrayVal(vs ...Value) Value {
	return Value{Kind: KindArray, List: vs}
}
func CallVal(name string, args ...Value) Value {
	return Value{Kind: KindCall, Call: name, List: args}
}
func RawVal(s string) Value { return Value{Kind: KindRaw, Str: s} }

// Num spells whole floats as ints, the scene format's shortest spelling.
func Num(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return IntVal(int64(f))
	}
	return FloatVal(f)
}

// Number returns the value as a float regardless of int/float spelling.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String renders the value in scene literal syntax. Rendering a parsed value
// reproduces the source literal.
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindString:
		b.WriteString(strconv.Quote(v.Str))
	case KindRaw:
		b.WriteString(v.Str)
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		b.WriteString(FormatFloat(v.Float))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindArray:
		b.WriteByte('[')
		for i, e := range v.List {
			if i > 0 {
				b.WriteString(", ")
			}
			e.render(b)
		}
		b.WriteByte(']')
	case KindCall:
		b.WriteString(v.Call)
		b.WriteByte('(')
		for i, a := range v.List {
			if i > 0 {
				b.WriteString(", ")
			}
			a.render(b)
		}
		b.WriteByte(')')
	case KindObject:
		b.WriteByte('{')
		for i, e := range v.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(e.Key))
			b.WriteString(": ")
			e.Value.render(b)
		}
		b.WriteByte('}')
	}
}

// FormatFloat renders a float the way the scene format spells it: shortest
// representation, no exponent for typical magnitudes.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	return s
}
